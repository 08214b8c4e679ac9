package admin

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"estore/api/internal/db"
	apperrors "estore/api/internal/errors"
	"estore/api/internal/logger"
	"estore/api/internal/model"
	"estore/api/internal/money"
	"estore/api/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductInput registers a catalog product.
type ProductInput struct {
	SKU         string          `json:"sku"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
}

// ProductPatch changes a product. Nil fields are left alone; Restock adds
// units to the current stock.
type ProductPatch struct {
	Price   *decimal.Decimal `json:"price"`
	Active  *bool            `json:"active"`
	Restock int              `json:"restock"`
}

func invalidField(field, reason, msg string) error {
	return apperrors.WithMetadata(apperrors.CodeValidation, msg, map[string]string{"field": field, "reason": reason})
}

func (m *Manager) CreateProduct(ctx context.Context, actor model.Actor, in ProductInput) (*model.Product, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	switch {
	case strings.TrimSpace(in.SKU) == "":
		return nil, invalidField("sku", "InvalidFormat", "sku é obrigatório")
	case strings.TrimSpace(in.Name) == "":
		return nil, invalidField("name", "InvalidFormat", "nome é obrigatório")
	case !in.Price.IsPositive():
		return nil, invalidField("price", "OutOfRange", "preço deve ser positivo")
	case in.Stock < 0:
		return nil, invalidField("stock", "OutOfRange", "estoque não pode ser negativo")
	}
	p := &model.Product{
		ID:          uuid.New().String(),
		SKU:         strings.TrimSpace(in.SKU),
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Price:       money.Round(in.Price),
		Stock:       in.Stock,
		Active:      true,
	}
	if err := repository.CreateProduct(ctx, m.db, p, m.now().UTC()); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, apperrors.WithMetadata(apperrors.CodeConflict, "sku já cadastrado", map[string]string{"sku": p.SKU})
		}
		return nil, fmt.Errorf("create product: %w", err)
	}
	logger.InfoContext(ctx, "product created", "product_id", p.ID, "sku", p.SKU, "actor", actor.UserID)
	return p, nil
}

// UpdateProduct applies patch in one transaction. Orders already placed
// keep the price they were created with.
func (m *Manager) UpdateProduct(ctx context.Context, actor model.Actor, productID string, patch ProductPatch) (*model.Product, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if patch.Price != nil && !patch.Price.IsPositive() {
		return nil, invalidField("price", "OutOfRange", "preço deve ser positivo")
	}
	if patch.Restock < 0 {
		return nil, invalidField("restock", "OutOfRange", "reposição não pode ser negativa")
	}

	var p *model.Product
	now := m.now().UTC()
	err := db.WithTx(ctx, m.db, func(tx *sql.Tx) error {
		if _, err := repository.ProductByID(ctx, tx, productID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperrors.WithMetadata(apperrors.CodeNotFound, "produto não encontrado", map[string]string{"product_id": productID})
			}
			return fmt.Errorf("load product: %w", err)
		}
		if patch.Price != nil {
			if err := repository.UpdateProductPrice(ctx, tx, productID, money.Round(*patch.Price), now); err != nil {
				return fmt.Errorf("update price: %w", err)
			}
		}
		if patch.Active != nil {
			if err := repository.SetProductActive(ctx, tx, productID, *patch.Active, now); err != nil {
				return fmt.Errorf("update active: %w", err)
			}
		}
		if patch.Restock > 0 {
			if err := repository.IncrementStock(ctx, tx, productID, patch.Restock); err != nil {
				return fmt.Errorf("restock: %w", err)
			}
		}
		var err error
		p, err = repository.ProductByID(ctx, tx, productID)
		return err
	})
	if err != nil {
		return nil, err
	}
	logger.InfoContext(ctx, "product updated", "product_id", productID, "actor", actor.UserID)
	return p, nil
}
