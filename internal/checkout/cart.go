// Package checkout turns carts into persisted orders and runs the order's
// fulfillment state machine.
package checkout

import (
	"context"
	"errors"
	"strconv"

	apperrors "estore/api/internal/errors"
	"estore/api/internal/model"
	"estore/api/internal/repository"

	"github.com/shopspring/decimal"
)

// Line is one requested cart entry.
type Line struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// CatalogLookup resolves a product's current price, stock and active flag.
// A nil product with a nil error means the product does not exist.
type CatalogLookup interface {
	Product(ctx context.Context, id string) (*model.Product, error)
}

// StoreCatalog reads the catalog from the products table.
type StoreCatalog struct {
	Q repository.Querier
}

func (c StoreCatalog) Product(ctx context.Context, id string) (*model.Product, error) {
	p, err := repository.ProductByID(ctx, c.Q, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	return p, err
}

// ValidatedLine is a cart line priced at validation time.
type ValidatedLine struct {
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	LineTotal   decimal.Decimal `json:"lineTotal"`
	Available   int             `json:"available"`
}

// Cart is a validated cart snapshot. Total is recomputed server-side from
// catalog prices; client-supplied prices are never trusted.
type Cart struct {
	Lines []ValidatedLine `json:"lines"`
	Total decimal.Decimal `json:"total"`
}

// ValidateCart checks that the cart is non-empty, that every product exists
// and is active, and that stock covers each requested quantity. Repeated
// product ids are merged into one line. Stock is not touched.
func ValidateCart(ctx context.Context, lines []Line, catalog CatalogLookup) (*Cart, error) {
	if len(lines) == 0 {
		return nil, apperrors.New(apperrors.CodeEmptyCart, "o carrinho está vazio")
	}

	merged := make([]Line, 0, len(lines))
	index := make(map[string]int, len(lines))
	for _, l := range lines {
		if l.ProductID == "" || l.Quantity <= 0 {
			return nil, apperrors.WithMetadata(apperrors.CodeValidation, "quantidade inválida",
				map[string]string{"field": "quantity", "reason": "OutOfRange", "product_id": l.ProductID})
		}
		if i, ok := index[l.ProductID]; ok {
			merged[i].Quantity += l.Quantity
			continue
		}
		index[l.ProductID] = len(merged)
		merged = append(merged, l)
	}

	cart := &Cart{Total: decimal.Zero}
	for _, l := range merged {
		p, err := catalog.Product(ctx, l.ProductID)
		if err != nil {
			return nil, err
		}
		if p == nil || !p.Active {
			return nil, apperrors.WithMetadata(apperrors.CodeProductUnavailable, "produto indisponível",
				map[string]string{"product_id": l.ProductID})
		}
		if l.Quantity > p.Stock {
			return nil, apperrors.WithMetadata(apperrors.CodeInsufficientStock, "estoque insuficiente para "+p.Name,
				map[string]string{
					"product_id": p.ID,
					"requested":  strconv.Itoa(l.Quantity),
					"available":  strconv.Itoa(p.Stock),
				})
		}
		lineTotal := p.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
		cart.Lines = append(cart.Lines, ValidatedLine{
			ProductID:   p.ID,
			ProductName: p.Name,
			Quantity:    l.Quantity,
			Price:       p.Price,
			LineTotal:   lineTotal,
			Available:   p.Stock,
		})
		cart.Total = cart.Total.Add(lineTotal)
	}
	return cart, nil
}
