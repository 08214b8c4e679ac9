package repository

import (
	"context"
	"database/sql"
	"time"

	"estore/api/internal/model"

	"github.com/shopspring/decimal"
)

const productColumns = `id, sku, name, description, price, stock, active`

func scanProduct(row interface{ Scan(...any) error }) (*model.Product, error) {
	var p model.Product
	if err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.Description, &p.Price, &p.Stock, &p.Active); err != nil {
		return nil, err
	}
	return &p, nil
}

func ProductByID(ctx context.Context, q Querier, id string) (*model.Product, error) {
	p, err := scanProduct(q.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return p, err
}

func ListProducts(ctx context.Context, q Querier, activeOnly bool) ([]model.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products`
	if activeOnly {
		query += ` WHERE active = 1`
	}
	rows, err := q.QueryContext(ctx, query+` ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *p)
	}
	return list, rows.Err()
}

func CreateProduct(ctx context.Context, q Querier, p *model.Product, now time.Time) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO products (id, sku, name, description, price, stock, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.SKU, p.Name, p.Description, p.Price, p.Stock, p.Active, formatTime(now), formatTime(now),
	)
	return err
}

// DecrementStock removes n units only if at least n are available.
// Returns false when the guard fails (insufficient stock or unknown product).
func DecrementStock(ctx context.Context, q Querier, productID string, n int) (bool, error) {
	return affectedOne(q.ExecContext(ctx,
		`UPDATE products SET stock = stock - ? WHERE id = ? AND stock >= ?`, n, productID, n))
}

// IncrementStock returns n units to a product (compensation on cancellation).
func IncrementStock(ctx context.Context, q Querier, productID string, n int) error {
	_, err := q.ExecContext(ctx, `UPDATE products SET stock = stock + ? WHERE id = ?`, n, productID)
	return err
}

func UpdateProductPrice(ctx context.Context, q Querier, productID string, price decimal.Decimal, now time.Time) error {
	_, err := q.ExecContext(ctx, `UPDATE products SET price = ?, updated_at = ? WHERE id = ?`, price, formatTime(now), productID)
	return err
}

func SetProductActive(ctx context.Context, q Querier, productID string, active bool, now time.Time) error {
	_, err := q.ExecContext(ctx, `UPDATE products SET active = ?, updated_at = ? WHERE id = ?`, active, formatTime(now), productID)
	return err
}
