package repository

import (
	"context"
	"database/sql"
	"time"

	"estore/api/internal/model"
)

// NextSequence atomically increments and returns the named counter.
func NextSequence(ctx context.Context, q Querier, name string) (int64, error) {
	var v int64
	err := q.QueryRowContext(ctx, `
		INSERT INTO sequences (name, value) VALUES (?, 1)
		ON CONFLICT(name) DO UPDATE SET value = value + 1
		RETURNING value`, name).Scan(&v)
	return v, err
}

// InsertOrder persists the order row. Items are inserted separately.
func InsertOrder(ctx context.Context, q Querier, o *model.Order) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO orders (id, order_number, user_id, status, payment_status, shipping_address,
			billing_address, payment_method, total_amount, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.Number, o.UserID, o.Status, o.PaymentStatus, o.ShippingAddress,
		o.BillingAddress, o.PaymentMethod, o.TotalAmount, formatTime(o.CreatedAt), formatTime(o.UpdatedAt),
	)
	return err
}

func InsertOrderItem(ctx context.Context, q Querier, it *model.OrderItem) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO order_items (id, order_id, product_id, product_name, quantity, price)
		VALUES (?, ?, ?, ?, ?, ?)`,
		it.ID, it.OrderID, it.ProductID, it.ProductName, it.Quantity, it.Price,
	)
	return err
}

const orderColumns = `id, order_number, user_id, status, payment_status, shipping_address,
	billing_address, payment_method, total_amount, created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (*model.Order, error) {
	var o model.Order
	var createdAt, updatedAt string
	err := row.Scan(&o.ID, &o.Number, &o.UserID, &o.Status, &o.PaymentStatus, &o.ShippingAddress,
		&o.BillingAddress, &o.PaymentMethod, &o.TotalAmount, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	o.CreatedAt = parseTime(createdAt)
	o.UpdatedAt = parseTime(updatedAt)
	return &o, nil
}

// OrderByID loads the order with its items.
func OrderByID(ctx context.Context, q Querier, id string) (*model.Order, error) {
	o, err := scanOrder(q.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	o.Items, err = OrderItems(ctx, q, id)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func OrderItems(ctx context.Context, q Querier, orderID string) ([]model.OrderItem, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, order_id, product_id, product_name, quantity, price FROM order_items WHERE order_id = ? ORDER BY rowid`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []model.OrderItem
	for rows.Next() {
		var it model.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.Quantity, &it.Price); err != nil {
			return nil, err
		}
		list = append(list, it)
	}
	return list, rows.Err()
}

// UpdateOrderStatus moves an order from -> to only if it is currently in from.
// Returns true if the swap happened (rows affected == 1).
func UpdateOrderStatus(ctx context.Context, q Querier, orderID string, from, to model.OrderStatus, now time.Time) (bool, error) {
	return affectedOne(q.ExecContext(ctx,
		`UPDATE orders SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		to, formatTime(now), orderID, from))
}

// UpdateOrderPaymentStatus is the compare-and-swap on orders.payment_status.
func UpdateOrderPaymentStatus(ctx context.Context, q Querier, orderID string, from, to model.PaymentStatus, now time.Time) (bool, error) {
	return affectedOne(q.ExecContext(ctx,
		`UPDATE orders SET payment_status = ?, updated_at = ? WHERE id = ? AND payment_status = ?`,
		to, formatTime(now), orderID, from))
}

// OrderFilter narrows ListOrders. Zero fields are ignored.
type OrderFilter struct {
	Status        model.OrderStatus
	PaymentStatus model.PaymentStatus
	UserID        string
	From, To      time.Time // created_at in [From, To)
	Page
}

// ListOrders returns matching orders newest first, without items.
func ListOrders(ctx context.Context, q Querier, f OrderFilter) ([]model.Order, error) {
	var w where
	if f.Status != "" {
		w.add("status = ?", f.Status)
	}
	if f.PaymentStatus != "" {
		w.add("payment_status = ?", f.PaymentStatus)
	}
	if f.UserID != "" {
		w.add("user_id = ?", f.UserID)
	}
	if !f.From.IsZero() {
		w.add("created_at >= ?", formatTime(f.From))
	}
	if !f.To.IsZero() {
		w.add("created_at < ?", formatTime(f.To))
	}
	limit, args := f.Page.clause(w.args)

	rows, err := q.QueryContext(ctx, `SELECT `+orderColumns+` FROM orders`+w.String()+` ORDER BY created_at DESC, id`+limit, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *o)
	}
	return list, rows.Err()
}
