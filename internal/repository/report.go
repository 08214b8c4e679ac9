package repository

import (
	"context"
	"time"

	"estore/api/internal/model"

	"github.com/shopspring/decimal"
)

// Sale is a paid order with the method of its approved transaction.
type Sale struct {
	OrderID   string
	Total     decimal.Decimal
	Method    model.PaymentMethod
	CreatedAt time.Time
}

// ApprovedSales lists paid, non-cancelled orders created in [from, to).
// A zero bound is ignored.
func ApprovedSales(ctx context.Context, q Querier, from, to time.Time) ([]Sale, error) {
	w := where{conds: []string{"o.payment_status = 'approved'", "o.status <> 'cancelled'"}}
	if !from.IsZero() {
		w.add("o.created_at >= ?", formatTime(from))
	}
	if !to.IsZero() {
		w.add("o.created_at < ?", formatTime(to))
	}
	rows, err := q.QueryContext(ctx, `
		SELECT o.id, o.total_amount, t.method, o.created_at
		FROM orders o
		JOIN payment_transactions t ON t.order_id = o.id AND t.status = 'approved'`+w.String()+`
		ORDER BY o.created_at`, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []Sale
	for rows.Next() {
		var s Sale
		var createdAt string
		if err := rows.Scan(&s.OrderID, &s.Total, &s.Method, &createdAt); err != nil {
			return nil, err
		}
		s.CreatedAt = parseTime(createdAt)
		list = append(list, s)
	}
	return list, rows.Err()
}
