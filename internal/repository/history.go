package repository

import (
	"context"

	"estore/api/internal/model"

	"github.com/google/uuid"
)

// RecordStatusChange logs an order status or payment status transition for
// audit purposes.
func RecordStatusChange(ctx context.Context, q Querier, c *model.StatusChange) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO order_status_history (id, order_id, field, old_status, new_status, reason, actor, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.OrderID, c.Field, c.OldStatus, c.NewStatus, c.Reason, c.Actor, formatTime(c.CreatedAt),
	)
	return err
}

// StatusHistory returns every recorded change of an order, oldest first.
func StatusHistory(ctx context.Context, q Querier, orderID string) ([]model.StatusChange, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, order_id, field, old_status, new_status, reason, actor, created_at
		FROM order_status_history WHERE order_id = ? ORDER BY created_at, rowid`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []model.StatusChange
	for rows.Next() {
		var c model.StatusChange
		var createdAt string
		if err := rows.Scan(&c.ID, &c.OrderID, &c.Field, &c.OldStatus, &c.NewStatus, &c.Reason, &c.Actor, &createdAt); err != nil {
			return nil, err
		}
		c.CreatedAt = parseTime(createdAt)
		list = append(list, c)
	}
	return list, rows.Err()
}
