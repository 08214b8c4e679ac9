package repository

import (
	"context"

	"estore/api/internal/model"
)

// InsertNotification appends a notification. The table rejects updates and
// deletes, so this is the only write path.
func InsertNotification(ctx context.Context, q Querier, n *model.Notification) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO payment_notifications (id, transaction_id, type, status, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		n.ID, n.TransactionID, n.Type, n.Status, n.Message, formatTime(n.CreatedAt),
	)
	return err
}

func NotificationsByTransaction(ctx context.Context, q Querier, transactionID string) ([]model.Notification, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, transaction_id, type, status, message, created_at
		FROM payment_notifications WHERE transaction_id = ? ORDER BY created_at, rowid`, transactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []model.Notification
	for rows.Next() {
		var n model.Notification
		var createdAt string
		if err := rows.Scan(&n.ID, &n.TransactionID, &n.Type, &n.Status, &n.Message, &createdAt); err != nil {
			return nil, err
		}
		n.CreatedAt = parseTime(createdAt)
		list = append(list, n)
	}
	return list, rows.Err()
}
