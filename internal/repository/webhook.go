package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// InsertWebhookEvent logs a received webhook event. Returns false when the
// event id was already recorded, which makes redelivery a no-op.
func InsertWebhookEvent(ctx context.Context, q Querier, eventID, eventType, transactionID string, now time.Time) (bool, error) {
	return affectedOne(q.ExecContext(ctx, `
		INSERT INTO payment_webhook_events (id, event_id, event_type, transaction_id, received_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(event_id) DO NOTHING`,
		uuid.New().String(), eventID, eventType, transactionID, formatTime(now),
	))
}

// WebhookEventExists checks if a webhook event has already been received.
func WebhookEventExists(ctx context.Context, q Querier, eventID string) bool {
	var exists int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM payment_webhook_events WHERE event_id = ?`, eventID).Scan(&exists)
	return err == nil && exists > 0
}
