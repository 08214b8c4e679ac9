package payment

import (
	"context"
	"errors"
	"fmt"

	apperrors "estore/api/internal/errors"
	"estore/api/internal/model"
	"estore/api/internal/repository"
)

// Details is a transaction with its notification trail.
type Details struct {
	Transaction   *model.Transaction   `json:"transaction"`
	Notifications []model.Notification `json:"notifications"`
}

// Lookup returns a transaction to its order's owner or an admin.
func (p *Processor) Lookup(ctx context.Context, actor model.Actor, txID string) (*Details, error) {
	t, err := repository.TransactionByID(ctx, p.db, txID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.WithMetadata(apperrors.CodeNotFound, "transação não encontrada", map[string]string{"transaction_id": txID})
	}
	if err != nil {
		return nil, fmt.Errorf("load transaction: %w", err)
	}
	if !actor.IsAdmin() {
		order, err := repository.OrderByID(ctx, p.db, t.OrderID)
		if err != nil {
			return nil, fmt.Errorf("load order: %w", err)
		}
		if !actor.CanAccess(order.UserID) {
			return nil, apperrors.New(apperrors.CodeForbidden, "transação pertence a outro usuário")
		}
	}
	notes, err := repository.NotificationsByTransaction(ctx, p.db, txID)
	if err != nil {
		return nil, fmt.Errorf("load notifications: %w", err)
	}
	return &Details{Transaction: t, Notifications: notes}, nil
}
