// Package admin holds the operator-only views and overrides over orders and
// payment transactions.
package admin

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	apperrors "estore/api/internal/errors"
	"estore/api/internal/model"
	"estore/api/internal/payment"
	"estore/api/internal/repository"
)

// Manager lists and overrides transactions. Every status change goes
// through the payment recorder.
type Manager struct {
	db        *sql.DB
	processor *payment.Processor
	now       func() time.Time
}

func NewManager(sqlite *sql.DB, processor *payment.Processor) *Manager {
	return &Manager{db: sqlite, processor: processor, now: time.Now}
}

// WithClock replaces the clock used for catalog timestamps.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

func requireAdmin(actor model.Actor) error {
	if !actor.IsAdmin() {
		return apperrors.New(apperrors.CodeForbidden, "apenas administradores")
	}
	return nil
}

// ListTransactions returns transactions matching f, newest first.
func (m *Manager) ListTransactions(ctx context.Context, actor model.Actor, f repository.TransactionFilter) ([]model.Transaction, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, invalidFilter("status")
	}
	if f.Method != "" && !f.Method.Valid() {
		return nil, invalidFilter("method")
	}
	list, err := repository.ListTransactions(ctx, m.db, f)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return list, nil
}

// ListOrders returns orders matching f, newest first, without items.
func (m *Manager) ListOrders(ctx context.Context, actor model.Actor, f repository.OrderFilter) ([]model.Order, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, invalidFilter("status")
	}
	if f.PaymentStatus != "" && !f.PaymentStatus.Valid() {
		return nil, invalidFilter("paymentStatus")
	}
	list, err := repository.ListOrders(ctx, m.db, f)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return list, nil
}

func invalidFilter(field string) error {
	return apperrors.WithMetadata(apperrors.CodeValidation, "filtro inválido",
		map[string]string{"field": field, "reason": "InvalidFormat"})
}

// SetTransactionStatus forces a pending transaction to approved or
// cancelled. Resolved transactions are never changed.
func (m *Manager) SetTransactionStatus(ctx context.Context, actor model.Actor, txID string, to model.PaymentStatus, reason string) (*model.Transaction, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if to != model.PaymentApproved && to != model.PaymentCancelled {
		return nil, apperrors.WithMetadata(apperrors.CodeValidation, "status deve ser approved ou cancelled",
			map[string]string{"field": "status", "reason": "OutOfRange"})
	}
	t, err := repository.TransactionByID(ctx, m.db, txID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.WithMetadata(apperrors.CodeNotFound, "transação não encontrada", map[string]string{"transaction_id": txID})
	}
	if err != nil {
		return nil, fmt.Errorf("load transaction: %w", err)
	}
	if t.Status.Terminal() {
		return nil, apperrors.WithMetadata(apperrors.CodeConflict, "transação já finalizada",
			map[string]string{"transaction_id": txID, "status": string(t.Status)})
	}
	if reason == "" {
		reason = "status alterado pelo administrador"
	}
	return m.processor.Recorder().Record(ctx, payment.Change{
		TransactionID: txID,
		From:          t.Status,
		To:            to,
		Reason:        reason,
		Actor:         actor,
	})
}

// ResetTransaction opens a new pending transaction superseding a failed or
// cancelled one.
func (m *Manager) ResetTransaction(ctx context.Context, actor model.Actor, txID string) (*model.Transaction, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return m.processor.Reset(ctx, actor, txID)
}

// OrderDetails is the full audit view of one order.
type OrderDetails struct {
	Order        *model.Order         `json:"order"`
	Transactions []payment.Details    `json:"transactions"`
	History      []model.StatusChange `json:"history"`
	Invoices     []model.Invoice      `json:"invoices"`
}

func (m *Manager) OrderDetails(ctx context.Context, actor model.Actor, orderID string) (*OrderDetails, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	order, err := repository.OrderByID(ctx, m.db, orderID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.WithMetadata(apperrors.CodeNotFound, "pedido não encontrado", map[string]string{"order_id": orderID})
	}
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}
	d := &OrderDetails{Order: order}

	txs, err := repository.TransactionsByOrder(ctx, m.db, orderID)
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}
	for i := range txs {
		notes, err := repository.NotificationsByTransaction(ctx, m.db, txs[i].ID)
		if err != nil {
			return nil, fmt.Errorf("load notifications: %w", err)
		}
		d.Transactions = append(d.Transactions, payment.Details{Transaction: &txs[i], Notifications: notes})
	}
	if d.History, err = repository.StatusHistory(ctx, m.db, orderID); err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	if d.Invoices, err = repository.InvoicesByOrder(ctx, m.db, orderID); err != nil {
		return nil, fmt.Errorf("load invoices: %w", err)
	}
	return d, nil
}
