package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"estore/api/internal/db"
	apperrors "estore/api/internal/errors"
	"estore/api/internal/logger"
	"estore/api/internal/model"
	"estore/api/internal/notify"
	"estore/api/internal/repository"

	"github.com/google/uuid"
)

// Recorder is the only writer of transaction status and of the order's
// payment_status. Every change appends one notification and one history row
// in the caller's database transaction; events go to the sink after commit.
type Recorder struct {
	db             *sql.DB
	sink           notify.Sink
	now            func() time.Time
	publishTimeout time.Duration
}

// defaultPublishTimeout bounds sink delivery on the request path.
const defaultPublishTimeout = 2 * time.Second

func NewRecorder(sqlite *sql.DB, sink notify.Sink, now func() time.Time) *Recorder {
	if now == nil {
		now = time.Now
	}
	if sink == nil {
		sink = notify.LogSink{}
	}
	return &Recorder{db: sqlite, sink: sink, now: now, publishTimeout: defaultPublishTimeout}
}

// WithPublishTimeout overrides how long a Publish call may wait on the sink.
func (r *Recorder) WithPublishTimeout(d time.Duration) *Recorder {
	r.publishTimeout = d
	return r
}

// Change is a requested transaction status transition.
type Change struct {
	TransactionID   string
	From            model.PaymentStatus
	To              model.PaymentStatus
	GatewayResponse string
	Reason          string
	Actor           model.Actor
}

// RecordCreatedTx persists a new pending transaction, its created
// notification, and moves the order's payment_status back to pending when a
// previous attempt had failed or been cancelled.
func (r *Recorder) RecordCreatedTx(ctx context.Context, tx *sql.Tx, t *model.Transaction, actor model.Actor) (notify.Event, error) {
	if t.Status != model.PaymentPending {
		return notify.Event{}, fmt.Errorf("transaction %s: created in status %s", t.ID, t.Status)
	}
	if err := repository.InsertTransaction(ctx, tx, t); err != nil {
		return notify.Event{}, fmt.Errorf("insert transaction: %w", err)
	}

	reason := createdMessage(t.Method)
	if err := r.syncOrder(ctx, tx, t.OrderID, model.PaymentPending, reason, actor, t.CreatedAt); err != nil {
		return notify.Event{}, err
	}
	return r.notification(ctx, tx, t, reason, t.CreatedAt)
}

// RecordTx applies c inside tx. The transaction must currently be in c.From;
// otherwise the change is refused with a conflict.
func (r *Recorder) RecordTx(ctx context.Context, tx *sql.Tx, c Change) (*model.Transaction, notify.Event, error) {
	t, err := repository.TransactionByID(ctx, tx, c.TransactionID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notify.Event{}, apperrors.WithMetadata(apperrors.CodeNotFound, "transação não encontrada",
			map[string]string{"transaction_id": c.TransactionID})
	}
	if err != nil {
		return nil, notify.Event{}, fmt.Errorf("load transaction: %w", err)
	}
	if t.Status != c.From || !c.From.CanTransition(c.To) {
		return nil, notify.Event{}, apperrors.WithMetadata(apperrors.CodeConflict, "transição de status inválida",
			map[string]string{"transaction_id": t.ID, "status": string(t.Status), "to": string(c.To)})
	}

	now := r.now().UTC()
	ok, err := repository.UpdateTransactionStatus(ctx, tx, t.ID, c.From, c.To, c.GatewayResponse, now)
	if err != nil {
		return nil, notify.Event{}, fmt.Errorf("update transaction status: %w", err)
	}
	if !ok {
		return nil, notify.Event{}, apperrors.WithMetadata(apperrors.CodeConflict, "transação alterada concorrentemente",
			map[string]string{"transaction_id": t.ID})
	}
	t.Status = c.To
	t.UpdatedAt = now
	if c.GatewayResponse != "" {
		t.GatewayResponse = c.GatewayResponse
	}

	reason := c.Reason
	if reason == "" {
		reason = statusMessage(t.Method, c.To)
	}
	if err := r.syncOrder(ctx, tx, t.OrderID, c.To, reason, c.Actor, now); err != nil {
		return nil, notify.Event{}, err
	}
	ev, err := r.notification(ctx, tx, t, reason, now)
	if err != nil {
		return nil, notify.Event{}, err
	}
	return t, ev, nil
}

// Record applies c in its own database transaction and publishes the
// resulting event.
func (r *Recorder) Record(ctx context.Context, c Change) (*model.Transaction, error) {
	var (
		t  *model.Transaction
		ev notify.Event
	)
	err := db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var err error
		t, ev, err = r.RecordTx(ctx, tx, c)
		return err
	})
	if err != nil {
		return nil, err
	}
	r.Publish(ctx, ev)
	logger.InfoContext(ctx, "transaction status changed",
		"transaction_id", t.ID, "order_id", t.OrderID, "from", c.From, "to", c.To, "actor", c.Actor.UserID)
	return t, nil
}

// CancelPendingTx cancels the order's pending PIX or bank slip, if any. A
// pending card transaction is refused: its charge may still be in flight and
// only the admin status override resolves it.
func (r *Recorder) CancelPendingTx(ctx context.Context, tx *sql.Tx, orderID, reason string, actor model.Actor) ([]notify.Event, error) {
	t, err := repository.ActiveTransactionByOrder(ctx, tx, orderID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load active transaction: %w", err)
	}
	if !t.Method.Async() {
		return nil, cardInFlight(t)
	}
	_, ev, err := r.RecordTx(ctx, tx, Change{
		TransactionID: t.ID,
		From:          model.PaymentPending,
		To:            model.PaymentCancelled,
		Reason:        reason,
		Actor:         actor,
	})
	if err != nil {
		return nil, err
	}
	return []notify.Event{ev}, nil
}

// Publish hands committed events to the sink, all within one publish
// timeout. Failures are logged only: the notification rows are already
// persisted.
func (r *Recorder) Publish(ctx context.Context, events ...notify.Event) {
	if len(events) == 0 {
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.publishTimeout)
	defer cancel()
	for _, ev := range events {
		if err := r.sink.Publish(pctx, ev); err != nil {
			logger.WarnContext(ctx, "notification delivery failed",
				"notification_id", ev.NotificationID, "transaction_id", ev.TransactionID, "error", err)
		}
	}
}

// syncOrder mirrors a transaction status onto orders.payment_status.
func (r *Recorder) syncOrder(ctx context.Context, tx *sql.Tx, orderID string, to model.PaymentStatus, reason string, actor model.Actor, now time.Time) error {
	var current model.PaymentStatus
	err := tx.QueryRowContext(ctx, `SELECT payment_status FROM orders WHERE id = ?`, orderID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.WithMetadata(apperrors.CodeNotFound, "pedido não encontrado", map[string]string{"order_id": orderID})
	}
	if err != nil {
		return fmt.Errorf("load order payment status: %w", err)
	}
	if current == to {
		return nil
	}
	if !model.OrderPaymentCanTransition(current, to) {
		return apperrors.WithMetadata(apperrors.CodeConflict, "status de pagamento do pedido não pode mudar",
			map[string]string{"order_id": orderID, "payment_status": string(current), "to": string(to)})
	}
	ok, err := repository.UpdateOrderPaymentStatus(ctx, tx, orderID, current, to, now)
	if err != nil {
		return fmt.Errorf("update order payment status: %w", err)
	}
	if !ok {
		return apperrors.New(apperrors.CodeConflict, "pedido alterado concorrentemente")
	}
	return repository.RecordStatusChange(ctx, tx, &model.StatusChange{
		OrderID:   orderID,
		Field:     model.FieldPaymentStatus,
		OldStatus: string(current),
		NewStatus: string(to),
		Reason:    reason,
		Actor:     actor.UserID,
		CreatedAt: now,
	})
}

func (r *Recorder) notification(ctx context.Context, tx *sql.Tx, t *model.Transaction, msg string, now time.Time) (notify.Event, error) {
	n := model.Notification{
		ID:            uuid.New().String(),
		TransactionID: t.ID,
		Type:          model.NotificationTypeFor(t.Status),
		Status:        t.Status,
		Message:       msg,
		CreatedAt:     now,
	}
	if err := repository.InsertNotification(ctx, tx, &n); err != nil {
		return notify.Event{}, fmt.Errorf("insert notification: %w", err)
	}
	return notify.Event{
		NotificationID: n.ID,
		Type:           n.Type,
		TransactionID:  t.ID,
		OrderID:        t.OrderID,
		Method:         t.Method,
		Status:         t.Status,
		Amount:         t.Amount,
		Message:        msg,
		OccurredAt:     now,
	}, nil
}

func createdMessage(m model.PaymentMethod) string {
	switch m {
	case model.MethodPix:
		return "PIX gerado. Aguardando pagamento"
	case model.MethodBankSlip:
		return "Boleto gerado. Aguardando pagamento"
	}
	return "Pagamento com cartão em processamento"
}

func statusMessage(m model.PaymentMethod, s model.PaymentStatus) string {
	switch s {
	case model.PaymentApproved:
		return "Pagamento " + m.Label() + " aprovado"
	case model.PaymentFailed:
		return "Pagamento " + m.Label() + " recusado"
	case model.PaymentCancelled:
		return "Pagamento " + m.Label() + " cancelado"
	}
	return "Status: " + string(s)
}
