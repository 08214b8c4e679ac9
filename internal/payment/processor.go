package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"estore/api/internal/config"
	"estore/api/internal/db"
	apperrors "estore/api/internal/errors"
	"estore/api/internal/logger"
	"estore/api/internal/model"
	"estore/api/internal/money"
	"estore/api/internal/notify"
	"estore/api/internal/qrcode"
	"estore/api/internal/repository"
	"estore/api/internal/telemetry"
	"estore/api/internal/validation"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = telemetry.Tracer("estore/payment")

const maxIDAttempts = 5

// Reason recorded when the monitor or a webhook expires a payment.
const ReasonExpired = "expired"

// Processor runs payment attempts for orders. It owns no state besides its
// collaborators; configuration is fixed at construction.
type Processor struct {
	db       *sql.DB
	cfg      config.PaymentConfig
	gateway  Gateway
	recorder *Recorder
	now      func() time.Time
	rng      *lockedRand
}

// NewProcessor wires a processor. A nil now uses time.Now and a nil src
// seeds the id generator from the runtime.
func NewProcessor(sqlite *sql.DB, cfg config.PaymentConfig, gateway Gateway, recorder *Recorder, now func() time.Time, src rand.Source) *Processor {
	if now == nil {
		now = time.Now
	}
	return &Processor{
		db:       sqlite,
		cfg:      cfg,
		gateway:  gateway,
		recorder: recorder,
		now:      now,
		rng:      newLockedRand(src),
	}
}

func (p *Processor) Recorder() *Recorder { return p.recorder }

// Request is one payment attempt.
type Request struct {
	OrderID    string
	Amount     decimal.Decimal
	Instrument Instrument
}

// Result is the outcome of Process. Reused is set when an existing pending
// transaction for the same order and method was returned.
type Result struct {
	Transaction *model.Transaction `json:"transaction"`
	Reused      bool               `json:"reused"`
}

// Process validates req, then creates (or reuses) the order's pending
// transaction for the requested method. Card payments are then charged
// through the gateway: an approval or a decline resolves the transaction, a
// gateway error or timeout leaves it pending. On a decline both the failed
// result and a PaymentDeclined error are returned.
func (p *Processor) Process(ctx context.Context, actor model.Actor, req Request) (*Result, error) {
	ctx, span := tracer.Start(ctx, "payment.Process")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", req.OrderID))

	if req.Instrument == nil {
		return nil, fieldError("method", validation.InvalidFormat, "método de pagamento é obrigatório")
	}
	method := req.Instrument.Method()
	span.SetAttributes(attribute.String("payment.method", string(method)))
	if err := validate(p.cfg, req.Instrument, p.now()); err != nil {
		return nil, err
	}

	var (
		res    *Result
		events []notify.Event
	)
	err := db.WithTx(ctx, p.db, func(tx *sql.Tx) error {
		order, err := p.payableOrder(ctx, tx, actor, req.OrderID)
		if err != nil {
			return err
		}
		if !req.Amount.Equal(order.TotalAmount) {
			return apperrors.WithMetadata(apperrors.CodeValidation, "valor difere do total do pedido",
				map[string]string{"field": "amount", "reason": string(validation.OutOfRange), "expected": money.Format(order.TotalAmount)})
		}

		var supersedes string
		active, err := repository.ActiveTransactionByOrder(ctx, tx, order.ID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
		case err != nil:
			return fmt.Errorf("load active transaction: %w", err)
		case active.Method == method:
			res = &Result{Transaction: active, Reused: true}
			return nil
		case !active.Method.Async():
			// Cobrança de cartão pode estar em andamento no gateway.
			return cardInFlight(active)
		default:
			_, ev, err := p.recorder.RecordTx(ctx, tx, Change{
				TransactionID: active.ID,
				From:          model.PaymentPending,
				To:            model.PaymentCancelled,
				Reason:        "substituída por pagamento via " + method.Label(),
				Actor:         actor,
			})
			if err != nil {
				return err
			}
			events = append(events, ev)
			supersedes = active.ID
		}

		t, ev, err := p.create(ctx, tx, order, req.Instrument, nil, supersedes, actor)
		if err != nil {
			return err
		}
		events = append(events, ev)
		res = &Result{Transaction: t}
		return nil
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	p.recorder.Publish(ctx, events...)

	t := res.Transaction
	span.SetAttributes(attribute.String("transaction.id", t.ID), attribute.Bool("transaction.reused", res.Reused))
	if res.Reused {
		logger.InfoContext(ctx, "pending transaction reused", "transaction_id", t.ID, "order_id", t.OrderID, "method", t.Method)
		return res, nil
	}
	logger.InfoContext(ctx, "transaction created",
		"transaction_id", t.ID, "order_id", t.OrderID, "method", t.Method,
		"amount", money.Format(t.Amount), "fee", money.Format(t.Fee))

	switch in := req.Instrument.(type) {
	case CreditCard:
		return p.charge(ctx, actor, res, in.Card, in.Installments)
	case DebitCard:
		return p.charge(ctx, actor, res, in.Card, 1)
	}
	return res, nil
}

// payableOrder loads an order that can still receive a payment attempt.
func (p *Processor) payableOrder(ctx context.Context, tx *sql.Tx, actor model.Actor, orderID string) (*model.Order, error) {
	order, err := repository.OrderByID(ctx, tx, orderID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.WithMetadata(apperrors.CodeNotFound, "pedido não encontrado", map[string]string{"order_id": orderID})
	}
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}
	if !actor.CanAccess(order.UserID) {
		return nil, apperrors.New(apperrors.CodeForbidden, "pedido pertence a outro usuário")
	}
	if order.Status == model.OrderCancelled {
		return nil, apperrors.WithMetadata(apperrors.CodeConflict, "pedido cancelado", map[string]string{"order_id": orderID})
	}
	if order.PaymentStatus == model.PaymentApproved {
		return nil, apperrors.WithMetadata(apperrors.CodeConflict, "pedido já está pago", map[string]string{"order_id": orderID})
	}
	return order, nil
}

// create inserts a new pending transaction. For card methods the payload is
// derived from in, or copied from prev when in is nil (admin reset).
func (p *Processor) create(ctx context.Context, tx *sql.Tx, order *model.Order, in Instrument, prev *model.Transaction, supersedes string, actor model.Actor) (*model.Transaction, notify.Event, error) {
	method := order.PaymentMethod
	if in != nil {
		method = in.Method()
	} else if prev != nil {
		method = prev.Method
	}
	now := p.now().UTC()
	amount := order.TotalAmount

	for attempt := 1; ; attempt++ {
		t := &model.Transaction{
			ID:         TransactionID(method, now, p.rng.IntN(1000)),
			OrderID:    order.ID,
			Method:     method,
			Amount:     amount,
			Fee:        Fee(p.cfg, method, amount),
			Status:     model.PaymentPending,
			Supersedes: supersedes,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		payload, err := p.payload(t, in, prev)
		if err != nil {
			return nil, notify.Event{}, err
		}
		t.Payload = payload

		ev, err := p.recorder.RecordCreatedTx(ctx, tx, t, actor)
		if err == nil {
			return t, ev, nil
		}
		if !db.IsUniqueViolation(err) || attempt == maxIDAttempts {
			return nil, notify.Event{}, err
		}
		logger.WarnContext(ctx, "transaction id collision, retrying", "transaction_id", t.ID, "attempt", attempt)
	}
}

func (p *Processor) payload(t *model.Transaction, in Instrument, prev *model.Transaction) (model.Payload, error) {
	switch t.Method {
	case model.MethodPix:
		key := p.cfg.PixKey
		if key == "" {
			key = uuid.New().String()
		}
		qr, err := qrcode.Pix{
			Key:          key,
			MerchantName: p.cfg.PixMerchantName,
			MerchantCity: p.cfg.PixMerchantCity,
			Amount:       t.Amount,
			TxID:         t.ID,
		}.Payload()
		if err != nil {
			return nil, fmt.Errorf("build pix payload: %w", err)
		}
		return model.PixPayload{Key: key, QRCode: qr, ExpiresAt: t.CreatedAt.Add(p.cfg.PixExpiry)}, nil

	case model.MethodBankSlip:
		y, m, d := AddBusinessDays(t.CreatedAt, p.cfg.SlipBusinessDays).Date()
		due := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		return model.SlipPayload{
			Number:  SlipNumber(p.cfg.SlipBankCode, p.rng),
			Barcode: SlipBarcode(p.cfg.SlipBankCode, due, t.Amount),
			DueDate: due,
		}, nil
	}

	debit := t.Method == model.MethodDebitCard
	switch v := in.(type) {
	case CreditCard:
		return model.CardPayload{Brand: validation.CardBrand(v.Number), LastFour: validation.LastFour(v.Number), Installments: v.Installments}, nil
	case DebitCard:
		return model.CardPayload{Brand: validation.CardBrand(v.Number), LastFour: validation.LastFour(v.Number), Installments: 1, Debit: true}, nil
	}
	if prev != nil {
		if c, ok := prev.Payload.(model.CardPayload); ok {
			return c, nil
		}
	}
	return model.CardPayload{Installments: 1, Debit: debit}, nil
}

// charge calls the gateway for a freshly created card transaction.
func (p *Processor) charge(ctx context.Context, actor model.Actor, res *Result, card Card, installments int) (*Result, error) {
	t := res.Transaction
	gctx, cancel := context.WithTimeout(ctx, p.cfg.GatewayTimeout)
	defer cancel()

	resp, err := p.gateway.Charge(gctx, ChargeRequest{
		TransactionID: t.ID,
		Method:        t.Method,
		Amount:        t.Amount,
		Card:          card,
		Installments:  installments,
	})
	if err != nil {
		// Resultado desconhecido: fica pendente para conciliação.
		logger.WarnContext(ctx, "gateway call did not complete, transaction left pending",
			"transaction_id", t.ID, "order_id", t.OrderID, "error", err)
		return res, nil
	}
	if c, ok := t.Payload.(model.CardPayload); ok {
		resp.CardBrand = c.Brand
		resp.LastFour = c.LastFour
	}

	to := model.PaymentFailed
	if resp.Approved {
		to = model.PaymentApproved
	}
	// The charge already happened; recording must not be cut short by the
	// caller going away.
	updated, err := p.recorder.Record(context.WithoutCancel(ctx), Change{
		TransactionID:   t.ID,
		From:            model.PaymentPending,
		To:              to,
		GatewayResponse: resp.JSON(),
		Actor:           actor,
	})
	if apperrors.CodeOf(err) == apperrors.CodeConflict {
		return nil, p.unrecordedCharge(ctx, t, resp, err)
	}
	if err != nil {
		return nil, err
	}
	res.Transaction = updated

	if !resp.Approved {
		return res, apperrors.WithMetadata(apperrors.CodePaymentDeclined, "pagamento recusado: "+resp.ResponseMessage,
			map[string]string{"transaction_id": t.ID, "response_code": resp.ResponseCode})
	}
	return res, nil
}

// unrecordedCharge keeps the gateway response of a charge whose transaction
// was resolved by someone else while the call was in flight, so the charge
// can be reconciled.
func (p *Processor) unrecordedCharge(ctx context.Context, t *model.Transaction, resp *GatewayResponse, cause error) error {
	ctx = context.WithoutCancel(ctx)
	if err := repository.SetGatewayResponse(ctx, p.db, t.ID, resp.JSON(), p.now().UTC()); err != nil {
		logger.ErrorContext(ctx, "gateway response lost", "transaction_id", t.ID, "response", resp.JSON(), "error", err)
	}
	logger.ErrorContext(ctx, "gateway charge not recorded, reconciliation needed",
		"transaction_id", t.ID, "order_id", t.OrderID, "approved", resp.Approved,
		"authorization_code", resp.AuthorizationCode, "error", cause)
	return apperrors.Wrap(apperrors.CodeConflict, "transação encerrada durante a cobrança; requer conciliação", cause)
}

func cardInFlight(t *model.Transaction) error {
	return apperrors.WithMetadata(apperrors.CodeConflict, "pagamento com cartão em processamento",
		map[string]string{"transaction_id": t.ID, "method": string(t.Method)})
}

// Expired reports whether a pending PIX or bank slip can no longer be paid.
// A slip remains payable through the whole due date.
func Expired(t *model.Transaction, now time.Time) bool {
	switch pl := t.Payload.(type) {
	case model.PixPayload:
		return !pl.ExpiresAt.IsZero() && now.After(pl.ExpiresAt)
	case model.SlipPayload:
		return !pl.DueDate.IsZero() && !now.Before(pl.DueDate.AddDate(0, 0, 1))
	}
	return false
}

// ConfirmAsyncPayment marks a PIX or bank slip transaction as paid. It is
// idempotent: confirming an approved transaction returns it unchanged. A
// payment that already expired is cancelled and the confirmation refused.
func (p *Processor) ConfirmAsyncPayment(ctx context.Context, txID string, actor model.Actor) (*model.Transaction, error) {
	ctx, span := tracer.Start(ctx, "payment.ConfirmAsyncPayment")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.id", txID))

	t, err := p.asyncTransaction(ctx, txID)
	if err != nil {
		return nil, err
	}
	switch t.Status {
	case model.PaymentApproved:
		return t, nil
	case model.PaymentFailed, model.PaymentCancelled:
		return nil, apperrors.WithMetadata(apperrors.CodeConflict, "transação já finalizada",
			map[string]string{"transaction_id": t.ID, "status": string(t.Status)})
	}

	if Expired(t, p.now()) {
		if _, err := p.resolve(ctx, t, model.PaymentCancelled, ReasonExpired, actor); err != nil {
			return nil, err
		}
		return nil, apperrors.WithMetadata(apperrors.CodeConflict, "pagamento expirado", map[string]string{"transaction_id": t.ID})
	}

	msg := "Pagamento PIX confirmado"
	if t.Method == model.MethodBankSlip {
		msg = "Boleto pago confirmado"
	}
	updated, err := p.resolve(ctx, t, model.PaymentApproved, msg, actor)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return updated, nil
}

// FailAsyncPayment marks a pending PIX or bank slip transaction as failed.
// Failing an already failed transaction is a no-op.
func (p *Processor) FailAsyncPayment(ctx context.Context, txID, reason string, actor model.Actor) (*model.Transaction, error) {
	t, err := p.asyncTransaction(ctx, txID)
	if err != nil {
		return nil, err
	}
	switch t.Status {
	case model.PaymentFailed:
		return t, nil
	case model.PaymentApproved, model.PaymentCancelled:
		return nil, apperrors.WithMetadata(apperrors.CodeConflict, "transação já finalizada",
			map[string]string{"transaction_id": t.ID, "status": string(t.Status)})
	}
	return p.resolve(ctx, t, model.PaymentFailed, reason, actor)
}

// ExpireTransaction cancels a pending PIX or bank slip with reason expired.
// Expiring an already cancelled transaction is a no-op.
func (p *Processor) ExpireTransaction(ctx context.Context, txID string, actor model.Actor) (*model.Transaction, error) {
	t, err := p.asyncTransaction(ctx, txID)
	if err != nil {
		return nil, err
	}
	switch t.Status {
	case model.PaymentCancelled:
		return t, nil
	case model.PaymentApproved, model.PaymentFailed:
		return nil, apperrors.WithMetadata(apperrors.CodeConflict, "transação já finalizada",
			map[string]string{"transaction_id": t.ID, "status": string(t.Status)})
	}
	return p.resolve(ctx, t, model.PaymentCancelled, ReasonExpired, actor)
}

// resolve records pending -> to. When a concurrent caller already moved the
// transaction to the same status, that result is returned instead of a
// conflict.
func (p *Processor) resolve(ctx context.Context, t *model.Transaction, to model.PaymentStatus, reason string, actor model.Actor) (*model.Transaction, error) {
	updated, err := p.recorder.Record(ctx, Change{
		TransactionID: t.ID,
		From:          model.PaymentPending,
		To:            to,
		Reason:        reason,
		Actor:         actor,
	})
	if apperrors.CodeOf(err) == apperrors.CodeConflict {
		if cur, lerr := repository.TransactionByID(ctx, p.db, t.ID); lerr == nil && cur.Status == to {
			return cur, nil
		}
	}
	return updated, err
}

func (p *Processor) asyncTransaction(ctx context.Context, txID string) (*model.Transaction, error) {
	t, err := repository.TransactionByID(ctx, p.db, txID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.WithMetadata(apperrors.CodeNotFound, "transação não encontrada", map[string]string{"transaction_id": txID})
	}
	if err != nil {
		return nil, fmt.Errorf("load transaction: %w", err)
	}
	if !t.Method.Async() {
		return nil, apperrors.WithMetadata(apperrors.CodeConflict, "transação não aguarda confirmação externa",
			map[string]string{"transaction_id": txID, "method": string(t.Method)})
	}
	return t, nil
}

// Reset opens a new pending transaction superseding a failed or cancelled
// one. Terminal transactions are never reopened in place.
func (p *Processor) Reset(ctx context.Context, actor model.Actor, txID string) (*model.Transaction, error) {
	if !actor.IsAdmin() {
		return nil, apperrors.New(apperrors.CodeForbidden, "apenas administradores")
	}
	ctx, span := tracer.Start(ctx, "payment.Reset")
	defer span.End()

	var (
		t  *model.Transaction
		ev notify.Event
	)
	err := db.WithTx(ctx, p.db, func(tx *sql.Tx) error {
		prev, err := repository.TransactionByID(ctx, tx, txID)
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.WithMetadata(apperrors.CodeNotFound, "transação não encontrada", map[string]string{"transaction_id": txID})
		}
		if err != nil {
			return fmt.Errorf("load transaction: %w", err)
		}
		if prev.Status != model.PaymentFailed && prev.Status != model.PaymentCancelled {
			return apperrors.WithMetadata(apperrors.CodeConflict, "apenas transações recusadas ou canceladas podem ser reabertas",
				map[string]string{"transaction_id": txID, "status": string(prev.Status)})
		}
		order, err := p.payableOrder(ctx, tx, actor, prev.OrderID)
		if err != nil {
			return err
		}
		if active, err := repository.ActiveTransactionByOrder(ctx, tx, order.ID); err == nil {
			return apperrors.WithMetadata(apperrors.CodeConflict, "pedido já possui transação pendente",
				map[string]string{"transaction_id": active.ID})
		} else if !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("load active transaction: %w", err)
		}

		t, ev, err = p.create(ctx, tx, order, nil, prev, prev.ID, actor)
		return err
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	p.recorder.Publish(ctx, ev)
	logger.InfoContext(ctx, "transaction reset", "transaction_id", t.ID, "supersedes", txID, "order_id", t.OrderID, "actor", actor.UserID)
	return t, nil
}
