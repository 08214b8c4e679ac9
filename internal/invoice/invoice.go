// Package invoice issues the tax documents of paid orders and reports on
// sales.
package invoice

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"estore/api/internal/config"
	"estore/api/internal/db"
	apperrors "estore/api/internal/errors"
	"estore/api/internal/logger"
	"estore/api/internal/model"
	"estore/api/internal/money"
	"estore/api/internal/repository"
	"estore/api/internal/telemetry"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = telemetry.Tracer("estore/invoice")

const maxNumberAttempts = 3

// Generator issues and cancels invoices.
type Generator struct {
	db  *sql.DB
	cfg config.PaymentConfig
	now func() time.Time
}

func NewGenerator(sqlite *sql.DB, cfg config.PaymentConfig, now func() time.Time) *Generator {
	if now == nil {
		now = time.Now
	}
	return &Generator{db: sqlite, cfg: cfg, now: now}
}

// Number formats "NF" + UTC timestamp + 6-digit sequence. The format is used
// for external reconciliation and must stay stable.
func Number(now time.Time, seq int64) string {
	return fmt.Sprintf("NF%s%06d", now.UTC().Format("20060102150405"), seq%1_000_000)
}

// Tax returns subtotal * rate rounded to centavos, and subtotal + tax.
func Tax(subtotal, rate decimal.Decimal) (tax, total decimal.Decimal) {
	tax = money.Round(subtotal.Mul(rate))
	return tax, subtotal.Add(tax)
}

// Issue creates the invoice of a paid order. An order has at most one issued
// invoice; a second call fails with DuplicateInvoice until it is cancelled.
func (g *Generator) Issue(ctx context.Context, actor model.Actor, orderID string) (*model.Invoice, error) {
	ctx, span := tracer.Start(ctx, "invoice.Issue")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID))

	var (
		inv *model.Invoice
		err error
	)
	for attempt := 1; ; attempt++ {
		inv, err = g.issue(ctx, actor, orderID)
		if err == nil || !db.IsUniqueViolation(err) || attempt == maxNumberAttempts {
			break
		}
		logger.WarnContext(ctx, "invoice number collision, retrying", "attempt", attempt)
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("invoice.number", inv.Number))
	logger.InfoContext(ctx, "invoice issued",
		"invoice_number", inv.Number, "order_id", orderID, "total", money.Format(inv.Total), "actor", actor.UserID)
	return inv, nil
}

func (g *Generator) issue(ctx context.Context, actor model.Actor, orderID string) (*model.Invoice, error) {
	var inv *model.Invoice
	err := db.WithTx(ctx, g.db, func(tx *sql.Tx) error {
		order, err := repository.OrderByID(ctx, tx, orderID)
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.WithMetadata(apperrors.CodeNotFound, "pedido não encontrado", map[string]string{"order_id": orderID})
		}
		if err != nil {
			return fmt.Errorf("load order: %w", err)
		}
		if !actor.CanAccess(order.UserID) {
			return apperrors.New(apperrors.CodeForbidden, "pedido pertence a outro usuário")
		}
		if order.Status == model.OrderCancelled {
			return apperrors.WithMetadata(apperrors.CodeConflict, "pedido cancelado", map[string]string{"order_id": orderID})
		}
		if order.PaymentStatus != model.PaymentApproved {
			return apperrors.WithMetadata(apperrors.CodeConflict, "pagamento não aprovado",
				map[string]string{"order_id": orderID, "payment_status": string(order.PaymentStatus)})
		}

		existing, err := repository.InvoicesByOrder(ctx, tx, orderID)
		if err != nil {
			return fmt.Errorf("load invoices: %w", err)
		}
		for _, e := range existing {
			if e.Status == model.InvoiceIssued {
				return duplicate(orderID, e.Number)
			}
		}

		snapshot, method, err := g.snapshot(ctx, tx, order)
		if err != nil {
			return err
		}

		now := g.now().UTC()
		seq, err := repository.NextSequence(ctx, tx, "invoices")
		if err != nil {
			return fmt.Errorf("next invoice sequence: %w", err)
		}
		tax, total := Tax(order.TotalAmount, g.cfg.TaxRate)
		inv = &model.Invoice{
			ID:            uuid.New().String(),
			Number:        Number(now, seq),
			OrderID:       order.ID,
			Subtotal:      order.TotalAmount,
			TaxRate:       g.cfg.TaxRate,
			TaxAmount:     tax,
			Total:         total,
			PaymentMethod: method,
			Status:        model.InvoiceIssued,
			Snapshot:      *snapshot,
			IssuedAt:      now,
		}
		if err := repository.InsertInvoice(ctx, tx, inv); err != nil {
			if db.IsUniqueViolation(err) {
				// Either the number collided (retried by the caller) or a
				// concurrent issue won the per-order index.
				if again, lerr := repository.InvoicesByOrder(ctx, tx, orderID); lerr == nil {
					for _, e := range again {
						if e.Status == model.InvoiceIssued {
							return duplicate(orderID, e.Number)
						}
					}
				}
			}
			return fmt.Errorf("insert invoice: %w", err)
		}
		return nil
	})
	return inv, err
}

func duplicate(orderID, number string) error {
	return apperrors.WithMetadata(apperrors.CodeDuplicateInvoice, "pedido já possui nota fiscal emitida",
		map[string]string{"order_id": orderID, "invoice_number": number})
}

// snapshot freezes customer, issuer and line data. The payment method is
// the one of the approved transaction.
func (g *Generator) snapshot(ctx context.Context, tx *sql.Tx, order *model.Order) (*model.InvoiceSnapshot, model.PaymentMethod, error) {
	user, err := repository.UserByID(ctx, tx, order.UserID)
	if err != nil {
		return nil, "", fmt.Errorf("load customer: %w", err)
	}
	if user == nil {
		return nil, "", apperrors.New(apperrors.CodeNotFound, "cliente não encontrado")
	}

	method := order.PaymentMethod
	txs, err := repository.TransactionsByOrder(ctx, tx, order.ID)
	if err != nil {
		return nil, "", fmt.Errorf("load transactions: %w", err)
	}
	for _, t := range txs {
		if t.Status == model.PaymentApproved {
			method = t.Method
		}
	}

	s := &model.InvoiceSnapshot{
		OrderNumber: order.Number,
		Customer: model.InvoiceParty{
			Name:     user.Name,
			Document: user.CPF,
			Email:    user.Email,
			Phone:    user.Phone,
			Address:  order.BillingAddress,
		},
		Company: model.InvoiceParty{
			Name:     g.cfg.Company.Name,
			Document: g.cfg.Company.CNPJ,
			Email:    g.cfg.Company.Email,
			Phone:    g.cfg.Company.Phone,
			Address:  g.cfg.Company.Address,
		},
		PaymentMethod: method.Label(),
	}
	for _, it := range order.Items {
		line := model.InvoiceLine{
			ProductID: it.ProductID,
			Name:      it.ProductName,
			Quantity:  it.Quantity,
			UnitPrice: it.Price,
			Total:     it.LineTotal(),
		}
		if p, err := repository.ProductByID(ctx, tx, it.ProductID); err == nil {
			line.SKU = p.SKU
		}
		s.Items = append(s.Items, line)
	}
	return s, method, nil
}

// Get returns an invoice by number to its order's owner or an admin.
func (g *Generator) Get(ctx context.Context, actor model.Actor, number string) (*model.Invoice, error) {
	inv, err := repository.InvoiceByNumber(ctx, g.db, number)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.WithMetadata(apperrors.CodeNotFound, "nota fiscal não encontrada", map[string]string{"invoice_number": number})
	}
	if err != nil {
		return nil, fmt.Errorf("load invoice: %w", err)
	}
	if !actor.IsAdmin() {
		if err := g.checkOwner(ctx, actor, inv.OrderID); err != nil {
			return nil, err
		}
	}
	return inv, nil
}

// ByOrder lists every invoice of an order, cancelled ones included.
func (g *Generator) ByOrder(ctx context.Context, actor model.Actor, orderID string) ([]model.Invoice, error) {
	if err := g.checkOwner(ctx, actor, orderID); err != nil {
		return nil, err
	}
	list, err := repository.InvoicesByOrder(ctx, g.db, orderID)
	if err != nil {
		return nil, fmt.Errorf("load invoices: %w", err)
	}
	return list, nil
}

func (g *Generator) checkOwner(ctx context.Context, actor model.Actor, orderID string) error {
	var owner string
	err := g.db.QueryRowContext(ctx, `SELECT user_id FROM orders WHERE id = ?`, orderID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.WithMetadata(apperrors.CodeNotFound, "pedido não encontrado", map[string]string{"order_id": orderID})
	}
	if err != nil {
		return fmt.Errorf("load order owner: %w", err)
	}
	if !actor.CanAccess(owner) {
		return apperrors.New(apperrors.CodeForbidden, "pedido pertence a outro usuário")
	}
	return nil
}

// Cancel flags an issued invoice as cancelled. Cancellation is terminal.
func (g *Generator) Cancel(ctx context.Context, actor model.Actor, number string) (*model.Invoice, error) {
	if !actor.IsAdmin() {
		return nil, apperrors.New(apperrors.CodeForbidden, "apenas administradores")
	}
	ok, err := repository.CancelInvoice(ctx, g.db, number, g.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("cancel invoice: %w", err)
	}
	inv, lerr := g.Get(ctx, actor, number)
	if lerr != nil {
		return nil, lerr
	}
	if !ok {
		return nil, apperrors.WithMetadata(apperrors.CodeConflict, "nota fiscal já cancelada", map[string]string{"invoice_number": number})
	}
	logger.InfoContext(ctx, "invoice cancelled", "invoice_number", number, "order_id", inv.OrderID, "actor", actor.UserID)
	return inv, nil
}
