package checkout

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"estore/api/internal/db"
	apperrors "estore/api/internal/errors"
	"estore/api/internal/logger"
	"estore/api/internal/model"
	"estore/api/internal/money"
	"estore/api/internal/notify"
	"estore/api/internal/repository"
	"estore/api/internal/telemetry"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = telemetry.Tracer("estore/checkout")

// PaymentCanceller cancels an order's pending transaction inside the caller's
// database transaction. The returned events are published after commit.
type PaymentCanceller interface {
	CancelPendingTx(ctx context.Context, tx *sql.Tx, orderID, reason string, actor model.Actor) ([]notify.Event, error)
	Publish(ctx context.Context, events ...notify.Event)
}

// Service creates orders and drives their fulfillment status.
type Service struct {
	db       *sql.DB
	payments PaymentCanceller
	now      func() time.Time
}

func NewService(sqlite *sql.DB, payments PaymentCanceller) *Service {
	return &Service{db: sqlite, payments: payments, now: time.Now}
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// ValidateCart validates lines against the live catalog.
func (s *Service) ValidateCart(ctx context.Context, lines []Line) (*Cart, error) {
	return ValidateCart(ctx, lines, StoreCatalog{Q: s.db})
}

// CreateOrderRequest is the input of CreateOrder.
type CreateOrderRequest struct {
	Lines           []Line              `json:"items"`
	ShippingAddress string              `json:"shippingAddress"`
	BillingAddress  string              `json:"billingAddress"`
	PaymentMethod   model.PaymentMethod `json:"paymentMethod"`
}

const maxNumberAttempts = 3

// CreateOrder validates the cart and, in one database transaction, inserts
// the order and its items at current catalog prices and decrements stock.
// Any failure leaves no trace: no order, no items, no stock change.
func (s *Service) CreateOrder(ctx context.Context, userID string, req CreateOrderRequest) (*model.Order, error) {
	ctx, span := tracer.Start(ctx, "checkout.CreateOrder")
	defer span.End()

	if strings.TrimSpace(req.ShippingAddress) == "" {
		return nil, apperrors.WithMetadata(apperrors.CodeValidation, "endereço de entrega é obrigatório",
			map[string]string{"field": "shippingAddress", "reason": "InvalidFormat"})
	}
	if strings.TrimSpace(req.BillingAddress) == "" {
		req.BillingAddress = req.ShippingAddress
	}
	if !req.PaymentMethod.Valid() {
		return nil, apperrors.WithMetadata(apperrors.CodeValidation, "método de pagamento inválido",
			map[string]string{"field": "paymentMethod", "reason": "InvalidFormat"})
	}
	user, err := repository.UserByID(ctx, s.db, userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return nil, apperrors.New(apperrors.CodeNotFound, "usuário não encontrado")
	}

	var order *model.Order
	for attempt := 1; ; attempt++ {
		order, err = s.createOrder(ctx, userID, req)
		if err == nil || !db.IsUniqueViolation(err) || attempt == maxNumberAttempts {
			break
		}
		logger.WarnContext(ctx, "order number collision, retrying", "attempt", attempt)
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.String("order.id", order.ID), attribute.String("order.number", order.Number))
	logger.InfoContext(ctx, "order created",
		"order_id", order.ID, "order_number", order.Number, "user_id", userID,
		"total", money.Format(order.TotalAmount), "items", len(order.Items))
	return order, nil
}

func (s *Service) createOrder(ctx context.Context, userID string, req CreateOrderRequest) (*model.Order, error) {
	var order *model.Order
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		cart, err := ValidateCart(ctx, req.Lines, StoreCatalog{Q: tx})
		if err != nil {
			return err
		}

		now := s.now().UTC()
		seq, err := repository.NextSequence(ctx, tx, "orders")
		if err != nil {
			return fmt.Errorf("next order sequence: %w", err)
		}

		order = &model.Order{
			ID:              uuid.New().String(),
			Number:          OrderNumber(now, seq),
			UserID:          userID,
			Status:          model.OrderPending,
			PaymentStatus:   model.PaymentPending,
			ShippingAddress: req.ShippingAddress,
			BillingAddress:  req.BillingAddress,
			PaymentMethod:   req.PaymentMethod,
			TotalAmount:     cart.Total,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := repository.InsertOrder(ctx, tx, order); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		for _, l := range cart.Lines {
			item := model.OrderItem{
				ID:          uuid.New().String(),
				OrderID:     order.ID,
				ProductID:   l.ProductID,
				ProductName: l.ProductName,
				Quantity:    l.Quantity,
				Price:       l.Price,
			}
			if err := repository.InsertOrderItem(ctx, tx, &item); err != nil {
				return fmt.Errorf("insert order item: %w", err)
			}
			ok, err := repository.DecrementStock(ctx, tx, l.ProductID, l.Quantity)
			if err != nil {
				return fmt.Errorf("decrement stock: %w", err)
			}
			if !ok {
				return apperrors.WithMetadata(apperrors.CodeInsufficientStock, "estoque insuficiente para "+l.ProductName,
					map[string]string{"product_id": l.ProductID})
			}
			order.Items = append(order.Items, item)
		}

		return repository.RecordStatusChange(ctx, tx, &model.StatusChange{
			OrderID:   order.ID,
			Field:     model.FieldStatus,
			NewStatus: string(model.OrderPending),
			Reason:    "order created",
			Actor:     userID,
			CreatedAt: now,
		})
	})
	return order, err
}

// OrderNumber formats "ORD-" + UTC timestamp + 6-digit sequence. The format
// is used for external reconciliation and must stay stable.
func OrderNumber(now time.Time, seq int64) string {
	return fmt.Sprintf("ORD-%s%06d", now.UTC().Format("20060102150405"), seq%1_000_000)
}

// GetOrder returns an order the actor may see.
func (s *Service) GetOrder(ctx context.Context, actor model.Actor, orderID string) (*model.Order, error) {
	order, err := loadOrder(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(order.UserID) {
		return nil, apperrors.New(apperrors.CodeForbidden, "pedido pertence a outro usuário")
	}
	return order, nil
}

func loadOrder(ctx context.Context, q repository.Querier, orderID string) (*model.Order, error) {
	order, err := repository.OrderByID(ctx, q, orderID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.WithMetadata(apperrors.CodeNotFound, "pedido não encontrado", map[string]string{"order_id": orderID})
	}
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}
	return order, nil
}

// CancelOrder moves a non-terminal order to cancelled. Before payment
// approval this also restores the order's stock and cancels the pending
// transaction, all in the same database transaction. After approval only the
// status changes; refunds are handled outside the engine.
func (s *Service) CancelOrder(ctx context.Context, actor model.Actor, orderID, reason string) (*model.Order, error) {
	ctx, span := tracer.Start(ctx, "checkout.CancelOrder")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID))

	var (
		order    *model.Order
		events   []notify.Event
		restored bool
	)
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		order, err = loadOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if !actor.CanAccess(order.UserID) {
			return apperrors.New(apperrors.CodeForbidden, "pedido pertence a outro usuário")
		}
		if !order.Status.CanTransition(model.OrderCancelled) {
			return apperrors.WithMetadata(apperrors.CodeConflict, "pedido não pode ser cancelado",
				map[string]string{"order_id": orderID, "status": string(order.Status)})
		}

		now := s.now().UTC()
		ok, err := repository.UpdateOrderStatus(ctx, tx, orderID, order.Status, model.OrderCancelled, now)
		if err != nil {
			return fmt.Errorf("cancel order: %w", err)
		}
		if !ok {
			return apperrors.New(apperrors.CodeConflict, "pedido alterado concorrentemente")
		}
		if reason == "" {
			reason = "order cancelled"
		}
		if err := repository.RecordStatusChange(ctx, tx, &model.StatusChange{
			OrderID:   orderID,
			Field:     model.FieldStatus,
			OldStatus: string(order.Status),
			NewStatus: string(model.OrderCancelled),
			Reason:    reason,
			Actor:     actor.UserID,
			CreatedAt: now,
		}); err != nil {
			return err
		}

		if order.PaymentStatus != model.PaymentApproved {
			for _, it := range order.Items {
				if err := repository.IncrementStock(ctx, tx, it.ProductID, it.Quantity); err != nil {
					return fmt.Errorf("restore stock: %w", err)
				}
			}
			restored = true
			if events, err = s.payments.CancelPendingTx(ctx, tx, orderID, reason, actor); err != nil {
				return err
			}
		}

		order, err = loadOrder(ctx, tx, orderID)
		return err
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	s.payments.Publish(ctx, events...)
	logger.InfoContext(ctx, "order cancelled",
		"order_id", order.ID, "order_number", order.Number, "actor", actor.UserID, "stock_restored", restored)
	return order, nil
}

// AdvanceOrder moves an order forward along pending -> processing ->
// shipped -> delivered. Leaving pending requires an approved payment.
// Targeting cancelled delegates to CancelOrder.
func (s *Service) AdvanceOrder(ctx context.Context, actor model.Actor, orderID string, to model.OrderStatus) (*model.Order, error) {
	if !actor.IsAdmin() {
		return nil, apperrors.New(apperrors.CodeForbidden, "apenas administradores")
	}
	if !to.Valid() {
		return nil, apperrors.WithMetadata(apperrors.CodeValidation, "status inválido",
			map[string]string{"field": "status", "reason": "InvalidFormat"})
	}
	if to == model.OrderCancelled {
		return s.CancelOrder(ctx, actor, orderID, "cancelled by operator")
	}

	ctx, span := tracer.Start(ctx, "checkout.AdvanceOrder")
	defer span.End()

	var order *model.Order
	var from model.OrderStatus
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		order, err = loadOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		from = order.Status
		if !from.CanTransition(to) {
			return apperrors.WithMetadata(apperrors.CodeConflict, "transição de status inválida",
				map[string]string{"from": string(from), "to": string(to)})
		}
		if from == model.OrderPending && order.PaymentStatus != model.PaymentApproved {
			return apperrors.WithMetadata(apperrors.CodeConflict, "pagamento ainda não aprovado",
				map[string]string{"payment_status": string(order.PaymentStatus)})
		}

		now := s.now().UTC()
		ok, err := repository.UpdateOrderStatus(ctx, tx, orderID, from, to, now)
		if err != nil {
			return fmt.Errorf("advance order: %w", err)
		}
		if !ok {
			return apperrors.New(apperrors.CodeConflict, "pedido alterado concorrentemente")
		}
		if err := repository.RecordStatusChange(ctx, tx, &model.StatusChange{
			OrderID:   orderID,
			Field:     model.FieldStatus,
			OldStatus: string(from),
			NewStatus: string(to),
			Reason:    "fulfillment",
			Actor:     actor.UserID,
			CreatedAt: now,
		}); err != nil {
			return err
		}
		order.Status = to
		order.UpdatedAt = now
		return nil
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	logger.InfoContext(ctx, "order status changed", "order_id", orderID, "from", from, "to", to, "actor", actor.UserID)
	return order, nil
}
