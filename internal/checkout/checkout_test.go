package checkout

import (
	"context"
	"database/sql"
	"regexp"
	"sync"
	"testing"
	"time"

	"estore/api/internal/config"
	"estore/api/internal/db/dbtest"
	apperrors "estore/api/internal/errors"
	"estore/api/internal/model"
	"estore/api/internal/notify"
	"estore/api/internal/payment"
	"estore/api/internal/repository"

	"github.com/shopspring/decimal"
)

var t0 = time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)

var (
	customer = model.Actor{UserID: "u1", Role: model.RoleUser}
	other    = model.Actor{UserID: "u2", Role: model.RoleUser}
	admin    = model.Actor{UserID: "admin", Role: model.RoleAdmin}
)

type fixture struct {
	db      *sql.DB
	svc     *Service
	payment *payment.Processor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	sqlite := dbtest.Open(t)
	ctx := context.Background()
	for _, u := range []*model.User{
		{ID: "u1", Name: "Ana", Email: "ana@estore.com", PasswordHash: "x", CreatedAt: t0},
		{ID: "u2", Name: "Bruno", Email: "bruno@estore.com", PasswordHash: "x", CreatedAt: t0},
	} {
		if err := repository.CreateUser(ctx, sqlite, u); err != nil {
			t.Fatal(err)
		}
	}
	for _, p := range []*model.Product{
		{ID: "camiseta", SKU: "CAM-01", Name: "Camiseta", Price: decimal.RequireFromString("49.90"), Stock: 10, Active: true},
		{ID: "caneca", SKU: "CAN-01", Name: "Caneca", Price: decimal.RequireFromString("29.95"), Stock: 5, Active: true},
		{ID: "poster", SKU: "POS-01", Name: "Pôster", Price: decimal.RequireFromString("15.00"), Stock: 1, Active: true},
		{ID: "bone", SKU: "BON-01", Name: "Boné", Price: decimal.RequireFromString("39.90"), Stock: 4, Active: false},
	} {
		if err := repository.CreateProduct(ctx, sqlite, p, t0); err != nil {
			t.Fatal(err)
		}
	}

	now := func() time.Time { return t0 }
	rec := payment.NewRecorder(sqlite, &notify.Recorder{}, now)
	gw := payment.NewSimulatedGateway(1, 1, 0, nil, now)
	return &fixture{
		db:      sqlite,
		svc:     NewService(sqlite, rec).WithClock(now),
		payment: payment.NewProcessor(sqlite, config.DefaultPayment(), gw, rec, now, nil),
	}
}

func (f *fixture) stock(t *testing.T, id string) int {
	t.Helper()
	p, err := repository.ProductByID(context.Background(), f.db, id)
	if err != nil {
		t.Fatal(err)
	}
	return p.Stock
}

func (f *fixture) create(t *testing.T, lines ...Line) *model.Order {
	t.Helper()
	o, err := f.svc.CreateOrder(context.Background(), "u1", CreateOrderRequest{
		Lines:           lines,
		ShippingAddress: "Rua das Flores, 10",
		PaymentMethod:   model.MethodPix,
	})
	if err != nil {
		t.Fatalf("CreateOrder() error = %v", err)
	}
	return o
}

func TestValidateCart(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name  string
		lines []Line
		want  apperrors.Code
		total string
	}{
		{"vazio", nil, apperrors.CodeEmptyCart, ""},
		{"quantidade zero", []Line{{ProductID: "caneca", Quantity: 0}}, apperrors.CodeValidation, ""},
		{"quantidade negativa", []Line{{ProductID: "caneca", Quantity: -1}}, apperrors.CodeValidation, ""},
		{"produto inexistente", []Line{{ProductID: "nope", Quantity: 1}}, apperrors.CodeProductUnavailable, ""},
		{"produto inativo", []Line{{ProductID: "bone", Quantity: 1}}, apperrors.CodeProductUnavailable, ""},
		{"sem estoque", []Line{{ProductID: "poster", Quantity: 2}}, apperrors.CodeInsufficientStock, ""},
		{"linhas repetidas somam", []Line{{ProductID: "caneca", Quantity: 3}, {ProductID: "caneca", Quantity: 3}}, apperrors.CodeInsufficientStock, ""},
		{"ok", []Line{{ProductID: "camiseta", Quantity: 2}, {ProductID: "caneca", Quantity: 1}}, "", "129.75"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cart, err := f.svc.ValidateCart(context.Background(), tt.lines)
			if tt.want != "" {
				if apperrors.CodeOf(err) != tt.want {
					t.Fatalf("ValidateCart() error = %v, want %s", err, tt.want)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if !cart.Total.Equal(decimal.RequireFromString(tt.total)) {
				t.Errorf("total = %s, want %s", cart.Total, tt.total)
			}
		})
	}

	if got := f.stock(t, "camiseta"); got != 10 {
		t.Errorf("validation changed stock to %d", got)
	}
}

func TestValidateCartMergesLines(t *testing.T) {
	f := newFixture(t)
	cart, err := f.svc.ValidateCart(context.Background(), []Line{
		{ProductID: "caneca", Quantity: 1}, {ProductID: "camiseta", Quantity: 1}, {ProductID: "caneca", Quantity: 2},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(cart.Lines) != 2 || cart.Lines[0].ProductID != "caneca" || cart.Lines[0].Quantity != 3 {
		t.Errorf("lines = %+v", cart.Lines)
	}
}

func TestCreateOrder(t *testing.T) {
	f := newFixture(t)
	o := f.create(t, Line{ProductID: "camiseta", Quantity: 2}, Line{ProductID: "caneca", Quantity: 1})

	if o.Status != model.OrderPending || o.PaymentStatus != model.PaymentPending {
		t.Errorf("status = %s/%s", o.Status, o.PaymentStatus)
	}
	if !o.TotalAmount.Equal(decimal.RequireFromString("129.75")) || !o.TotalAmount.Equal(o.ItemsTotal()) {
		t.Errorf("total = %s, items = %s", o.TotalAmount, o.ItemsTotal())
	}
	if o.BillingAddress != o.ShippingAddress {
		t.Errorf("billing address = %q, want shipping address", o.BillingAddress)
	}
	if !regexp.MustCompile(`^ORD-20250310143000\d{6}$`).MatchString(o.Number) {
		t.Errorf("order number = %q", o.Number)
	}
	if f.stock(t, "camiseta") != 8 || f.stock(t, "caneca") != 4 {
		t.Error("stock not decremented")
	}

	again := f.create(t, Line{ProductID: "caneca", Quantity: 1})
	if again.Number == o.Number {
		t.Error("order numbers must be unique")
	}

	history, _ := repository.StatusHistory(context.Background(), f.db, o.ID)
	if len(history) != 1 || history[0].NewStatus != string(model.OrderPending) {
		t.Errorf("history = %+v", history)
	}
}

func TestCreateOrderFreezesPrices(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.create(t, Line{ProductID: "camiseta", Quantity: 3})

	if err := repository.UpdateProductPrice(ctx, f.db, "camiseta", decimal.RequireFromString("59.90"), t0); err != nil {
		t.Fatal(err)
	}
	got, err := f.svc.GetOrder(ctx, customer, o.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.TotalAmount.Equal(decimal.RequireFromString("149.70")) || !got.Items[0].Price.Equal(decimal.RequireFromString("49.90")) {
		t.Errorf("order repriced: total %s, item price %s", got.TotalAmount, got.Items[0].Price)
	}
}

func TestCreateOrderIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CreateOrder(context.Background(), "u1", CreateOrderRequest{
		Lines:           []Line{{ProductID: "camiseta", Quantity: 2}, {ProductID: "poster", Quantity: 5}},
		ShippingAddress: "Rua das Flores, 10",
		PaymentMethod:   model.MethodPix,
	})
	if apperrors.CodeOf(err) != apperrors.CodeInsufficientStock {
		t.Fatalf("error = %v, want INSUFFICIENT_STOCK", err)
	}
	if f.stock(t, "camiseta") != 10 || f.stock(t, "poster") != 1 {
		t.Error("stock changed by a failed order")
	}
	orders, _ := repository.ListOrders(context.Background(), f.db, repository.OrderFilter{})
	if len(orders) != 0 {
		t.Errorf("%d orders persisted", len(orders))
	}
}

func TestCreateOrderRejectsInput(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name   string
		userID string
		req    CreateOrderRequest
		want   apperrors.Code
	}{
		{"sem endereço", "u1", CreateOrderRequest{Lines: []Line{{ProductID: "caneca", Quantity: 1}}, PaymentMethod: model.MethodPix}, apperrors.CodeValidation},
		{"método inválido", "u1", CreateOrderRequest{Lines: []Line{{ProductID: "caneca", Quantity: 1}}, ShippingAddress: "Rua A", PaymentMethod: "cheque"}, apperrors.CodeValidation},
		{"usuário inexistente", "ghost", CreateOrderRequest{Lines: []Line{{ProductID: "caneca", Quantity: 1}}, ShippingAddress: "Rua A", PaymentMethod: model.MethodPix}, apperrors.CodeNotFound},
		{"carrinho vazio", "u1", CreateOrderRequest{ShippingAddress: "Rua A", PaymentMethod: model.MethodPix}, apperrors.CodeEmptyCart},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.CreateOrder(context.Background(), tt.userID, tt.req); apperrors.CodeOf(err) != tt.want {
				t.Errorf("error = %v, want %s", err, tt.want)
			}
		})
	}
}

func TestConcurrentCheckoutOfLastUnit(t *testing.T) {
	f := newFixture(t)
	var (
		wg   sync.WaitGroup
		errs = make([]error, 2)
	)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.CreateOrder(context.Background(), "u1", CreateOrderRequest{
				Lines:           []Line{{ProductID: "poster", Quantity: 1}},
				ShippingAddress: "Rua das Flores, 10",
				PaymentMethod:   model.MethodPix,
			})
		}(i)
	}
	wg.Wait()

	ok, short := 0, 0
	for _, err := range errs {
		switch apperrors.CodeOf(err) {
		case apperrors.CodeInsufficientStock:
			short++
		default:
			if err == nil {
				ok++
			} else {
				t.Errorf("unexpected error: %v", err)
			}
		}
	}
	if ok != 1 || short != 1 {
		t.Errorf("successes = %d, insufficient stock = %d; want 1 and 1", ok, short)
	}
	if got := f.stock(t, "poster"); got != 0 {
		t.Errorf("stock = %d, want 0", got)
	}
}

func TestCancelOrderRestoresStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.create(t, Line{ProductID: "camiseta", Quantity: 4})
	res, err := f.payment.Process(ctx, customer, payment.Request{OrderID: o.ID, Amount: o.TotalAmount, Instrument: payment.Pix{}})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := f.svc.CancelOrder(ctx, other, o.ID, ""); apperrors.CodeOf(err) != apperrors.CodeForbidden {
		t.Errorf("cancel by another user: error = %v", err)
	}
	cancelled, err := f.svc.CancelOrder(ctx, customer, o.ID, "desisti")
	if err != nil {
		t.Fatalf("CancelOrder() error = %v", err)
	}
	if cancelled.Status != model.OrderCancelled || cancelled.PaymentStatus != model.PaymentCancelled {
		t.Errorf("order = %s/%s", cancelled.Status, cancelled.PaymentStatus)
	}
	if got := f.stock(t, "camiseta"); got != 10 {
		t.Errorf("stock = %d, want 10", got)
	}
	tx, _ := repository.TransactionByID(ctx, f.db, res.Transaction.ID)
	if tx.Status != model.PaymentCancelled {
		t.Errorf("pending transaction status = %s, want cancelled", tx.Status)
	}

	if _, err := f.svc.CancelOrder(ctx, customer, o.ID, ""); apperrors.CodeOf(err) != apperrors.CodeConflict {
		t.Errorf("second cancel: error = %v", err)
	}
	_, err = f.payment.Process(ctx, customer, payment.Request{OrderID: o.ID, Amount: o.TotalAmount, Instrument: payment.Pix{}})
	if apperrors.CodeOf(err) != apperrors.CodeConflict {
		t.Errorf("paying a cancelled order: error = %v", err)
	}
}

func TestCancelRefusedWhileCardChargePending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.create(t, Line{ProductID: "camiseta", Quantity: 3})

	// gateway lento: a cobrança fica pendente até a conciliação
	cfg := config.DefaultPayment()
	cfg.GatewayTimeout = 10 * time.Millisecond
	now := func() time.Time { return t0 }
	slow := payment.NewSimulatedGateway(1, 1, time.Hour, nil, now)
	proc := payment.NewProcessor(f.db, cfg, slow, payment.NewRecorder(f.db, &notify.Recorder{}, now), now, nil)
	card := payment.Card{Number: "4111111111111111", Expiry: "12/30", CVV: "123"}
	res, err := proc.Process(ctx, customer, payment.Request{OrderID: o.ID, Amount: o.TotalAmount, Instrument: payment.CreditCard{Card: card, Installments: 1}})
	if err != nil || res.Transaction.Status != model.PaymentPending {
		t.Fatalf("Process() = %+v, %v", res, err)
	}

	if _, err := f.svc.CancelOrder(ctx, customer, o.ID, "desisti"); apperrors.CodeOf(err) != apperrors.CodeConflict {
		t.Fatalf("CancelOrder() error = %v, want CONFLICT", err)
	}
	got, _ := repository.OrderByID(ctx, f.db, o.ID)
	if got.Status != model.OrderPending {
		t.Errorf("order status = %s, want pending", got.Status)
	}
	if s := f.stock(t, "camiseta"); s != 7 {
		t.Errorf("stock = %d, want 7", s)
	}
}

func TestCancelAfterApprovalKeepsStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.create(t, Line{ProductID: "caneca", Quantity: 2})
	res, _ := f.payment.Process(ctx, customer, payment.Request{OrderID: o.ID, Amount: o.TotalAmount, Instrument: payment.Pix{}})
	if _, err := f.payment.ConfirmAsyncPayment(ctx, res.Transaction.ID, model.System); err != nil {
		t.Fatal(err)
	}

	cancelled, err := f.svc.CancelOrder(ctx, admin, o.ID, "")
	if err != nil {
		t.Fatal(err)
	}
	if cancelled.Status != model.OrderCancelled || cancelled.PaymentStatus != model.PaymentApproved {
		t.Errorf("order = %s/%s", cancelled.Status, cancelled.PaymentStatus)
	}
	if got := f.stock(t, "caneca"); got != 3 {
		t.Errorf("stock = %d, want 3", got)
	}
}

func TestAdvanceOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.create(t, Line{ProductID: "caneca", Quantity: 1})

	if _, err := f.svc.AdvanceOrder(ctx, customer, o.ID, model.OrderProcessing); apperrors.CodeOf(err) != apperrors.CodeForbidden {
		t.Errorf("customer advance: error = %v", err)
	}
	if _, err := f.svc.AdvanceOrder(ctx, admin, o.ID, model.OrderProcessing); apperrors.CodeOf(err) != apperrors.CodeConflict {
		t.Errorf("advance before payment: error = %v", err)
	}

	res, _ := f.payment.Process(ctx, customer, payment.Request{OrderID: o.ID, Amount: o.TotalAmount, Instrument: payment.Pix{}})
	if _, err := f.payment.ConfirmAsyncPayment(ctx, res.Transaction.ID, model.System); err != nil {
		t.Fatal(err)
	}

	for _, to := range []model.OrderStatus{model.OrderProcessing, model.OrderShipped, model.OrderDelivered} {
		got, err := f.svc.AdvanceOrder(ctx, admin, o.ID, to)
		if err != nil {
			t.Fatalf("AdvanceOrder(%s) error = %v", to, err)
		}
		if got.Status != to {
			t.Errorf("status = %s, want %s", got.Status, to)
		}
	}
	if _, err := f.svc.AdvanceOrder(ctx, admin, o.ID, model.OrderCancelled); apperrors.CodeOf(err) != apperrors.CodeConflict {
		t.Errorf("cancel delivered order: error = %v", err)
	}
	if _, err := f.svc.AdvanceOrder(ctx, admin, o.ID, "lost"); apperrors.CodeOf(err) != apperrors.CodeValidation {
		t.Errorf("unknown status: error = %v", err)
	}
}

func TestGetOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.create(t, Line{ProductID: "caneca", Quantity: 1})

	if _, err := f.svc.GetOrder(ctx, other, o.ID); apperrors.CodeOf(err) != apperrors.CodeForbidden {
		t.Errorf("other user: error = %v", err)
	}
	if got, err := f.svc.GetOrder(ctx, admin, o.ID); err != nil || len(got.Items) != 1 {
		t.Errorf("admin: %+v, %v", got, err)
	}
	if _, err := f.svc.GetOrder(ctx, customer, "missing"); apperrors.CodeOf(err) != apperrors.CodeNotFound {
		t.Errorf("missing: error = %v", err)
	}
}

func TestOrderNumber(t *testing.T) {
	if got := OrderNumber(t0, 42); got != "ORD-20250310143000000042" {
		t.Errorf("OrderNumber() = %q", got)
	}
}
