package admin

import (
	"context"
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
	operator = model.Actor{UserID: "admin", Role: model.RoleAdmin}
)

type declineAll struct{}

func (declineAll) Charge(context.Context, payment.ChargeRequest) (*payment.GatewayResponse, error) {
	return &payment.GatewayResponse{ResponseCode: "05", ResponseMessage: "Do not honor"}, nil
}

func setup(t *testing.T) (*Manager, *payment.Processor) {
	t.Helper()
	sqlite := dbtest.Open(t)
	ctx := context.Background()
	if err := repository.CreateUser(ctx, sqlite, &model.User{ID: "u1", Name: "Ana", Email: "ana@estore.com", PasswordHash: "x", CreatedAt: t0}); err != nil {
		t.Fatal(err)
	}
	for i, id := range []string{"o1", "o2"} {
		o := &model.Order{
			ID: id, Number: "ORD-" + id, UserID: "u1", Status: model.OrderPending, PaymentStatus: model.PaymentPending,
			ShippingAddress: "Rua A, 1", BillingAddress: "Rua A, 1", PaymentMethod: model.MethodPix,
			TotalAmount: decimal.NewFromInt(80), CreatedAt: t0.Add(time.Duration(i) * time.Hour), UpdatedAt: t0,
		}
		if err := repository.InsertOrder(ctx, sqlite, o); err != nil {
			t.Fatal(err)
		}
	}
	now := func() time.Time { return t0 }
	rec := payment.NewRecorder(sqlite, &notify.Recorder{}, now)
	proc := payment.NewProcessor(sqlite, config.DefaultPayment(), declineAll{}, rec, now, nil)
	return NewManager(sqlite, proc), proc
}

func pay(t *testing.T, proc *payment.Processor, orderID string, in payment.Instrument) *model.Transaction {
	t.Helper()
	res, err := proc.Process(context.Background(), customer, payment.Request{OrderID: orderID, Amount: decimal.NewFromInt(80), Instrument: in})
	if res == nil {
		t.Fatalf("Process() error = %v", err)
	}
	return res.Transaction
}

func TestSetTransactionStatus(t *testing.T) {
	m, proc := setup(t)
	ctx := context.Background()
	pix := pay(t, proc, "o1", payment.Pix{})

	if _, err := m.SetTransactionStatus(ctx, customer, pix.ID, model.PaymentApproved, ""); apperrors.CodeOf(err) != apperrors.CodeForbidden {
		t.Errorf("customer override: error = %v", err)
	}
	if _, err := m.SetTransactionStatus(ctx, operator, pix.ID, model.PaymentFailed, ""); apperrors.CodeOf(err) != apperrors.CodeValidation {
		t.Errorf("override to failed: error = %v", err)
	}
	if _, err := m.SetTransactionStatus(ctx, operator, "nope", model.PaymentApproved, ""); apperrors.CodeOf(err) != apperrors.CodeNotFound {
		t.Errorf("unknown transaction: error = %v", err)
	}

	tx, err := m.SetTransactionStatus(ctx, operator, pix.ID, model.PaymentApproved, "conferido no extrato")
	if err != nil {
		t.Fatalf("SetTransactionStatus() error = %v", err)
	}
	if tx.Status != model.PaymentApproved {
		t.Errorf("status = %s", tx.Status)
	}
	for _, to := range []model.PaymentStatus{model.PaymentApproved, model.PaymentCancelled} {
		if _, err := m.SetTransactionStatus(ctx, operator, pix.ID, to, ""); apperrors.CodeOf(err) != apperrors.CodeConflict {
			t.Errorf("override of approved to %s: error = %v", to, err)
		}
	}

	d, err := m.OrderDetails(ctx, operator, "o1")
	if err != nil {
		t.Fatal(err)
	}
	if d.Order.PaymentStatus != model.PaymentApproved || len(d.Transactions) != 1 || len(d.Transactions[0].Notifications) != 2 {
		t.Errorf("details = %+v", d)
	}
	if len(d.History) != 1 || d.History[0].Reason != "conferido no extrato" || d.History[0].Actor != "admin" {
		t.Errorf("history = %+v", d.History)
	}
}

func TestCancelPendingTransaction(t *testing.T) {
	m, proc := setup(t)
	ctx := context.Background()
	slip := pay(t, proc, "o1", payment.BankSlip{})

	tx, err := m.SetTransactionStatus(ctx, operator, slip.ID, model.PaymentCancelled, "")
	if err != nil || tx.Status != model.PaymentCancelled {
		t.Fatalf("SetTransactionStatus() = %+v, %v", tx, err)
	}
	reset, err := m.ResetTransaction(ctx, operator, slip.ID)
	if err != nil {
		t.Fatalf("ResetTransaction() error = %v", err)
	}
	if reset.Status != model.PaymentPending || reset.Supersedes != slip.ID || reset.Method != model.MethodBankSlip {
		t.Errorf("reset = %+v", reset)
	}
	if _, err := m.ResetTransaction(ctx, customer, slip.ID); apperrors.CodeOf(err) != apperrors.CodeForbidden {
		t.Errorf("customer reset: error = %v", err)
	}
}

func TestListTransactionsAndOrders(t *testing.T) {
	m, proc := setup(t)
	ctx := context.Background()
	pay(t, proc, "o1", payment.Pix{})
	pay(t, proc, "o2", payment.CreditCard{Card: payment.Card{Number: "5555555555554444", Expiry: "12/30", CVV: "123"}, Installments: 1})

	tests := []struct {
		name string
		f    repository.TransactionFilter
		want int
	}{
		{"todas", repository.TransactionFilter{}, 2},
		{"pendentes", repository.TransactionFilter{Status: model.PaymentPending}, 1},
		{"recusadas", repository.TransactionFilter{Status: model.PaymentFailed}, 1},
		{"cartão", repository.TransactionFilter{Method: model.MethodCreditCard}, 1},
		{"por pedido", repository.TransactionFilter{OrderID: "o1"}, 1},
		{"limite", repository.TransactionFilter{Page: repository.Page{Limit: 1}}, 1},
		{"período vazio", repository.TransactionFilter{From: t0.Add(time.Hour)}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := m.ListTransactions(ctx, operator, tt.f)
			if err != nil {
				t.Fatal(err)
			}
			if len(list) != tt.want {
				t.Errorf("got %d transactions, want %d", len(list), tt.want)
			}
		})
	}

	if _, err := m.ListTransactions(ctx, operator, repository.TransactionFilter{Status: "paid"}); apperrors.CodeOf(err) != apperrors.CodeValidation {
		t.Errorf("invalid filter: error = %v", err)
	}
	if _, err := m.ListTransactions(ctx, customer, repository.TransactionFilter{}); apperrors.CodeOf(err) != apperrors.CodeForbidden {
		t.Errorf("customer list: error = %v", err)
	}

	orders, err := m.ListOrders(ctx, operator, repository.OrderFilter{PaymentStatus: model.PaymentFailed})
	if err != nil || len(orders) != 1 || orders[0].ID != "o2" {
		t.Errorf("failed orders = %+v, %v", orders, err)
	}
	orders, err = m.ListOrders(ctx, operator, repository.OrderFilter{})
	if err != nil || len(orders) != 2 || orders[0].ID != "o2" {
		t.Errorf("orders newest first = %+v, %v", orders, err)
	}
}

func TestCatalogMaintenance(t *testing.T) {
	m, _ := setup(t)
	m.WithClock(func() time.Time { return t0 })
	ctx := context.Background()

	p, err := m.CreateProduct(ctx, operator, ProductInput{SKU: "LIV-01", Name: "Livro", Price: decimal.RequireFromString("59.999"), Stock: 2})
	if err != nil {
		t.Fatalf("CreateProduct() error = %v", err)
	}
	if !p.Price.Equal(decimal.RequireFromString("60.00")) || !p.Active {
		t.Errorf("product = %+v", p)
	}
	if _, err := m.CreateProduct(ctx, operator, ProductInput{SKU: "LIV-01", Name: "Outro", Price: decimal.NewFromInt(1)}); apperrors.CodeOf(err) != apperrors.CodeConflict {
		t.Errorf("duplicate sku: error = %v", err)
	}

	rejects := []struct {
		name string
		in   ProductInput
	}{
		{"sem sku", ProductInput{Name: "X", Price: decimal.NewFromInt(1)}},
		{"preço zero", ProductInput{SKU: "X", Name: "X"}},
		{"estoque negativo", ProductInput{SKU: "X", Name: "X", Price: decimal.NewFromInt(1), Stock: -1}},
	}
	for _, tt := range rejects {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := m.CreateProduct(ctx, operator, tt.in); apperrors.CodeOf(err) != apperrors.CodeValidation {
				t.Errorf("error = %v, want validation", err)
			}
		})
	}

	price := decimal.RequireFromString("49.90")
	inactive := false
	p, err = m.UpdateProduct(ctx, operator, p.ID, ProductPatch{Price: &price, Active: &inactive, Restock: 3})
	if err != nil {
		t.Fatalf("UpdateProduct() error = %v", err)
	}
	if !p.Price.Equal(price) || p.Active || p.Stock != 5 {
		t.Errorf("updated = %+v", p)
	}

	if _, err := m.UpdateProduct(ctx, operator, "nope", ProductPatch{Restock: 1}); apperrors.CodeOf(err) != apperrors.CodeNotFound {
		t.Errorf("unknown product: error = %v", err)
	}
	if _, err := m.UpdateProduct(ctx, customer, p.ID, ProductPatch{}); apperrors.CodeOf(err) != apperrors.CodeForbidden {
		t.Errorf("customer update: error = %v", err)
	}
}
