package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"estore/api/internal/db/dbtest"
	"estore/api/internal/model"

	"github.com/shopspring/decimal"
)

var t0 = time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)

func seed(t *testing.T) *sql.DB {
	t.Helper()
	sqlite := dbtest.Open(t)
	ctx := context.Background()
	if err := CreateUser(ctx, sqlite, &model.User{ID: "u1", Name: "Ana", Email: "ana@estore.com", CPF: "52998224725", PasswordHash: "x", CreatedAt: t0}); err != nil {
		t.Fatal(err)
	}
	p := &model.Product{ID: "p1", SKU: "SKU-1", Name: "Caneca", Price: decimal.RequireFromString("29.90"), Stock: 3, Active: true}
	if err := CreateProduct(ctx, sqlite, p, t0); err != nil {
		t.Fatal(err)
	}
	o := &model.Order{
		ID: "o1", Number: "ORD-1", UserID: "u1", Status: model.OrderPending, PaymentStatus: model.PaymentPending,
		ShippingAddress: "Rua A, 1", BillingAddress: "Rua A, 1", PaymentMethod: model.MethodPix,
		TotalAmount: decimal.RequireFromString("59.80"), CreatedAt: t0, UpdatedAt: t0,
	}
	if err := InsertOrder(ctx, sqlite, o); err != nil {
		t.Fatal(err)
	}
	it := &model.OrderItem{ID: "i1", OrderID: "o1", ProductID: "p1", ProductName: "Caneca", Quantity: 2, Price: p.Price}
	if err := InsertOrderItem(ctx, sqlite, it); err != nil {
		t.Fatal(err)
	}
	return sqlite
}

func TestUserLookup(t *testing.T) {
	sqlite := seed(t)
	ctx := context.Background()

	u, err := UserByEmail(ctx, sqlite, "ana@estore.com")
	if err != nil || u == nil || u.ID != "u1" || u.Role != model.RoleUser {
		t.Fatalf("UserByEmail() = %+v, %v", u, err)
	}
	missing, err := UserByID(ctx, sqlite, "nope")
	if err != nil || missing != nil {
		t.Errorf("UserByID(nope) = %+v, %v; want nil, nil", missing, err)
	}
	if err := UpdateUserProfile(ctx, sqlite, "u1", "Ana Maria", "11999990000"); err != nil {
		t.Fatal(err)
	}
	u, _ = UserByID(ctx, sqlite, "u1")
	if u.Name != "Ana Maria" || u.Phone != "11999990000" {
		t.Errorf("profile not updated: %+v", u)
	}
}

func TestDecrementStockGuard(t *testing.T) {
	sqlite := seed(t)
	ctx := context.Background()

	tests := []struct {
		name string
		n    int
		ok   bool
		left int
	}{
		{"retira duas", 2, true, 1},
		{"não passa do disponível", 2, false, 1},
		{"zera o estoque", 1, true, 0},
		{"estoque zerado", 1, false, 0},
	}
	for _, tt := range tests {
		ok, err := DecrementStock(ctx, sqlite, "p1", tt.n)
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if ok != tt.ok {
			t.Errorf("%s: DecrementStock() = %v, want %v", tt.name, ok, tt.ok)
		}
		p, _ := ProductByID(ctx, sqlite, "p1")
		if p.Stock != tt.left {
			t.Errorf("%s: stock = %d, want %d", tt.name, p.Stock, tt.left)
		}
	}
	if err := IncrementStock(ctx, sqlite, "p1", 3); err != nil {
		t.Fatal(err)
	}
	if p, _ := ProductByID(ctx, sqlite, "p1"); p.Stock != 3 {
		t.Errorf("stock after restore = %d, want 3", p.Stock)
	}
	if _, err := ProductByID(ctx, sqlite, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ProductByID(nope) error = %v, want ErrNotFound", err)
	}
}

func TestNextSequence(t *testing.T) {
	sqlite := seed(t)
	ctx := context.Background()
	for want := int64(1); want <= 3; want++ {
		got, err := NextSequence(ctx, sqlite, "orders")
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("NextSequence() = %d, want %d", got, want)
		}
	}
	if got, _ := NextSequence(ctx, sqlite, "invoices"); got != 1 {
		t.Errorf("independent counter started at %d", got)
	}
}

func TestOrderRoundTripAndCAS(t *testing.T) {
	sqlite := seed(t)
	ctx := context.Background()

	o, err := OrderByID(ctx, sqlite, "o1")
	if err != nil {
		t.Fatal(err)
	}
	if len(o.Items) != 1 || !o.TotalAmount.Equal(o.ItemsTotal()) || !o.CreatedAt.Equal(t0) {
		t.Errorf("OrderByID() = %+v", o)
	}

	ok, err := UpdateOrderPaymentStatus(ctx, sqlite, "o1", model.PaymentPending, model.PaymentApproved, t0)
	if err != nil || !ok {
		t.Fatalf("first CAS = %v, %v", ok, err)
	}
	ok, err = UpdateOrderPaymentStatus(ctx, sqlite, "o1", model.PaymentPending, model.PaymentFailed, t0)
	if err != nil || ok {
		t.Errorf("stale CAS = %v, %v; want false", ok, err)
	}
	ok, _ = UpdateOrderStatus(ctx, sqlite, "o1", model.OrderPending, model.OrderProcessing, t0)
	if !ok {
		t.Error("order status CAS should apply")
	}

	list, err := ListOrders(ctx, sqlite, OrderFilter{PaymentStatus: model.PaymentApproved, UserID: "u1"})
	if err != nil || len(list) != 1 {
		t.Errorf("ListOrders(approved) = %d, %v", len(list), err)
	}
	list, _ = ListOrders(ctx, sqlite, OrderFilter{From: t0.Add(time.Hour)})
	if len(list) != 0 {
		t.Errorf("ListOrders(from later) = %d rows", len(list))
	}
}

func TestTransactionPayloads(t *testing.T) {
	sqlite := seed(t)
	ctx := context.Background()
	expires := t0.Add(30 * time.Minute)

	txs := []model.Transaction{
		{ID: "PIX1", Method: model.MethodPix, Status: model.PaymentCancelled, Payload: model.PixPayload{Key: "k", QRCode: "qr", ExpiresAt: expires}},
		{ID: "BOL1", Method: model.MethodBankSlip, Status: model.PaymentFailed, Payload: model.SlipPayload{Number: "34191.1", Barcode: "3419", DueDate: expires}},
		{ID: "CC1", Method: model.MethodCreditCard, Status: model.PaymentPending, Payload: model.CardPayload{Brand: "Visa", LastFour: "1111", Installments: 3}},
	}
	for i := range txs {
		tx := &txs[i]
		tx.OrderID = "o1"
		tx.Amount = decimal.RequireFromString("59.80")
		tx.Fee = decimal.Zero
		tx.CreatedAt = t0.Add(time.Duration(i) * time.Second)
		tx.UpdatedAt = tx.CreatedAt
		if err := InsertTransaction(ctx, sqlite, tx); err != nil {
			t.Fatalf("InsertTransaction(%s): %v", tx.ID, err)
		}
	}

	for _, want := range txs {
		got, err := TransactionByID(ctx, sqlite, want.ID)
		if err != nil {
			t.Fatal(err)
		}
		if !samePayload(got.Payload, want.Payload) {
			t.Errorf("%s payload = %+v, want %+v", want.ID, got.Payload, want.Payload)
		}
	}

	active, err := ActiveTransactionByOrder(ctx, sqlite, "o1")
	if err != nil || active.ID != "CC1" {
		t.Errorf("ActiveTransactionByOrder() = %v, %v", active, err)
	}

	dup := model.Transaction{ID: "DC1", OrderID: "o1", Method: model.MethodDebitCard, Status: model.PaymentPending,
		Amount: decimal.RequireFromString("59.80"), Payload: model.CardPayload{Debit: true, Installments: 1}, CreatedAt: t0, UpdatedAt: t0}
	if err := InsertTransaction(ctx, sqlite, &dup); err == nil {
		t.Error("a second pending transaction for the same order must be rejected")
	}

	mismatch := dup
	mismatch.ID, mismatch.Status, mismatch.Payload = "DC2", model.PaymentFailed, model.PixPayload{}
	if err := InsertTransaction(ctx, sqlite, &mismatch); err == nil {
		t.Error("payload must match the method")
	}

	ok, err := UpdateTransactionStatus(ctx, sqlite, "CC1", model.PaymentPending, model.PaymentApproved, `{"code":"00"}`, t0)
	if err != nil || !ok {
		t.Fatalf("UpdateTransactionStatus() = %v, %v", ok, err)
	}
	got, _ := TransactionByID(ctx, sqlite, "CC1")
	if got.GatewayResponse != `{"code":"00"}` {
		t.Errorf("gateway response = %q", got.GatewayResponse)
	}
	if ok, _ := UpdateTransactionStatus(ctx, sqlite, "CC1", model.PaymentPending, model.PaymentCancelled, "", t0); ok {
		t.Error("terminal transaction must not change")
	}

	list, _ := ListTransactions(ctx, sqlite, TransactionFilter{Method: model.MethodPix})
	if len(list) != 1 || list[0].ID != "PIX1" {
		t.Errorf("ListTransactions(pix) = %v", list)
	}
	list, _ = ListTransactions(ctx, sqlite, TransactionFilter{Page: Page{Limit: 2}})
	if len(list) != 2 || list[0].ID != "CC1" {
		t.Errorf("ListTransactions(limit 2) = %v", list)
	}
}

func TestNotificationsAreAppendOnly(t *testing.T) {
	sqlite := seed(t)
	ctx := context.Background()
	tx := &model.Transaction{ID: "PIX1", OrderID: "o1", Method: model.MethodPix, Status: model.PaymentPending,
		Amount: decimal.RequireFromString("59.80"), Payload: model.PixPayload{}, CreatedAt: t0, UpdatedAt: t0}
	if err := InsertTransaction(ctx, sqlite, tx); err != nil {
		t.Fatal(err)
	}
	n := &model.Notification{ID: "n1", TransactionID: "PIX1", Type: model.NotificationCreated, Status: model.PaymentPending, Message: "criado", CreatedAt: t0}
	if err := InsertNotification(ctx, sqlite, n); err != nil {
		t.Fatal(err)
	}
	if _, err := sqlite.ExecContext(ctx, `UPDATE payment_notifications SET message = 'x'`); err == nil {
		t.Error("notification update must fail")
	}
	list, err := NotificationsByTransaction(ctx, sqlite, "PIX1")
	if err != nil || len(list) != 1 || list[0].Message != "criado" {
		t.Errorf("NotificationsByTransaction() = %v, %v", list, err)
	}
}

func TestInvoiceLifecycle(t *testing.T) {
	sqlite := seed(t)
	ctx := context.Background()
	inv := &model.Invoice{
		ID: "inv1", Number: "NF20250310143000000001", OrderID: "o1",
		Subtotal: decimal.RequireFromString("59.80"), TaxRate: decimal.RequireFromString("0.18"),
		TaxAmount: decimal.RequireFromString("10.76"), Total: decimal.RequireFromString("70.56"),
		PaymentMethod: model.MethodPix, Status: model.InvoiceIssued, IssuedAt: t0,
		Snapshot: model.InvoiceSnapshot{OrderNumber: "ORD-1", Customer: model.InvoiceParty{Name: "Ana"},
			Items: []model.InvoiceLine{{ProductID: "p1", Name: "Caneca", Quantity: 2, UnitPrice: decimal.RequireFromString("29.90"), Total: decimal.RequireFromString("59.80")}}},
	}
	if err := InsertInvoice(ctx, sqlite, inv); err != nil {
		t.Fatal(err)
	}
	dup := *inv
	dup.ID, dup.Number = "inv2", "NF2"
	if err := InsertInvoice(ctx, sqlite, &dup); err == nil {
		t.Error("second issued invoice for the order must be rejected")
	}

	got, err := InvoiceByNumber(ctx, sqlite, inv.Number)
	if err != nil {
		t.Fatal(err)
	}
	if got.Snapshot.Customer.Name != "Ana" || len(got.Snapshot.Items) != 1 || !got.Total.Equal(inv.Total) {
		t.Errorf("InvoiceByNumber() = %+v", got)
	}

	if ok, err := CancelInvoice(ctx, sqlite, inv.Number, t0); err != nil || !ok {
		t.Fatalf("CancelInvoice() = %v, %v", ok, err)
	}
	if ok, _ := CancelInvoice(ctx, sqlite, inv.Number, t0); ok {
		t.Error("second cancellation must be a no-op")
	}
	if err := InsertInvoice(ctx, sqlite, &dup); err != nil {
		t.Errorf("reissue after cancellation: %v", err)
	}
	list, _ := InvoicesByOrder(ctx, sqlite, "o1")
	if len(list) != 2 || list[0].CancelledAt == nil {
		t.Errorf("InvoicesByOrder() = %+v", list)
	}
}

func TestHistoryAndWebhookDedupe(t *testing.T) {
	sqlite := seed(t)
	ctx := context.Background()

	c := &model.StatusChange{OrderID: "o1", Field: model.FieldStatus, OldStatus: "pending", NewStatus: "cancelled", Reason: "customer", Actor: "u1", CreatedAt: t0}
	if err := RecordStatusChange(ctx, sqlite, c); err != nil {
		t.Fatal(err)
	}
	h, err := StatusHistory(ctx, sqlite, "o1")
	if err != nil || len(h) != 1 || h[0].ID == "" {
		t.Errorf("StatusHistory() = %v, %v", h, err)
	}

	first, err := InsertWebhookEvent(ctx, sqlite, "evt_1", "payment.paid", "PIX1", t0)
	if err != nil || !first {
		t.Fatalf("first delivery = %v, %v", first, err)
	}
	again, err := InsertWebhookEvent(ctx, sqlite, "evt_1", "payment.paid", "PIX1", t0)
	if err != nil || again {
		t.Errorf("redelivery = %v, %v; want false, nil", again, err)
	}
	if !WebhookEventExists(ctx, sqlite, "evt_1") || WebhookEventExists(ctx, sqlite, "evt_2") {
		t.Error("WebhookEventExists mismatch")
	}
}

func samePayload(a, b model.Payload) bool {
	switch x := a.(type) {
	case model.PixPayload:
		y, ok := b.(model.PixPayload)
		return ok && x.Key == y.Key && x.QRCode == y.QRCode && x.ExpiresAt.Equal(y.ExpiresAt)
	case model.SlipPayload:
		y, ok := b.(model.SlipPayload)
		return ok && x.Number == y.Number && x.Barcode == y.Barcode && x.DueDate.Equal(y.DueDate)
	case model.CardPayload:
		y, ok := b.(model.CardPayload)
		return ok && x == y
	}
	return false
}
