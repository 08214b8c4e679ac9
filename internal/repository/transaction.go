package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"estore/api/internal/model"
)

// InsertTransaction persists a payment attempt. The payload is flattened into
// the column group of its method; the other groups stay NULL.
func InsertTransaction(ctx context.Context, q Querier, t *model.Transaction) error {
	var (
		pixKey, pixQR, pixExpires        sql.NullString
		slipNumber, slipBarcode, slipDue sql.NullString
		cardBrand, cardLastFour          sql.NullString
		installments                     sql.NullInt64
	)
	switch p := t.Payload.(type) {
	case model.PixPayload:
		pixKey = sql.NullString{String: p.Key, Valid: true}
		pixQR = sql.NullString{String: p.QRCode, Valid: true}
		pixExpires = nullTime(p.ExpiresAt)
	case model.SlipPayload:
		slipNumber = sql.NullString{String: p.Number, Valid: true}
		slipBarcode = sql.NullString{String: p.Barcode, Valid: true}
		slipDue = nullTime(p.DueDate)
	case model.CardPayload:
		cardBrand = sql.NullString{String: p.Brand, Valid: true}
		cardLastFour = sql.NullString{String: p.LastFour, Valid: true}
		installments = sql.NullInt64{Int64: int64(p.Installments), Valid: true}
	default:
		return fmt.Errorf("transaction %s: unsupported payload %T", t.ID, t.Payload)
	}
	if t.Payload.Method() != t.Method {
		return fmt.Errorf("transaction %s: payload for %s on a %s transaction", t.ID, t.Payload.Method(), t.Method)
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO payment_transactions (transaction_id, order_id, method, amount, fee, status,
			pix_key, pix_qr_code, pix_expires_at, slip_number, slip_barcode, slip_due_date,
			card_brand, card_last_four, installments, gateway_response, supersedes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.OrderID, t.Method, t.Amount, t.Fee, t.Status,
		pixKey, pixQR, pixExpires, slipNumber, slipBarcode, slipDue,
		cardBrand, cardLastFour, installments, t.GatewayResponse, t.Supersedes,
		formatTime(t.CreatedAt), formatTime(t.UpdatedAt),
	)
	return err
}

const transactionColumns = `transaction_id, order_id, method, amount, fee, status,
	pix_key, pix_qr_code, pix_expires_at, slip_number, slip_barcode, slip_due_date,
	card_brand, card_last_four, installments, gateway_response, supersedes, created_at, updated_at`

func scanTransaction(row interface{ Scan(...any) error }) (*model.Transaction, error) {
	var (
		t                                model.Transaction
		pixKey, pixQR, pixExpires        sql.NullString
		slipNumber, slipBarcode, slipDue sql.NullString
		cardBrand, cardLastFour          sql.NullString
		installments                     sql.NullInt64
		createdAt, updatedAt             string
	)
	err := row.Scan(&t.ID, &t.OrderID, &t.Method, &t.Amount, &t.Fee, &t.Status,
		&pixKey, &pixQR, &pixExpires, &slipNumber, &slipBarcode, &slipDue,
		&cardBrand, &cardLastFour, &installments, &t.GatewayResponse, &t.Supersedes,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)

	switch t.Method {
	case model.MethodPix:
		t.Payload = model.PixPayload{Key: pixKey.String, QRCode: pixQR.String, ExpiresAt: parseTime(pixExpires.String)}
	case model.MethodBankSlip:
		t.Payload = model.SlipPayload{Number: slipNumber.String, Barcode: slipBarcode.String, DueDate: parseTime(slipDue.String)}
	case model.MethodCreditCard, model.MethodDebitCard:
		t.Payload = model.CardPayload{
			Brand:        cardBrand.String,
			LastFour:     cardLastFour.String,
			Installments: int(installments.Int64),
			Debit:        t.Method == model.MethodDebitCard,
		}
	default:
		return nil, fmt.Errorf("transaction %s: unknown method %q", t.ID, t.Method)
	}
	return &t, nil
}

func TransactionByID(ctx context.Context, q Querier, id string) (*model.Transaction, error) {
	t, err := scanTransaction(q.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM payment_transactions WHERE transaction_id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return t, err
}

// ActiveTransactionByOrder returns the order's pending transaction, if any.
func ActiveTransactionByOrder(ctx context.Context, q Querier, orderID string) (*model.Transaction, error) {
	t, err := scanTransaction(q.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM payment_transactions WHERE order_id = ? AND status = 'pending'`, orderID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return t, err
}

func TransactionsByOrder(ctx context.Context, q Querier, orderID string) ([]model.Transaction, error) {
	return queryTransactions(ctx, q,
		`SELECT `+transactionColumns+` FROM payment_transactions WHERE order_id = ? ORDER BY created_at, rowid`, orderID)
}

// UpdateTransactionStatus moves a transaction from -> to only if it is
// currently in from. A non-empty gatewayResponse replaces the stored one.
func UpdateTransactionStatus(ctx context.Context, q Querier, id string, from, to model.PaymentStatus, gatewayResponse string, now time.Time) (bool, error) {
	return affectedOne(q.ExecContext(ctx, `
		UPDATE payment_transactions
		SET status = ?, gateway_response = COALESCE(NULLIF(?, ''), gateway_response), updated_at = ?
		WHERE transaction_id = ? AND status = ?`,
		to, gatewayResponse, formatTime(now), id, from))
}

// SetGatewayResponse stores a gateway response without touching the status.
func SetGatewayResponse(ctx context.Context, q Querier, id, gatewayResponse string, now time.Time) error {
	_, err := q.ExecContext(ctx,
		`UPDATE payment_transactions SET gateway_response = ?, updated_at = ? WHERE transaction_id = ?`,
		gatewayResponse, formatTime(now), id)
	return err
}

// TransactionFilter narrows ListTransactions. Zero fields are ignored.
type TransactionFilter struct {
	Status   model.PaymentStatus
	Method   model.PaymentMethod
	OrderID  string
	From, To time.Time // created_at in [From, To)
	Page
}

// ListTransactions returns matching transactions newest first.
func ListTransactions(ctx context.Context, q Querier, f TransactionFilter) ([]model.Transaction, error) {
	var w where
	if f.Status != "" {
		w.add("status = ?", f.Status)
	}
	if f.Method != "" {
		w.add("method = ?", f.Method)
	}
	if f.OrderID != "" {
		w.add("order_id = ?", f.OrderID)
	}
	if !f.From.IsZero() {
		w.add("created_at >= ?", formatTime(f.From))
	}
	if !f.To.IsZero() {
		w.add("created_at < ?", formatTime(f.To))
	}
	limit, args := f.Page.clause(w.args)
	return queryTransactions(ctx, q,
		`SELECT `+transactionColumns+` FROM payment_transactions`+w.String()+` ORDER BY created_at DESC, transaction_id`+limit, args...)
}

// PendingAsyncTransactions lists pending PIX and bank slip transactions,
// oldest first.
func PendingAsyncTransactions(ctx context.Context, q Querier) ([]model.Transaction, error) {
	return queryTransactions(ctx, q, `
		SELECT `+transactionColumns+` FROM payment_transactions
		WHERE status = 'pending' AND method IN ('pix', 'bank_slip')
		ORDER BY created_at`)
}

func queryTransactions(ctx context.Context, q Querier, query string, args ...any) ([]model.Transaction, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []model.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *t)
	}
	return list, rows.Err()
}
