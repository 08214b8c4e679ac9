package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"estore/api/internal/model"
)

func InsertInvoice(ctx context.Context, q Querier, inv *model.Invoice) error {
	snapshot, err := json.Marshal(inv.Snapshot)
	if err != nil {
		return fmt.Errorf("encode invoice snapshot: %w", err)
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO invoices (id, invoice_number, order_id, subtotal, tax_rate, tax_amount, total,
			payment_method, status, snapshot, issued_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.Number, inv.OrderID, inv.Subtotal, inv.TaxRate, inv.TaxAmount, inv.Total,
		inv.PaymentMethod, inv.Status, string(snapshot), formatTime(inv.IssuedAt),
	)
	return err
}

const invoiceColumns = `id, invoice_number, order_id, subtotal, tax_rate, tax_amount, total,
	payment_method, status, snapshot, issued_at, cancelled_at`

func scanInvoice(row interface{ Scan(...any) error }) (*model.Invoice, error) {
	var inv model.Invoice
	var snapshot, issuedAt string
	var cancelledAt sql.NullString
	err := row.Scan(&inv.ID, &inv.Number, &inv.OrderID, &inv.Subtotal, &inv.TaxRate, &inv.TaxAmount, &inv.Total,
		&inv.PaymentMethod, &inv.Status, &snapshot, &issuedAt, &cancelledAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(snapshot), &inv.Snapshot); err != nil {
		return nil, fmt.Errorf("decode invoice %s snapshot: %w", inv.Number, err)
	}
	inv.IssuedAt = parseTime(issuedAt)
	if cancelledAt.Valid {
		t := parseTime(cancelledAt.String)
		inv.CancelledAt = &t
	}
	return &inv, nil
}

func InvoiceByNumber(ctx context.Context, q Querier, number string) (*model.Invoice, error) {
	inv, err := scanInvoice(q.QueryRowContext(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE invoice_number = ?`, number))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return inv, err
}

func InvoicesByOrder(ctx context.Context, q Querier, orderID string) ([]model.Invoice, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE order_id = ? ORDER BY issued_at, rowid`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []model.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *inv)
	}
	return list, rows.Err()
}

// CancelInvoice flags an issued invoice as cancelled. Returns false if the
// invoice was not in ISSUED.
func CancelInvoice(ctx context.Context, q Querier, number string, now time.Time) (bool, error) {
	return affectedOne(q.ExecContext(ctx,
		`UPDATE invoices SET status = 'CANCELLED', cancelled_at = ? WHERE invoice_number = ? AND status = 'ISSUED'`,
		formatTime(now), number))
}
