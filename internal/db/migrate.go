package db

import (
	"database/sql"
	"fmt"
)

// Timestamps are stored as fixed-width UTC TEXT so lexical and chronological
// order agree. Money is stored as decimal TEXT.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            TEXT PRIMARY KEY,
		name          TEXT NOT NULL,
		email         TEXT NOT NULL UNIQUE,
		cpf           TEXT NOT NULL DEFAULT '',
		phone         TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		role          TEXT NOT NULL DEFAULT 'USER' CHECK (role IN ('USER','ADMIN')),
		created_at    TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS products (
		id          TEXT PRIMARY KEY,
		sku         TEXT NOT NULL UNIQUE,
		name        TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		price       TEXT NOT NULL,
		stock       INTEGER NOT NULL CHECK (stock >= 0),
		active      INTEGER NOT NULL DEFAULT 1,
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS sequences (
		name  TEXT PRIMARY KEY,
		value INTEGER NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS orders (
		id               TEXT PRIMARY KEY,
		order_number     TEXT NOT NULL UNIQUE,
		user_id          TEXT NOT NULL REFERENCES users(id),
		status           TEXT NOT NULL CHECK (status IN ('pending','processing','shipped','delivered','cancelled')),
		payment_status   TEXT NOT NULL CHECK (payment_status IN ('pending','approved','failed','cancelled')),
		shipping_address TEXT NOT NULL,
		billing_address  TEXT NOT NULL,
		payment_method   TEXT NOT NULL,
		total_amount     TEXT NOT NULL,
		created_at       TEXT NOT NULL,
		updated_at       TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_user ON orders(user_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_created ON orders(created_at)`,

	`CREATE TABLE IF NOT EXISTS order_items (
		id           TEXT PRIMARY KEY,
		order_id     TEXT NOT NULL REFERENCES orders(id),
		product_id   TEXT NOT NULL REFERENCES products(id),
		product_name TEXT NOT NULL,
		quantity     INTEGER NOT NULL CHECK (quantity > 0),
		price        TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_order_items_order ON order_items(order_id)`,

	`CREATE TABLE IF NOT EXISTS payment_transactions (
		transaction_id   TEXT PRIMARY KEY,
		order_id         TEXT NOT NULL REFERENCES orders(id),
		method           TEXT NOT NULL CHECK (method IN ('pix','credit_card','debit_card','bank_slip')),
		amount           TEXT NOT NULL,
		fee              TEXT NOT NULL,
		status           TEXT NOT NULL CHECK (status IN ('pending','approved','failed','cancelled')),
		pix_key          TEXT,
		pix_qr_code      TEXT,
		pix_expires_at   TEXT,
		slip_number      TEXT,
		slip_barcode     TEXT,
		slip_due_date    TEXT,
		card_brand       TEXT,
		card_last_four   TEXT,
		installments     INTEGER,
		gateway_response TEXT NOT NULL DEFAULT '',
		supersedes       TEXT NOT NULL DEFAULT '',
		created_at       TEXT NOT NULL,
		updated_at       TEXT NOT NULL
	)`,
	// At most one pending transaction per order.
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_payment_transactions_active
		ON payment_transactions(order_id) WHERE status = 'pending'`,
	`CREATE INDEX IF NOT EXISTS idx_payment_transactions_order ON payment_transactions(order_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_payment_transactions_status ON payment_transactions(status, method)`,

	`CREATE TABLE IF NOT EXISTS payment_notifications (
		id             TEXT PRIMARY KEY,
		transaction_id TEXT NOT NULL REFERENCES payment_transactions(transaction_id),
		type           TEXT NOT NULL,
		status         TEXT NOT NULL,
		message        TEXT NOT NULL,
		created_at     TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_payment_notifications_tx ON payment_notifications(transaction_id, created_at)`,
	`CREATE TRIGGER IF NOT EXISTS payment_notifications_no_update
		BEFORE UPDATE ON payment_notifications
		BEGIN SELECT RAISE(ABORT, 'payment notifications are append-only'); END`,
	`CREATE TRIGGER IF NOT EXISTS payment_notifications_no_delete
		BEFORE DELETE ON payment_notifications
		BEGIN SELECT RAISE(ABORT, 'payment notifications are append-only'); END`,

	`CREATE TABLE IF NOT EXISTS invoices (
		id             TEXT PRIMARY KEY,
		invoice_number TEXT NOT NULL UNIQUE,
		order_id       TEXT NOT NULL REFERENCES orders(id),
		subtotal       TEXT NOT NULL,
		tax_rate       TEXT NOT NULL,
		tax_amount     TEXT NOT NULL,
		total          TEXT NOT NULL,
		payment_method TEXT NOT NULL,
		status         TEXT NOT NULL CHECK (status IN ('ISSUED','CANCELLED')),
		snapshot       TEXT NOT NULL,
		issued_at      TEXT NOT NULL,
		cancelled_at   TEXT
	)`,
	// At most one non-cancelled invoice per order.
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_invoices_order_issued
		ON invoices(order_id) WHERE status = 'ISSUED'`,
	`CREATE TRIGGER IF NOT EXISTS invoices_immutable
		BEFORE UPDATE ON invoices
		WHEN OLD.status = 'CANCELLED'
			OR NEW.invoice_number IS NOT OLD.invoice_number
			OR NEW.order_id IS NOT OLD.order_id
			OR NEW.subtotal IS NOT OLD.subtotal
			OR NEW.tax_rate IS NOT OLD.tax_rate
			OR NEW.tax_amount IS NOT OLD.tax_amount
			OR NEW.total IS NOT OLD.total
			OR NEW.payment_method IS NOT OLD.payment_method
			OR NEW.snapshot IS NOT OLD.snapshot
			OR NEW.issued_at IS NOT OLD.issued_at
		BEGIN SELECT RAISE(ABORT, 'issued invoices are immutable'); END`,
	`CREATE TRIGGER IF NOT EXISTS invoices_no_delete
		BEFORE DELETE ON invoices
		BEGIN SELECT RAISE(ABORT, 'invoices cannot be deleted'); END`,

	`CREATE TABLE IF NOT EXISTS order_status_history (
		id         TEXT PRIMARY KEY,
		order_id   TEXT NOT NULL REFERENCES orders(id),
		field      TEXT NOT NULL,
		old_status TEXT NOT NULL,
		new_status TEXT NOT NULL,
		reason     TEXT NOT NULL DEFAULT '',
		actor      TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_order_status_history_order ON order_status_history(order_id, created_at)`,

	`CREATE TABLE IF NOT EXISTS payment_webhook_events (
		id             TEXT PRIMARY KEY,
		event_id       TEXT NOT NULL UNIQUE,
		event_type     TEXT NOT NULL,
		transaction_id TEXT NOT NULL DEFAULT '',
		received_at    TEXT NOT NULL
	)`,
}

// Migrate creates every table, index and trigger that does not exist yet.
func Migrate(db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
