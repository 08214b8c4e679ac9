package seeds

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"estore/api/internal/auth"
	"estore/api/internal/db"
	"estore/api/internal/model"
	"estore/api/internal/repository"

	"github.com/shopspring/decimal"
)

// Password for all seed users.
const Password = "123456"

// Account is a seeded login.
type Account struct {
	ID    string
	Name  string
	Email string
	CPF   string
	Phone string
	Role  string
}

var Accounts = []Account{
	{"seed-user-1", "João Silva", "joao@email.com", "529.982.247-25", "+5511987654321", model.RoleUser},
	{"seed-user-2", "Maria Santos", "maria@email.com", "111.444.777-35", "+5521998765432", model.RoleUser},
	{"seed-admin", "Operador Loja", "admin@estore.com", "", "", model.RoleAdmin},
}

// Run clears seed-related data and inserts fresh seed data.
// Safe to run multiple times (resets to seed state).
func Run(sqlite *sql.DB) error {
	if err := clear(sqlite); err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	if err := insert(sqlite); err != nil {
		return fmt.Errorf("insert: %w", err)
	}
	return nil
}

// clear apaga tudo. Notificações e notas fiscais são protegidas por
// triggers, que são removidas e recriadas pela migração.
func clear(sqlite *sql.DB) error {
	for _, trg := range []string{"payment_notifications_no_delete", "invoices_no_delete"} {
		if _, err := sqlite.Exec("DROP TRIGGER IF EXISTS " + trg); err != nil {
			return fmt.Errorf("drop trigger %s: %w", trg, err)
		}
	}
	tables := []string{
		"payment_webhook_events", "order_status_history", "invoices",
		"payment_notifications", "payment_transactions",
		"order_items", "orders", "sequences",
		"products", "users",
	}
	for _, t := range tables {
		if _, err := sqlite.Exec("DELETE FROM " + t); err != nil {
			return fmt.Errorf("delete %s: %w", t, err)
		}
	}
	return db.Migrate(sqlite)
}

func insert(sqlite *sql.DB) error {
	ctx := context.Background()
	passwordHash, err := auth.HashPassword(Password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	now := time.Now().UTC()

	for _, a := range Accounts {
		u := &model.User{
			ID: a.ID, Name: a.Name, Email: a.Email, CPF: a.CPF, Phone: a.Phone,
			PasswordHash: passwordHash, Role: a.Role, CreatedAt: now,
		}
		if err := repository.CreateUser(ctx, sqlite, u); err != nil {
			return fmt.Errorf("insert user %s: %w", a.ID, err)
		}
	}

	products := []struct {
		id          string
		sku         string
		name        string
		description string
		price       string
		stock       int
		active      bool
	}{
		{"seed-prod-1", "CAM-BAS-P", "Camiseta Básica", "Camiseta 100% algodão, tamanho P", "49.90", 120, true},
		{"seed-prod-2", "CAM-BAS-M", "Camiseta Básica", "Camiseta 100% algodão, tamanho M", "49.90", 150, true},
		{"seed-prod-3", "CAN-CER-01", "Caneca de Cerâmica", "Caneca 350ml", "29.95", 80, true},
		{"seed-prod-4", "FON-BT-01", "Fone Bluetooth", "Fone sem fio com estojo de carga", "299.90", 25, true},
		{"seed-prod-5", "MOC-URB-01", "Mochila Urbana", "Mochila impermeável para notebook 15\"", "189.00", 40, true},
		{"seed-prod-6", "GAR-TER-01", "Garrafa Térmica", "Garrafa inox 500ml", "79.90", 60, true},
		{"seed-prod-7", "POS-ED-01", "Pôster Edição Limitada", "Pôster numerado, tiragem de 5", "15.00", 5, true},
		{"seed-prod-8", "BON-ABA-01", "Boné Aba Reta", "Fora de linha", "39.90", 10, false},
	}
	for _, p := range products {
		prod := &model.Product{
			ID: p.id, SKU: p.sku, Name: p.name, Description: p.description,
			Price: decimal.RequireFromString(p.price), Stock: p.stock, Active: p.active,
		}
		if err := repository.CreateProduct(ctx, sqlite, prod, now); err != nil {
			return fmt.Errorf("insert product %s: %w", p.id, err)
		}
	}
	return nil
}
