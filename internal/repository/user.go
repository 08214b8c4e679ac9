package repository

import (
	"context"
	"database/sql"

	"estore/api/internal/model"
)

const userColumns = `id, name, email, cpf, phone, password_hash, role, created_at`

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	var createdAt string
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.CPF, &u.Phone, &u.PasswordHash, &u.Role, &createdAt); err != nil {
		return nil, err
	}
	u.CreatedAt = parseTime(createdAt)
	return &u, nil
}

// UserByEmail returns nil, nil when no user has the email.
func UserByEmail(ctx context.Context, q Querier, email string) (*model.User, error) {
	u, err := scanUser(q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return u, err
}

// UserByID returns nil, nil when the user does not exist.
func UserByID(ctx context.Context, q Querier, id string) (*model.User, error) {
	u, err := scanUser(q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return u, err
}

func CreateUser(ctx context.Context, q Querier, u *model.User) error {
	if u.Role == "" {
		u.Role = model.RoleUser
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO users (id, name, email, cpf, phone, password_hash, role, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, u.CPF, u.Phone, u.PasswordHash, u.Role, formatTime(u.CreatedAt),
	)
	return err
}

// UpdateUserProfile atualiza nome e telefone de um usuário existente
func UpdateUserProfile(ctx context.Context, q Querier, userID, name, phone string) error {
	_, err := q.ExecContext(ctx, `UPDATE users SET name = ?, phone = ? WHERE id = ?`, name, phone, userID)
	return err
}
