// Package account handles customer sign-up, login and profile edits.
package account

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"estore/api/internal/auth"
	"estore/api/internal/db"
	apperrors "estore/api/internal/errors"
	"estore/api/internal/logger"
	"estore/api/internal/model"
	"estore/api/internal/repository"
	"estore/api/internal/validation"

	"github.com/google/uuid"
)

const minPasswordLen = 6

type Service struct {
	db     *sql.DB
	secret string
	ttl    time.Duration
	now    func() time.Time
}

func NewService(sqlite *sql.DB, jwtSecret string, ttl time.Duration, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{db: sqlite, secret: jwtSecret, ttl: ttl, now: now}
}

// RegisterInput is a sign-up request. Phone is optional.
type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	CPF      string `json:"cpf"`
	Phone    string `json:"phone"`
}

// Session is a logged-in user and its bearer token.
type Session struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

func invalid(fe *validation.FieldError, msg string) error {
	return apperrors.WithMetadata(apperrors.CodeValidation, msg,
		map[string]string{"field": fe.Field, "reason": string(fe.Reason)})
}

func checkName(name string) *validation.FieldError {
	if strings.TrimSpace(name) == "" {
		return &validation.FieldError{Field: "name", Reason: validation.InvalidFormat}
	}
	return nil
}

func checkPhone(phone string) *validation.FieldError {
	if phone == "" {
		return nil
	}
	return validation.Phone(validation.SplitBRPhone(phone))
}

// Register creates a customer account and returns a session for it.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	var short *validation.FieldError
	if len(in.Password) < minPasswordLen {
		short = &validation.FieldError{Field: "password", Reason: validation.OutOfRange}
	}
	if fe := validation.First(
		checkName(in.Name),
		validation.Email(in.Email),
		short,
		validation.TaxID(in.CPF),
		checkPhone(in.Phone),
	); fe != nil {
		return nil, invalid(fe, "dados de cadastro inválidos")
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &model.User{
		ID:           uuid.New().String(),
		Name:         strings.TrimSpace(in.Name),
		Email:        in.Email,
		CPF:          validation.Digits(in.CPF),
		Phone:        validation.Digits(in.Phone),
		PasswordHash: hash,
		Role:         model.RoleUser,
		CreatedAt:    s.now().UTC(),
	}
	if err := repository.CreateUser(ctx, s.db, u); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, apperrors.WithMetadata(apperrors.CodeConflict, "e-mail já cadastrado", map[string]string{"field": "email"})
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	logger.InfoContext(ctx, "user registered", "user_id", u.ID)
	return s.session(u)
}

// Login exchanges e-mail and password for a session. Unknown e-mail and
// wrong password fail the same way.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	u, err := repository.UserByEmail(ctx, s.db, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if u == nil || !auth.CheckPassword(u.PasswordHash, password) {
		return nil, apperrors.New(apperrors.CodeUnauthenticated, "e-mail ou senha inválidos")
	}
	logger.InfoContext(ctx, "user logged in", "user_id", u.ID)
	return s.session(u)
}

func (s *Service) session(u *model.User) (*Session, error) {
	token, err := auth.IssueToken(s.secret, u.ID, u.Role, s.ttl, s.now())
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &Session{Token: token, User: u}, nil
}

// Me returns the caller's own account.
func (s *Service) Me(ctx context.Context, actor model.Actor) (*model.User, error) {
	u, err := repository.UserByID(ctx, s.db, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if u == nil {
		return nil, apperrors.New(apperrors.CodeNotFound, "usuário não encontrado")
	}
	return u, nil
}

// ProfileInput edits name and phone. Issued invoices keep the old values.
type ProfileInput struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

func (s *Service) UpdateProfile(ctx context.Context, actor model.Actor, in ProfileInput) (*model.User, error) {
	if fe := validation.First(checkName(in.Name), checkPhone(in.Phone)); fe != nil {
		return nil, invalid(fe, "dados de perfil inválidos")
	}
	u, err := s.Me(ctx, actor)
	if err != nil {
		return nil, err
	}
	u.Name = strings.TrimSpace(in.Name)
	u.Phone = validation.Digits(in.Phone)
	if err := repository.UpdateUserProfile(ctx, s.db, u.ID, u.Name, u.Phone); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return u, nil
}
