package repository

import (
	"context"
	"database/sql"
	"errors"

	"kolabnaskah/internal/account/model"
	"kolabnaskah/pkg/apperror"
	"kolabnaskah/pkg/logger"

	"github.com/lib/pq"
)

const uniqueViolation = "23505"

type AccountRepository struct {
	DB *sql.DB
}

func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{DB: db}
}

func (r *AccountRepository) Create(ctx context.Context, id, email, passwordHash string) (*model.User, error) {
	var u model.User
	err := r.DB.QueryRowContext(ctx, `
		INSERT INTO users (id, email, password_hash, created_at) VALUES ($1, $2, $3, NOW())
		RETURNING id, email, created_at`, id, email, passwordHash).
		Scan(&u.ID, &u.Email, &u.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, apperror.Validation("Email is already registered")
		}
		logger.Sugar.Errorf("Failed to create user %s: %v", email, err)
		return nil, apperror.Store("create user", err)
	}
	return &u, nil
}

// FindByEmail returns the user and their password hash.
func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*model.User, string, error) {
	var u model.User
	var hash string
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, email, created_at, password_hash FROM users WHERE LOWER(email) = LOWER($1)", email).
		Scan(&u.ID, &u.Email, &u.CreatedAt, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", apperror.NotFound("User not found")
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to find user %s: %v", email, err)
		return nil, "", apperror.Store("find user", err)
	}
	return &u, hash, nil
}

func (r *AccountRepository) Get(ctx context.Context, userID string) (*model.User, error) {
	var u model.User
	err := r.DB.QueryRowContext(ctx, "SELECT id, email, created_at FROM users WHERE id = $1", userID).
		Scan(&u.ID, &u.Email, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("User not found")
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to get user %s: %v", userID, err)
		return nil, apperror.Store("get user", err)
	}
	return &u, nil
}

func (r *AccountRepository) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	result, err := r.DB.ExecContext(ctx, "UPDATE users SET password_hash = $1 WHERE id = $2", passwordHash, userID)
	if err != nil {
		logger.Sugar.Errorf("Failed to update password for %s: %v", userID, err)
		return apperror.Store("update password", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return apperror.NotFound("User not found")
	}
	return nil
}
