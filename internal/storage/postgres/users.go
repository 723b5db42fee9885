package postgres

import (
	"context"
	"fmt"

	"cafepoint/internal/model"
)

func (s *Store) CreateAccount(ctx context.Context, a *model.Account) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO users (id, email, name, password_hash, points, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.Email, a.Name, a.PasswordHash, a.Points, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert user: %w", mapError(err))
	}
	return nil
}

func (s *Store) GetAccountByEmail(ctx context.Context, email string) (*model.Account, error) {
	return s.scanAccount(ctx,
		"SELECT "+accountColumns+" FROM users WHERE email = $1", email)
}
