package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cafepoint/internal/model"
	"cafepoint/internal/storage/memory"
)

func newAuthService(store *memory.Store) *AuthService {
	// MinCost keeps the hashing fast in tests.
	return NewAuthService(store, []byte("test-secret"), time.Hour, 4)
}

func TestAuth(t *testing.T) {
	ctx := context.Background()

	t.Run("SignUp SignIn Verify Round Trip", func(t *testing.T) {
		store := memory.New()
		auth := newAuthService(store)

		account, err := auth.SignUp(ctx, "amy@example.com", "hunter2", "Amy")
		require.NoError(t, err)
		assert.NotEmpty(t, account.ID)
		assert.Equal(t, int64(0), account.Points)
		assert.NotEqual(t, "hunter2", account.PasswordHash)

		token, err := auth.SignIn(ctx, "amy@example.com", "hunter2")
		require.NoError(t, err)
		require.NotEmpty(t, token)

		subject, err := auth.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, account.ID, subject)
	})

	t.Run("Duplicate Email", func(t *testing.T) {
		store := memory.New()
		auth := newAuthService(store)

		_, err := auth.SignUp(ctx, "amy@example.com", "hunter2", "Amy")
		require.NoError(t, err)

		_, err = auth.SignUp(ctx, "amy@example.com", "other", "Amy Again")
		assert.ErrorIs(t, err, model.ErrEmailTaken)
	})

	t.Run("Missing Fields", func(t *testing.T) {
		auth := newAuthService(memory.New())

		_, err := auth.SignUp(ctx, "amy@example.com", "", "Amy")
		assert.ErrorIs(t, err, model.ErrInvalidInput)
	})

	t.Run("Wrong Password", func(t *testing.T) {
		store := memory.New()
		auth := newAuthService(store)

		_, err := auth.SignUp(ctx, "amy@example.com", "hunter2", "Amy")
		require.NoError(t, err)

		_, err = auth.SignIn(ctx, "amy@example.com", "hunter3")
		assert.ErrorIs(t, err, model.ErrInvalidCredentials)
	})

	t.Run("Unknown Email", func(t *testing.T) {
		auth := newAuthService(memory.New())

		_, err := auth.SignIn(ctx, "nobody@example.com", "hunter2")
		assert.ErrorIs(t, err, model.ErrInvalidCredentials)
	})

	t.Run("Tampered Token", func(t *testing.T) {
		store := memory.New()
		auth := newAuthService(store)

		_, err := auth.SignUp(ctx, "amy@example.com", "hunter2", "Amy")
		require.NoError(t, err)
		token, err := auth.SignIn(ctx, "amy@example.com", "hunter2")
		require.NoError(t, err)

		_, err = auth.Verify(token + "x")
		assert.ErrorIs(t, err, model.ErrInvalidCredentials)
	})

	t.Run("Foreign Secret", func(t *testing.T) {
		store := memory.New()
		auth := newAuthService(store)
		other := NewAuthService(store, []byte("another-secret"), time.Hour, 4)

		_, err := auth.SignUp(ctx, "amy@example.com", "hunter2", "Amy")
		require.NoError(t, err)
		token, err := other.SignIn(ctx, "amy@example.com", "hunter2")
		require.NoError(t, err)

		_, err = auth.Verify(token)
		assert.ErrorIs(t, err, model.ErrInvalidCredentials)
	})
}
