package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"cafepoint/internal/model"
	"cafepoint/internal/storage"
)

// AuthService handles signup, signin and token verification. It supplies
// the validated account id the orchestrator and ledger callers rely on.
type AuthService struct {
	db         storage.Storage
	secret     []byte
	tokenTTL   time.Duration
	bcryptCost int
}

func NewAuthService(db storage.Storage, secret []byte, tokenTTL time.Duration, bcryptCost int) *AuthService {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &AuthService{db: db, secret: secret, tokenTTL: tokenTTL, bcryptCost: bcryptCost}
}

// SignUp creates an account with a zero point balance.
func (s *AuthService) SignUp(ctx context.Context, email, password, name string) (*model.Account, error) {
	if email == "" || password == "" || name == "" {
		return nil, fmt.Errorf("%w: email, password and name are required", model.ErrInvalidInput)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	a := &model.Account{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
		Points:       0,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.db.CreateAccount(ctx, a); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return nil, model.ErrEmailTaken
		}
		return nil, err
	}
	return a, nil
}

// SignIn returns a signed token naming the account, or
// ErrInvalidCredentials without distinguishing bad email from bad password.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (string, error) {
	a, err := s.db.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", model.ErrInvalidCredentials
		}
		return "", err
	}
	if bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)) != nil {
		return "", model.ErrInvalidCredentials
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   a.ID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify parses a bearer token and returns the account id it names.
func (s *AuthService) Verify(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return "", model.ErrInvalidCredentials
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", model.ErrInvalidCredentials
	}
	return claims.Subject, nil
}
