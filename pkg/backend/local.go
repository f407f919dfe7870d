package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/rentease/admin/pkg/models"
)

// CredentialsTable stores email and password hashes for LocalAuthenticator.
const CredentialsTable = "admin_credentials"

// LocalAuthenticator keeps bcrypt credentials in a DataStore table. It is
// used with stores that have no built-in authentication.
type LocalAuthenticator struct {
	store DataStore
	cost  int
}

func NewLocalAuthenticator(store DataStore) *LocalAuthenticator {
	return &LocalAuthenticator{store: store, cost: bcrypt.DefaultCost}
}

// WithCost sets the bcrypt cost; tests use bcrypt.MinCost.
func (a *LocalAuthenticator) WithCost(cost int) *LocalAuthenticator {
	a.cost = cost
	return a
}

func (a *LocalAuthenticator) SignIn(ctx context.Context, email, password string) (models.User, error) {
	email = normalizeEmail(email)
	row, err := a.find(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return models.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return models.User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(row.Text("password_hash")), []byte(password)); err != nil {
		return models.User{}, ErrInvalidCredentials
	}
	return models.User{ID: row.ID(), Email: email}, nil
}

func (a *LocalAuthenticator) SignUp(ctx context.Context, email, password string) (models.User, error) {
	email = normalizeEmail(email)
	if _, err := a.find(ctx, email); err == nil {
		return models.User{}, ErrEmailTaken
	} else if !errors.Is(err, ErrNotFound) {
		return models.User{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.cost)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}
	rows, err := a.store.Insert(ctx, CredentialsTable, []map[string]any{{
		"email":         email,
		"password_hash": string(hash),
	}})
	if err != nil {
		return models.User{}, fmt.Errorf("store credentials: %w", err)
	}
	return models.User{ID: rows[0].ID(), Email: email}, nil
}

func (a *LocalAuthenticator) find(ctx context.Context, email string) (models.Record, error) {
	rows, err := a.store.Select(ctx, CredentialsTable, Query{Where: map[string]any{"email": email}})
	if err != nil {
		return nil, fmt.Errorf("lookup credentials: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return rows[0], nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
