// Package auth issues admin sessions and guards the API with them.
//
// A Registry stores sessions and publishes a SessionEvent whenever one ends,
// so that every server instance can tear down the state it holds for that
// session. Service layers the admin login rules on top of a
// backend.Authenticator, and Gate is the HTTP middleware that resolves the
// caller's session.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/rentease/admin/pkg/models"
)

var (
	ErrNoSession = errors.New("no active session")
	ErrNotAdmin  = errors.New("Access denied. You are not authorized as an admin.")
)

const DefaultTTL = 12 * time.Hour

type EventKind string

const (
	EventRevoked EventKind = "revoked"
	EventExpired EventKind = "expired"
)

// SessionEvent announces the end of a session.
type SessionEvent struct {
	Token  string    `json:"token"`
	UserID string    `json:"user_id,omitempty"`
	Kind   EventKind `json:"kind"`
}

// Registry stores sessions by token.
type Registry interface {
	Create(ctx context.Context, user models.User, ttl time.Duration) (models.Session, error)
	// Get returns ErrNoSession for unknown or expired tokens. Finding an
	// expired session removes it and publishes EventExpired.
	Get(ctx context.Context, token string) (models.Session, error)
	// Revoke ends the session and publishes EventRevoked. Revoking an unknown
	// token is a no-op.
	Revoke(ctx context.Context, token string) error
	// Subscribe delivers session events until ctx is done, then closes the
	// channel.
	Subscribe(ctx context.Context) (<-chan SessionEvent, error)
	Close() error
}

// generateToken returns 32 random bytes, hex encoded.
func generateToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

func newSession(user models.User, ttl time.Duration, now time.Time) (models.Session, error) {
	token, err := generateToken()
	if err != nil {
		return models.Session{}, err
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return models.Session{Token: token, User: user, ExpiresAt: now.Add(ttl)}, nil
}
