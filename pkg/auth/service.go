package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rentease/admin/pkg/backend"
	"github.com/rentease/admin/pkg/models"
	"github.com/rs/zerolog"
)

type Options struct {
	Authenticator backend.Authenticator
	// Store holds the admins table consulted on login.
	Store    backend.DataStore
	Registry Registry
	TTL      time.Duration
	Logger   zerolog.Logger
}

// Service implements admin sign-in, sign-up and sign-out.
type Service struct {
	authn    backend.Authenticator
	store    backend.DataStore
	registry Registry
	ttl      time.Duration
	log      zerolog.Logger
}

func NewService(opts Options) *Service {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		authn:    opts.Authenticator,
		store:    opts.Store,
		registry: opts.Registry,
		ttl:      ttl,
		log:      opts.Logger.With().Str("component", "auth").Logger(),
	}
}

// Login verifies the credentials and requires an admins row for the user
// before issuing a session. Credential errors wrap
// backend.ErrInvalidCredentials; a non-admin gets ErrNotAdmin.
func (s *Service) Login(ctx context.Context, email, password string) (models.Session, error) {
	user, err := s.authn.SignIn(ctx, strings.TrimSpace(email), password)
	if err != nil {
		return models.Session{}, err
	}
	ok, err := s.IsAdmin(ctx, user.ID)
	if err != nil {
		return models.Session{}, fmt.Errorf("check admin: %w", err)
	}
	if !ok {
		s.log.Warn().Str("user_id", user.ID).Msg("login rejected: not an admin")
		return models.Session{}, ErrNotAdmin
	}
	sess, err := s.registry.Create(ctx, user, s.ttl)
	if err != nil {
		return models.Session{}, fmt.Errorf("create session: %w", err)
	}
	s.log.Info().Str("user_id", user.ID).Msg("admin signed in")
	return sess, nil
}

// IsAdmin reports whether userID has a row in the admins table.
func (s *Service) IsAdmin(ctx context.Context, userID string) (bool, error) {
	rows, err := s.store.Select(ctx, models.TableAdmins, backend.Query{
		Columns: []string{"id"},
		Where:   map[string]any{"id": userID},
	})
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

// SignUp registers credentials without opening a session.
func (s *Service) SignUp(ctx context.Context, email, password string) (models.User, error) {
	return s.authn.SignUp(ctx, strings.TrimSpace(email), password)
}

func (s *Service) SignOut(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.registry.Revoke(ctx, token)
}

func (s *Service) GetSession(ctx context.Context, token string) (models.Session, error) {
	if token == "" {
		return models.Session{}, ErrNoSession
	}
	sess, err := s.registry.Get(ctx, token)
	if err != nil && !errors.Is(err, ErrNoSession) {
		return models.Session{}, fmt.Errorf("get session: %w", err)
	}
	return sess, err
}

func (s *Service) Subscribe(ctx context.Context) (<-chan SessionEvent, error) {
	return s.registry.Subscribe(ctx)
}
