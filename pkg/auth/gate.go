package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rentease/admin/pkg/models"
	"github.com/rs/zerolog/hlog"
)

const (
	CookieName = "rentease_session"
	LoginPath  = "/login"
)

type sessionKey struct{}

func WithSession(ctx context.Context, s models.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFromContext returns the session stored by Gate.
func SessionFromContext(ctx context.Context) (models.Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(models.Session)
	return s, ok
}

// TokenFromRequest reads the bearer token, falling back to the session cookie.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		const bearerPrefix = "Bearer "
		if len(h) > len(bearerPrefix) && strings.EqualFold(h[:len(bearerPrefix)], bearerPrefix) {
			return h[len(bearerPrefix):]
		}
		return h
	}
	if c, err := r.Cookie(CookieName); err == nil {
		return c.Value
	}
	return ""
}

// Gate admits requests carrying a live session. Other API requests get 401;
// browser navigations are redirected to the login page.
func (s *Service) Gate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.GetSession(r.Context(), TokenFromRequest(r))
		if err != nil {
			if !errors.Is(err, ErrNoSession) {
				hlog.FromRequest(r).Error().Err(err).Msg("session lookup failed")
			}
			if wantsHTML(r) {
				http.Redirect(w, r, LoginPath, http.StatusFound)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
	})
}

func wantsHTML(r *http.Request) bool {
	return r.Method == http.MethodGet && strings.Contains(r.Header.Get("Accept"), "text/html")
}
