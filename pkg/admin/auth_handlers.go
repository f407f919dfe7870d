package admin

import (
	"net/http"
	"time"

	"github.com/rs/zerolog/hlog"

	"github.com/rentease/admin/pkg/auth"
)

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// handleLogin signs an admin in. The token is returned in the body and set
// as the session cookie.
func (a *App) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !a.decode(w, r, &req) {
		return
	}
	sess, err := a.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		hlog.FromRequest(r).Info().Err(err).Msg("login failed")
		respondErr(w, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	respondJSON(w, http.StatusOK, sess)
}

// handleLogout revokes the session and drops its workspace.
func (a *App) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := auth.TokenFromRequest(r)
	if err := a.auth.SignOut(r.Context(), token); err != nil {
		respondErr(w, r, err)
		return
	}
	a.dashboards.Drop(token)
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
	})
	respondJSON(w, http.StatusOK, map[string]string{"status": "signed out"})
}

func (a *App) handleSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := auth.SessionFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	respondJSON(w, http.StatusOK, sess)
}
