package admin

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/hlog"

	"github.com/rentease/admin/pkg/analytics"
	"github.com/rentease/admin/pkg/auth"
	"github.com/rentease/admin/pkg/backend"
	"github.com/rentease/admin/pkg/chatbot"
	"github.com/rentease/admin/pkg/dashboard"
	"github.com/rentease/admin/pkg/dispatch"
	"github.com/rentease/admin/pkg/selection"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// statusOf maps domain errors to HTTP status codes. Anything unrecognised
// came from a remote call.
func statusOf(err error) int {
	var verr validator.ValidationErrors
	switch {
	case errors.As(err, &verr),
		errors.Is(err, selection.ErrNotEditable),
		errors.Is(err, ErrFullNameRequired),
		errors.Is(err, ErrPasswordMismatch):
		return http.StatusBadRequest
	case errors.Is(err, backend.ErrInvalidCredentials),
		errors.Is(err, auth.ErrNoSession):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrNotAdmin):
		return http.StatusForbidden
	case errors.Is(err, dashboard.ErrUnknownResource),
		errors.Is(err, selection.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, dispatch.ErrUnsupported):
		return http.StatusMethodNotAllowed
	case errors.Is(err, selection.ErrInvalidTransition),
		errors.Is(err, backend.ErrEmailTaken):
		return http.StatusConflict
	case errors.Is(err, dashboard.ErrClosed):
		return http.StatusGone
	default:
		return http.StatusBadGateway
	}
}

// respondErr logs remote failures and writes err with its mapped status.
func respondErr(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		hlog.FromRequest(r).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	respondError(w, status, err.Error())
}

// decode reads a JSON body into v and validates it.
func (a *App) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return false
	}
	if _, isMap := v.(*map[string]any); isMap {
		return true
	}
	if err := a.validate.Struct(v); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":     "healthy",
		"backend":    a.config.Backend.Driver,
		"sessions":   a.config.Auth.Registry,
		"workspaces": a.dashboards.Len(),
	})
}

func (a *App) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := analytics.Collect(r.Context(), a.store)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

type chatRequest struct {
	Message string `json:"message" validate:"required"`
}

// handleChatbot relays one message. An unreachable chatbot still answers
// 200 with the fallback text.
func (a *App) handleChatbot(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !a.decode(w, r, &req) {
		return
	}
	answer, err := a.chatbot.Ask(r.Context(), req.Message)
	if err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("chatbot unavailable")
		answer = chatbot.FallbackAnswer
	}
	respondJSON(w, http.StatusOK, map[string]string{"answer": answer})
}

func (a *App) handleCreateAdmin(w http.ResponseWriter, r *http.Request) {
	var req CreateAdminRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	admin, err := a.CreateAdmin(r.Context(), req)
	if err != nil {
		var recErr *AdminRecordError
		if errors.As(err, &recErr) {
			hlog.FromRequest(r).Error().Err(err).Msg("admin record not created")
			respondError(w, http.StatusBadGateway, err.Error())
			return
		}
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"message": "Admin created successfully!",
		"admin":   admin,
	})
}
