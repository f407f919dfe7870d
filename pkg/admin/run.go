package admin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/hlog"

	"github.com/rentease/admin/pkg/auth"
	"github.com/rentease/admin/pkg/blob"
)

// Run starts the background workers and serves the admin API until ctx is
// cancelled.
//
// # API Endpoints
//
// Health and metrics (no session required):
//
//	GET  /health
//	GET  /api/health
//	GET  /metrics
//
// Authentication:
//
//	POST /api/auth/login                          - Sign in as an admin
//	POST /api/auth/logout                         - End the session
//	GET  /api/auth/session                        - Current session
//	GET  /api/auth/events                         - WebSocket of session events
//
// Resources (profiles, products, donations, damage-reports, queries, shared-ownership):
//
//	GET    /api/resources                         - Resource pages and their actions
//	GET    /api/resources/{resource}?q=&status=   - Filtered view
//	POST   /api/resources/{resource}/reload       - Refetch from the backend
//	GET    /api/resources/{resource}/state        - Selection and edit state
//	POST   /api/resources/{resource}/select       - Open the detail view
//	DELETE /api/resources/{resource}/select
//	POST   /api/resources/{resource}/image        - Open an image preview
//	DELETE /api/resources/{resource}/image
//	POST   /api/resources/{resource}/edit         - Start editing a record
//	PATCH  /api/resources/{resource}/edit         - Change buffered fields
//	POST   /api/resources/{resource}/edit/save
//	DELETE /api/resources/{resource}/edit
//	POST   /api/resources/{resource}/records/{id}/approve
//	POST   /api/resources/{resource}/records/{id}/reject
//	POST   /api/resources/{resource}/records/{id}/resolve
//	DELETE /api/resources/{resource}/records/{id}
//
// Admin:
//
//	GET  /api/dashboard/stats
//	GET  /api/profile
//	PUT  /api/profile
//	POST /api/profile/picture
//	POST /api/admins
//	POST /api/chatbot
//
// On cancellation the server drains for Server.ShutdownTimeout.
func (a *App) Run(ctx context.Context, cmd *RunCommand) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := a.Start(ctx); err != nil {
		return err
	}

	server := &http.Server{
		Addr:              a.config.Server.Addr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.log.Info().
		Str("addr", server.Addr).
		Str("backend", a.config.Backend.Driver).
		Str("sessions", a.config.Auth.Registry).
		Str("blob", string(a.config.Blob.Driver)).
		Msg("starting rentease-admin server")

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.config.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-serverErr:
		return err
	}
}

// Start launches the side-effect workers, the session watcher and the
// workspace sweeper. They stop with ctx.
func (a *App) Start(ctx context.Context) error {
	a.queue.Start()

	events, err := a.auth.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribe to session events: %w", err)
	}
	go a.dashboards.Watch(ctx, events)

	if interval := a.config.Auth.SweepInterval; interval > 0 {
		go a.sweep(ctx, interval)
	}
	return nil
}

func (a *App) sweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n := a.dashboards.Sweep(ctx, a.sessionAlive)
			if n > 0 {
				a.log.Info().Int("dropped", n).Msg("swept workspaces of ended sessions")
			}
		}
	}
}

// sessionAlive keeps a workspace when the registry cannot be reached.
func (a *App) sessionAlive(ctx context.Context, token string) bool {
	_, err := a.auth.GetSession(ctx, token)
	if errors.Is(err, auth.ErrNoSession) {
		return false
	}
	if err != nil {
		a.log.Warn().Err(err).Msg("session check failed during sweep")
	}
	return true
}

// Handler builds the HTTP handler serving the admin API.
func (a *App) Handler() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/health", a.handleHealth).Methods("GET")
	router.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})).Methods("GET")
	if fs, ok := a.blobs.(*blob.Filesystem); ok {
		router.PathPrefix(blob.FilesPrefix).Handler(fs.Handler()).Methods("GET", "HEAD")
	}

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", a.handleHealth).Methods("GET")
	api.HandleFunc("/auth/login", a.handleLogin).Methods("POST")

	// Everything below requires a live admin session.
	gated := api.NewRoute().Subrouter()
	gated.Use(a.auth.Gate)

	gated.HandleFunc("/auth/logout", a.handleLogout).Methods("POST")
	gated.HandleFunc("/auth/session", a.handleSession).Methods("GET")
	gated.Handle("/auth/events", a.auth.EventsHandler()).Methods("GET")

	gated.HandleFunc("/dashboard/stats", a.handleStats).Methods("GET")

	gated.HandleFunc("/resources", a.handleListResources).Methods("GET")
	res := gated.PathPrefix("/resources/{resource}").Subrouter()
	res.HandleFunc("", a.handleListResource).Methods("GET")
	res.HandleFunc("/reload", a.handleReloadResource).Methods("POST")
	res.HandleFunc("/state", a.handleSelectionState).Methods("GET")
	res.HandleFunc("/select", a.handleSelect).Methods("POST")
	res.HandleFunc("/select", a.handleCloseDetail).Methods("DELETE")
	res.HandleFunc("/image", a.handleOpenImage).Methods("POST")
	res.HandleFunc("/image", a.handleCloseImage).Methods("DELETE")
	res.HandleFunc("/edit", a.handleEdit).Methods("POST")
	res.HandleFunc("/edit", a.handleSetFields).Methods("PATCH")
	res.HandleFunc("/edit/save", a.handleSave).Methods("POST")
	res.HandleFunc("/edit", a.handleCancelEdit).Methods("DELETE")
	res.HandleFunc("/records/{id}/approve", a.handleApprove).Methods("POST")
	res.HandleFunc("/records/{id}/reject", a.handleReject).Methods("POST")
	res.HandleFunc("/records/{id}/resolve", a.handleResolve).Methods("POST")
	res.HandleFunc("/records/{id}", a.handleDeleteRecord).Methods("DELETE")

	gated.HandleFunc("/profile", a.handleGetProfile).Methods("GET")
	gated.HandleFunc("/profile", a.handleUpdateProfile).Methods("PUT")
	gated.HandleFunc("/profile/picture", a.handleUploadPicture).Methods("POST")
	gated.HandleFunc("/admins", a.handleCreateAdmin).Methods("POST")
	gated.HandleFunc("/chatbot", a.handleChatbot).Methods("POST")

	var h http.Handler = router
	h = hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		a.metrics.ObserveRequest(r.Method, status, duration.Seconds())
		hlog.FromRequest(r).Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	})(h)
	h = hlog.RequestIDHandler("request_id", "X-Request-Id")(h)
	h = hlog.NewHandler(a.log)(h)
	return h
}
