package admin

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"

	"github.com/rentease/admin/pkg/auth"
	"github.com/rentease/admin/pkg/backend"
	"github.com/rentease/admin/pkg/backend/memory"
	"github.com/rentease/admin/pkg/backend/postgres"
	"github.com/rentease/admin/pkg/backend/sqlite"
	"github.com/rentease/admin/pkg/backend/surrealdb"
	"github.com/rentease/admin/pkg/blob"
	"github.com/rentease/admin/pkg/chatbot"
	"github.com/rentease/admin/pkg/dashboard"
	"github.com/rentease/admin/pkg/dispatch"
	"github.com/rentease/admin/pkg/logger"
	"github.com/rentease/admin/pkg/metrics"
	"github.com/rentease/admin/pkg/push"
	"github.com/rentease/admin/pkg/tasks"
)

// App holds the application state shared by every command.
type App struct {
	config  *Config
	logData *logger.LogData
	log     zerolog.Logger

	store    backend.DataStore
	sessions auth.Registry
	auth     *auth.Service

	blobs      blob.Store
	queue      *tasks.Queue
	dispatcher *dispatch.Dispatcher
	dashboards *dashboard.Registry
	chatbot    *chatbot.Client

	registry *prometheus.Registry
	metrics  *metrics.Metrics
	validate *validator.Validate
	now      func() time.Time
}

// Option adjusts an App before its dependencies are opened.
type Option func(*appOptions)

type appOptions struct {
	store    backend.DataStore
	authn    backend.Authenticator
	sessions auth.Registry
	blobs    blob.Store
	logW     io.Writer
}

// WithStore uses ds instead of the configured backend. The local
// credentials authenticator is used unless WithAuthenticator is given too.
func WithStore(ds backend.DataStore) Option {
	return func(o *appOptions) { o.store = ds }
}

func WithAuthenticator(a backend.Authenticator) Option {
	return func(o *appOptions) { o.authn = a }
}

func WithSessionRegistry(r auth.Registry) Option {
	return func(o *appOptions) { o.sessions = r }
}

func WithBlobStore(s blob.Store) Option {
	return func(o *appOptions) { o.blobs = s }
}

// WithLogWriter sends logs to w.
func WithLogWriter(w io.Writer) Option {
	return func(o *appOptions) { o.logW = w }
}

// New creates an application instance, connecting to the configured
// backend, session registry and object storage.
func New(ctx context.Context, config *Config, opts ...Option) (app *App, err error) {
	var o appOptions
	for _, opt := range opts {
		opt(&o)
	}

	build := logger.New().
		FromPath(config.Log.File).
		WithLevel(config.Log.Level).
		Console(config.Log.Console).
		Service("rentease-admin")
	if o.logW != nil {
		build = build.FromWriter(o.logW)
	}
	logData, err := build.Make()
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}

	app = &App{
		config:   config,
		logData:  logData,
		log:      logData.Logger,
		registry: prometheus.NewRegistry(),
		validate: validator.New(),
		now:      time.Now,
	}
	defer func() {
		if err != nil {
			err = multierr.Append(err, app.Close())
			app = nil
		}
	}()

	app.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	app.metrics = metrics.New(app.registry)

	authn := o.authn
	if o.store != nil {
		app.store = o.store
	} else {
		var storeAuthn backend.Authenticator
		app.store, storeAuthn, err = openBackend(ctx, config.Backend)
		if err != nil {
			return nil, err
		}
		if authn == nil {
			authn = storeAuthn
		}
	}
	if authn == nil {
		authn = backend.NewLocalAuthenticator(app.store)
	}
	app.log.Info().Str("backend", config.Backend.Driver).Msg("connected to backend")

	app.sessions = o.sessions
	if app.sessions == nil {
		if app.sessions, err = openSessions(ctx, config.Auth); err != nil {
			return nil, err
		}
	}
	app.auth = auth.NewService(auth.Options{
		Authenticator: authn,
		Store:         app.store,
		Registry:      app.sessions,
		TTL:           config.Auth.SessionTTL,
		Logger:        app.log,
	})

	app.blobs = o.blobs
	if app.blobs == nil {
		if app.blobs, err = blob.Open(ctx, config.Blob); err != nil {
			return nil, fmt.Errorf("open blob store: %w", err)
		}
	}

	var sender push.Sender = push.Discard{}
	if config.Push.URL != "" {
		sender = push.New(config.Push.URL)
	}
	app.queue = tasks.New(tasks.Options{
		Workers:     config.Tasks.Workers,
		Buffer:      config.Tasks.Buffer,
		TaskTimeout: config.Tasks.Timeout,
		Logger:      app.log.With().Str("component", "tasks").Logger(),
		Metrics:     app.metrics,
	})
	app.dispatcher = dispatch.New(dispatch.Options{
		Store:   app.store,
		Queue:   app.queue,
		Push:    sender,
		Metrics: app.metrics,
		Logger:  app.log,
	})
	app.dashboards = dashboard.NewRegistry(app.store, app.log, app.metrics)
	app.chatbot = chatbot.New(config.Chatbot.URL)
	return app, nil
}

func openBackend(ctx context.Context, cfg BackendConfig) (backend.DataStore, backend.Authenticator, error) {
	switch cfg.Driver {
	case "memory", "":
		if cfg.Seed == "" {
			return memory.New(), nil, nil
		}
		s, err := memory.OpenSeedFile(cfg.Seed)
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil
	case "sqlite":
		s, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open SQLite: %w", err)
		}
		return s, nil, nil
	case "postgres":
		s, err := postgres.New(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		return s, nil, nil
	case "surrealdb":
		s, err := surrealdb.Open(ctx, cfg.SurrealDB)
		if err != nil {
			return nil, nil, err
		}
		return s, surrealdb.NewAuthenticator(cfg.SurrealDB), nil
	default:
		return nil, nil, fmt.Errorf("unknown backend driver %q", cfg.Driver)
	}
}

func openSessions(ctx context.Context, cfg AuthConfig) (auth.Registry, error) {
	switch cfg.Registry {
	case "redis":
		return auth.NewRedisRegistry(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	default:
		return auth.NewMemoryRegistry(), nil
	}
}

// Close releases every resource the application holds.
func (a *App) Close() error {
	var err error
	if a.queue != nil {
		ctx, cancel := context.WithTimeout(context.Background(), a.config.Server.ShutdownTimeout+time.Second)
		err = multierr.Append(err, a.queue.Stop(ctx))
		cancel()
	}
	if a.dashboards != nil {
		a.dashboards.Close()
	}
	if a.sessions != nil {
		err = multierr.Append(err, a.sessions.Close())
	}
	if a.store != nil {
		err = multierr.Append(err, a.store.Close())
	}
	if a.logData != nil {
		err = multierr.Append(err, a.logData.Close())
	}
	return err
}

// Store returns the backend data store (useful for testing).
func (a *App) Store() backend.DataStore {
	return a.store
}

// Queue returns the side-effect queue (useful for testing).
func (a *App) Queue() *tasks.Queue {
	return a.queue
}
