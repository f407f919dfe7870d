package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rentease/admin/pkg/backend"
	"github.com/rentease/admin/pkg/metrics"
	"github.com/rentease/admin/pkg/models"
)

var (
	ErrUnknownResource = errors.New("unknown resource")
	ErrClosed          = errors.New("workspace closed")
)

// Workspace is the dashboard state of one session.
type Workspace struct {
	Token     string
	CreatedAt time.Time

	ctx    context.Context
	cancel context.CancelCauseFunc

	ds      backend.DataStore
	metrics *metrics.Metrics

	mu    sync.Mutex
	pages map[string]*Page
}

func newWorkspace(token string, ds backend.DataStore, m *metrics.Metrics) *Workspace {
	ctx, cancel := context.WithCancelCause(context.Background())
	return &Workspace{
		Token:     token,
		CreatedAt: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
		ds:        ds,
		metrics:   m,
		pages:     make(map[string]*Page),
	}
}

// Alive reports whether the workspace has not been dropped.
func (w *Workspace) Alive() bool {
	return w.ctx.Err() == nil
}

// Scope derives a context from parent that is also cancelled when the
// workspace is dropped.
func (w *Workspace) Scope(parent context.Context) (context.Context, context.CancelFunc) {
	return scope(w.ctx, parent)
}

// scope derives a context from parent that is cancelled with cause
// ErrClosed once life is done. If life is already done the returned context
// is cancelled before scope returns.
func scope(life, parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(parent)
	if life.Err() != nil {
		cancel(ErrClosed)
		return ctx, func() {}
	}
	stop := context.AfterFunc(life, func() { cancel(ErrClosed) })
	return ctx, func() {
		stop()
		cancel(context.Canceled)
	}
}

// Closed reports err as ErrClosed when ctx was cancelled because its
// workspace was dropped, and returns err unchanged otherwise.
func Closed(ctx context.Context, err error) error {
	if err == nil || errors.Is(err, ErrClosed) || !errors.Is(context.Cause(ctx), ErrClosed) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrClosed, err)
}

// Page mounts the named resource page, fetching its collection the first
// time. A failed fetch leaves the page mounted and empty; the error is
// returned and the next call fetches again.
func (w *Workspace) Page(ctx context.Context, name string) (*Page, error) {
	p, err := w.mount(name)
	if err != nil {
		return nil, err
	}
	ctx, cancel := w.Scope(ctx)
	defer cancel()
	if err := p.ensureLoaded(ctx); err != nil {
		return p, Closed(ctx, err)
	}
	return p, nil
}

// Mounted returns the page if it was already mounted.
func (w *Workspace) Mounted(name string) (*Page, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	p, ok := w.pages[name]
	return p, ok
}

func (w *Workspace) mount(name string) (*Page, error) {
	res, ok := models.LookupResource(name)
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrUnknownResource)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.Alive() {
		return nil, ErrClosed
	}
	p, ok := w.pages[name]
	if !ok {
		p = NewPage(w.ctx, res, w.ds, w.metrics)
		w.pages[name] = p
	}
	return p, nil
}

func (w *Workspace) close() {
	w.cancel(ErrClosed)
	w.mu.Lock()
	w.pages = make(map[string]*Page)
	w.mu.Unlock()
}
