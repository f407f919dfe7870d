// Package dashboard holds the per-session state of the admin dashboard.
//
// Each signed-in session owns a Workspace. A Workspace mounts one Page per
// resource on first access; the Page pairs the resource's list store with
// its selection machine. Dropping a Workspace cancels every load and
// mutation still running on its behalf.
package dashboard

import (
	"context"
	"sync"

	"github.com/rentease/admin/pkg/backend"
	"github.com/rentease/admin/pkg/listview"
	"github.com/rentease/admin/pkg/metrics"
	"github.com/rentease/admin/pkg/models"
	"github.com/rentease/admin/pkg/selection"
)

// Page is the state of one resource page.
type Page struct {
	Resource models.Resource

	store   *listview.Store
	metrics *metrics.Metrics
	life    context.Context

	loadMu sync.Mutex

	mu  sync.Mutex
	sel *selection.Machine
}

// NewPage builds a page whose collection is fetched from ds. The page is
// alive until life is done.
func NewPage(life context.Context, res models.Resource, ds backend.DataStore, m *metrics.Metrics) *Page {
	p := &Page{Resource: res, metrics: m, life: life}
	p.store = listview.NewStore(listview.MatcherFor(res), func(ctx context.Context) ([]models.Record, error) {
		return ds.Select(ctx, res.Table, backend.Query{Joins: res.Joins})
	})
	p.sel = selection.New(p.store.Get, res.EditableFields)
	return p
}

func (p *Page) Store() *listview.Store {
	return p.store
}

// Alive reports whether the owning workspace still exists.
func (p *Page) Alive() bool {
	return p.life.Err() == nil
}

// Scope derives a context from parent that is also cancelled when the
// owning workspace is dropped. Remote calls made on behalf of the page run
// under it.
func (p *Page) Scope(parent context.Context) (context.Context, context.CancelFunc) {
	return scope(p.life, parent)
}

// Load refetches the collection.
func (p *Page) Load(ctx context.Context) error {
	ctx, cancel := p.Scope(ctx)
	defer cancel()

	p.loadMu.Lock()
	defer p.loadMu.Unlock()
	err := p.store.Load(ctx)
	p.metrics.ObserveLoad(p.Resource.Name, err)
	return Closed(ctx, err)
}

// ensureLoaded fetches the collection unless a fetch already succeeded.
func (p *Page) ensureLoaded(ctx context.Context) error {
	p.loadMu.Lock()
	defer p.loadMu.Unlock()
	if p.store.Loaded() {
		return nil
	}
	err := p.store.Load(ctx)
	p.metrics.ObserveLoad(p.Resource.Name, err)
	return err
}

// Selection runs fn with exclusive access to the page's selection machine.
// fn must not block on remote calls.
func (p *Page) Selection(fn func(m *selection.Machine) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return fn(p.sel)
}

func (p *Page) Snapshot() selection.Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sel.Snapshot()
}
