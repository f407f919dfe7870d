package dashboard

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/rentease/admin/pkg/auth"
	"github.com/rentease/admin/pkg/backend"
	"github.com/rentease/admin/pkg/metrics"
)

// Registry maps session tokens to workspaces.
type Registry struct {
	ds      backend.DataStore
	metrics *metrics.Metrics
	log     zerolog.Logger

	mu         sync.Mutex
	workspaces map[string]*Workspace
}

func NewRegistry(ds backend.DataStore, log zerolog.Logger, m *metrics.Metrics) *Registry {
	return &Registry{
		ds:         ds,
		metrics:    m,
		log:        log.With().Str("component", "dashboard").Logger(),
		workspaces: make(map[string]*Workspace),
	}
}

// Workspace returns the session's workspace, creating it on first use.
func (r *Registry) Workspace(token string) *Workspace {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.workspaces[token]
	if !ok {
		w = newWorkspace(token, r.ds, r.metrics)
		r.workspaces[token] = w
		r.metrics.SetWorkspaces(len(r.workspaces))
	}
	return w
}

func (r *Registry) Lookup(token string) (*Workspace, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.workspaces[token]
	return w, ok
}

// Drop discards the session's workspace and cancels its pending work.
func (r *Registry) Drop(token string) bool {
	r.mu.Lock()
	w, ok := r.workspaces[token]
	delete(r.workspaces, token)
	r.metrics.SetWorkspaces(len(r.workspaces))
	r.mu.Unlock()
	if ok {
		w.close()
	}
	return ok
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.workspaces)
}

// Tokens lists the sessions that currently own a workspace.
func (r *Registry) Tokens() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.workspaces))
	for t := range r.workspaces {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Watch drops workspaces as their sessions end. It returns when events is
// closed or ctx is done.
func (r *Registry) Watch(ctx context.Context, events <-chan auth.SessionEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if r.Drop(ev.Token) {
				r.log.Info().Str("user_id", ev.UserID).Str("kind", string(ev.Kind)).Msg("session ended, workspace dropped")
			}
		}
	}
}

// Sweep asks alive about every workspace and drops those whose session is
// gone. It returns the number dropped.
func (r *Registry) Sweep(ctx context.Context, alive func(ctx context.Context, token string) bool) int {
	var n int
	for _, t := range r.Tokens() {
		if ctx.Err() != nil {
			break
		}
		if !alive(ctx, t) && r.Drop(t) {
			n++
		}
	}
	return n
}

// Close drops every workspace.
func (r *Registry) Close() {
	for _, t := range r.Tokens() {
		r.Drop(t)
	}
}
