// Package dispatch applies moderation actions to the data store and
// reconciles the affected page without refetching it.
//
// Every action issues exactly one remote call, scoped to the page's
// workspace: dropping the workspace cancels the call and the action fails
// with dashboard.ErrClosed. On success the page's collection is patched in
// place; on failure the page is left untouched and the error is returned.
// Approve and reject additionally queue owner notifications, which never
// affect the outcome of the action.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rentease/admin/pkg/backend"
	"github.com/rentease/admin/pkg/dashboard"
	"github.com/rentease/admin/pkg/metrics"
	"github.com/rentease/admin/pkg/models"
	"github.com/rentease/admin/pkg/push"
	"github.com/rentease/admin/pkg/selection"
	"github.com/rentease/admin/pkg/tasks"
)

var ErrUnsupported = errors.New("action not supported by resource")

type Options struct {
	Store   backend.DataStore
	Queue   *tasks.Queue
	Push    push.Sender
	Metrics *metrics.Metrics
	Logger  zerolog.Logger
}

type Dispatcher struct {
	ds      backend.DataStore
	queue   *tasks.Queue
	push    push.Sender
	metrics *metrics.Metrics
	log     zerolog.Logger
	now     func() time.Time
}

func New(opts Options) *Dispatcher {
	p := opts.Push
	if p == nil {
		p = push.Discard{}
	}
	return &Dispatcher{
		ds:      opts.Store,
		queue:   opts.Queue,
		push:    p,
		metrics: opts.Metrics,
		log:     opts.Logger.With().Str("component", "dispatch").Logger(),
		now:     time.Now,
	}
}

// Approve marks a product or donation as approved and notifies its owners.
func (d *Dispatcher) Approve(ctx context.Context, p *dashboard.Page, id string) error {
	return d.decide(ctx, p, id, true)
}

// Reject marks a product or donation as not approved and notifies its owners.
func (d *Dispatcher) Reject(ctx context.Context, p *dashboard.Page, id string) error {
	return d.decide(ctx, p, id, false)
}

func (d *Dispatcher) decide(ctx context.Context, p *dashboard.Page, id string, approved bool) error {
	action, value := models.ActionApprove, models.ApprovedYes
	if !approved {
		action, value = models.ActionReject, models.ApprovedNo
	}
	// The record as shown before the change carries the owner profiles.
	before, known := p.Store().Get(id)

	fields := map[string]any{"approved": value}
	if err := d.update(ctx, p, action, id, fields); err != nil {
		return err
	}
	if known && p.Resource.Notice != nil {
		d.notify(p.Resource, before, approved)
	}
	return nil
}

// Resolve marks a damage report or query as resolved.
func (d *Dispatcher) Resolve(ctx context.Context, p *dashboard.Page, id string) error {
	return d.update(ctx, p, models.ActionResolve, id, map[string]any{"status": models.StatusResolved})
}

// Delete removes the record remotely and then from the page. An id unknown
// to the page is still deleted remotely.
func (d *Dispatcher) Delete(ctx context.Context, p *dashboard.Page, id string) error {
	res := p.Resource
	if !res.Can(models.ActionDelete) {
		return d.unsupported(res, models.ActionDelete)
	}
	ctx, cancel := p.Scope(ctx)
	defer cancel()
	err := dashboard.Closed(ctx, d.ds.Delete(ctx, res.Table, id))
	d.metrics.ObserveMutation(res.Name, models.ActionDelete.String(), err)
	if err != nil {
		d.log.Error().Err(err).Str("resource", res.Name).Str("id", id).Msg("delete failed")
		return fmt.Errorf("delete %s %s: %w", res.Name, id, err)
	}
	if p.Alive() {
		p.Store().Remove(id)
	}
	return nil
}

// Save writes the page's edit buffer. On success the edit closes; on
// failure the page stays in editing with the buffer intact.
func (d *Dispatcher) Save(ctx context.Context, p *dashboard.Page) (string, error) {
	if !p.Resource.Can(models.ActionEdit) {
		return "", d.unsupported(p.Resource, models.ActionEdit)
	}
	var (
		id     string
		fields map[string]any
	)
	err := p.Selection(func(m *selection.Machine) error {
		var err error
		id, fields, err = m.Commit()
		return err
	})
	if err != nil {
		return "", err
	}
	if err := d.update(ctx, p, models.ActionEdit, id, fields); err != nil {
		return id, err
	}
	_ = p.Selection(func(m *selection.Machine) error {
		m.Saved(id)
		return nil
	})
	return id, nil
}

func (d *Dispatcher) update(ctx context.Context, p *dashboard.Page, action models.Action, id string, fields map[string]any) error {
	res := p.Resource
	if !res.Can(action) {
		return d.unsupported(res, action)
	}
	// A workspace dropped while the call is in flight cancels it.
	ctx, cancel := p.Scope(ctx)
	defer cancel()
	err := dashboard.Closed(ctx, d.ds.Update(ctx, res.Table, id, fields))
	d.metrics.ObserveMutation(res.Name, action.String(), err)
	if err != nil {
		d.log.Error().Err(err).
			Str("resource", res.Name).
			Str("action", action.String()).
			Str("id", id).
			Msg("mutation failed")
		return fmt.Errorf("%s %s %s: %w", action, res.Name, id, err)
	}
	// The workspace may have been dropped after the store committed.
	if p.Alive() {
		p.Store().ApplyPatch(id, fields)
	}
	return nil
}

func (d *Dispatcher) unsupported(res models.Resource, action models.Action) error {
	return fmt.Errorf("%s on %s: %w", action, res.Name, ErrUnsupported)
}
