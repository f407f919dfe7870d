package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rentease/admin/pkg/backend"
	"github.com/rentease/admin/pkg/backend/memory"
	"github.com/rentease/admin/pkg/dashboard"
	"github.com/rentease/admin/pkg/listview"
	"github.com/rentease/admin/pkg/models"
	"github.com/rentease/admin/pkg/push"
	"github.com/rentease/admin/pkg/selection"
	"github.com/rentease/admin/pkg/tasks"
)

const seed = `
profiles:
  - {id: p1, name: Ann, expo_push_token: "ExponentPushToken[ann]"}
  - {id: p2, name: Bob, expo_push_token: "ExponentPushToken[bob]"}
  - {id: p3, name: Cid}
product_listings:
  - {id: pr1, name: Drill, category: Tools, approved: "no", owner1: p1, owner2: p2}
  - {id: pr2, name: Ladder, category: Tools, approved: "no", owner1: p3}
donations:
  - {id: dn1, name: Sofa, category: Furniture, approved: "no", profile_id: p2}
damage_reports:
  - {id: d1, title: Leak, status: unresolved}
  - {id: d2, title: Crack, status: resolved}
queries:
  - {id: q1, title: Refund, status: unresolved}
`

type flakyStore struct {
	backend.DataStore
	failUpdate atomic.Bool
	deletes    atomic.Int32
}

func (f *flakyStore) Update(ctx context.Context, table, id string, fields map[string]any) error {
	if f.failUpdate.Load() {
		return errors.New("backend unavailable")
	}
	return f.DataStore.Update(ctx, table, id, fields)
}

func (f *flakyStore) Delete(ctx context.Context, table, id string) error {
	f.deletes.Add(1)
	return f.DataStore.Delete(ctx, table, id)
}

type pushRecorder struct {
	mu   sync.Mutex
	msgs []push.Message
	srv  *httptest.Server
}

func newPushRecorder(t *testing.T, status int) *pushRecorder {
	r := &pushRecorder{}
	r.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		var m push.Message
		require.NoError(t, json.NewDecoder(req.Body).Decode(&m))
		r.mu.Lock()
		r.msgs = append(r.msgs, m)
		r.mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(r.srv.Close)
	return r
}

func (r *pushRecorder) messages() []push.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]push.Message(nil), r.msgs...)
}

type env struct {
	ds     *flakyStore
	queue  *tasks.Queue
	push   *pushRecorder
	d      *Dispatcher
	cancel context.CancelFunc
	life   context.Context
}

func newEnv(t *testing.T, pushStatus int) *env {
	t.Helper()
	ms, err := memory.NewFromSeed(strings.NewReader(seed))
	require.NoError(t, err)
	ds := &flakyStore{DataStore: ms}
	q := tasks.New(tasks.Options{Workers: 1, Logger: zerolog.Nop()})
	q.Start()
	rec := newPushRecorder(t, pushStatus)
	life, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return &env{
		ds:     ds,
		queue:  q,
		push:   rec,
		d:      New(Options{Store: ds, Queue: q, Push: push.New(rec.srv.URL), Logger: zerolog.Nop()}),
		cancel: cancel,
		life:   life,
	}
}

func (e *env) page(t *testing.T, name string) *dashboard.Page {
	t.Helper()
	res, ok := models.LookupResource(name)
	require.True(t, ok)
	p := dashboard.NewPage(e.life, res, e.ds, nil)
	require.NoError(t, p.Load(context.Background()))
	return p
}

func (e *env) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, e.queue.Stop(ctx))
}

func (e *env) rows(t *testing.T, table string, where map[string]any) []models.Record {
	t.Helper()
	rows, err := e.ds.Select(context.Background(), table, backend.Query{Where: where})
	require.NoError(t, err)
	return rows
}

func TestApproveProduct(t *testing.T) {
	e := newEnv(t, http.StatusOK)
	p := e.page(t, "products")
	ctx := context.Background()

	require.NoError(t, e.d.Approve(ctx, p, "pr1"))

	var matches []models.Record
	for _, r := range p.Store().Collection() {
		if r.ID() == "pr1" {
			matches = append(matches, r)
		}
	}
	require.Len(t, matches, 1)
	assert.Equal(t, "yes", matches[0].Text("approved"))
	assert.Equal(t, "Ann", matches[0].Text("owner1_profile.name"), "embedded owners survive the patch")
	assert.Equal(t, "yes", e.rows(t, models.TableProducts, map[string]any{"id": "pr1"})[0].Text("approved"))

	e.drain(t)

	notes := e.rows(t, models.TableNotifications, nil)
	require.Len(t, notes, 2)
	assert.Equal(t, "p1", notes[0].Text("profile_id"))
	assert.Equal(t, `Your product "Drill" has been approved.`, notes[0].Text("message"))
	assert.Equal(t, "Product Approved", notes[0].Text("title"))
	assert.Equal(t, "approval", notes[0].Text("type"))
	assert.Equal(t, "p2", notes[1].Text("profile_id"))
	assert.Equal(t, `Your shared product "Drill" has been approved.`, notes[1].Text("message"))

	msgs := e.push.messages()
	require.Len(t, msgs, 2)
	tokens := []string{msgs[0].Token, msgs[1].Token}
	assert.ElementsMatch(t, []string{"ExponentPushToken[ann]", "ExponentPushToken[bob]"}, tokens)
	assert.Empty(t, e.queue.Failures())
}

func TestRejectProductWithoutPushToken(t *testing.T) {
	e := newEnv(t, http.StatusOK)
	p := e.page(t, "products")

	require.NoError(t, e.d.Reject(context.Background(), p, "pr2"))
	e.drain(t)

	notes := e.rows(t, models.TableNotifications, nil)
	require.Len(t, notes, 1)
	assert.Equal(t, "rejection", notes[0].Text("type"))
	assert.Equal(t, "Product Rejected", notes[0].Text("title"))
	assert.Equal(t, `Your product "Ladder" has been rejected.`, notes[0].Text("message"))
	assert.Empty(t, e.push.messages())
}

func TestRejectDonationLooksUpToken(t *testing.T) {
	e := newEnv(t, http.StatusOK)
	p := e.page(t, "donations")

	require.NoError(t, e.d.Reject(context.Background(), p, "dn1"))
	rec, ok := p.Store().Get("dn1")
	require.True(t, ok)
	assert.Equal(t, "no", rec.Text("approved"))
	e.drain(t)

	notes := e.rows(t, models.TableNotifications, nil)
	require.Len(t, notes, 1)
	assert.Equal(t, "donation", notes[0].Text("type"))
	assert.Equal(t, "Donation Rejected", notes[0].Text("title"))

	msgs := e.push.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, push.Message{
		Token:   "ExponentPushToken[bob]",
		Title:   "Donation Rejected",
		Message: `Your donation "Sofa" has been rejected.`,
	}, msgs[0])
}

func TestPushFailureDoesNotRollBack(t *testing.T) {
	e := newEnv(t, http.StatusBadGateway)
	p := e.page(t, "products")

	require.NoError(t, e.d.Approve(context.Background(), p, "pr1"))
	e.drain(t)

	rec, _ := p.Store().Get("pr1")
	assert.Equal(t, "yes", rec.Text("approved"))
	failures := e.queue.Failures()
	require.Len(t, failures, 2)
	assert.Equal(t, "push:products", failures[0].Task)
}

func TestMutationFailureLeavesState(t *testing.T) {
	e := newEnv(t, http.StatusOK)
	p := e.page(t, "products")
	before := p.Store().Collection()

	e.ds.failUpdate.Store(true)
	err := e.d.Approve(context.Background(), p, "pr1")
	require.ErrorContains(t, err, "backend unavailable")

	assert.Equal(t, before, p.Store().Collection())
	e.drain(t)
	assert.Empty(t, e.rows(t, models.TableNotifications, nil))
	assert.Empty(t, e.push.messages())
}

func TestUnsupportedAction(t *testing.T) {
	e := newEnv(t, http.StatusOK)
	reports := e.page(t, "damage-reports")
	products := e.page(t, "products")
	ctx := context.Background()

	assert.ErrorIs(t, e.d.Approve(ctx, reports, "d1"), ErrUnsupported)
	assert.ErrorIs(t, e.d.Delete(ctx, reports, "d1"), ErrUnsupported)
	assert.ErrorIs(t, e.d.Resolve(ctx, products, "pr1"), ErrUnsupported)
	_, err := e.d.Save(ctx, reports)
	assert.ErrorIs(t, err, ErrUnsupported)
	assert.Equal(t, int32(0), e.ds.deletes.Load())
}

func TestResolve(t *testing.T) {
	e := newEnv(t, http.StatusOK)
	p := e.page(t, "damage-reports")

	p.Store().Filter("", listview.StatusUnresolved)
	require.Len(t, p.Store().View(), 1)

	require.NoError(t, e.d.Resolve(context.Background(), p, "d1"))
	assert.Empty(t, p.Store().View(), "view recomputed without refetch")
	assert.Equal(t, "resolved", e.rows(t, models.TableDamageReports, map[string]any{"id": "d1"})[0].Text("status"))
}

func TestDelete(t *testing.T) {
	e := newEnv(t, http.StatusOK)
	p := e.page(t, "queries")
	ctx := context.Background()

	require.NoError(t, e.d.Delete(ctx, p, "q1"))
	assert.Empty(t, p.Store().Collection())
	assert.Empty(t, p.Store().View())

	require.NoError(t, e.d.Delete(ctx, p, "missing"))
	assert.Equal(t, int32(2), e.ds.deletes.Load(), "unknown ids still reach the store")
}

func TestSave(t *testing.T) {
	e := newEnv(t, http.StatusOK)
	p := e.page(t, "products")
	ctx := context.Background()

	require.NoError(t, p.Selection(func(m *selection.Machine) error {
		if err := m.Edit("pr2"); err != nil {
			return err
		}
		return m.SetField("price_per_hour", 12.5)
	}))

	t.Run("failure keeps editing", func(t *testing.T) {
		e.ds.failUpdate.Store(true)
		defer e.ds.failUpdate.Store(false)
		_, err := e.d.Save(ctx, p)
		require.Error(t, err)
		snap := p.Snapshot()
		assert.Equal(t, selection.Editing, snap.State)
		assert.Equal(t, 12.5, snap.Buffer["price_per_hour"])
	})

	t.Run("success closes edit", func(t *testing.T) {
		id, err := e.d.Save(ctx, p)
		require.NoError(t, err)
		assert.Equal(t, "pr2", id)
		assert.Equal(t, selection.Idle, p.Snapshot().State)
		rec, _ := p.Store().Get("pr2")
		assert.Equal(t, 12.5, rec["price_per_hour"])
	})

	t.Run("not editing", func(t *testing.T) {
		_, err := e.d.Save(ctx, p)
		assert.ErrorIs(t, err, selection.ErrInvalidTransition)
	})
}

func TestDroppedWorkspaceRefusesMutation(t *testing.T) {
	e := newEnv(t, http.StatusOK)
	p := e.page(t, "queries")
	e.cancel()

	err := e.d.Resolve(context.Background(), p, "q1")
	require.ErrorIs(t, err, dashboard.ErrClosed)
	rec, _ := p.Store().Get("q1")
	assert.Equal(t, "unresolved", rec.Text("status"))
	assert.Equal(t, "unresolved", e.rows(t, models.TableQueries, map[string]any{"id": "q1"})[0].Text("status"))

	require.ErrorIs(t, e.d.Delete(context.Background(), p, "q1"), dashboard.ErrClosed)
	assert.Len(t, e.rows(t, models.TableQueries, map[string]any{"id": "q1"}), 1)
}

// slowStore holds every Update until the caller's context is done or the
// hold expires.
type slowStore struct {
	backend.DataStore
	started  chan struct{}
	once     sync.Once
	hold     time.Duration
	canceled atomic.Bool
}

func (s *slowStore) Update(ctx context.Context, table, id string, fields map[string]any) error {
	s.once.Do(func() { close(s.started) })
	select {
	case <-ctx.Done():
		s.canceled.Store(true)
		return ctx.Err()
	case <-time.After(s.hold):
		return s.DataStore.Update(ctx, table, id, fields)
	}
}

func TestDropCancelsInFlightMutation(t *testing.T) {
	ctx := context.Background()
	ms, err := memory.NewFromSeed(strings.NewReader(seed))
	require.NoError(t, err)
	ds := &slowStore{DataStore: ms, started: make(chan struct{}), hold: 2 * time.Second}

	q := tasks.New(tasks.Options{Workers: 1, Logger: zerolog.Nop()})
	q.Start()
	d := New(Options{Store: ds, Queue: q, Logger: zerolog.Nop()})

	reg := dashboard.NewRegistry(ds, zerolog.Nop(), nil)
	p, err := reg.Workspace("tok").Page(ctx, "products")
	require.NoError(t, err)

	errc := make(chan error, 1)
	go func() { errc <- d.Approve(ctx, p, "pr1") }()

	select {
	case <-ds.started:
	case <-time.After(time.Second):
		t.Fatal("update not issued")
	}
	require.True(t, reg.Drop("tok"))

	select {
	case err := <-errc:
		require.ErrorIs(t, err, dashboard.ErrClosed)
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("update not cancelled by workspace drop")
	}
	assert.True(t, ds.canceled.Load())

	rows, err := ms.Select(ctx, models.TableProducts, backend.Query{Where: map[string]any{"id": "pr1"}})
	require.NoError(t, err)
	assert.Equal(t, "no", rows[0].Text("approved"))

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, q.Stop(stopCtx))
	notes, err := ms.Select(ctx, models.TableNotifications, backend.Query{})
	require.NoError(t, err)
	assert.Empty(t, notes, "no notification for a cancelled decision")
}
