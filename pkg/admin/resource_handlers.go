package admin

import (
	"context"
	"fmt"
	"net/http"
	"sort"

	"github.com/gorilla/mux"

	"github.com/rentease/admin/pkg/auth"
	"github.com/rentease/admin/pkg/dashboard"
	"github.com/rentease/admin/pkg/listview"
	"github.com/rentease/admin/pkg/models"
	"github.com/rentease/admin/pkg/selection"
)

type resourceInfo struct {
	Name           string   `json:"name"`
	Title          string   `json:"title"`
	StatusValues   []string `json:"status_values,omitempty"`
	EditableFields []string `json:"editable_fields,omitempty"`
	Actions        []string `json:"actions"`
}

type listResponse struct {
	Resource string            `json:"resource"`
	Criteria listview.Criteria `json:"criteria"`
	Total    int               `json:"total"`
	Records  []models.Record   `json:"records"`
}

type stateResponse struct {
	selection.Snapshot
	Images []string `json:"images,omitempty"`
}

type recordResponse struct {
	ID     string        `json:"id"`
	Record models.Record `json:"record,omitempty"`
}

type idRequest struct {
	ID string `json:"id" validate:"required"`
}

type imageRequest struct {
	URL string `json:"url" validate:"required"`
}

// page returns the caller's page for the {resource} route variable,
// mounting and fetching it on first access.
func (a *App) page(r *http.Request) (*dashboard.Page, error) {
	sess, ok := auth.SessionFromContext(r.Context())
	if !ok {
		return nil, auth.ErrNoSession
	}
	ws := a.dashboards.Workspace(sess.Token)
	return ws.Page(r.Context(), mux.Vars(r)["resource"])
}

func (a *App) handleListResources(w http.ResponseWriter, r *http.Request) {
	all := models.Resources()
	out := make([]resourceInfo, 0, len(all))
	for _, res := range all {
		info := resourceInfo{
			Name:           res.Name,
			Title:          res.Title,
			StatusValues:   res.StatusValues,
			EditableFields: res.EditableFields,
			Actions:        []string{},
		}
		for _, act := range []models.Action{models.ActionApprove, models.ActionReject, models.ActionResolve, models.ActionDelete, models.ActionEdit} {
			if res.Can(act) {
				info.Actions = append(info.Actions, act.String())
			}
		}
		out = append(out, info)
	}
	respondJSON(w, http.StatusOK, out)
}

// handleListResource returns the filtered view. The q and status
// parameters replace the page's criteria; absent ones keep their value.
func (a *App) handleListResource(w http.ResponseWriter, r *http.Request) {
	p, err := a.page(r)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	store := p.Store()
	criteria := store.Criteria()
	params := r.URL.Query()
	if params.Has("q") || params.Has("status") {
		if params.Has("q") {
			criteria.Query = params.Get("q")
		}
		if params.Has("status") {
			criteria.Status = params.Get("status")
		}
		store.Filter(criteria.Query, criteria.Status)
	}
	respondJSON(w, http.StatusOK, listFor(p))
}

func (a *App) handleReloadResource(w http.ResponseWriter, r *http.Request) {
	p, err := a.page(r)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	if err := p.Load(r.Context()); err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, listFor(p))
}

func listFor(p *dashboard.Page) listResponse {
	store := p.Store()
	return listResponse{
		Resource: p.Resource.Name,
		Criteria: store.Criteria(),
		Total:    len(store.Collection()),
		Records:  store.View(),
	}
}

func (a *App) handleSelectionState(w http.ResponseWriter, r *http.Request) {
	p, err := a.page(r)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, stateFor(p))
}

func stateFor(p *dashboard.Page) stateResponse {
	snap := p.Snapshot()
	return stateResponse{Snapshot: snap, Images: p.Resource.Images(snap.Record)}
}

// transition runs op on the page's selection machine and responds with the
// resulting state.
func (a *App) transition(w http.ResponseWriter, r *http.Request, op func(m *selection.Machine) error) {
	p, err := a.page(r)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	if err := p.Selection(op); err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, stateFor(p))
}

func (a *App) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req idRequest
	if !a.decode(w, r, &req) {
		return
	}
	a.transition(w, r, func(m *selection.Machine) error { return m.Select(req.ID) })
}

func (a *App) handleCloseDetail(w http.ResponseWriter, r *http.Request) {
	a.transition(w, r, (*selection.Machine).Close)
}

func (a *App) handleOpenImage(w http.ResponseWriter, r *http.Request) {
	var req imageRequest
	if !a.decode(w, r, &req) {
		return
	}
	a.transition(w, r, func(m *selection.Machine) error { return m.OpenImage(req.URL) })
}

func (a *App) handleCloseImage(w http.ResponseWriter, r *http.Request) {
	a.transition(w, r, (*selection.Machine).CloseImage)
}

func (a *App) handleEdit(w http.ResponseWriter, r *http.Request) {
	var req idRequest
	if !a.decode(w, r, &req) {
		return
	}
	p, err := a.page(r)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	if !p.Resource.Can(models.ActionEdit) {
		respondError(w, http.StatusMethodNotAllowed, fmt.Sprintf("%s cannot be edited", p.Resource.Name))
		return
	}
	if err := p.Selection(func(m *selection.Machine) error { return m.Edit(req.ID) }); err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, stateFor(p))
}

// handleSetFields writes a {field: value} object into the edit buffer. No
// field is applied unless all of them are editable.
func (a *App) handleSetFields(w http.ResponseWriter, r *http.Request) {
	var fields map[string]any
	if !a.decode(w, r, &fields) {
		return
	}
	p, err := a.page(r)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	names := make([]string, 0, len(fields))
	for f := range fields {
		if !p.Resource.Editable(f) {
			respondErr(w, r, fmt.Errorf("%s: %w", f, selection.ErrNotEditable))
			return
		}
		names = append(names, f)
	}
	sort.Strings(names)
	err = p.Selection(func(m *selection.Machine) error {
		if m.State() != selection.Editing {
			return fmt.Errorf("set field from %s: %w", m.State(), selection.ErrInvalidTransition)
		}
		for _, f := range names {
			if err := m.SetField(f, fields[f]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, stateFor(p))
}

func (a *App) handleCancelEdit(w http.ResponseWriter, r *http.Request) {
	a.transition(w, r, (*selection.Machine).Cancel)
}

func (a *App) handleSave(w http.ResponseWriter, r *http.Request) {
	p, err := a.page(r)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	id, err := a.dispatcher.Save(r.Context(), p)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	rec, _ := p.Store().Get(id)
	respondJSON(w, http.StatusOK, recordResponse{ID: id, Record: rec})
}

// mutate runs a record action and responds with the patched record.
func (a *App) mutate(w http.ResponseWriter, r *http.Request, action func(ctx context.Context, p *dashboard.Page, id string) error) {
	p, err := a.page(r)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	id := mux.Vars(r)["id"]
	if err := action(r.Context(), p, id); err != nil {
		respondErr(w, r, err)
		return
	}
	rec, _ := p.Store().Get(id)
	respondJSON(w, http.StatusOK, recordResponse{ID: id, Record: rec})
}

func (a *App) handleApprove(w http.ResponseWriter, r *http.Request) {
	a.mutate(w, r, a.dispatcher.Approve)
}

func (a *App) handleReject(w http.ResponseWriter, r *http.Request) {
	a.mutate(w, r, a.dispatcher.Reject)
}

func (a *App) handleResolve(w http.ResponseWriter, r *http.Request) {
	a.mutate(w, r, a.dispatcher.Resolve)
}

func (a *App) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	a.mutate(w, r, a.dispatcher.Delete)
}
