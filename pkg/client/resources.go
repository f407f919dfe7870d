package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/rentease/admin/pkg/analytics"
	"github.com/rentease/admin/pkg/listview"
	"github.com/rentease/admin/pkg/models"
)

// ResourceInfo describes one resource page.
type ResourceInfo struct {
	Name           string   `json:"name"`
	Title          string   `json:"title"`
	StatusValues   []string `json:"status_values"`
	EditableFields []string `json:"editable_fields"`
	Actions        []string `json:"actions"`
}

// Filter replaces a page's criteria.
type Filter struct {
	Query  string
	Status string
}

// View is the filtered list of a resource page.
type View struct {
	Resource string            `json:"resource"`
	Criteria listview.Criteria `json:"criteria"`
	Total    int               `json:"total"`
	Records  []models.Record   `json:"records"`
}

// State is the selection state of a resource page.
type State struct {
	State  string         `json:"state"`
	Record models.Record  `json:"record"`
	Buffer map[string]any `json:"buffer"`
	Image  string         `json:"image"`
	Images []string       `json:"images"`
}

// RecordResult is the record after a mutation. Record is nil once deleted.
type RecordResult struct {
	ID     string        `json:"id"`
	Record models.Record `json:"record"`
}

func resourcePath(resource string, parts ...string) string {
	p := "/api/resources/" + url.PathEscape(resource)
	for _, part := range parts {
		p += "/" + part
	}
	return p
}

func (c *Client) Resources(ctx context.Context) ([]ResourceInfo, error) {
	var result []ResourceInfo
	if err := c.call(ctx, http.MethodGet, "/api/resources", nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// List returns the page's view. A nil filter keeps the current criteria.
func (c *Client) List(ctx context.Context, resource string, filter *Filter) (*View, error) {
	path := resourcePath(resource)
	if filter != nil {
		q := url.Values{}
		q.Set("q", filter.Query)
		q.Set("status", filter.Status)
		path += "?" + q.Encode()
	}
	var result View
	if err := c.call(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) Reload(ctx context.Context, resource string) (*View, error) {
	var result View
	if err := c.call(ctx, http.MethodPost, resourcePath(resource, "reload"), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) State(ctx context.Context, resource string) (*State, error) {
	return c.transition(ctx, http.MethodGet, resourcePath(resource, "state"), nil)
}

func (c *Client) Select(ctx context.Context, resource, id string) (*State, error) {
	return c.transition(ctx, http.MethodPost, resourcePath(resource, "select"), map[string]string{"id": id})
}

func (c *Client) CloseDetail(ctx context.Context, resource string) (*State, error) {
	return c.transition(ctx, http.MethodDelete, resourcePath(resource, "select"), nil)
}

func (c *Client) OpenImage(ctx context.Context, resource, imageURL string) (*State, error) {
	return c.transition(ctx, http.MethodPost, resourcePath(resource, "image"), map[string]string{"url": imageURL})
}

func (c *Client) CloseImage(ctx context.Context, resource string) (*State, error) {
	return c.transition(ctx, http.MethodDelete, resourcePath(resource, "image"), nil)
}

func (c *Client) Edit(ctx context.Context, resource, id string) (*State, error) {
	return c.transition(ctx, http.MethodPost, resourcePath(resource, "edit"), map[string]string{"id": id})
}

// SetFields changes buffered fields of the record being edited.
func (c *Client) SetFields(ctx context.Context, resource string, fields map[string]any) (*State, error) {
	return c.transition(ctx, http.MethodPatch, resourcePath(resource, "edit"), fields)
}

func (c *Client) CancelEdit(ctx context.Context, resource string) (*State, error) {
	return c.transition(ctx, http.MethodDelete, resourcePath(resource, "edit"), nil)
}

func (c *Client) transition(ctx context.Context, method, path string, body any) (*State, error) {
	var result State
	if err := c.call(ctx, method, path, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) Save(ctx context.Context, resource string) (*RecordResult, error) {
	return c.record(ctx, http.MethodPost, resourcePath(resource, "edit", "save"))
}

func (c *Client) Approve(ctx context.Context, resource, id string) (*RecordResult, error) {
	return c.record(ctx, http.MethodPost, resourcePath(resource, "records", url.PathEscape(id), "approve"))
}

func (c *Client) Reject(ctx context.Context, resource, id string) (*RecordResult, error) {
	return c.record(ctx, http.MethodPost, resourcePath(resource, "records", url.PathEscape(id), "reject"))
}

func (c *Client) Resolve(ctx context.Context, resource, id string) (*RecordResult, error) {
	return c.record(ctx, http.MethodPost, resourcePath(resource, "records", url.PathEscape(id), "resolve"))
}

func (c *Client) Delete(ctx context.Context, resource, id string) error {
	_, err := c.record(ctx, http.MethodDelete, resourcePath(resource, "records", url.PathEscape(id)))
	return err
}

func (c *Client) record(ctx context.Context, method, path string) (*RecordResult, error) {
	var result RecordResult
	if err := c.call(ctx, method, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Stats returns the dashboard analytics.
func (c *Client) Stats(ctx context.Context) (*analytics.Stats, error) {
	var result analytics.Stats
	if err := c.call(ctx, http.MethodGet, "/api/dashboard/stats", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Profile is the signed-in admin's profile.
type Profile struct {
	Profile models.Admin `json:"profile"`
	Missing []string     `json:"missing"`
	Message string       `json:"message"`
}

func (c *Client) Profile(ctx context.Context) (*Profile, error) {
	var result Profile
	if err := c.call(ctx, http.MethodGet, "/api/profile", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) UpdateProfile(ctx context.Context, admin models.Admin) (*Profile, error) {
	var result Profile
	if err := c.call(ctx, http.MethodPut, "/api/profile", admin, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UploadPicture uploads a profile picture and returns its public URL.
func (c *Client) UploadPicture(ctx context.Context, filename string, r io.Reader) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/profile/picture", &buf)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := c.send(req)
	if err != nil {
		return "", err
	}
	var result struct {
		URL string `json:"url"`
	}
	if err := decodeResponse(resp, &result); err != nil {
		return "", err
	}
	return result.URL, nil
}

// Chat sends a message to the assistant chatbot.
func (c *Client) Chat(ctx context.Context, message string) (string, error) {
	var result struct {
		Answer string `json:"answer"`
	}
	if err := c.call(ctx, http.MethodPost, "/api/chatbot", map[string]string{"message": message}, &result); err != nil {
		return "", err
	}
	return result.Answer, nil
}
