package blob

import (
	"context"
	"io"
	"sync"
)

// Object is a stored blob.
type Object struct {
	Data        []byte
	ContentType string
}

type Memory struct {
	mu      sync.RWMutex
	objects map[string]Object
	baseURL string
}

func NewMemory(baseURL string) *Memory {
	if baseURL == "" {
		baseURL = "memory://profile-pictures"
	}
	return &Memory{objects: make(map[string]Object), baseURL: baseURL}
}

func (m *Memory) Driver() Driver { return DriverMemory }

func (m *Memory) Upload(ctx context.Context, key string, r io.Reader, contentType string) error {
	if err := validKey(key); err != nil {
		return err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.objects[key] = Object{Data: data, ContentType: contentType}
	m.mu.Unlock()
	return nil
}

func (m *Memory) PublicURL(key string) string {
	return joinURL(m.baseURL, key)
}

// Get returns a stored object.
func (m *Memory) Get(key string) (Object, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.objects[key]
	return o, ok
}
