package auth

import (
	"context"
	"sync"
	"time"

	"github.com/rentease/admin/pkg/models"
)

// subscriberBuffer bounds each subscriber's backlog; events beyond it are
// dropped for that subscriber.
const subscriberBuffer = 64

// broker fans events out to in-process subscribers.
type broker struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan SessionEvent
	closed bool
}

func newBroker() *broker {
	return &broker{subs: make(map[int]chan SessionEvent)}
}

func (b *broker) subscribe(ctx context.Context) <-chan SessionEvent {
	ch := make(chan SessionEvent, subscriberBuffer)
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	context.AfterFunc(ctx, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
	})
	return ch
}

func (b *broker) publish(ev SessionEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (b *broker) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

// MemoryRegistry keeps sessions in process. Events reach only subscribers
// of the same process.
type MemoryRegistry struct {
	mu       sync.Mutex
	sessions map[string]models.Session
	events   *broker
	now      func() time.Time
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		sessions: make(map[string]models.Session),
		events:   newBroker(),
		now:      time.Now,
	}
}

func (m *MemoryRegistry) Create(_ context.Context, user models.User, ttl time.Duration) (models.Session, error) {
	s, err := newSession(user, ttl, m.now())
	if err != nil {
		return models.Session{}, err
	}
	m.mu.Lock()
	m.sessions[s.Token] = s
	m.mu.Unlock()
	return s, nil
}

func (m *MemoryRegistry) Get(_ context.Context, token string) (models.Session, error) {
	m.mu.Lock()
	s, ok := m.sessions[token]
	if ok && s.Expired(m.now()) {
		delete(m.sessions, token)
		m.mu.Unlock()
		m.events.publish(SessionEvent{Token: token, UserID: s.User.ID, Kind: EventExpired})
		return models.Session{}, ErrNoSession
	}
	m.mu.Unlock()
	if !ok {
		return models.Session{}, ErrNoSession
	}
	return s, nil
}

func (m *MemoryRegistry) Revoke(_ context.Context, token string) error {
	m.mu.Lock()
	s, ok := m.sessions[token]
	delete(m.sessions, token)
	m.mu.Unlock()
	if ok {
		m.events.publish(SessionEvent{Token: token, UserID: s.User.ID, Kind: EventRevoked})
	}
	return nil
}

func (m *MemoryRegistry) Subscribe(ctx context.Context) (<-chan SessionEvent, error) {
	return m.events.subscribe(ctx), nil
}

func (m *MemoryRegistry) Close() error {
	m.events.close()
	return nil
}
