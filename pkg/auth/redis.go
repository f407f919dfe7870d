package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rentease/admin/pkg/models"
)

const (
	redisKeyPrefix = "rentease:session:"
	// RedisEventChannel carries SessionEvents between server instances.
	RedisEventChannel = "rentease:session-events"

	// expiryGrace keeps an expired session readable for a while so that Get
	// can report it as expired instead of unknown.
	expiryGrace = time.Minute
)

// RedisRegistry shares sessions and their events across server instances.
type RedisRegistry struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisRegistry connects to addr and verifies the connection.
func NewRedisRegistry(ctx context.Context, addr, password string, db int) (*RedisRegistry, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: 2 * time.Second,
		ReadTimeout: 2 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisRegistry{client: client, now: time.Now}, nil
}

func (r *RedisRegistry) Create(ctx context.Context, user models.User, ttl time.Duration) (models.Session, error) {
	s, err := newSession(user, ttl, r.now())
	if err != nil {
		return models.Session{}, err
	}
	data, err := json.Marshal(s)
	if err != nil {
		return models.Session{}, err
	}
	if err := r.client.Set(ctx, redisKeyPrefix+s.Token, data, s.ExpiresAt.Sub(r.now())+expiryGrace).Err(); err != nil {
		return models.Session{}, err
	}
	return s, nil
}

func (r *RedisRegistry) load(ctx context.Context, token string) (models.Session, error) {
	data, err := r.client.Get(ctx, redisKeyPrefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.Session{}, ErrNoSession
	}
	if err != nil {
		return models.Session{}, err
	}
	var s models.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return models.Session{}, err
	}
	return s, nil
}

// end deletes the session and publishes kind if this call removed it.
func (r *RedisRegistry) end(ctx context.Context, s models.Session, kind EventKind) error {
	n, err := r.client.Del(ctx, redisKeyPrefix+s.Token).Result()
	if err != nil || n == 0 {
		return err
	}
	data, err := json.Marshal(SessionEvent{Token: s.Token, UserID: s.User.ID, Kind: kind})
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, RedisEventChannel, data).Err()
}

func (r *RedisRegistry) Get(ctx context.Context, token string) (models.Session, error) {
	if token == "" {
		return models.Session{}, ErrNoSession
	}
	s, err := r.load(ctx, token)
	if err != nil {
		return models.Session{}, err
	}
	if s.Expired(r.now()) {
		if err := r.end(ctx, s, EventExpired); err != nil {
			return models.Session{}, err
		}
		return models.Session{}, ErrNoSession
	}
	return s, nil
}

func (r *RedisRegistry) Revoke(ctx context.Context, token string) error {
	s, err := r.load(ctx, token)
	if errors.Is(err, ErrNoSession) {
		return nil
	}
	if err != nil {
		return err
	}
	return r.end(ctx, s, EventRevoked)
}

func (r *RedisRegistry) Subscribe(ctx context.Context) (<-chan SessionEvent, error) {
	ps := r.client.Subscribe(ctx, RedisEventChannel)
	// Wait for the subscription confirmation so no later event is missed.
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", RedisEventChannel, err)
	}

	out := make(chan SessionEvent, subscriberBuffer)
	go func() {
		defer close(out)
		defer ps.Close()
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev SessionEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (r *RedisRegistry) Close() error {
	return r.client.Close()
}
