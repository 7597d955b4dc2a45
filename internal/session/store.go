package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store keeps sessions as JSON documents in Redis.
type Store struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewStore constructs a Redis-backed session store.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Store{client: client, ttl: ttl, prefix: "session:"}
}

func (s *Store) key(id string) string { return s.prefix + id }

// LockKey is the key guarding mutations of a session.
func (s *Store) LockKey(id string) string { return "lock:" + s.prefix + id }

// Get loads a session.
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	if s == nil || s.client == nil {
		return nil, errors.New("session: redis client not configured")
	}
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// Save writes the session and refreshes its TTL.
func (s *Store) Save(ctx context.Context, sess *Session) error {
	if s == nil || s.client == nil {
		return errors.New("session: redis client not configured")
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(sess.ID), data, s.ttl).Err()
}

// Delete removes a session.
func (s *Store) Delete(ctx context.Context, id string) error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Del(ctx, s.key(id)).Err()
}
