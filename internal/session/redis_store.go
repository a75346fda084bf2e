package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// maxUpdateRetries bounds optimistic-lock retries when two updates race on
// the same session key.
const maxUpdateRetries = 5

// RedisStore implements Store on Redis. Each session is one JSON value under
// a prefixed key with an idle TTL, refreshed on every update; the TTL is the
// housekeeping policy for abandoned workflows.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed session store.
func NewRedisStore(redisURL string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisStore{client: client, prefix: "workflow:", ttl: ttl}, nil
}

func (s *RedisStore) key(id string) string {
	return s.prefix + id
}

func (s *RedisStore) Create(ctx context.Context, sess Session) error {
	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.client.Set(ctx, s.key(sess.ID), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (Session, error) {
	payload, err := s.client.Get(ctx, s.key(id)).Result()
	if err == redis.Nil {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("lookup session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal([]byte(payload), &sess); err != nil {
		return Session{}, fmt.Errorf("unmarshal session: %w", err)
	}
	return sess, nil
}

// Update runs fn inside a WATCH transaction so a concurrent writer on the
// same key forces a retry instead of a lost update.
func (s *RedisStore) Update(ctx context.Context, id string, fn func(Session) (Session, error)) (Session, error) {
	key := s.key(id)
	var result Session

	txn := func(tx *redis.Tx) error {
		payload, err := tx.Get(ctx, key).Result()
		if err == redis.Nil {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lookup session: %w", err)
		}

		var sess Session
		if err := json.Unmarshal([]byte(payload), &sess); err != nil {
			return fmt.Errorf("unmarshal session: %w", err)
		}

		updated, err := fn(sess)
		if err != nil {
			return err
		}
		updated.UpdatedAt = time.Now().UTC()

		next, err := json.Marshal(updated)
		if err != nil {
			return fmt.Errorf("marshal session: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, s.ttl)
			return nil
		})
		if err != nil {
			return err
		}
		result = updated
		return nil
	}

	for attempt := 0; attempt < maxUpdateRetries; attempt++ {
		err := s.client.Watch(ctx, txn, key)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return Session{}, err
	}
	return Session{}, fmt.Errorf("update session %s: too many concurrent modifications", id)
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	deleted, err := s.client.Del(ctx, s.key(id)).Result()
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if deleted == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
