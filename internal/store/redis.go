package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"empathos.app/relay/internal/model"
)

const sessionKeyPrefix = "empathos:session:"

type redisSessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSessionStore stores sessions as JSON documents that expire after ttl.
func NewRedisSessionStore(client *redis.Client, ttl time.Duration) SessionStore {
	return &redisSessionStore{client: client, ttl: ttl}
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}

func (s *redisSessionStore) Get(ctx context.Context, id string) (*model.Session, error) {
	data, err := s.client.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading session %s: %w", id, err)
	}
	return decodeSession(data)
}

func (s *redisSessionStore) Save(ctx context.Context, sess *model.Session) error {
	data, err := encodeSession(sess)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, sessionKey(sess.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("writing session %s: %w", sess.ID, err)
	}
	return nil
}

func (s *redisSessionStore) Delete(ctx context.Context, id string) error {
	n, err := s.client.Del(ctx, sessionKey(id)).Result()
	if err != nil {
		return fmt.Errorf("deleting session %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *redisSessionStore) Close() error {
	return s.client.Close()
}

func encodeSession(sess *model.Session) ([]byte, error) {
	data, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("encoding session %s: %w", sess.ID, err)
	}
	return data, nil
}

func decodeSession(data []byte) (*model.Session, error) {
	var sess model.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}
	return &sess, nil
}
