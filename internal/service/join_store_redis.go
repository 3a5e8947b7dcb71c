package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisJoinStore shares join sessions across instances. Expiry is
// delegated to the server-side TTL, so a fleet behind one Redis agrees on
// when a handshake lapses.
type RedisJoinStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisJoinStore(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisJoinStore {
	if prefix == "" {
		prefix = "yggdrasil"
	}
	return &RedisJoinStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisJoinStore) Put(ctx context.Context, serverID string, session *JoinSession) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal join session: %w", err)
	}
	return s.client.Set(ctx, s.key(serverID), payload, s.ttl).Err()
}

func (s *RedisJoinStore) Get(ctx context.Context, serverID string) (*JoinSession, error) {
	raw, err := s.client.Get(ctx, s.key(serverID)).Result()
	if err == redis.Nil {
		return nil, ErrJoinNotFound
	}
	if err != nil {
		return nil, err
	}
	var session JoinSession
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return nil, fmt.Errorf("unmarshal join session: %w", err)
	}
	return &session, nil
}

func (s *RedisJoinStore) key(serverID string) string {
	return fmt.Sprintf("%s:join:%s", s.prefix, serverID)
}
