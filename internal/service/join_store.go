package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/craftauth/yggdrasil/internal/cache"
)

// JoinSession is the ephemeral record a game client leaves when joining a
// server, consulted by the server's hasJoined check shortly after. It
// never touches the database.
type JoinSession struct {
	ProfileID   string    `json:"profile_id"`
	AccessToken string    `json:"access_token"`
	RemoteIP    string    `json:"remote_ip,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// JoinSessionStore keeps join sessions keyed by server ID for a short
// TTL. Get returns ErrJoinNotFound for absent and expired entries alike;
// reads are idempotent, an entry stays until it expires.
type JoinSessionStore interface {
	Put(ctx context.Context, serverID string, session *JoinSession) error
	Get(ctx context.Context, serverID string) (*JoinSession, error)
}

// MemoryJoinStore is the single-node store, backed by the self-sweeping
// cache.
type MemoryJoinStore struct {
	sessions *cache.CleanerCache[string, *JoinSession]
	ttl      time.Duration
}

func NewMemoryJoinStore(ttl time.Duration, logger *slog.Logger) *MemoryJoinStore {
	return &MemoryJoinStore{
		sessions: cache.NewCleanerCache[string, *JoinSession]("join_sessions", ttl, logger),
		ttl:      ttl,
	}
}

func (s *MemoryJoinStore) Put(_ context.Context, serverID string, session *JoinSession) error {
	s.sessions.Put(serverID, session, s.ttl)
	return nil
}

func (s *MemoryJoinStore) Get(_ context.Context, serverID string) (*JoinSession, error) {
	session, expired, ok := s.sessions.Peek(serverID)
	if !ok {
		return nil, ErrJoinNotFound
	}
	if expired {
		s.sessions.Remove(serverID)
		return nil, ErrJoinNotFound
	}
	return session, nil
}

func (s *MemoryJoinStore) Close() error { return s.sessions.Close() }
