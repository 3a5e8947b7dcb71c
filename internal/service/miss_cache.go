package service

import (
	"context"
	"sync"
	"time"
)

// MissCache remembers lookups that came back empty so repeated probes
// for the same unknown profile skip the database. Entries are keyed by
// namespace so registration can drop a whole class of cached misses at
// once.
type MissCache interface {
	Get(ctx context.Context, namespace, key string) (bool, error)
	Set(ctx context.Context, namespace, key string, ttl time.Duration) error
	InvalidateNamespace(ctx context.Context, namespace string) error
}

// Miss cache namespaces.
const (
	MissNamespaceProfile = "profile.not_found"
)

type NoopMissCache struct{}

func NewNoopMissCache() *NoopMissCache { return &NoopMissCache{} }

func (s *NoopMissCache) Get(context.Context, string, string) (bool, error) { return false, nil }

func (s *NoopMissCache) Set(context.Context, string, string, time.Duration) error { return nil }

func (s *NoopMissCache) InvalidateNamespace(context.Context, string) error { return nil }

type MemoryMissCache struct {
	mu    sync.RWMutex
	store map[string]map[string]time.Time
}

func NewMemoryMissCache() *MemoryMissCache {
	return &MemoryMissCache{store: make(map[string]map[string]time.Time)}
}

func (s *MemoryMissCache) Get(_ context.Context, namespace, key string) (bool, error) {
	now := time.Now().UTC()
	s.mu.RLock()
	ns, ok := s.store[namespace]
	if !ok {
		s.mu.RUnlock()
		return false, nil
	}
	expiresAt, ok := ns[key]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if now.After(expiresAt) {
		s.mu.Lock()
		if ns2, ok2 := s.store[namespace]; ok2 {
			delete(ns2, key)
			if len(ns2) == 0 {
				delete(s.store, namespace)
			}
		}
		s.mu.Unlock()
		return false, nil
	}
	return true, nil
}

func (s *MemoryMissCache) Set(_ context.Context, namespace, key string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ns, ok := s.store[namespace]
	if !ok {
		ns = make(map[string]time.Time)
		s.store[namespace] = ns
	}
	ns[key] = time.Now().UTC().Add(ttl)
	return nil
}

func (s *MemoryMissCache) InvalidateNamespace(_ context.Context, namespace string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.store, namespace)
	return nil
}
