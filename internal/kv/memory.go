package kv

import (
	"context"
	"sort"
	"sync"
)

// memoryStore keeps everything in-process. The whole-store mutex doubles as
// the transaction primitive: Update holds it across the read-modify-write.
type memoryStore struct {
	mu     sync.Mutex
	data   map[string]map[string][]byte // tenant -> key -> val
	closed bool
}

func NewMemory() Store {
	return &memoryStore{data: map[string]map[string][]byte{}}
}

func (s *memoryStore) Get(ctx context.Context, tenant, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	val, ok := s.data[tenant][key]
	if !ok {
		return nil, nil
	}
	cp := make([]byte, len(val))
	copy(cp, val)
	return cp, nil
}

func (s *memoryStore) Put(ctx context.Context, tenant, key string, val []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.putLocked(tenant, key, val)
	return nil
}

func (s *memoryStore) Update(ctx context.Context, tenant, key string, fn func(cur []byte) ([]byte, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	cur := s.data[tenant][key]
	next, err := fn(cur)
	if err != nil {
		return err
	}
	if next == nil {
		s.deleteLocked(tenant, key)
		return nil
	}
	s.putLocked(tenant, key, next)
	return nil
}

func (s *memoryStore) Delete(ctx context.Context, tenant, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.deleteLocked(tenant, key)
	return nil
}

func (s *memoryStore) Tenants(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	out := make([]string, 0, len(s.data))
	for t := range s.data {
		out = append(out, t)
	}
	sort.Strings(out)
	return out, nil
}

func (s *memoryStore) Maintain(ctx context.Context) error { return nil }

func (s *memoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.data = nil
	return nil
}

func (s *memoryStore) putLocked(tenant, key string, val []byte) {
	m := s.data[tenant]
	if m == nil {
		m = map[string][]byte{}
		s.data[tenant] = m
	}
	cp := make([]byte, len(val))
	copy(cp, val)
	m[key] = cp
}

func (s *memoryStore) deleteLocked(tenant, key string) {
	if m := s.data[tenant]; m != nil {
		delete(m, key)
		if len(m) == 0 {
			delete(s.data, tenant)
		}
	}
}
