package kv

import (
	"context"
	"errors"
	"time"
)

// Store is the minimal persistence API used by the scheduler.
//
// Get returns (nil, nil) for an absent key. Update calls fn with the current
// value (nil if absent) and writes fn's result back atomically; returning
// (nil, nil) from fn deletes the key.
type Store interface {
	Get(ctx context.Context, tenant, key string) ([]byte, error)
	Put(ctx context.Context, tenant, key string, val []byte) error
	Update(ctx context.Context, tenant, key string, fn func(cur []byte) ([]byte, error)) error
	Delete(ctx context.Context, tenant, key string) error

	// Tenants lists every tenant with at least one stored value.
	Tenants(ctx context.Context) ([]string, error)

	// Maintain runs driver-specific maintenance (checkpoint/vacuum). Best-effort.
	Maintain(ctx context.Context) error

	Close() error
}

var ErrClosed = errors.New("kv: store closed")

// Config configures the store.
//
// Driver values:
//   - "sqlite": SQLite database file (default for production)
//   - "memory": in-process map (tests, ephemeral runs)
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}
