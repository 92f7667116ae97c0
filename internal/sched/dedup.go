package sched

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"remindbot/internal/kv"
)

// DefaultDedupRetention bounds how long delivered-occurrence keys are kept.
// Absence of a key means "not known to be delivered", not "definitely not
// delivered"; the cache is best-effort within this window.
const DefaultDedupRetention = 14 * 24 * time.Hour

// dedupCache is one tenant's delivered-occurrence record. It is loaded once
// per delivery invocation, consulted and updated in memory, and written back
// at checkpoints (after each successful send and once more at the end).
type dedupCache struct {
	kvs       kv.Store
	tenant    string
	retention time.Duration
	entries   map[string]int64 // occurrence key -> delivered at (ms)
}

func loadDedup(ctx context.Context, kvs kv.Store, tenant string, retention time.Duration) (*dedupCache, error) {
	if retention <= 0 {
		retention = DefaultDedupRetention
	}
	c := &dedupCache{kvs: kvs, tenant: tenant, retention: retention, entries: map[string]int64{}}

	b, err := kvs.Get(ctx, tenant, dedupKey)
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return c, nil
	}
	if err := json.Unmarshal(b, &c.entries); err != nil {
		return nil, fmt.Errorf("decode dedup cache: %w", err)
	}
	if c.entries == nil {
		c.entries = map[string]int64{}
	}
	return c, nil
}

func (c *dedupCache) Delivered(key string) bool {
	_, ok := c.entries[key]
	return ok
}

func (c *dedupCache) Mark(key string, atMs int64) {
	c.entries[key] = atMs
}

// Prune drops entries delivered longer than the retention window ago.
// Returns how many were removed.
func (c *dedupCache) Prune(nowMs int64) int {
	cutoff := nowMs - c.retention.Milliseconds()
	n := 0
	for k, at := range c.entries {
		if at < cutoff {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

func (c *dedupCache) Save(ctx context.Context) error {
	if len(c.entries) == 0 {
		return c.kvs.Delete(ctx, c.tenant, dedupKey)
	}
	b, err := json.Marshal(c.entries)
	if err != nil {
		return fmt.Errorf("encode dedup cache: %w", err)
	}
	return c.kvs.Put(ctx, c.tenant, dedupKey, b)
}

// PruneTenantDedup is the housekeeping entry point: prune one tenant's cache
// without running a delivery. Returns how many entries were dropped.
//
// The sweep runs outside the scheduler's tenant lock, so the whole
// read-prune-write happens inside one kv.Update. A blind load-then-Put here
// could erase a delivered-mark written by a concurrent wake, and a retried
// wake would then re-send the occurrence.
func PruneTenantDedup(ctx context.Context, kvs kv.Store, tenant string, retention time.Duration, now time.Time) (int, error) {
	if retention <= 0 {
		retention = DefaultDedupRetention
	}
	cutoff := now.UnixMilli() - retention.Milliseconds()

	n := 0
	err := kvs.Update(ctx, tenant, dedupKey, func(cur []byte) ([]byte, error) {
		n = 0
		if len(cur) == 0 {
			return nil, nil
		}
		entries := map[string]int64{}
		if err := json.Unmarshal(cur, &entries); err != nil {
			return nil, fmt.Errorf("decode dedup cache: %w", err)
		}
		for k, at := range entries {
			if at < cutoff {
				delete(entries, k)
				n++
			}
		}
		if n == 0 {
			return cur, nil
		}
		if len(entries) == 0 {
			return nil, nil
		}
		return json.Marshal(entries)
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}
