package kv

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
)

func TestMemoryGetAbsent(t *testing.T) {
	t.Parallel()
	s := NewMemory()
	defer s.Close()

	b, err := s.Get(context.Background(), "t1", "missing")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if b != nil {
		t.Fatalf("Get(absent) = %q, want nil", b)
	}
}

func TestMemoryPutGetDelete(t *testing.T) {
	t.Parallel()
	s := NewMemory()
	defer s.Close()
	ctx := context.Background()

	if err := s.Put(ctx, "t1", "k", []byte("v1")); err != nil {
		t.Fatalf("Put error: %v", err)
	}
	b, err := s.Get(ctx, "t1", "k")
	if err != nil || string(b) != "v1" {
		t.Fatalf("Get = %q, %v; want v1", b, err)
	}

	// other tenant is isolated
	b, err = s.Get(ctx, "t2", "k")
	if err != nil || b != nil {
		t.Fatalf("Get(other tenant) = %q, %v; want nil", b, err)
	}

	if err := s.Delete(ctx, "t1", "k"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	b, _ = s.Get(ctx, "t1", "k")
	if b != nil {
		t.Fatalf("Get after Delete = %q, want nil", b)
	}
}

func TestMemoryUpdateLifecycle(t *testing.T) {
	t.Parallel()
	s := NewMemory()
	defer s.Close()
	ctx := context.Background()

	// create
	err := s.Update(ctx, "t1", "k", func(cur []byte) ([]byte, error) {
		if cur != nil {
			t.Fatalf("cur = %q, want nil", cur)
		}
		return []byte("a"), nil
	})
	if err != nil {
		t.Fatalf("Update(create) error: %v", err)
	}

	// modify
	err = s.Update(ctx, "t1", "k", func(cur []byte) ([]byte, error) {
		return append(cur, 'b'), nil
	})
	if err != nil {
		t.Fatalf("Update(modify) error: %v", err)
	}
	b, _ := s.Get(ctx, "t1", "k")
	if string(b) != "ab" {
		t.Fatalf("Get = %q, want ab", b)
	}

	// delete via nil result
	err = s.Update(ctx, "t1", "k", func(cur []byte) ([]byte, error) {
		return nil, nil
	})
	if err != nil {
		t.Fatalf("Update(delete) error: %v", err)
	}
	b, _ = s.Get(ctx, "t1", "k")
	if b != nil {
		t.Fatalf("Get after delete = %q, want nil", b)
	}
}

func TestMemoryUpdateAtomic(t *testing.T) {
	t.Parallel()
	s := NewMemory()
	defer s.Close()
	ctx := context.Background()

	const workers = 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Update(ctx, "t1", "counter", func(cur []byte) ([]byte, error) {
				n := 0
				if cur != nil {
					if err := json.Unmarshal(cur, &n); err != nil {
						return nil, err
					}
				}
				return json.Marshal(n + 1)
			})
			if err != nil {
				t.Errorf("Update error: %v", err)
			}
		}()
	}
	wg.Wait()

	b, _ := s.Get(ctx, "t1", "counter")
	var n int
	if err := json.Unmarshal(b, &n); err != nil {
		t.Fatalf("decode counter: %v", err)
	}
	if n != workers {
		t.Fatalf("counter = %d, want %d (lost updates)", n, workers)
	}
}

func TestMemoryTenants(t *testing.T) {
	t.Parallel()
	s := NewMemory()
	defer s.Close()
	ctx := context.Background()

	tenants, err := s.Tenants(ctx)
	if err != nil || len(tenants) != 0 {
		t.Fatalf("Tenants = %v, %v; want empty", tenants, err)
	}

	_ = s.Put(ctx, "b", "k", []byte("1"))
	_ = s.Put(ctx, "a", "k", []byte("1"))
	tenants, err = s.Tenants(ctx)
	if err != nil {
		t.Fatalf("Tenants error: %v", err)
	}
	if len(tenants) != 2 {
		t.Fatalf("Tenants = %v, want 2 entries", tenants)
	}

	// removing a tenant's last key removes the tenant
	_ = s.Delete(ctx, "a", "k")
	tenants, _ = s.Tenants(ctx)
	if len(tenants) != 1 || tenants[0] != "b" {
		t.Fatalf("Tenants after delete = %v, want [b]", tenants)
	}
}

func TestMemoryClosed(t *testing.T) {
	t.Parallel()
	s := NewMemory()
	_ = s.Close()

	if _, err := s.Get(context.Background(), "t", "k"); err != ErrClosed {
		t.Fatalf("Get after Close = %v, want ErrClosed", err)
	}
	if err := s.Put(context.Background(), "t", "k", []byte("v")); err != ErrClosed {
		t.Fatalf("Put after Close = %v, want ErrClosed", err)
	}
}
