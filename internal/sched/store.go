package sched

import (
	"context"
	"encoding/json"
	"fmt"

	"remindbot/internal/kv"
	logx "remindbot/pkg/logx"
)

// Persisted value names, per tenant.
const (
	jobsKey  = "jobs"
	dedupKey = "delivered"
)

// JobStore owns the persisted job set of each tenant.
//
// Every mutation goes through kv.Update so that two logically concurrent
// triggers (an inbound schedule and an in-flight wake) cannot lose an update
// even when their storage operations interleave.
type JobStore struct {
	kvs kv.Store
	log logx.Logger
}

func NewJobStore(kvs kv.Store, log logx.Logger) *JobStore {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &JobStore{kvs: kvs, log: log}
}

// Insert appends job to the tenant's set, keeping it sorted by due time.
func (s *JobStore) Insert(ctx context.Context, tenant string, job Job) error {
	return s.kvs.Update(ctx, tenant, jobsKey, func(cur []byte) ([]byte, error) {
		jobs, err := decodeJobs(cur)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
		sortJobs(jobs)
		return encodeJobs(jobs)
	})
}

// Remove deletes the current occurrence of the job with the given id and
// returns it. Removing a nonexistent id reports ErrNotFound and leaves the
// set unchanged.
func (s *JobStore) Remove(ctx context.Context, tenant, id string) (Job, error) {
	var (
		removed Job
		found   bool
	)
	err := s.kvs.Update(ctx, tenant, jobsKey, func(cur []byte) ([]byte, error) {
		jobs, err := decodeJobs(cur)
		if err != nil {
			return nil, err
		}
		// Reset on retry-capable drivers: the closure may run more than once.
		found = false
		out := jobs[:0]
		for _, j := range jobs {
			if !found && j.ID == id {
				removed = j
				found = true
				continue
			}
			out = append(out, j)
		}
		if !found {
			return cur, nil
		}
		sortJobs(out)
		return encodeJobs(out)
	})
	if err != nil {
		return Job{}, err
	}
	if !found {
		return Job{}, ErrNotFound
	}
	return removed, nil
}

// RemoveOccurrence deletes the exact occurrence (id, dueUnix) and, in the
// same transaction, inserts next (the advanced copy of a daily repeat) when
// non-nil. A missing occurrence is a benign no-op: it was concurrently
// canceled or already processed.
func (s *JobStore) RemoveOccurrence(ctx context.Context, tenant, id string, dueUnix int64, next *Job) error {
	return s.kvs.Update(ctx, tenant, jobsKey, func(cur []byte) ([]byte, error) {
		jobs, err := decodeJobs(cur)
		if err != nil {
			return nil, err
		}
		out := jobs[:0]
		for _, j := range jobs {
			if j.ID == id && j.DueUnix == dueUnix {
				continue
			}
			out = append(out, j)
		}
		if next != nil {
			out = append(out, *next)
		}
		sortJobs(out)
		return encodeJobs(out)
	})
}

// Snapshot returns the tenant's jobs sorted ascending by due time.
func (s *JobStore) Snapshot(ctx context.Context, tenant string) ([]Job, error) {
	b, err := s.kvs.Get(ctx, tenant, jobsKey)
	if err != nil {
		return nil, err
	}
	jobs, err := decodeJobs(b)
	if err != nil {
		return nil, err
	}
	sortJobs(jobs)
	return jobs, nil
}

func decodeJobs(b []byte) ([]Job, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var jobs []Job
	if err := json.Unmarshal(b, &jobs); err != nil {
		return nil, fmt.Errorf("decode job set: %w", err)
	}
	return jobs, nil
}

func encodeJobs(jobs []Job) ([]byte, error) {
	if len(jobs) == 0 {
		// nil deletes the key; a fully drained tenant leaves no residue.
		return nil, nil
	}
	b, err := json.Marshal(jobs)
	if err != nil {
		return nil, fmt.Errorf("encode job set: %w", err)
	}
	return b, nil
}
