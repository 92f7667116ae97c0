// Package sched is the per-tenant reminder scheduler.
//
// Each tenant's state is two persisted values (the job set and the
// delivered-occurrence cache) plus one in-memory wake timer. Operations
// (Schedule/List/Cancel) and wake invocations are serialized per tenant;
// every job-set mutation goes through the kv store's transaction primitive,
// and after every mutation the alarm is resynced to min(due) over the set.
//
// Wakes are at-least-once: a failed delivery invocation is retried with
// backoff, and retried invocations are made idempotent by the dedup cache
// keyed on (job id, due time), never job id alone.
package sched
