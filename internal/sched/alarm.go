package sched

import (
	"context"
	"sync"
	"time"

	"remindbot/internal/runtime/supervisor"
	logx "remindbot/pkg/logx"
)

// Alarm owns the single outstanding wake timer of each tenant and keeps it
// consistent with the persisted job set.
//
// Wake semantics are at-least-once: a firing whose handler fails is retried
// with jittered exponential backoff until it succeeds, so the handler must be
// idempotent (the engine's dedup cache makes it so). Timers are in-memory;
// Service.Start rebuilds them from the store after a restart.
type Alarm struct {
	store *JobStore
	log   logx.Logger

	retryBase time.Duration
	retryMax  time.Duration

	mu     sync.Mutex
	sup    *supervisor.Supervisor
	wake   func(ctx context.Context, tenant string) error
	timers map[string]*time.Timer
	at     map[string]time.Time
}

func NewAlarm(store *JobStore, log logx.Logger, retryBase, retryMax time.Duration) *Alarm {
	if log.IsZero() {
		log = logx.Nop()
	}
	if retryBase <= 0 {
		retryBase = 500 * time.Millisecond
	}
	if retryMax < retryBase {
		retryMax = 2 * time.Minute
	}
	return &Alarm{
		store:     store,
		log:       log,
		retryBase: retryBase,
		retryMax:  retryMax,
		timers:    map[string]*time.Timer{},
		at:        map[string]time.Time{},
	}
}

// Start arms the alarm: wake is the delivery entry point invoked (and retried)
// when a tenant's timer fires.
func (a *Alarm) Start(ctx context.Context, wake func(ctx context.Context, tenant string) error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sup != nil {
		return
	}
	a.wake = wake
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log))
}

// Stop cancels pending timers and waits for in-flight wake invocations.
func (a *Alarm) Stop(ctx context.Context) error {
	a.mu.Lock()
	sup := a.sup
	a.sup = nil
	for tenant, t := range a.timers {
		_ = t.Stop()
		delete(a.timers, tenant)
		delete(a.at, tenant)
	}
	a.mu.Unlock()

	if sup == nil {
		return nil
	}
	return sup.Stop(ctx)
}

// Resync derives the wake time from the latest persisted truth: it re-reads
// the job set and requests a wake at min(due), or clears the wake when the
// set is empty. Never computes from a job object captured earlier in the same
// operation.
func (a *Alarm) Resync(ctx context.Context, tenant string) error {
	jobs, err := a.store.Snapshot(ctx, tenant)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		a.Clear(tenant)
		return nil
	}
	a.Set(tenant, jobs[0].Due())
	return nil
}

// Set requests a wake for tenant at the given absolute time, replacing any
// pending wake. A due time in the past fires immediately.
func (a *Alarm) Set(tenant string, at time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sup == nil {
		// Not started; Service.Start resyncs every tenant anyway.
		return
	}
	if cur, ok := a.at[tenant]; ok && cur.Equal(at) {
		return
	}
	if t, ok := a.timers[tenant]; ok {
		_ = t.Stop()
	}
	delay := time.Until(at)
	if delay < 0 {
		delay = 0
	}
	a.timers[tenant] = time.AfterFunc(delay, func() { a.fire(tenant) })
	a.at[tenant] = at
	a.log.Debug("wake set", logx.String("tenant", tenant), logx.Time("at", at))
}

// Clear cancels the pending wake, if any. Called only when the job set is empty.
func (a *Alarm) Clear(tenant string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if t, ok := a.timers[tenant]; ok {
		_ = t.Stop()
		delete(a.timers, tenant)
		delete(a.at, tenant)
		a.log.Debug("wake cleared", logx.String("tenant", tenant))
	}
}

// Next reports the pending wake time for tenant, if one is set.
func (a *Alarm) Next(tenant string) (time.Time, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	at, ok := a.at[tenant]
	return at, ok
}

func (a *Alarm) fire(tenant string) {
	a.mu.Lock()
	sup := a.sup
	wake := a.wake
	// The timer has delivered its firing; forget it so a later Set for the
	// same instant is not suppressed by the dedupe check.
	delete(a.timers, tenant)
	delete(a.at, tenant)
	a.mu.Unlock()

	if sup == nil || wake == nil {
		return
	}
	// Retry-with-backoff until the invocation completes cleanly. Duplicate
	// work across retries is absorbed by the engine's dedup cache.
	sup.GoRestart("wake."+tenant, func(ctx context.Context) error {
		return wake(ctx, tenant)
	}, supervisor.WithRestartBackoff(a.retryBase, a.retryMax))
}
