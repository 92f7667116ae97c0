package sched

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"remindbot/internal/kv"
	logx "remindbot/pkg/logx"
)

// Config controls the scheduler service.
type Config struct {
	// DedupRetention bounds the delivered-occurrence cache (default 14 days).
	DedupRetention time.Duration

	// WakeRetryBase/WakeRetryMax shape the backoff between retried wake
	// invocations after a failure.
	WakeRetryBase time.Duration
	WakeRetryMax  time.Duration
}

// ScheduleRequest is an already-validated request from the command layer.
// The service re-checks only what it must: the kind is a known dispatch key
// and the due time is in the future.
type ScheduleRequest struct {
	TenantID  string
	ChannelID string

	Kind    Kind
	Subject string

	DueUnix      int64
	RepeatsDaily bool
	CreatedBy    string
}

// Service ties the job store, alarm and delivery engine together and supplies
// the single-actor-per-tenant guarantee with a per-tenant mutex held across
// every operation and every wake invocation.
type Service struct {
	kvs    kv.Store
	store  *JobStore
	alarm  *Alarm
	engine *Engine
	log    logx.Logger

	now func() time.Time

	mu      sync.Mutex
	tenants map[string]*sync.Mutex
}

func New(kvs kv.Store, msgr Messenger, cfg Config, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	store := NewJobStore(kvs, log.With(logx.String("comp", "sched.store")))
	alarm := NewAlarm(store, log.With(logx.String("comp", "sched.alarm")), cfg.WakeRetryBase, cfg.WakeRetryMax)
	engine := NewEngine(store, alarm, kvs, msgr, cfg.DedupRetention, log.With(logx.String("comp", "sched.engine")))
	return &Service{
		kvs:     kvs,
		store:   store,
		alarm:   alarm,
		engine:  engine,
		log:     log,
		now:     time.Now,
		tenants: map[string]*sync.Mutex{},
	}
}

// Start arms the wake timers and rebuilds them from the store: timers are
// in-memory, so every tenant found in persistence is resynced on boot.
// Overdue jobs fire immediately and go through normal catch-up.
func (s *Service) Start(ctx context.Context) error {
	s.alarm.Start(ctx, s.wake)

	tenants, err := s.kvs.Tenants(ctx)
	if err != nil {
		return fmt.Errorf("list tenants: %w", err)
	}
	for _, tenant := range tenants {
		if err := s.alarm.Resync(ctx, tenant); err != nil {
			s.log.Warn("alarm rebuild failed", logx.String("tenant", tenant), logx.Err(err))
		}
	}
	s.log.Info("scheduler started", logx.Int("tenants", len(tenants)))
	return nil
}

func (s *Service) Stop(ctx context.Context) error {
	return s.alarm.Stop(ctx)
}

// Schedule persists a new job and resyncs the tenant's wake.
func (s *Service) Schedule(ctx context.Context, req ScheduleRequest) (Job, error) {
	if !KnownKind(req.Kind) {
		return Job{}, fmt.Errorf("%w: %q", ErrUnknownKind, string(req.Kind))
	}
	if req.DueUnix <= s.now().Unix() {
		return Job{}, ErrPastDue
	}
	if strings.TrimSpace(req.TenantID) == "" || strings.TrimSpace(req.ChannelID) == "" {
		return Job{}, fmt.Errorf("sched: tenant and channel are required")
	}

	job := Job{
		ID:           uuid.NewString(),
		TenantID:     req.TenantID,
		ChannelID:    req.ChannelID,
		Kind:         req.Kind,
		Subject:      req.Subject,
		DueUnix:      req.DueUnix,
		DueAtMs:      req.DueUnix * 1000,
		RepeatsDaily: req.RepeatsDaily,
		CreatedBy:    req.CreatedBy,
	}

	unlock := s.lockTenant(req.TenantID)
	defer unlock()

	if err := s.store.Insert(ctx, req.TenantID, job); err != nil {
		return Job{}, err
	}
	if err := s.alarm.Resync(ctx, req.TenantID); err != nil {
		return Job{}, err
	}
	s.log.Info("job scheduled",
		logx.String("tenant", req.TenantID),
		logx.String("id", job.ID),
		logx.String("kind", string(job.Kind)),
		logx.Time("due", job.Due()),
		logx.Bool("daily", job.RepeatsDaily))
	return job, nil
}

// List returns the tenant's pending jobs, earliest first.
func (s *Service) List(ctx context.Context, tenant string) ([]Job, error) {
	return s.store.Snapshot(ctx, tenant)
}

// Cancel removes the job with the given id and resyncs the wake. Canceling an
// unknown id reports ErrNotFound; the job set is unchanged.
func (s *Service) Cancel(ctx context.Context, tenant, id string) (Job, error) {
	unlock := s.lockTenant(tenant)
	defer unlock()

	removed, err := s.store.Remove(ctx, tenant, id)
	if err != nil {
		return Job{}, err
	}
	if err := s.alarm.Resync(ctx, tenant); err != nil {
		return Job{}, err
	}
	s.log.Info("job canceled", logx.String("tenant", tenant), logx.String("id", id))
	return removed, nil
}

// wake is the alarm's entry point: one delivery invocation under the tenant lock.
func (s *Service) wake(ctx context.Context, tenant string) error {
	unlock := s.lockTenant(tenant)
	defer unlock()
	return s.engine.Deliver(ctx, tenant)
}

func (s *Service) lockTenant(tenant string) func() {
	s.mu.Lock()
	mu := s.tenants[tenant]
	if mu == nil {
		mu = &sync.Mutex{}
		s.tenants[tenant] = mu
	}
	s.mu.Unlock()

	mu.Lock()
	return mu.Unlock
}
