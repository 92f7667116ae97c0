// Package housekeeping runs periodic store maintenance: pruning expired
// delivered-occurrence entries and compacting the key-value store.
package housekeeping

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"remindbot/internal/kv"
	"remindbot/internal/sched"
	logx "remindbot/pkg/logx"
)

const defaultSpec = "30 4 * * *"

type Config struct {
	Enabled bool
	// Spec is a standard 5-field cron expression (default "30 4 * * *").
	Spec     string
	Timezone string // IANA TZ; empty means local

	// DedupRetention is passed through to the prune; 0 uses the scheduler default.
	DedupRetention time.Duration
}

type Service struct {
	cfg Config
	kvs kv.Store
	log logx.Logger

	parser cron.Parser

	mu sync.Mutex
	c  *cron.Cron
}

func New(cfg Config, kvs kv.Store, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:    cfg,
		kvs:    kvs,
		log:    log,
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

func (s *Service) Start(ctx context.Context) error {
	if !s.cfg.Enabled {
		s.log.Debug("housekeeping disabled")
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return nil
	}

	loc := time.Local
	if tz := strings.TrimSpace(s.cfg.Timezone); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return fmt.Errorf("housekeeping timezone %q: %w", tz, err)
		}
		loc = l
	}

	spec := strings.TrimSpace(s.cfg.Spec)
	if spec == "" {
		spec = defaultSpec
	}

	c := cron.New(cron.WithParser(s.parser), cron.WithLocation(loc))
	if _, err := c.AddFunc(spec, func() { s.run(ctx) }); err != nil {
		return fmt.Errorf("housekeeping spec %q: %w", spec, err)
	}
	c.Start()
	s.c = c

	s.log.Info("housekeeping started", logx.String("spec", spec), logx.String("tz", loc.String()))
	return nil
}

func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()
	if c == nil {
		return nil
	}

	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	s.log.Info("housekeeping stopped")
	return nil
}

// run performs one maintenance sweep. Errors are logged, not propagated: the
// next scheduled run tries again.
func (s *Service) run(ctx context.Context) {
	start := time.Now()

	tenants, err := s.kvs.Tenants(ctx)
	if err != nil {
		s.log.Warn("housekeeping tenant list failed", logx.Err(err))
		return
	}

	pruned := 0
	for _, tenant := range tenants {
		n, err := sched.PruneTenantDedup(ctx, s.kvs, tenant, s.cfg.DedupRetention, time.Now())
		if err != nil {
			s.log.Warn("dedup prune failed", logx.String("tenant", tenant), logx.Err(err))
			continue
		}
		pruned += n
	}

	if err := s.kvs.Maintain(ctx); err != nil {
		s.log.Warn("store maintenance failed", logx.Err(err))
	}

	s.log.Info("housekeeping sweep done",
		logx.Int("tenants", len(tenants)),
		logx.Int("dedup_pruned", pruned),
		logx.Duration("dur", time.Since(start)))
}
