package sched

import (
	"context"
	"errors"
	"fmt"
	"time"

	"remindbot/internal/kv"
	logx "remindbot/pkg/logx"
)

// Engine drains every due occurrence of a tenant on each wake invocation.
//
// One invocation must make forward progress on all jobs that are currently
// due, not just the first: the timer fires once at the wake time, and a later
// wake is not guaranteed soon after if the set is otherwise empty.
type Engine struct {
	store     *JobStore
	alarm     *Alarm
	kvs       kv.Store
	msgr      Messenger
	log       logx.Logger
	retention time.Duration

	// now is swappable for tests.
	now func() time.Time
}

func NewEngine(store *JobStore, alarm *Alarm, kvs kv.Store, msgr Messenger, retention time.Duration, log logx.Logger) *Engine {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Engine{
		store:     store,
		alarm:     alarm,
		kvs:       kvs,
		msgr:      msgr,
		log:       log,
		retention: retention,
		now:       time.Now,
	}
}

// Deliver is the drain loop. It is retried at-least-once by the alarm; the
// dedup cache makes retried invocations idempotent.
//
// Ordering invariant: an occurrence is marked delivered in the persisted
// dedup cache immediately after its send succeeds and before anything else
// happens. A crash between that mark and the job-set removal leaves the
// occurrence present-but-marked; the next invocation skips the send and still
// removes/reschedules it.
func (e *Engine) Deliver(ctx context.Context, tenant string) error {
	cache, err := loadDedup(ctx, e.kvs, tenant, e.retention)
	if err != nil {
		return err
	}
	if n := cache.Prune(e.now().UnixMilli()); n > 0 {
		e.log.Debug("dedup entries pruned", logx.String("tenant", tenant), logx.Int("count", n))
	}

	for {
		jobs, err := e.store.Snapshot(ctx, tenant)
		if err != nil {
			return err
		}
		if len(jobs) == 0 {
			break
		}
		job := jobs[0]
		if job.DueAtMs > e.now().UnixMilli() {
			break
		}

		key := job.OccurrenceKey()
		if cache.Delivered(key) {
			e.log.Debug("occurrence already delivered; skipping send",
				logx.String("tenant", tenant), logx.String("occurrence", key))
		} else {
			rendered, err := Format(job)
			if errors.Is(err, ErrUnknownKind) {
				// Corrupt stored job: purge it so it cannot wedge the wake
				// pipeline forever.
				e.log.Warn("purging undeliverable job",
					logx.String("tenant", tenant), logx.String("id", job.ID), logx.String("kind", string(job.Kind)))
				if err := e.store.RemoveOccurrence(ctx, tenant, job.ID, job.DueUnix, nil); err != nil {
					return err
				}
				continue
			}
			if err != nil {
				return err
			}

			if err := e.msgr.Send(ctx, job.ChannelID, rendered.Text, rendered.Scope); err != nil {
				// Nothing is falsely marked delivered; persist the pruned
				// cache as-is and let the alarm retry with backoff.
				if saveErr := cache.Save(ctx); saveErr != nil {
					e.log.Warn("dedup save after send failure", logx.String("tenant", tenant), logx.Err(saveErr))
				}
				return fmt.Errorf("send occurrence %s: %w", key, err)
			}

			// Mark-delivered-before-continuing: this is the
			// exactly-effectively-once checkpoint.
			cache.Mark(key, e.now().UnixMilli())
			if err := cache.Save(ctx); err != nil {
				return err
			}
			e.log.Info("reminder delivered",
				logx.String("tenant", tenant),
				logx.String("id", job.ID),
				logx.String("kind", string(job.Kind)),
				logx.Bool("daily", job.RepeatsDaily))
		}

		// Remove this exact occurrence (id and original due, not id alone);
		// daily repeats get their advanced copy inserted in the same
		// transaction.
		var next *Job
		if job.RepeatsDaily {
			n := job.nextDaily(e.now())
			next = &n
		}
		if err := e.store.RemoveOccurrence(ctx, tenant, job.ID, job.DueUnix, next); err != nil {
			return err
		}
	}

	if err := cache.Save(ctx); err != nil {
		return err
	}
	return e.alarm.Resync(ctx, tenant)
}
