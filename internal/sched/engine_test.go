package sched

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"remindbot/internal/kv"
	logx "remindbot/pkg/logx"
)

type sentMsg struct {
	ChannelID string
	Text      string
	Scope     MentionScope
}

type fakeMessenger struct {
	mu        sync.Mutex
	sent      []sentMsg
	failNext  int // fail this many sends before succeeding
	sendCh    chan sentMsg
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{sendCh: make(chan sentMsg, 16)}
}

func (f *fakeMessenger) Send(ctx context.Context, channelID, text string, scope MentionScope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext > 0 {
		f.failNext--
		return errors.New("send failed")
	}
	m := sentMsg{ChannelID: channelID, Text: text, Scope: scope}
	f.sent = append(f.sent, m)
	select {
	case f.sendCh <- m:
	default:
	}
	return nil
}

func (f *fakeMessenger) sentCopy() []sentMsg {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMsg(nil), f.sent...)
}

// engineHarness builds an engine over a memory store with a frozen clock.
type engineHarness struct {
	kvs    kv.Store
	store  *JobStore
	alarm  *Alarm
	msgr   *fakeMessenger
	engine *Engine
}

func newEngineHarness(t *testing.T, now time.Time) *engineHarness {
	t.Helper()
	kvs := kv.NewMemory()
	t.Cleanup(func() { _ = kvs.Close() })

	store := NewJobStore(kvs, logx.Nop())
	alarm := NewAlarm(store, logx.Nop(), time.Millisecond, 10*time.Millisecond)
	msgr := newFakeMessenger()
	engine := NewEngine(store, alarm, kvs, msgr, 0, logx.Nop())
	engine.now = func() time.Time { return now }
	return &engineHarness{kvs: kvs, store: store, alarm: alarm, msgr: msgr, engine: engine}
}

func TestEngineDeliversDueInOrder(t *testing.T) {
	t.Parallel()
	now := time.Unix(500, 0)
	h := newEngineHarness(t, now)
	ctx := context.Background()

	require.NoError(t, h.store.Insert(ctx, "t1", testJob("second", 200)))
	require.NoError(t, h.store.Insert(ctx, "t1", testJob("first", 100)))
	require.NoError(t, h.store.Insert(ctx, "t1", testJob("future", 9_000)))

	require.NoError(t, h.engine.Deliver(ctx, "t1"))

	sent := h.msgr.sentCopy()
	require.Len(t, sent, 2)
	require.Contains(t, sent[0].Text, "s-first")
	require.Contains(t, sent[1].Text, "s-second")

	jobs, err := h.store.Snapshot(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, "future", jobs[0].ID)
}

func TestEngineDailyRepeatAdvancesStrictlyFuture(t *testing.T) {
	t.Parallel()
	due := int64(100)
	// Wake arrives 2.5 days late; the repeat must land on the next slot that is
	// strictly after now, skipping the missed windows.
	now := time.Unix(due+2*daySeconds+daySeconds/2, 0)
	h := newEngineHarness(t, now)
	ctx := context.Background()

	j := testJob("daily", due)
	j.RepeatsDaily = true
	require.NoError(t, h.store.Insert(ctx, "t1", j))

	require.NoError(t, h.engine.Deliver(ctx, "t1"))

	require.Len(t, h.msgr.sentCopy(), 1, "one delivery per drain, no backlog")

	jobs, err := h.store.Snapshot(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, "daily", jobs[0].ID)
	require.Equal(t, due+3*daySeconds, jobs[0].DueUnix)
	require.Greater(t, jobs[0].DueAtMs, now.UnixMilli())
}

func TestEngineDailyDeliversOnConsecutiveWakes(t *testing.T) {
	t.Parallel()
	due := int64(1_000)
	now := time.Unix(due+10, 0)
	h := newEngineHarness(t, now)
	ctx := context.Background()

	j := testJob("daily", due)
	j.RepeatsDaily = true
	require.NoError(t, h.store.Insert(ctx, "t1", j))

	require.NoError(t, h.engine.Deliver(ctx, "t1"))

	// next day's wake
	h.engine.now = func() time.Time { return now.Add(24 * time.Hour) }
	require.NoError(t, h.engine.Deliver(ctx, "t1"))

	require.Len(t, h.msgr.sentCopy(), 2, "one send per wake")

	jobs, err := h.store.Snapshot(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, due+2*daySeconds, jobs[0].DueUnix, "advanced exactly one day past the second occurrence")
	require.Equal(t, jobs[0].DueUnix*1000, jobs[0].DueAtMs)
}

func TestEngineUnknownKindPurged(t *testing.T) {
	t.Parallel()
	now := time.Unix(500, 0)
	h := newEngineHarness(t, now)
	ctx := context.Background()

	bad := testJob("bad", 100)
	bad.Kind = "snooze"
	require.NoError(t, h.store.Insert(ctx, "t1", bad))
	require.NoError(t, h.store.Insert(ctx, "t1", testJob("good", 200)))

	require.NoError(t, h.engine.Deliver(ctx, "t1"))

	// bad job purged without a send; good one delivered normally
	sent := h.msgr.sentCopy()
	require.Len(t, sent, 1)
	require.Contains(t, sent[0].Text, "s-good")

	jobs, err := h.store.Snapshot(ctx, "t1")
	require.NoError(t, err)
	require.Empty(t, jobs)
}

func TestEngineSendFailureRetainsJob(t *testing.T) {
	t.Parallel()
	now := time.Unix(500, 0)
	h := newEngineHarness(t, now)
	ctx := context.Background()

	require.NoError(t, h.store.Insert(ctx, "t1", testJob("a", 100)))
	h.msgr.failNext = 1

	err := h.engine.Deliver(ctx, "t1")
	require.Error(t, err)

	// nothing marked, nothing removed
	jobs, _ := h.store.Snapshot(ctx, "t1")
	require.Len(t, jobs, 1)
	cache, lerr := loadDedup(ctx, h.kvs, "t1", 0)
	require.NoError(t, lerr)
	require.False(t, cache.Delivered(jobs[0].OccurrenceKey()))

	// retry succeeds and drains
	require.NoError(t, h.engine.Deliver(ctx, "t1"))
	require.Len(t, h.msgr.sentCopy(), 1)
	jobs, _ = h.store.Snapshot(ctx, "t1")
	require.Empty(t, jobs)
}

func TestEngineRetryAfterMarkSkipsSend(t *testing.T) {
	t.Parallel()
	now := time.Unix(500, 0)
	h := newEngineHarness(t, now)
	ctx := context.Background()

	j := testJob("a", 100)
	require.NoError(t, h.store.Insert(ctx, "t1", j))

	// Simulate a crash between the dedup mark and the job-set removal: the
	// occurrence is present but already marked delivered.
	cache, err := loadDedup(ctx, h.kvs, "t1", 0)
	require.NoError(t, err)
	cache.Mark(j.OccurrenceKey(), now.UnixMilli())
	require.NoError(t, cache.Save(ctx))

	require.NoError(t, h.engine.Deliver(ctx, "t1"))

	// no duplicate send, but the occurrence is still removed
	require.Empty(t, h.msgr.sentCopy())
	jobs, _ := h.store.Snapshot(ctx, "t1")
	require.Empty(t, jobs)
}

func TestEngineDeliverNoDueJobs(t *testing.T) {
	t.Parallel()
	now := time.Unix(500, 0)
	h := newEngineHarness(t, now)
	ctx := context.Background()

	require.NoError(t, h.store.Insert(ctx, "t1", testJob("future", 9_000)))
	require.NoError(t, h.engine.Deliver(ctx, "t1"))
	require.Empty(t, h.msgr.sentCopy())

	jobs, _ := h.store.Snapshot(ctx, "t1")
	require.Len(t, jobs, 1)
}
