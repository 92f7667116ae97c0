package sched

import (
	"errors"
	"sort"
	"strconv"
	"time"
)

var (
	// ErrNotFound is the normal (non-exceptional) outcome of canceling an
	// unknown job id. No state is mutated.
	ErrNotFound = errors.New("sched: no job with that id")

	// ErrUnknownKind marks a stored job whose kind is not a known dispatch
	// key. Such a job is corrupt data and gets purged rather than retried.
	ErrUnknownKind = errors.New("sched: unknown job kind")

	// ErrPastDue rejects schedule requests whose due time is not in the future.
	ErrPastDue = errors.New("sched: due time is in the past")
)

// Kind identifies what a job does when it fires. The set is closed.
type Kind string

const (
	KindRolePing Kind = "role_ping" // Subject is a crew/role name to mention
	KindUserPing Kind = "user_ping" // Subject is a numeric user id
	KindMessage  Kind = "message"   // Subject is free text
)

// KnownKind reports whether k is a valid dispatch key.
func KnownKind(k Kind) bool {
	switch k {
	case KindRolePing, KindUserPing, KindMessage:
		return true
	default:
		return false
	}
}

const (
	daySeconds int64 = 86_400
	dayMillis  int64 = daySeconds * 1000
)

// Job is one scheduled notification.
type Job struct {
	ID        string `json:"id"`
	TenantID  string `json:"tenant_id"`
	ChannelID string `json:"channel_id"`

	Kind    Kind   `json:"kind"`
	Subject string `json:"subject"`

	// DueUnix is seconds since epoch; DueAtMs = DueUnix * 1000 and is the
	// canonical sort key of the job set.
	DueUnix int64 `json:"due_unix"`
	DueAtMs int64 `json:"due_at_ms"`

	RepeatsDaily bool   `json:"repeats_daily"`
	CreatedBy    string `json:"created_by,omitempty"`
}

// OccurrenceKey identifies one concrete firing. A repeating job produces a
// new occurrence identity each day, so dedup is keyed on (id, due), never id
// alone.
func (j Job) OccurrenceKey() string {
	return j.ID + ":" + strconv.FormatInt(j.DueUnix, 10)
}

func (j Job) Due() time.Time { return time.UnixMilli(j.DueAtMs) }

// nextDaily returns the job advanced by whole days until its due time is
// strictly after now. Missed windows are skipped, not queued: a tenant whose
// wake was delayed by days gets one delivery and one future slot, not a
// backlog.
func (j Job) nextDaily(now time.Time) Job {
	n := j
	nowMs := now.UnixMilli()
	for {
		n.DueUnix += daySeconds
		n.DueAtMs += dayMillis
		if n.DueAtMs > nowMs {
			return n
		}
	}
}

// sortJobs orders by due time ascending. Stored order is never trusted; every
// reader re-sorts (tolerates unsorted state written by older versions).
func sortJobs(jobs []Job) {
	sort.SliceStable(jobs, func(i, k int) bool { return jobs[i].DueAtMs < jobs[k].DueAtMs })
}
