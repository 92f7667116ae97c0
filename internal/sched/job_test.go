package sched

import (
	"testing"
	"time"
)

func TestOccurrenceKey(t *testing.T) {
	t.Parallel()
	j := Job{ID: "abc", DueUnix: 1700000000}
	if got, want := j.OccurrenceKey(), "abc:1700000000"; got != want {
		t.Fatalf("OccurrenceKey = %q, want %q", got, want)
	}

	// A repeat advanced by one day is a different occurrence.
	n := j.nextDaily(time.Unix(1700000000, 0))
	if n.OccurrenceKey() == j.OccurrenceKey() {
		t.Fatal("advanced occurrence should have a distinct key")
	}
}

func TestNextDailySkipsMissedWindows(t *testing.T) {
	t.Parallel()
	due := int64(1_700_000_000)
	j := Job{ID: "j", DueUnix: due, DueAtMs: due * 1000, RepeatsDaily: true}

	tests := []struct {
		name    string
		nowUnix int64
		want    int64
	}{
		{name: "on time", nowUnix: due, want: due + daySeconds},
		{name: "half day late", nowUnix: due + daySeconds/2, want: due + daySeconds},
		{name: "3.5 days late", nowUnix: due + 3*daySeconds + daySeconds/2, want: due + 4*daySeconds},
		// next slot landing exactly on now must be skipped: strictly future only
		{name: "exactly one day late", nowUnix: due + daySeconds, want: due + 2*daySeconds},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			n := j.nextDaily(time.Unix(tt.nowUnix, 0))
			if n.DueUnix != tt.want {
				t.Fatalf("DueUnix = %d, want %d", n.DueUnix, tt.want)
			}
			if n.DueAtMs != tt.want*1000 {
				t.Fatalf("DueAtMs = %d, want %d", n.DueAtMs, tt.want*1000)
			}
			if n.ID != j.ID {
				t.Fatalf("ID changed: %q", n.ID)
			}
		})
	}
}

func TestKnownKind(t *testing.T) {
	t.Parallel()
	for _, k := range []Kind{KindRolePing, KindUserPing, KindMessage} {
		if !KnownKind(k) {
			t.Fatalf("KnownKind(%q) = false", k)
		}
	}
	if KnownKind("snooze") {
		t.Fatal(`KnownKind("snooze") = true`)
	}
	if KnownKind("") {
		t.Fatal(`KnownKind("") = true`)
	}
}

func TestFormatKinds(t *testing.T) {
	t.Parallel()

	r, err := Format(Job{Kind: KindRolePing, Subject: "oncall"})
	if err != nil {
		t.Fatalf("Format(role) error: %v", err)
	}
	if r.Scope != MentionRole || r.Text == "" {
		t.Fatalf("Format(role) = %+v", r)
	}

	r, err = Format(Job{Kind: KindUserPing, Subject: "12345"})
	if err != nil {
		t.Fatalf("Format(user) error: %v", err)
	}
	if r.Scope != MentionUser {
		t.Fatalf("Format(user) scope = %q", r.Scope)
	}

	r, err = Format(Job{Kind: KindMessage, Subject: "standup"})
	if err != nil {
		t.Fatalf("Format(message) error: %v", err)
	}
	if r.Scope != MentionNone {
		t.Fatalf("Format(message) scope = %q", r.Scope)
	}

	if _, err := Format(Job{Kind: "bogus"}); err == nil {
		t.Fatal("Format(bogus) should fail")
	}
}
