package bot

import (
	"errors"
	"strings"
	"testing"
	"time"

	"remindbot/internal/sched"
)

var parseNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestParseRemindArgsVariants(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		args    string
		kind    sched.Kind
		subject string
		due     int64
		daily   bool
	}{
		{
			name:    "duration free text",
			args:    "10m beli kopi",
			kind:    sched.KindMessage,
			subject: "beli kopi",
			due:     parseNow.Add(10 * time.Minute).Unix(),
		},
		{
			name:    "compound duration",
			args:    "1h30m standup",
			kind:    sched.KindMessage,
			subject: "standup",
			due:     parseNow.Add(90 * time.Minute).Unix(),
		},
		{
			name:    "unix timestamp role ping",
			args:    "1893456000 role:oncall",
			kind:    sched.KindRolePing,
			subject: "oncall",
			due:     1893456000,
		},
		{
			name:    "role with at prefix",
			args:    "5m role:@crew",
			kind:    sched.KindRolePing,
			subject: "crew",
			due:     parseNow.Add(5 * time.Minute).Unix(),
		},
		{
			name:    "user ping",
			args:    "5m user:12345678",
			kind:    sched.KindUserPing,
			subject: "12345678",
			due:     parseNow.Add(5 * time.Minute).Unix(),
		},
		{
			name:    "hhmm later today",
			args:    "15:04 makan siang",
			kind:    sched.KindMessage,
			subject: "makan siang",
			due:     time.Date(2025, 6, 1, 15, 4, 0, 0, time.UTC).Unix(),
		},
		{
			name:    "hhmm already passed rolls to tomorrow",
			args:    "07:30 olahraga",
			kind:    sched.KindMessage,
			subject: "olahraga",
			due:     time.Date(2025, 6, 2, 7, 30, 0, 0, time.UTC).Unix(),
		},
		{
			name:    "daily flag",
			args:    "09:00 --daily standup",
			kind:    sched.KindMessage,
			subject: "standup",
			due:     time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC).Unix(),
			daily:   true,
		},
		{
			name:    "daily short flag after payload token order",
			args:    "5m -d role:oncall",
			kind:    sched.KindRolePing,
			subject: "oncall",
			due:     parseNow.Add(5 * time.Minute).Unix(),
			daily:   true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRemindArgs(strings.Fields(tt.args), parseNow)
			if err != nil {
				t.Fatalf("ParseRemindArgs(%q) error: %v", tt.args, err)
			}
			if got.Kind != tt.kind {
				t.Fatalf("Kind = %q, want %q", got.Kind, tt.kind)
			}
			if got.Subject != tt.subject {
				t.Fatalf("Subject = %q, want %q", got.Subject, tt.subject)
			}
			if got.DueUnix != tt.due {
				t.Fatalf("DueUnix = %d, want %d", got.DueUnix, tt.due)
			}
			if got.Daily != tt.daily {
				t.Fatalf("Daily = %v, want %v", got.Daily, tt.daily)
			}
		})
	}
}

func TestParseRemindArgsInvalid(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		args string
	}{
		{name: "empty", args: ""},
		{name: "missing payload", args: "10m"},
		{name: "bad when", args: "tomorrow standup"},
		{name: "negative duration", args: "-10m standup"},
		{name: "past timestamp", args: "1000000 standup"},
		{name: "empty role", args: "10m role:"},
		{name: "non numeric user", args: "10m user:bob"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRemindArgs(strings.Fields(tt.args), parseNow)
			if err == nil {
				t.Fatalf("ParseRemindArgs(%q) succeeded, want error", tt.args)
			}
			var ue *UsageError
			if !errors.As(err, &ue) {
				t.Fatalf("error %v is not a UsageError", err)
			}
			if ue.Msg == "" {
				t.Fatal("UsageError with empty message")
			}
		})
	}
}
