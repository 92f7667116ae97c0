package bot

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"remindbot/internal/sched"
)

// UsageError carries a user-facing message for malformed command input.
// The router replies with Msg instead of a generic failure.
type UsageError struct {
	Msg string
}

func (e *UsageError) Error() string { return e.Msg }

func usageErr(format string, args ...any) error {
	return &UsageError{Msg: fmt.Sprintf(format, args...)}
}

// RemindSpec is the parsed form of a /remind invocation.
type RemindSpec struct {
	Kind    sched.Kind
	Subject string
	DueUnix int64
	Daily   bool
}

const remindUsage = "format: /remind <kapan> [--daily] <isi>\n" +
	"kapan: durasi (10m, 1h30m), jam (HH:MM), atau unix timestamp\n" +
	"isi: role:NAMA, user:ID, atau teks bebas"

// ParseRemindArgs parses "/remind <when> [--daily] <payload...>".
//
// when accepts three shapes: a Go duration ("10m", "1h30m") relative to now,
// a wall-clock "HH:MM" meaning the next such instant (today or tomorrow), or
// an absolute unix timestamp in seconds.
func ParseRemindArgs(args []string, now time.Time) (RemindSpec, error) {
	var spec RemindSpec

	rest := make([]string, 0, len(args))
	for _, a := range args {
		if a == "--daily" || a == "-d" {
			spec.Daily = true
			continue
		}
		rest = append(rest, a)
	}
	if len(rest) < 2 {
		return RemindSpec{}, usageErr(remindUsage)
	}

	due, err := parseWhen(rest[0], now)
	if err != nil {
		return RemindSpec{}, err
	}
	spec.DueUnix = due

	kind, subject, err := parsePayload(rest[1:])
	if err != nil {
		return RemindSpec{}, err
	}
	spec.Kind = kind
	spec.Subject = subject
	return spec, nil
}

func parseWhen(s string, now time.Time) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, usageErr(remindUsage)
	}

	// HH:MM wall clock: next occurrence in now's location.
	if t, err := time.Parse("15:04", s); err == nil && strings.Contains(s, ":") {
		due := time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, now.Location())
		if !due.After(now) {
			due = due.Add(24 * time.Hour)
		}
		return due.Unix(), nil
	}

	// Bare integer: unix timestamp in seconds.
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n <= now.Unix() {
			return 0, usageErr("waktu %q sudah lewat", s)
		}
		return n, nil
	}

	// Duration relative to now.
	if d, err := time.ParseDuration(s); err == nil {
		if d <= 0 {
			return 0, usageErr("durasi harus positif: %q", s)
		}
		return now.Add(d).Unix(), nil
	}

	return 0, usageErr("tidak paham waktu %q\n%s", s, remindUsage)
}

func parsePayload(parts []string) (sched.Kind, string, error) {
	if len(parts) == 0 {
		return "", "", usageErr(remindUsage)
	}
	head := parts[0]

	if v, ok := strings.CutPrefix(head, "role:"); ok {
		v = strings.TrimPrefix(strings.TrimSpace(v), "@")
		if v == "" {
			return "", "", usageErr("role kosong; contoh: role:oncall")
		}
		return sched.KindRolePing, v, nil
	}

	if v, ok := strings.CutPrefix(head, "user:"); ok {
		v = strings.TrimSpace(v)
		if _, err := strconv.ParseInt(v, 10, 64); err != nil {
			return "", "", usageErr("user harus ID numerik; contoh: user:12345678")
		}
		return sched.KindUserPing, v, nil
	}

	text := strings.TrimSpace(strings.Join(parts, " "))
	if text == "" {
		return "", "", usageErr(remindUsage)
	}
	return sched.KindMessage, text, nil
}
