package logx

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestLevelOf(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"DEBUG", zerolog.DebugLevel},
		{" warn ", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"trace", zerolog.TraceLevel},
		{"", zerolog.InfoLevel},
		{"loud", zerolog.InfoLevel},
	}
	for _, tc := range cases {
		if got := levelOf(tc.in); got != tc.want {
			t.Fatalf("levelOf(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestNopAndZeroLoggerAreSilentAndSafe(t *testing.T) {
	t.Parallel()
	var zero Logger
	if !zero.IsZero() {
		t.Fatal("zero Logger should report IsZero")
	}
	zero.Info("nothing happens", String("k", "v"))

	nop := Nop()
	if nop.IsZero() {
		t.Fatal("Nop carries a sink and should not report IsZero")
	}
	nop.Error("still nothing", Err(os.ErrClosed))
}

func TestServiceFileSink(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "out.log")

	svc, log := New(Config{
		Level: "debug",
		File:  FileConfig{Enabled: true, Path: path},
	})
	log = log.With(String("comp", "test"))
	log.Info("file sink works", Int("n", 3))
	log.Debug("debug passes at debug level")

	if err := svc.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	out := string(b)
	if !strings.Contains(out, "file sink works") || !strings.Contains(out, `"comp":"test"`) {
		t.Fatalf("log file missing entries: %s", out)
	}
	if !strings.Contains(out, "debug passes at debug level") {
		t.Fatalf("debug entry missing at debug level: %s", out)
	}
}

func TestApplySwapsLevel(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "out.log")

	svc, log := New(Config{
		Level: "error",
		File:  FileConfig{Enabled: true, Path: path},
	})
	log.Info("filtered out")

	svc.Apply(Config{Level: "info", File: FileConfig{Enabled: true, Path: path}})
	log.Info("visible after apply")
	_ = svc.Close()

	b, _ := os.ReadFile(path)
	if strings.Contains(string(b), "filtered out") {
		t.Fatal("error-level config should filter info events")
	}
	if !strings.Contains(string(b), "visible after apply") {
		t.Fatal("live logger did not follow Apply")
	}
}
