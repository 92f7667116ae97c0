package app

import (
	"testing"
	"time"

	"remindbot/internal/config"
)

func TestMapStorageConfig(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{}
	cfg.Storage.Driver = "SQLite"
	cfg.Storage.Path = " ./data/bot.db "
	cfg.Storage.BusyTimeout = "3s"

	got, err := mapStorageConfig(cfg)
	if err != nil {
		t.Fatalf("mapStorageConfig error: %v", err)
	}
	if got.Driver != "sqlite" || got.Path != "./data/bot.db" || got.BusyTimeout != 3*time.Second {
		t.Fatalf("mapStorageConfig = %+v", got)
	}

	// defaults
	got, err = mapStorageConfig(&config.Config{})
	if err != nil {
		t.Fatalf("mapStorageConfig(empty) error: %v", err)
	}
	if got.Path != "./remindbot.db" {
		t.Fatalf("default path = %q", got.Path)
	}

	cfg = &config.Config{}
	cfg.Storage.Driver = "postgres"
	if _, err := mapStorageConfig(cfg); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestMapSchedulerConfig(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{}
	cfg.Scheduler.DedupRetention = "336h"
	cfg.Scheduler.WakeRetryBase = "500ms"
	cfg.Scheduler.WakeRetryMax = "2m"

	got, err := mapSchedulerConfig(cfg)
	if err != nil {
		t.Fatalf("mapSchedulerConfig error: %v", err)
	}
	if got.DedupRetention != 336*time.Hour || got.WakeRetryBase != 500*time.Millisecond || got.WakeRetryMax != 2*time.Minute {
		t.Fatalf("mapSchedulerConfig = %+v", got)
	}

	cfg.Scheduler.WakeRetryMax = "often"
	if _, err := mapSchedulerConfig(cfg); err == nil {
		t.Fatal("expected error for bad duration")
	}
}

func TestMapHousekeepingConfig(t *testing.T) {
	t.Parallel()

	// omitted section: enabled with defaults
	got, err := mapHousekeepingConfig(&config.Config{}, time.Hour)
	if err != nil {
		t.Fatalf("mapHousekeepingConfig error: %v", err)
	}
	if !got.Enabled || got.DedupRetention != time.Hour {
		t.Fatalf("mapHousekeepingConfig = %+v", got)
	}

	cfg := &config.Config{Housekeeping: &config.HousekeepingConfig{
		Enabled:  true,
		Spec:     "0 3 * * *",
		Timezone: "Asia/Jakarta",
	}}
	got, err = mapHousekeepingConfig(cfg, 0)
	if err != nil {
		t.Fatalf("mapHousekeepingConfig error: %v", err)
	}
	if got.Spec != "0 3 * * *" || got.Timezone != "Asia/Jakarta" {
		t.Fatalf("mapHousekeepingConfig = %+v", got)
	}

	cfg.Housekeeping.Timezone = "Mars/Olympus"
	if _, err := mapHousekeepingConfig(cfg, 0); err == nil {
		t.Fatal("expected error for bad timezone")
	}
}
