package config

type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Logging   LoggingConfig   `json:"logging"`
	Storage   StorageConfig   `json:"storage"`
	Scheduler SchedulerConfig `json:"scheduler"`

	// Housekeeping controls cron-driven maintenance (dedup prune, store vacuum).
	// If omitted, housekeeping defaults to enabled with the default spec.
	Housekeeping *HousekeepingConfig `json:"housekeeping,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout"`
	// SendRatePerSec caps outbound sends (Telegram global limit is ~30/s).
	SendRatePerSec int `json:"send_rate_per_sec,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig controls the durable key-value store.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./remindbot.db" }
type StorageConfig struct {
	Driver      string `json:"driver"` // "sqlite" or "memory"
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// SchedulerConfig controls the reminder scheduler.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "336h").
type SchedulerConfig struct {
	// DedupRetention bounds how long delivered-occurrence keys are remembered.
	// Default: 336h (14 days).
	DedupRetention string `json:"dedup_retention,omitempty"`

	// WakeRetryBase/WakeRetryMax shape the backoff between retried wake
	// invocations after a delivery failure.
	WakeRetryBase string `json:"wake_retry_base,omitempty"`
	WakeRetryMax  string `json:"wake_retry_max,omitempty"`

	// ListLimit caps how many reminders a single /reminders reply shows.
	ListLimit int `json:"list_limit,omitempty"`
}

type HousekeepingConfig struct {
	Enabled bool `json:"enabled"`
	// Spec is a cron expression (default "30 4 * * *").
	Spec     string `json:"spec,omitempty"`
	Timezone string `json:"timezone,omitempty"` // IANA TZ, e.g. "Asia/Jakarta"
}
