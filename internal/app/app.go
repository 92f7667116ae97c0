// Package app wires the bot together: config, logging, storage, scheduler,
// transport and the command dispatcher.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"remindbot/internal/bot"
	"remindbot/internal/config"
	"remindbot/internal/housekeeping"
	"remindbot/internal/kv"
	"remindbot/internal/runtime/supervisor"
	"remindbot/internal/sched"
	kit "remindbot/internal/transport"
	telegram "remindbot/internal/transport/telegram/adapter"
	logx "remindbot/pkg/logx"
)

type App struct {
	cfgPath string

	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service

	store kv.Store

	adapter kit.Adapter
	router  *bot.Router
	cmds    *bot.Commands

	sched *sched.Service
	hk    *housekeeping.Service

	updates chan kit.Update
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	ad, err := telegram.New(telegram.Config{
		Token:          cfg.Telegram.Token,
		PollTimeout:    pollTimeout,
		SendRatePerSec: cfg.Telegram.SendRatePerSec,
	}, logSvc.Logger().With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, err
	}

	kvCfg, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	store, err := kv.Open(kvCfg, logSvc.Logger().With(logx.String("comp", "kv")))
	if err != nil {
		return nil, err
	}
	log.Info("storage opened", logx.String("driver", kvCfg.Driver), logx.String("path", kvCfg.Path))

	schedCfg, err := mapSchedulerConfig(cfg)
	if err != nil {
		return nil, err
	}
	schedSvc := sched.New(store, bot.NewMessenger(ad), schedCfg, logSvc.Logger().With(logx.String("comp", "sched")))

	router := bot.NewRouter(logSvc.Logger().With(logx.String("comp", "bot")), ad)
	cmds := bot.NewCommands(schedSvc, cfg.Scheduler.ListLimit)
	cmds.Register(router)

	hkCfg, err := mapHousekeepingConfig(cfg, schedCfg.DedupRetention)
	if err != nil {
		return nil, err
	}
	hk := housekeeping.New(hkCfg, store, logSvc.Logger().With(logx.String("comp", "housekeeping")))

	return &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		store:   store,
		adapter: ad,
		router:  router,
		cmds:    cmds,
		sched:   schedSvc,
		hk:      hk,
		updates: make(chan kit.Update, 256),
	}, nil
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	// transactional config reload: validate before commit/publish
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(c context.Context, cfg *config.Config) error {
		if strings.TrimSpace(cfg.Telegram.Token) == "" {
			return fmt.Errorf("telegram.token is required")
		}
		if _, err := config.ParseDurationField("telegram.poll_timeout", cfg.Telegram.PollTimeout); err != nil {
			return err
		}
		if _, err := mapStorageConfig(cfg); err != nil {
			return err
		}
		if _, err := mapSchedulerConfig(cfg); err != nil {
			return err
		}
		if _, err := mapHousekeepingConfig(cfg, 0); err != nil {
			return err
		}
		return nil
	})

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}

	if err := a.sched.Start(a.sup.Context()); err != nil {
		return err
	}

	if err := a.hk.Start(a.sup.Context()); err != nil {
		return err
	}

	a.sup.Go("commands.dispatch", func(c context.Context) error {
		return a.router.DispatchLoop(c, a.updates)
	})

	// Best-effort Telegram /menu autocomplete.
	a.sup.Go0("telegram.menu.update", func(c context.Context) {
		a.router.UpdateMenu(c)
	})

	// hot reload config fan-out
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config in the channel.
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						goto APPLY
					}
				}
			APPLY:
				a.applyConfig(lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("app started")
	return nil
}

// applyConfig applies what can change at runtime. Storage, token and scheduler
// backoff settings need a restart; flag them instead of half-applying.
func (a *App) applyConfig(prev, cfg *config.Config) {
	if cfg == nil {
		return
	}

	a.logs.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})

	if prev != nil && prev.Storage != cfg.Storage {
		a.log.Warn("storage config changed; restart required for changes to take effect")
	}
	if prev != nil && prev.Telegram.Token != cfg.Telegram.Token {
		a.log.Warn("telegram token changed; restart required for changes to take effect")
	}

	a.log.Info("config reloaded")
}

func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping")

	// Cancel the run context first so background loops start unwinding immediately.
	a.sup.Cancel()

	// Run each shutdown step with an upper bound so one component can't stall
	// the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()

		stepCtx := ctx
		var cancel context.CancelFunc
		if max > 0 {
			if dl, ok := ctx.Deadline(); ok {
				if rem := time.Until(dl); rem > 0 && rem < max {
					max = rem
				}
			}
			stepCtx, cancel = context.WithTimeout(ctx, max)
			defer cancel()
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Err(stepCtx.Err()),
				logx.Duration("elapsed", time.Since(start)))
		}
	}

	step("housekeeping", 2*time.Second, a.hk.Stop)
	step("scheduler", 3*time.Second, a.sched.Stop)
	step("adapter", 2*time.Second, a.adapter.Stop)
	step("supervisor", 2*time.Second, a.sup.Wait)
	step("storage", 1*time.Second, func(context.Context) error { return a.store.Close() })

	a.log.Info("stopped")
	_ = a.logs.Close()
	return nil
}

func mapStorageConfig(cfg *config.Config) (kv.Config, error) {
	busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return kv.Config{}, err
	}
	driver := strings.TrimSpace(strings.ToLower(cfg.Storage.Driver))
	switch driver {
	case "", "sqlite", "sqlite3", "memory":
	default:
		return kv.Config{}, fmt.Errorf("storage.driver: unknown driver %q", cfg.Storage.Driver)
	}
	path := strings.TrimSpace(cfg.Storage.Path)
	if path == "" {
		path = "./remindbot.db"
	}
	return kv.Config{Driver: driver, Path: path, BusyTimeout: busy}, nil
}

func mapSchedulerConfig(cfg *config.Config) (sched.Config, error) {
	retention, err := config.ParseDurationField("scheduler.dedup_retention", cfg.Scheduler.DedupRetention)
	if err != nil {
		return sched.Config{}, err
	}
	base, err := config.ParseDurationField("scheduler.wake_retry_base", cfg.Scheduler.WakeRetryBase)
	if err != nil {
		return sched.Config{}, err
	}
	max, err := config.ParseDurationField("scheduler.wake_retry_max", cfg.Scheduler.WakeRetryMax)
	if err != nil {
		return sched.Config{}, err
	}
	return sched.Config{
		DedupRetention: retention,
		WakeRetryBase:  base,
		WakeRetryMax:   max,
	}, nil
}

func mapHousekeepingConfig(cfg *config.Config, retention time.Duration) (housekeeping.Config, error) {
	out := housekeeping.Config{
		Enabled:        true,
		DedupRetention: retention,
	}
	if hc := cfg.Housekeeping; hc != nil {
		out.Enabled = hc.Enabled
		out.Spec = hc.Spec
		out.Timezone = hc.Timezone
	}
	if tz := strings.TrimSpace(out.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return housekeeping.Config{}, fmt.Errorf("housekeeping.timezone: invalid %q: %w", tz, err)
		}
	}
	return out, nil
}
