// Package app wires the configuration, storage, clients, quiz engine, and
// scheduler trigger into one runnable unit.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"quizbot/internal/bank"
	"quizbot/internal/config"
	"quizbot/internal/eventbus"
	"quizbot/internal/oracle"
	"quizbot/internal/quiz"
	"quizbot/internal/runtime/supervisor"
	"quizbot/internal/services/scheduler"
	"quizbot/internal/storage"
	"quizbot/internal/transport/telegram"
	logx "quizbot/pkg/logx"
)

type App struct {
	cfgMgr *config.Manager
	logSvc *logx.Service
	log    logx.Logger

	store   storage.Store
	bus     eventbus.Bus
	trigger *scheduler.Service
	runner  *quiz.Runner

	sup *supervisor.Supervisor
}

// New loads and validates the configuration and builds the full object graph.
// Nothing runs until Start.
func New(configPath string) (*App, error) {
	cfgMgr := config.NewManager(configPath)
	cfg, err := cfgMgr.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := Validate(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File:    logx.FileConfig{Enabled: cfg.Logging.File.Enabled, Path: cfg.Logging.File.Path},
	})
	cfgMgr.SetLogger(log.With(logx.String("comp", "config")))
	cfgMgr.SetValidator(Validate)

	a := &App{cfgMgr: cfgMgr, logSvc: logSvc, log: log, bus: eventbus.New()}
	if err := a.build(cfg); err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(cfg *config.Config) error {
	log := a.log

	storeCfg := storage.Config{Driver: "file", Path: "./quizbot_store"}
	if cfg.Storage != nil {
		busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
		if err != nil {
			return err
		}
		storeCfg = storage.Config{Driver: cfg.Storage.Driver, Path: cfg.Storage.Path, BusyTimeout: busy}
	}
	store, err := storage.Open(storeCfg, log.With(logx.String("comp", "storage")))
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	if store == nil {
		// Schedules and the used-question log need durability.
		return errors.New("storage is required; set storage.driver to file or sqlite")
	}
	a.store = store

	bankTimeout, err := config.ParseDurationOrDefault("bank.timeout", cfg.Bank.Timeout, 15*time.Second)
	if err != nil {
		return err
	}
	bankClient, err := bank.New(bank.Config{
		BaseURL: cfg.Bank.BaseURL,
		APIKey:  cfg.Bank.APIKey,
		Timeout: bankTimeout,
	}, log)
	if err != nil {
		return err
	}

	var judge quiz.Judge
	if cfg.Oracle.Enabled {
		j, err := oracle.New(oracle.Config{APIKey: cfg.Oracle.APIKey, Model: cfg.Oracle.Model}, log)
		if err != nil {
			return err
		}
		judge = j
	}
	failOpen := true
	if cfg.Oracle.FailOpen != nil {
		failOpen = *cfg.Oracle.FailOpen
	}
	gate := quiz.NewGate(quiz.GateConfig{FailOpen: failOpen}, judge, log.With(logx.String("comp", "gate")))

	gw, err := telegram.New(telegram.Config{
		Token:      cfg.Telegram.Token,
		ChatID:     cfg.Telegram.ChatID,
		ThreadID:   cfg.Telegram.ThreadID,
		RatePerSec: cfg.Telegram.RatePerSec,
	}, log)
	if err != nil {
		return fmt.Errorf("telegram gateway: %w", err)
	}

	qc := cfg.Quiz
	retention := time.Duration(qc.RetentionDays) * 24 * time.Hour
	used := quiz.NewUsedLog(store, retention)
	repo := quiz.NewScheduleRepo(store)
	mgr := quiz.NewManager(quiz.ManagerConfig{
		DefaultQuestionCount: qc.QuestionCount,
	}, repo, used, bankClient, log.With(logx.String("comp", "schedule")))

	sel := quiz.NewSelector(quiz.SelectorConfig{
		FetchMultiplier: qc.FetchMultiplier,
		FetchHardCap:    qc.FetchHardCap,
		WindowDays:      qc.UsedWindowDays,
	}, bankClient, used, log.With(logx.String("comp", "selector")))

	langGap, err := config.ParseDurationOrDefault("quiz.language_gap", qc.LanguageGap, 3*time.Second)
	if err != nil {
		return err
	}
	questionGap, err := config.ParseDurationOrDefault("quiz.question_gap", qc.QuestionGap, 10*time.Second)
	if err != nil {
		return err
	}
	seq := quiz.NewSequencer(quiz.SequencerConfig{
		LanguageGap: langGap,
		QuestionGap: questionGap,
	}, gw, log.With(logx.String("comp", "sequencer")))

	a.runner = quiz.NewRunner(quiz.RunnerConfig{
		AttemptBudget: qc.AttemptBudget,
		Ratio: quiz.DifficultyRatio{
			Easy:   qc.DifficultyRatio.Easy,
			Medium: qc.DifficultyRatio.Medium,
			Hard:   qc.DifficultyRatio.Hard,
		},
	}, mgr, sel, gate, seq, a.bus, log.With(logx.String("comp", "runner")))

	notifyLead, err := config.ParseDurationOrDefault("quiz.notify_lead", qc.NotifyLead, 30*time.Minute)
	if err != nil {
		return err
	}
	a.trigger = scheduler.New(scheduler.Config{
		Timezone:   qc.Timezone,
		Slots:      qc.Slots,
		NotifyLead: notifyLead,
	}, a.runner, log)

	return nil
}

// Start launches the trigger, the config watcher, and the event logger.
func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log.With(logx.String("comp", "supervisor"))))

	if err := a.trigger.Start(a.sup.Context()); err != nil {
		a.sup.Cancel()
		return err
	}

	a.sup.Go("config.watch", func(ctx context.Context) error {
		return a.cfgMgr.Watch(ctx)
	})
	a.sup.Go0("config.apply", func(ctx context.Context) {
		a.applyLoop(ctx)
	})
	a.sup.Go0("events.log", func(ctx context.Context) {
		a.eventLoop(ctx)
	})

	a.log.Info("quizbot started")
	return nil
}

// applyLoop propagates hot-reloadable settings: log level/sinks and the
// trigger table. Everything else takes effect on restart.
func (a *App) applyLoop(ctx context.Context) {
	updates := a.cfgMgr.Subscribe(2)
	defer a.cfgMgr.Unsubscribe(updates)
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-updates:
			if !ok {
				return
			}
			a.logSvc.Apply(logx.Config{
				Level:   cfg.Logging.Level,
				Console: cfg.Logging.Console,
				File:    logx.FileConfig{Enabled: cfg.Logging.File.Enabled, Path: cfg.Logging.File.Path},
			})
			lead, err := config.ParseDurationOrDefault("quiz.notify_lead", cfg.Quiz.NotifyLead, 30*time.Minute)
			if err != nil {
				a.log.Warn("reload: bad notify_lead", logx.Err(err))
				continue
			}
			if err := a.trigger.Apply(ctx, scheduler.Config{
				Timezone:   cfg.Quiz.Timezone,
				Slots:      cfg.Quiz.Slots,
				NotifyLead: lead,
			}); err != nil {
				a.log.Error("reload: trigger apply failed", logx.Err(err))
			}
		}
	}
}

func (a *App) eventLoop(ctx context.Context) {
	events, unsub := a.bus.Subscribe(32)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			a.log.Debug("event", logx.String("type", ev.Type), logx.Any("data", ev.Data))
		}
	}
}

// Stop shuts down in stages: trigger first (no new sessions), then the
// supervised loops, then storage and log sinks.
func (a *App) Stop(ctx context.Context) {
	a.trigger.Stop(ctx)
	if a.sup != nil {
		a.sup.Cancel()
		if err := a.sup.Wait(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.log.Warn("shutdown incomplete", logx.Err(err))
		}
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("storage close failed", logx.Err(err))
	}
	a.log.Info("quizbot stopped")
	_ = a.logSvc.Close()
}

// Validate is the config acceptance gate, run on initial load and before
// every hot-reload commit.
func Validate(ctx context.Context, cfg *config.Config) error {
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return errors.New("telegram.token is required")
	}
	if cfg.Telegram.ChatID == 0 {
		return errors.New("telegram.chat_id is required")
	}
	if strings.TrimSpace(cfg.Bank.BaseURL) == "" {
		return errors.New("bank.base_url is required")
	}
	if cfg.Oracle.Enabled && strings.TrimSpace(cfg.Oracle.APIKey) == "" {
		return errors.New("oracle.api_key is required when oracle.enabled")
	}

	qc := cfg.Quiz
	if tz := strings.TrimSpace(qc.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("quiz.timezone: %w", err)
		}
	}
	for _, slot := range qc.Slots {
		if err := validateSlot(slot); err != nil {
			return err
		}
	}
	r := qc.DifficultyRatio
	if r.Easy < 0 || r.Medium < 0 || r.Hard < 0 {
		return errors.New("quiz.difficulty_ratio entries must be >= 0")
	}
	if qc.QuestionCount < 0 {
		return errors.New("quiz.question_count must be >= 0")
	}
	for _, d := range []struct{ path, raw string }{
		{"quiz.notify_lead", qc.NotifyLead},
		{"quiz.language_gap", qc.LanguageGap},
		{"quiz.question_gap", qc.QuestionGap},
		{"bank.timeout", cfg.Bank.Timeout},
	} {
		if _, err := config.ParseDurationField(d.path, d.raw); err != nil {
			return err
		}
	}
	if cfg.Storage != nil {
		if _, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout); err != nil {
			return err
		}
	}
	return nil
}

func validateSlot(s string) error {
	s = strings.TrimSpace(s)
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return fmt.Errorf("quiz.slots: invalid entry %q, expected HH:MM", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return fmt.Errorf("quiz.slots: %q out of range", s)
	}
	return nil
}
