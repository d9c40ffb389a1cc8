// Package scheduler fires the quiz runner on the configured daily slots and
// sends the pre-session notification a fixed lead earlier.
package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "quizbot/pkg/logx"
)

// Runner is the session entrypoint the trigger drives.
type Runner interface {
	Run(ctx context.Context, date, slot string) error
	Notify(ctx context.Context, date, slot string, lead time.Duration) error
}

type Config struct {
	Timezone   string        // IANA name, e.g. "Asia/Kolkata"
	Slots      []string      // wall-clock "HH:MM" entries
	NotifyLead time.Duration // default 30m
}

func (c Config) withDefaults() Config {
	if c.Timezone == "" {
		c.Timezone = "Asia/Kolkata"
	}
	if len(c.Slots) == 0 {
		c.Slots = []string{"08:00", "20:00"}
	}
	if c.NotifyLead <= 0 {
		c.NotifyLead = 30 * time.Minute
	}
	return c
}

type Service struct {
	mu  sync.Mutex
	cfg Config
	log logx.Logger

	runner Runner
	c      *cron.Cron
	loc    *time.Location

	runCtx    context.Context
	runCancel context.CancelFunc

	// running holds slots with a session in flight; a cron tick for a slot
	// already present here is dropped.
	rmu     sync.Mutex
	running map[string]bool
}

func New(cfg Config, runner Runner, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:     cfg.withDefaults(),
		runner:  runner,
		log:     log.With(logx.String("comp", "trigger")),
		running: map[string]bool{},
	}
}

// Start validates the slots, builds the cron table, and starts it. Two
// entries per slot: the execution at HH:MM and the notification lead earlier.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return nil
	}

	loc, err := time.LoadLocation(strings.TrimSpace(s.cfg.Timezone))
	if err != nil {
		return fmt.Errorf("load timezone %q: %w", s.cfg.Timezone, err)
	}
	s.loc = loc
	s.runCtx, s.runCancel = context.WithCancel(ctx)
	s.c = cron.New(cron.WithLocation(loc))

	for _, slot := range s.cfg.Slots {
		if err := s.registerLocked(slot); err != nil {
			s.c = nil
			s.runCancel()
			return err
		}
	}

	s.c.Start()
	s.log.Info("trigger started",
		logx.String("tz", loc.String()),
		logx.Any("slots", s.cfg.Slots),
		logx.Duration("notify_lead", s.cfg.NotifyLead))
	return nil
}

func (s *Service) registerLocked(slot string) error {
	h, m, err := parseHHMM(slot)
	if err != nil {
		return err
	}
	slot = fmt.Sprintf("%02d:%02d", h, m)

	if _, err := s.c.AddFunc(cronSpec(h, m), func() { s.fire(slot) }); err != nil {
		return fmt.Errorf("register slot %s: %w", slot, err)
	}

	nh, nm, dayBefore := notifyAt(h, m, s.cfg.NotifyLead)
	if _, err := s.c.AddFunc(cronSpec(nh, nm), func() { s.notify(slot, dayBefore) }); err != nil {
		return fmt.Errorf("register notification for %s: %w", slot, err)
	}
	return nil
}

// Stop halts the cron table and cancels in-flight sessions.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c == nil {
		return
	}
	stopped := s.c.Stop()
	s.c = nil
	s.runCancel()

	select {
	case <-stopped.Done():
	case <-ctx.Done():
	}
	s.log.Info("trigger stopped")
}

// Apply swaps the configuration. Slot, lead, or timezone changes rebuild the
// cron table; a stopped service just keeps the new config for the next Start.
func (s *Service) Apply(ctx context.Context, cfg Config) error {
	cfg = cfg.withDefaults()

	s.mu.Lock()
	same := s.cfg.Timezone == cfg.Timezone &&
		s.cfg.NotifyLead == cfg.NotifyLead &&
		strings.Join(s.cfg.Slots, ",") == strings.Join(cfg.Slots, ",")
	wasRunning := s.c != nil
	s.cfg = cfg
	s.mu.Unlock()

	if same || !wasRunning {
		return nil
	}
	s.Stop(ctx)
	return s.Start(ctx)
}

func (s *Service) fire(slot string) {
	s.rmu.Lock()
	if s.running[slot] {
		s.rmu.Unlock()
		s.log.Warn("slot still running, skipping trigger", logx.String("slot", slot))
		return
	}
	s.running[slot] = true
	s.rmu.Unlock()
	defer func() {
		s.rmu.Lock()
		delete(s.running, slot)
		s.rmu.Unlock()
	}()
	defer s.recoverJob("run", slot)

	ctx, date := s.jobContext(0)
	if ctx == nil {
		return
	}
	if err := s.runner.Run(ctx, date, slot); err != nil {
		s.log.Error("session run failed",
			logx.String("date", date), logx.String("slot", slot), logx.Err(err))
	}
}

func (s *Service) notify(slot string, dayBefore bool) {
	defer s.recoverJob("notify", slot)

	shift := 0
	if dayBefore {
		// Notification fires on the calendar day before its slot.
		shift = 1
	}
	ctx, date := s.jobContext(shift)
	if ctx == nil {
		return
	}
	s.mu.Lock()
	lead := s.cfg.NotifyLead
	s.mu.Unlock()
	if err := s.runner.Notify(ctx, date, slot, lead); err != nil {
		s.log.Warn("notification failed",
			logx.String("date", date), logx.String("slot", slot), logx.Err(err))
	}
}

// jobContext returns the run context and the quiz date shifted forward by
// dayShift in the trigger timezone. Nil context means the service stopped.
func (s *Service) jobContext(dayShift int) (context.Context, string) {
	s.mu.Lock()
	ctx := s.runCtx
	loc := s.loc
	s.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return nil, ""
	}
	date := time.Now().In(loc).AddDate(0, 0, dayShift).Format("2006-01-02")
	return ctx, date
}

func (s *Service) recoverJob(kind, slot string) {
	if r := recover(); r != nil {
		s.log.Error("panic in trigger job",
			logx.String("kind", kind),
			logx.String("slot", slot),
			logx.Any("panic", r),
			logx.String("stack", string(debug.Stack())))
	}
}
