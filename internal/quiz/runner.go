package quiz

import (
	"context"
	"fmt"
	"time"

	"quizbot/internal/eventbus"
	logx "quizbot/pkg/logx"
)

// RunnerConfig bounds one acquisition run.
type RunnerConfig struct {
	AttemptBudget int // default DefaultAttemptBudget
	// Ratio overrides the selector's default difficulty mix when non-zero.
	Ratio DifficultyRatio
}

// Runner orchestrates a full session for one (date, slot): schedule
// resolution, acquisition, delivery, and lifecycle bookkeeping.
type Runner struct {
	cfg  RunnerConfig
	mgr  *Manager
	sel  *Selector
	gate *Gate
	seq  *Sequencer
	bus  eventbus.Bus
	log  logx.Logger
}

func NewRunner(cfg RunnerConfig, mgr *Manager, sel *Selector, gate *Gate, seq *Sequencer, bus eventbus.Bus, log logx.Logger) *Runner {
	if cfg.AttemptBudget <= 0 {
		cfg.AttemptBudget = DefaultAttemptBudget
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Runner{cfg: cfg, mgr: mgr, sel: sel, gate: gate, seq: seq, bus: bus, log: log}
}

func (r *Runner) publish(typ string, data any) {
	if r.bus != nil {
		r.bus.Publish(eventbus.Event{Type: typ, Data: data})
	}
}

// Run executes the session for (date, slot). A schedule that is already
// in_progress or terminal makes this a no-op, which is what de-duplicates a
// double trigger firing for the same slot.
func (r *Runner) Run(ctx context.Context, date, slot string) error {
	log := r.log.With(logx.String("date", date), logx.String("slot", slot))

	sched, created, err := r.mgr.GetOrCreate(ctx, date, slot)
	if err != nil {
		return fmt.Errorf("resolve schedule: %w", err)
	}
	if created {
		r.publish(eventbus.EventScheduleCreated, sched.ID)
	}
	if sched.Status != StatusScheduled {
		log.Info("schedule not runnable; skipping", logx.String("status", string(sched.Status)))
		return nil
	}

	if err := r.mgr.Transition(ctx, sched, StatusInProgress); err != nil {
		return err
	}
	r.publish(eventbus.EventSessionStarted, sched.ID)

	draw := func(ctx context.Context, count int, exclude map[string]struct{}) ([]Question, error) {
		return r.sel.Select(ctx, SelectRequest{
			Count:      count,
			SubjectIDs: sched.SubjectIDs,
			ChapterIDs: sched.ChapterIDs,
			Ratio:      r.cfg.Ratio,
			ExcludeIDs: exclude,
		})
	}

	res, err := Acquire(ctx, sched.QuestionCount, r.cfg.AttemptBudget, draw, r.gate.JudgeFunc())
	if err != nil {
		r.cancel(ctx, sched, log, "acquisition failed", err)
		return err
	}
	if len(res.Accepted) == 0 {
		// Hard failure: nothing to deliver, never a padded session.
		r.cancel(ctx, sched, log, "zero approved questions", nil)
		return nil
	}
	if len(res.Accepted) < sched.QuestionCount {
		log.Warn("soft shortage; delivering what we have",
			logx.Int("target", sched.QuestionCount),
			logx.Int("approved", len(res.Accepted)),
			logx.Int("attempts", res.Attempts),
			logx.Bool("pool_exhausted", res.Exhausted))
	}

	sent, err := r.seq.Deliver(ctx, sched, res.Accepted)
	if err != nil {
		r.cancel(ctx, sched, log, "delivery failed", err)
		return err
	}

	if err := r.mgr.Transition(ctx, sched, StatusCompleted); err != nil {
		return err
	}
	if err := r.mgr.MarkDelivered(ctx, sched, res.Accepted); err != nil {
		log.Error("used-question log append failed", logx.Err(err))
	}
	r.publish(eventbus.EventSessionCompleted, map[string]any{"id": sched.ID, "sent": sent})
	log.Info("session completed",
		logx.Int("sent", sent),
		logx.Int("approved", len(res.Accepted)),
		logx.Int("attempts", res.Attempts))
	return nil
}

func (r *Runner) cancel(ctx context.Context, sched *Schedule, log logx.Logger, reason string, cause error) {
	log.Warn("cancelling session", logx.String("reason", reason), logx.Err(cause))
	if err := r.mgr.Transition(ctx, sched, StatusCancelled); err != nil {
		log.Error("cancel transition failed", logx.Err(err))
		return
	}
	r.publish(eventbus.EventSessionCancelled, map[string]any{"id": sched.ID, "reason": reason})
}

// Notify announces an upcoming slot. It only speaks for schedules that
// already exist and are still pending; it never creates one.
func (r *Runner) Notify(ctx context.Context, date, slot string, lead time.Duration) error {
	sched, err := r.mgr.Get(ctx, date, slot)
	if err != nil {
		return err
	}
	if sched == nil || sched.Status != StatusScheduled {
		return nil
	}
	return r.seq.Notify(ctx, sched, lead)
}
