package quiz

import (
	"context"
	"testing"
	"time"

	logx "quizbot/pkg/logx"
)

type runnerFixture struct {
	runner *Runner
	mgr    *Manager
	gw     *fakeMessenger
	src    *fakeSource
}

func newRunnerFixture(t *testing.T, src *fakeSource, judge Judge) *runnerFixture {
	t.Helper()
	store := newMemStore()
	mgr := NewManager(ManagerConfig{}, NewScheduleRepo(store), NewUsedLog(store, 0), defaultCatalog(), logx.Nop())
	sel := NewSelector(SelectorConfig{}, src, mgr.UsedLog(), logx.Nop())
	gate := NewGate(GateConfig{FailOpen: true}, judge, logx.Nop())
	gw := &fakeMessenger{failPollIdx: map[int]bool{}}
	seq := NewSequencer(SequencerConfig{}, gw, logx.Nop())
	runner := NewRunner(RunnerConfig{}, mgr, sel, gate, seq, nil, logx.Nop())
	return &runnerFixture{runner: runner, mgr: mgr, gw: gw, src: src}
}

func TestRunnerHappyPath(t *testing.T) {
	t.Parallel()
	f := newRunnerFixture(t, &fakeSource{questions: mkQuestions("q", 60, DifficultyMedium)}, nil)
	ctx := context.Background()

	if err := f.runner.Run(ctx, "2026-08-23", "08:00"); err != nil {
		t.Fatalf("run: %v", err)
	}

	sched, err := f.mgr.Get(ctx, "2026-08-23", "08:00")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if sched.Status != StatusCompleted {
		t.Fatalf("status = %s, want completed", sched.Status)
	}
	// Default count is 10, bilingual pairs, plus start and summary messages.
	if len(f.gw.polls) != 20 {
		t.Fatalf("polls = %d, want 20", len(f.gw.polls))
	}
	if len(f.gw.messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(f.gw.messages))
	}

	// Delivered questions land in the used log.
	recent, err := f.mgr.UsedLog().RecentIDs(ctx, time.Hour)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 10 {
		t.Fatalf("used log = %d, want 10", len(recent))
	}
}

func TestRunnerSecondTriggerIsNoOp(t *testing.T) {
	t.Parallel()
	f := newRunnerFixture(t, &fakeSource{questions: mkQuestions("q", 60, DifficultyMedium)}, nil)
	ctx := context.Background()

	if err := f.runner.Run(ctx, "2026-08-23", "08:00"); err != nil {
		t.Fatalf("first run: %v", err)
	}
	delivered := len(f.gw.polls)

	if err := f.runner.Run(ctx, "2026-08-23", "08:00"); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(f.gw.polls) != delivered {
		t.Fatalf("second trigger delivered %d more polls", len(f.gw.polls)-delivered)
	}
}

func TestRunnerCancelsOnEmptyPool(t *testing.T) {
	t.Parallel()
	f := newRunnerFixture(t, &fakeSource{}, nil)
	ctx := context.Background()

	if err := f.runner.Run(ctx, "2026-08-23", "08:00"); err != nil {
		t.Fatalf("run: %v", err)
	}
	sched, err := f.mgr.Get(ctx, "2026-08-23", "08:00")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if sched.Status != StatusCancelled {
		t.Fatalf("status = %s, want cancelled", sched.Status)
	}
	if len(f.gw.polls) != 0 {
		t.Fatalf("polls = %d, want none", len(f.gw.polls))
	}
}

func TestRunnerCancelsOnDeliveryFailure(t *testing.T) {
	t.Parallel()
	f := newRunnerFixture(t, &fakeSource{questions: mkQuestions("q", 60, DifficultyMedium)}, nil)
	f.gw.failMessage = true // start announcement fails, delivery aborts
	ctx := context.Background()

	if err := f.runner.Run(ctx, "2026-08-23", "08:00"); err == nil {
		t.Fatal("expected delivery failure to surface")
	}
	sched, err := f.mgr.Get(ctx, "2026-08-23", "08:00")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if sched.Status != StatusCancelled {
		t.Fatalf("status = %s, want cancelled", sched.Status)
	}
}

func TestRunnerDeliversShortSession(t *testing.T) {
	t.Parallel()
	// Only 4 questions exist; the session runs with what it has.
	f := newRunnerFixture(t, &fakeSource{questions: mkQuestions("q", 4, DifficultyMedium)}, nil)
	ctx := context.Background()

	if err := f.runner.Run(ctx, "2026-08-23", "08:00"); err != nil {
		t.Fatalf("run: %v", err)
	}
	sched, err := f.mgr.Get(ctx, "2026-08-23", "08:00")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if sched.Status != StatusCompleted {
		t.Fatalf("status = %s, want completed", sched.Status)
	}
	if len(f.gw.polls) != 8 {
		t.Fatalf("polls = %d, want 8 (4 questions, both languages)", len(f.gw.polls))
	}
}

func TestRunnerGateRejectionsTriggerRetry(t *testing.T) {
	t.Parallel()
	judge := &fakeJudge{rejects: map[string]string{"q00": "bad", "q01": "bad"}}
	f := newRunnerFixture(t, &fakeSource{questions: mkQuestions("q", 60, DifficultyMedium)}, judge)
	ctx := context.Background()

	if err := f.runner.Run(ctx, "2026-08-23", "08:00"); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(f.gw.polls) != 20 {
		t.Fatalf("polls = %d, want a full 10-question session", len(f.gw.polls))
	}
	for _, p := range f.gw.polls {
		if p.Question == "Question q00" || p.Question == "Question q01" {
			t.Fatalf("rejected question delivered: %q", p.Question)
		}
	}
}

func TestRunnerNotify(t *testing.T) {
	t.Parallel()
	f := newRunnerFixture(t, &fakeSource{questions: mkQuestions("q", 60, DifficultyMedium)}, nil)
	ctx := context.Background()

	// Nothing scheduled yet: notify stays silent and creates nothing.
	if err := f.runner.Notify(ctx, "2026-08-23", "08:00", 30*time.Minute); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(f.gw.messages) != 0 {
		t.Fatalf("messages = %d, want none before schedule exists", len(f.gw.messages))
	}
	if sched, _ := f.mgr.Get(ctx, "2026-08-23", "08:00"); sched != nil {
		t.Fatal("notify must not create a schedule")
	}

	if _, _, err := f.mgr.GetOrCreate(ctx, "2026-08-23", "08:00"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := f.runner.Notify(ctx, "2026-08-23", "08:00", 30*time.Minute); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(f.gw.messages) != 1 {
		t.Fatalf("messages = %d, want 1", len(f.gw.messages))
	}
}
