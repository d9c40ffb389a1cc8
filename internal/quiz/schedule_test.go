package quiz

import (
	"context"
	"errors"
	"testing"
	"time"

	logx "quizbot/pkg/logx"
)

func newTestManager(t *testing.T, cat Catalog) (*Manager, *memStore) {
	t.Helper()
	store := newMemStore()
	repo := NewScheduleRepo(store)
	used := NewUsedLog(store, 0)
	return NewManager(ManagerConfig{}, repo, used, cat, logx.Nop()), store
}

func defaultCatalog() *fakeCatalog {
	return &fakeCatalog{subjects: []Subject{
		{
			ID:   "subj1",
			Name: "Polity",
			Chapters: []Chapter{
				{ID: "ch1", Name: "Preamble"},
				{ID: "ch2", Name: "Fundamental Rights"},
				{ID: "ch3", Name: "DPSP"},
				{ID: "ch4", Name: "Union Executive"},
				{ID: "ch5", Name: "Judiciary"},
			},
		},
	}}
}

func TestGetOrCreateIsIdempotent(t *testing.T) {
	t.Parallel()
	mgr, _ := newTestManager(t, defaultCatalog())
	ctx := context.Background()

	first, created, err := mgr.GetOrCreate(ctx, "2026-08-23", "08:00")
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	if !created {
		t.Fatal("first call should create")
	}
	second, created, err := mgr.GetOrCreate(ctx, "2026-08-23", "08:00")
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if created {
		t.Fatal("second call must not create")
	}
	if second.ID != first.ID {
		t.Fatalf("ids differ: %s vs %s", second.ID, first.ID)
	}
}

func TestGetOrCreateAutoGeneration(t *testing.T) {
	t.Parallel()
	mgr, _ := newTestManager(t, defaultCatalog())

	sched, _, err := mgr.GetOrCreate(context.Background(), "2026-08-23", "20:00")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if sched.Status != StatusScheduled {
		t.Fatalf("status = %s, want scheduled", sched.Status)
	}
	if sched.QuestionCount != 10 {
		t.Fatalf("count = %d, want default 10", sched.QuestionCount)
	}
	if len(sched.SubjectIDs) != 1 || sched.SubjectIDs[0] != "subj1" {
		t.Fatalf("subjects = %v", sched.SubjectIDs)
	}
	if len(sched.ChapterIDs) == 0 || len(sched.ChapterIDs) > 3 {
		t.Fatalf("chapters = %d, want 1..3", len(sched.ChapterIDs))
	}
	if sched.Title != "Polity Quiz" {
		t.Fatalf("title = %q", sched.Title)
	}
	if sched.ID != "qz-20260823-2000" {
		t.Fatalf("id = %q", sched.ID)
	}
}

func TestGetOrCreateEmptyCatalog(t *testing.T) {
	t.Parallel()
	mgr, _ := newTestManager(t, &fakeCatalog{})
	if _, _, err := mgr.GetOrCreate(context.Background(), "2026-08-23", "08:00"); err == nil {
		t.Fatal("empty catalog must fail")
	}
}

func TestGetOrCreateCatalogError(t *testing.T) {
	t.Parallel()
	mgr, _ := newTestManager(t, &fakeCatalog{err: errors.New("catalog down")})
	if _, _, err := mgr.GetOrCreate(context.Background(), "2026-08-23", "08:00"); err == nil {
		t.Fatal("catalog failure must propagate")
	}
}

func TestTransitionGuards(t *testing.T) {
	t.Parallel()
	cases := []struct {
		from, to ScheduleStatus
		ok       bool
	}{
		{StatusScheduled, StatusInProgress, true},
		{StatusScheduled, StatusCancelled, true},
		{StatusScheduled, StatusCompleted, false},
		{StatusInProgress, StatusCompleted, true},
		{StatusInProgress, StatusCancelled, true},
		{StatusInProgress, StatusScheduled, false},
		{StatusCompleted, StatusInProgress, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusScheduled, false},
		{StatusCancelled, StatusInProgress, false},
	}
	for _, tc := range cases {
		t.Run(string(tc.from)+"_to_"+string(tc.to), func(t *testing.T) {
			t.Parallel()
			mgr, _ := newTestManager(t, defaultCatalog())
			s := &Schedule{ID: "s1", Date: "2026-08-23", Slot: "08:00", Status: tc.from}
			err := mgr.Transition(context.Background(), s, tc.to)
			if tc.ok && err != nil {
				t.Fatalf("transition failed: %v", err)
			}
			if !tc.ok {
				if !errors.Is(err, ErrInvalidTransition) {
					t.Fatalf("err = %v, want ErrInvalidTransition", err)
				}
				if s.Status != tc.from {
					t.Fatalf("status mutated to %s on rejected transition", s.Status)
				}
			}
		})
	}
}

func TestTransitionSetsCompletedAt(t *testing.T) {
	t.Parallel()
	mgr, _ := newTestManager(t, defaultCatalog())
	fixed := time.Date(2026, 8, 23, 20, 15, 0, 0, time.UTC)
	mgr.now = func() time.Time { return fixed }

	s := &Schedule{ID: "s1", Date: "2026-08-23", Slot: "20:00", Status: StatusInProgress}
	if err := mgr.Transition(context.Background(), s, StatusCompleted); err != nil {
		t.Fatalf("transition: %v", err)
	}
	if s.CompletedAt == nil || !s.CompletedAt.Equal(fixed) {
		t.Fatalf("completed_at = %v, want %v", s.CompletedAt, fixed)
	}
}

func TestTransitionPersists(t *testing.T) {
	t.Parallel()
	mgr, store := newTestManager(t, defaultCatalog())
	ctx := context.Background()

	sched, _, err := mgr.GetOrCreate(ctx, "2026-08-23", "08:00")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := mgr.Transition(ctx, sched, StatusInProgress); err != nil {
		t.Fatalf("transition: %v", err)
	}

	// A fresh repo over the same store sees the persisted state.
	reloaded, err := NewScheduleRepo(store).Load(ctx, "2026-08-23", "08:00")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded == nil || reloaded.Status != StatusInProgress {
		t.Fatalf("reloaded = %+v, want in_progress", reloaded)
	}
}

func TestUsedLogAppendAndRecent(t *testing.T) {
	t.Parallel()
	store := newMemStore()
	used := NewUsedLog(store, 30*24*time.Hour)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 8, 0, 0, 0, time.UTC)
	used.now = func() time.Time { return base }
	if err := used.Append(ctx, "s1", []string{"q1", "q2"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	// Ten days later: a second batch, then a 7-day recency query.
	used.now = func() time.Time { return base.Add(10 * 24 * time.Hour) }
	if err := used.Append(ctx, "s2", []string{"q3"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	recent, err := used.RecentIDs(ctx, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 1 {
		t.Fatalf("recent = %v, want only q3", recent)
	}
	if _, ok := recent["q3"]; !ok {
		t.Fatalf("recent = %v, missing q3", recent)
	}

	// Widening the window picks the older batch back up.
	all, err := used.RecentIDs(ctx, 20*24*time.Hour)
	if err != nil {
		t.Fatalf("recent wide: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("wide recent = %v, want 3", all)
	}
}

func TestUsedLogPrunesOnWrite(t *testing.T) {
	t.Parallel()
	store := newMemStore()
	used := NewUsedLog(store, 30*24*time.Hour)
	ctx := context.Background()

	base := time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC)
	used.now = func() time.Time { return base }
	if err := used.Append(ctx, "s1", []string{"old1", "old2"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	// 31 days later the retention pass drops the old entries.
	used.now = func() time.Time { return base.Add(31 * 24 * time.Hour) }
	if err := used.Append(ctx, "s2", []string{"new1"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	all, err := used.RecentIDs(ctx, 365*24*time.Hour)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("log = %v, want pruned to new1 only", all)
	}
	if _, ok := all["new1"]; !ok {
		t.Fatalf("log = %v, missing new1", all)
	}
}

func TestMarkDelivered(t *testing.T) {
	t.Parallel()
	mgr, _ := newTestManager(t, defaultCatalog())
	ctx := context.Background()

	s := &Schedule{ID: "s1", Date: "2026-08-23", Slot: "08:00"}
	if err := mgr.MarkDelivered(ctx, s, mkQuestions("q", 3, DifficultyEasy)); err != nil {
		t.Fatalf("mark: %v", err)
	}
	recent, err := mgr.UsedLog().RecentIDs(ctx, time.Hour)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("recent = %v, want 3", recent)
	}
}
