package quiz

import (
	"context"
	"testing"

	logx "quizbot/pkg/logx"
)

func newTestSelector(src QuestionSource, recent recentSet) *Selector {
	return NewSelector(SelectorConfig{}, src, recent, logx.Nop())
}

func TestSelectDifficultyRatio(t *testing.T) {
	t.Parallel()
	// 50 verified, unused questions; request 20 with default ratios.
	var qs []Question
	qs = append(qs, mkQuestions("e", 15, DifficultyEasy)...)
	qs = append(qs, mkQuestions("m", 25, DifficultyMedium)...)
	qs = append(qs, mkQuestions("h", 10, DifficultyHard)...)

	sel := newTestSelector(&fakeSource{questions: qs}, nil)
	got, err := sel.Select(context.Background(), SelectRequest{Count: 20})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(got) != 20 {
		t.Fatalf("len = %d, want 20", len(got))
	}

	counts := map[Difficulty]int{}
	for _, q := range got {
		counts[q.Difficulty]++
	}
	if counts[DifficultyEasy] != 6 || counts[DifficultyMedium] != 10 || counts[DifficultyHard] != 4 {
		t.Fatalf("difficulty mix = %v, want 6/10/4", counts)
	}
}

func TestSelectNeverExceedsRequest(t *testing.T) {
	t.Parallel()
	sel := newTestSelector(&fakeSource{questions: mkQuestions("m", 40, DifficultyMedium)}, nil)
	got, err := sel.Select(context.Background(), SelectRequest{Count: 7})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(got) != 7 {
		t.Fatalf("len = %d, want 7", len(got))
	}
}

func TestSelectExcludesRecentlyUsed(t *testing.T) {
	t.Parallel()
	qs := mkQuestions("m", 10, DifficultyMedium)
	recent := recentSet{"m00": {}, "m01": {}, "m02": {}}

	sel := newTestSelector(&fakeSource{questions: qs}, recent)
	got, err := sel.Select(context.Background(), SelectRequest{Count: 10})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(got) != 7 {
		t.Fatalf("len = %d, want 7 after exclusions", len(got))
	}
	for _, q := range got {
		if _, used := recent[q.ID]; used {
			t.Fatalf("recently used question %s selected", q.ID)
		}
	}
}

func TestSelectExcludesLoopDraws(t *testing.T) {
	t.Parallel()
	qs := mkQuestions("m", 5, DifficultyMedium)
	sel := newTestSelector(&fakeSource{questions: qs}, nil)
	got, err := sel.Select(context.Background(), SelectRequest{
		Count:      5,
		ExcludeIDs: map[string]struct{}{"m00": {}, "m04": {}},
	})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
}

func TestSelectDedupeKey(t *testing.T) {
	t.Parallel()
	qs := mkQuestions("m", 10, DifficultyMedium)
	// Three near-duplicates share a fingerprint; only one may survive.
	qs[1].DedupeKey = "fp1"
	qs[4].DedupeKey = "fp1"
	qs[7].DedupeKey = "fp1"

	sel := newTestSelector(&fakeSource{questions: qs}, nil)
	got, err := sel.Select(context.Background(), SelectRequest{Count: 10})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	seen := 0
	for _, q := range got {
		if q.DedupeKey == "fp1" {
			seen++
		}
	}
	if seen != 1 {
		t.Fatalf("dedupe key appeared %d times, want 1", seen)
	}
	if len(got) != 8 {
		t.Fatalf("len = %d, want 8 after dedupe", len(got))
	}
}

func TestSelectShortfallIsNotAnError(t *testing.T) {
	t.Parallel()
	sel := newTestSelector(&fakeSource{questions: mkQuestions("m", 10, DifficultyMedium)}, nil)
	got, err := sel.Select(context.Background(), SelectRequest{Count: 20})
	if err != nil {
		t.Fatalf("shortfall must not error: %v", err)
	}
	if len(got) != 10 {
		t.Fatalf("len = %d, want everything available (10)", len(got))
	}
}

func TestSelectBackfillsUnsetDifficulty(t *testing.T) {
	t.Parallel()
	var qs []Question
	qs = append(qs, mkQuestions("e", 2, DifficultyEasy)...)
	qs = append(qs, mkQuestions("u", 10, DifficultyUnset)...)

	sel := newTestSelector(&fakeSource{questions: qs}, nil)
	got, err := sel.Select(context.Background(), SelectRequest{Count: 8})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(got) != 8 {
		t.Fatalf("len = %d, want 8 via backfill", len(got))
	}
}

func TestSelectZeroCount(t *testing.T) {
	t.Parallel()
	sel := newTestSelector(&fakeSource{questions: mkQuestions("m", 5, DifficultyMedium)}, nil)
	got, err := sel.Select(context.Background(), SelectRequest{Count: 0})
	if err != nil || got != nil {
		t.Fatalf("zero count: got %v, %v", got, err)
	}
}
