package quiz

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	logx "quizbot/pkg/logx"
)

// DifficultyRatio is the target mix of a selection.
type DifficultyRatio struct {
	Easy   float64
	Medium float64
	Hard   float64
}

// DefaultRatio is the stock mix: 30% easy, 50% medium, 20% hard.
var DefaultRatio = DifficultyRatio{Easy: 0.3, Medium: 0.5, Hard: 0.2}

func (r DifficultyRatio) isZero() bool { return r.Easy == 0 && r.Medium == 0 && r.Hard == 0 }

// RecentlyUsed yields the identifiers of questions delivered within the
// trailing window. Implemented by the used-question repository.
type RecentlyUsed interface {
	RecentIDs(ctx context.Context, window time.Duration) (map[string]struct{}, error)
}

// SelectorConfig tunes superset fetching and the exclusion window.
type SelectorConfig struct {
	FetchMultiplier int // superset factor over the requested count (default 5)
	FetchHardCap    int // absolute fetch ceiling (default 200)
	WindowDays      int // recently-used exclusion window (default 7)
}

func (c SelectorConfig) withDefaults() SelectorConfig {
	if c.FetchMultiplier <= 0 {
		c.FetchMultiplier = 5
	}
	if c.FetchHardCap <= 0 {
		c.FetchHardCap = 200
	}
	if c.WindowDays <= 0 {
		c.WindowDays = 7
	}
	return c
}

// SelectRequest asks for up to Count questions matching the filters.
type SelectRequest struct {
	Count      int
	SubjectIDs []string
	ChapterIDs []string
	// Ratio defaults to DefaultRatio when zero.
	Ratio DifficultyRatio
	// WindowDays overrides the configured exclusion window when > 0.
	WindowDays int
	// ExcludeIDs are additional identifiers to skip (loop-scoped draws).
	ExcludeIDs map[string]struct{}
}

// Selector pulls candidate questions and samples them to the target
// difficulty mix, excluding recently-used questions and near-duplicates.
type Selector struct {
	cfg    SelectorConfig
	source QuestionSource
	used   RecentlyUsed
	log    logx.Logger
	rng    *rand.Rand
}

func NewSelector(cfg SelectorConfig, source QuestionSource, used RecentlyUsed, log logx.Logger) *Selector {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Selector{
		cfg:    cfg.withDefaults(),
		source: source,
		used:   used,
		log:    log,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Select returns up to req.Count questions. A shorter result signals pool
// shortage and is not an error; callers decide how to react.
func (s *Selector) Select(ctx context.Context, req SelectRequest) ([]Question, error) {
	n := req.Count
	if n <= 0 {
		return nil, nil
	}
	ratio := req.Ratio
	if ratio.isZero() {
		ratio = DefaultRatio
	}

	limit := n * s.cfg.FetchMultiplier
	if limit > s.cfg.FetchHardCap {
		limit = s.cfg.FetchHardCap
	}

	fetched, err := s.source.Query(ctx, QueryFilter{
		SubjectIDs:   req.SubjectIDs,
		ChapterIDs:   req.ChapterIDs,
		VerifiedOnly: true,
		Limit:        limit,
	})
	if err != nil {
		return nil, fmt.Errorf("question query: %w", err)
	}

	windowDays := req.WindowDays
	if windowDays <= 0 {
		windowDays = s.cfg.WindowDays
	}
	recent := map[string]struct{}{}
	if s.used != nil {
		recent, err = s.used.RecentIDs(ctx, time.Duration(windowDays)*24*time.Hour)
		if err != nil {
			return nil, fmt.Errorf("recently-used lookup: %w", err)
		}
	}

	pool := s.filterPool(fetched, recent, req.ExcludeIDs)
	if len(pool) == 0 {
		return nil, nil
	}

	picked := s.sample(pool, n, ratio)

	// Final permutation: no difficulty clustering in the output.
	s.rng.Shuffle(len(picked), func(i, j int) { picked[i], picked[j] = picked[j], picked[i] })

	if len(picked) < n {
		s.log.Debug("selection shortfall",
			logx.Int("requested", n),
			logx.Int("selected", len(picked)),
			logx.Int("fetched", len(fetched)))
	}
	return picked, nil
}

// filterPool removes recently-used and explicitly excluded questions, then
// deduplicates by dedupe key (first occurrence wins; fetch order carries no
// meaning, so "first" is arbitrary by design of the repository contract).
func (s *Selector) filterPool(fetched []Question, recent, exclude map[string]struct{}) []Question {
	seenID := make(map[string]struct{}, len(fetched))
	seenKey := make(map[string]struct{}, len(fetched))
	pool := make([]Question, 0, len(fetched))
	for _, q := range fetched {
		if q.ID == "" {
			continue
		}
		if _, ok := seenID[q.ID]; ok {
			continue
		}
		seenID[q.ID] = struct{}{}
		if _, ok := recent[q.ID]; ok {
			continue
		}
		if exclude != nil {
			if _, ok := exclude[q.ID]; ok {
				continue
			}
		}
		if q.DedupeKey != "" {
			if _, ok := seenKey[q.DedupeKey]; ok {
				continue
			}
			seenKey[q.DedupeKey] = struct{}{}
		}
		pool = append(pool, q)
	}
	return pool
}

// sample draws round(n×ratio) per difficulty bucket, then backfills any
// shortfall from the remaining pool regardless of difficulty.
func (s *Selector) sample(pool []Question, n int, ratio DifficultyRatio) []Question {
	buckets := map[Difficulty][]Question{}
	for _, q := range pool {
		buckets[q.Difficulty] = append(buckets[q.Difficulty], q)
	}
	for _, b := range buckets {
		s.rng.Shuffle(len(b), func(i, j int) { b[i], b[j] = b[j], b[i] })
	}

	quota := map[Difficulty]int{
		DifficultyEasy:   int(math.Round(float64(n) * ratio.Easy)),
		DifficultyMedium: int(math.Round(float64(n) * ratio.Medium)),
		DifficultyHard:   int(math.Round(float64(n) * ratio.Hard)),
	}

	picked := make([]Question, 0, n)
	taken := map[string]struct{}{}
	for _, d := range []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard} {
		want := quota[d]
		b := buckets[d]
		for i := 0; i < len(b) && want > 0 && len(picked) < n; i++ {
			picked = append(picked, b[i])
			taken[b[i].ID] = struct{}{}
			want--
		}
	}

	// Backfill across all buckets (unset difficulty included) in arbitrary order.
	if len(picked) < n {
		for _, b := range buckets {
			for _, q := range b {
				if len(picked) >= n {
					break
				}
				if _, ok := taken[q.ID]; ok {
					continue
				}
				picked = append(picked, q)
				taken[q.ID] = struct{}{}
			}
		}
	}
	return picked
}
