package quiz

import (
	"context"
	"math"
)

// DrawFunc fetches up to count candidate questions, skipping the given
// identifiers. Returning an empty slice means the pool is exhausted.
type DrawFunc func(ctx context.Context, count int, exclude map[string]struct{}) ([]Question, error)

// JudgeFunc partitions a batch and returns the approved subset.
// The fail-open/fail-closed policy is the judge's concern; an error here is
// treated as "nothing approved" for the batch, not as a loop failure.
type JudgeFunc func(ctx context.Context, batch []Question) ([]Question, error)

// AcquireResult is the outcome of one acquisition run.
type AcquireResult struct {
	Accepted []Question
	Attempts int
	// Exhausted is set when a draw came back empty before the target was met.
	Exhausted bool
}

// DefaultAttemptBudget bounds the number of draw/judge rounds per session.
const DefaultAttemptBudget = 3

// overdraw compensates for expected gate rejections when topping up.
const overdraw = 1.5

// Acquire drives draw/judge rounds until target approved questions are
// collected or the budget runs out. It is deliberately free of I/O and
// state so it can be tested without network calls.
//
// Guarantees:
//   - never more than budget draw attempts
//   - never returns more than target questions
//   - never re-draws an identifier already seen in this run
//
// A short (or empty) Accepted list is a signal, not an error: zero means
// hard failure to the caller, 1..target-1 means soft shortage.
func Acquire(ctx context.Context, target, budget int, draw DrawFunc, judge JudgeFunc) (AcquireResult, error) {
	var res AcquireResult
	if target <= 0 || draw == nil {
		return res, nil
	}
	if budget <= 0 {
		budget = DefaultAttemptBudget
	}

	// Loop-scoped exclusion set: everything drawn so far, approved or not,
	// separate from the persisted recently-used set.
	drawn := map[string]struct{}{}

	for res.Attempts < budget && len(res.Accepted) < target {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Attempts++

		needed := target - len(res.Accepted)
		ask := int(math.Ceil(float64(needed) * overdraw))

		batch, err := draw(ctx, ask, drawn)
		if err != nil {
			return res, err
		}
		if len(batch) == 0 {
			res.Exhausted = true
			break
		}
		for _, q := range batch {
			drawn[q.ID] = struct{}{}
		}

		approved := batch
		if judge != nil {
			approved, err = judge(ctx, batch)
			if err != nil {
				// Judge-level policy already decided what an oracle failure
				// means; an error here rejects the batch and moves on.
				continue
			}
		}
		res.Accepted = append(res.Accepted, approved...)
	}

	if len(res.Accepted) > target {
		res.Accepted = res.Accepted[:target]
	}
	return res, nil
}
