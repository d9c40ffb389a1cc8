package quiz

import (
	"context"

	logx "quizbot/pkg/logx"
)

// Candidate is the minimal projection sent to the quality oracle:
// identifier plus primary-language text and options.
type Candidate struct {
	ID      string   `json:"id"`
	Text    string   `json:"text"`
	Options []string `json:"options"`
}

// Judge is the external quality-judgment oracle boundary.
// Absence of an id in the returned verdicts means implicit approval.
type Judge interface {
	Review(ctx context.Context, batch []Candidate) ([]QualityVerdict, error)
}

// GateConfig controls the oracle-failure policy.
//
// FailOpen preserves the product decision that moderation is advisory:
// an unreachable or malformed oracle approves the batch. A stricter
// deployment can flip this to reject instead.
type GateConfig struct {
	FailOpen bool
}

// Gate sends candidate batches to the oracle and partitions them into
// approved and rejected sets.
type Gate struct {
	cfg   GateConfig
	judge Judge
	log   logx.Logger
}

func NewGate(cfg GateConfig, judge Judge, log logx.Logger) *Gate {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Gate{cfg: cfg, judge: judge, log: log}
}

// Filter returns the approved subset of batch. It never returns an error:
// oracle failures resolve through the configured policy, and a rejected
// batch is an ordinary (empty) result.
func (g *Gate) Filter(ctx context.Context, batch []Question) []Question {
	if len(batch) == 0 {
		return nil
	}
	// No oracle wired: moderation disabled, everything passes.
	if g.judge == nil {
		return batch
	}

	cands := make([]Candidate, 0, len(batch))
	for _, q := range batch {
		cands = append(cands, Candidate{ID: q.ID, Text: q.TextEn, Options: q.OptionsEn})
	}

	verdicts, err := g.judge.Review(ctx, cands)
	if err != nil {
		if g.cfg.FailOpen {
			g.log.Warn("quality oracle failed; approving batch (fail-open)",
				logx.Int("batch", len(batch)), logx.Err(err))
			return batch
		}
		g.log.Warn("quality oracle failed; rejecting batch (fail-closed)",
			logx.Int("batch", len(batch)), logx.Err(err))
		return nil
	}

	rejected := map[string]string{}
	for _, v := range verdicts {
		if !v.Approved {
			rejected[v.QuestionID] = v.Reason
		}
	}

	approved := make([]Question, 0, len(batch))
	for _, q := range batch {
		if reason, ok := rejected[q.ID]; ok {
			g.log.Debug("question rejected by quality gate",
				logx.String("id", q.ID), logx.String("reason", reason))
			continue
		}
		// Missing verdicts count as approved so an oracle hiccup never
		// silently loses a question.
		approved = append(approved, q)
	}
	return approved
}

// JudgeFunc adapts the gate to the acquisition loop signature.
func (g *Gate) JudgeFunc() JudgeFunc {
	return func(ctx context.Context, batch []Question) ([]Question, error) {
		return g.Filter(ctx, batch), nil
	}
}
