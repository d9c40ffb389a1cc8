package quiz

import (
	"context"
	"fmt"
	"strings"
	"time"

	logx "quizbot/pkg/logx"
	"quizbot/pkg/tgui"
)

// Poll is one rendered quiz poll, already truncated to platform limits.
type Poll struct {
	Question      string
	Options       []string
	CorrectOption int
	Explanation   string
}

// Messenger is the outbound messaging-gateway boundary.
type Messenger interface {
	SendPoll(ctx context.Context, p Poll) error
	SendMessage(ctx context.Context, html string) error
}

// LanguageMode restricts which renditions of a question get delivered.
type LanguageMode int

const (
	LangBoth LanguageMode = iota
	LangEnglishOnly
	LangHindiOnly
)

// SequencerConfig sets the pacing gaps. Zero values are honored (no delay),
// which is what tests inject.
type SequencerConfig struct {
	LanguageGap time.Duration // between the two languages of one question
	QuestionGap time.Duration // between successive question pairs
}

// Sequencer renders approved questions into paced poll messages and drives
// the messaging gateway.
type Sequencer struct {
	cfg SequencerConfig
	gw  Messenger
	log logx.Logger

	// sleep is an injected suspension so tests can run with zero delay.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewSequencer(cfg SequencerConfig, gw Messenger, log logx.Logger) *Sequencer {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Sequencer{cfg: cfg, gw: gw, log: log, sleep: sleepCtx}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Deliver sends the whole session: start announcement, paced polls, and a
// completion summary. Individual poll failures are logged and skipped; a
// failure of the session frame itself (announcement, panic) is an overall
// failure. Returns the number of questions actually delivered.
func (s *Sequencer) Deliver(ctx context.Context, sched *Schedule, questions []Question) (sent int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("delivery panicked: %v", r)
		}
	}()

	mode := DetectLanguageMode(sched.SubjectNames)

	if aerr := s.gw.SendMessage(ctx, s.startText(sched, len(questions))); aerr != nil {
		return 0, fmt.Errorf("start announcement: %w", aerr)
	}

	for i, q := range questions {
		if cerr := ctx.Err(); cerr != nil {
			return sent, cerr
		}
		if i > 0 {
			if serr := s.sleep(ctx, s.cfg.QuestionGap); serr != nil {
				return sent, serr
			}
		}

		polls := s.renderQuestion(q, mode)
		ok := true
		for j, p := range polls {
			if j > 0 {
				if serr := s.sleep(ctx, s.cfg.LanguageGap); serr != nil {
					return sent, serr
				}
			}
			if perr := s.gw.SendPoll(ctx, p); perr != nil {
				// Skip the question, keep the session going.
				s.log.Warn("poll send failed",
					logx.String("question", q.ID),
					logx.Int("index", i+1),
					logx.Err(perr))
				ok = false
				break
			}
		}
		if ok {
			sent++
		}
	}

	if serr := s.gw.SendMessage(ctx, s.summaryText(sched, sent, len(questions))); serr != nil {
		s.log.Warn("completion summary failed", logx.Err(serr))
	}
	return sent, nil
}

// renderQuestion produces one poll per delivered language, fixed order
// English then Hindi, each truncated to the platform field limits.
func (s *Sequencer) renderQuestion(q Question, mode LanguageMode) []Poll {
	idx, resolved := ResolveAnswerIndex(q.Answer, q.OptionsEn)
	if !resolved {
		s.log.Warn("unresolved correct answer; defaulting to first option",
			logx.String("question", q.ID),
			logx.String("answer", q.Answer))
	}

	var polls []Poll
	if mode == LangBoth || mode == LangEnglishOnly {
		polls = append(polls, renderPoll(q.TextEn, q.OptionsEn, idx, q.ExplanationEn))
	}
	if mode == LangBoth || mode == LangHindiOnly {
		text, opts, expl := q.TextHi, q.OptionsHi, q.ExplanationHi
		// Questions without a Hindi rendition fall back to English rather
		// than dropping out of a Hindi session.
		if strings.TrimSpace(text) == "" || len(opts) != len(q.OptionsEn) {
			text, opts, expl = q.TextEn, q.OptionsEn, q.ExplanationEn
		}
		polls = append(polls, renderPoll(text, opts, idx, expl))
	}
	return polls
}

func renderPoll(text string, options []string, correct int, explanation string) Poll {
	opts := make([]string, 0, len(options))
	for _, o := range options {
		opts = append(opts, tgui.PollOption(o))
	}
	if correct < 0 || correct >= len(opts) {
		correct = 0
	}
	return Poll{
		Question:      tgui.PollQuestion(text),
		Options:       opts,
		CorrectOption: correct,
		Explanation:   tgui.PollExplanation(explanation),
	}
}

// ResolveAnswerIndex maps a stored correct-answer designator to a zero-based
// option index. A single letter maps positionally (A→0); otherwise the first
// option containing the designator (case-insensitive) wins. The fallback is
// index 0 with resolved=false so the caller can flag the ambiguity.
func ResolveAnswerIndex(answer string, options []string) (int, bool) {
	a := strings.TrimSpace(answer)
	if a == "" || len(options) == 0 {
		return 0, false
	}

	if len(a) == 1 {
		c := a[0]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		if c >= 'A' && c <= 'Z' {
			idx := int(c - 'A')
			if idx < len(options) {
				return idx, true
			}
			return 0, false
		}
	}

	la := strings.ToLower(a)
	for i, o := range options {
		if strings.Contains(strings.ToLower(o), la) {
			return i, true
		}
	}
	return 0, false
}

// DetectLanguageMode inspects subject display names for a language-only
// marker; the whole session follows the first marker found.
func DetectLanguageMode(subjectNames []string) LanguageMode {
	joined := strings.ToLower(strings.Join(subjectNames, " "))
	switch {
	case strings.Contains(joined, "hindi"):
		return LangHindiOnly
	case strings.Contains(joined, "english"):
		return LangEnglishOnly
	default:
		return LangBoth
	}
}

func (s *Sequencer) startText(sched *Schedule, count int) string {
	title := sched.Title
	if strings.TrimSpace(title) == "" {
		title = "Daily Quiz"
	}
	parts := []tgui.H{
		tgui.B("🎯 " + title),
		tgui.Esc(fmt.Sprintf("%d questions · slot %s", count, sched.Slot)),
	}
	if len(sched.SubjectNames) > 0 {
		parts = append(parts, tgui.I(strings.Join(sched.SubjectNames, ", ")))
	}
	parts = append(parts, tgui.Esc("Get ready — first question coming up!"))
	return tgui.JoinH("\n", parts...).String()
}

// Notify sends the pre-session announcement (fires lead before the slot).
func (s *Sequencer) Notify(ctx context.Context, sched *Schedule, lead time.Duration) error {
	mins := int(lead.Minutes())
	text := tgui.JoinH("\n",
		tgui.B("⏰ "+sched.Title),
		tgui.Esc(fmt.Sprintf("Quiz starts in %d minutes (%s). %d questions.", mins, sched.Slot, sched.QuestionCount)),
	).String()
	return s.gw.SendMessage(ctx, text)
}

func (s *Sequencer) summaryText(sched *Schedule, sent, total int) string {
	line := fmt.Sprintf("✅ Quiz finished — %d of %d questions delivered.", sent, total)
	if sent < total {
		line = fmt.Sprintf("⚠️ Quiz finished — %d of %d questions delivered.", sent, total)
	}
	return tgui.JoinH("\n",
		tgui.B(sched.Title),
		tgui.Esc(line),
	).String()
}
