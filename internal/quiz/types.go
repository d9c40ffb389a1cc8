// Package quiz implements the scheduling and question-acquisition engine:
// selection with anti-repetition, the quality gate, the retry-until-target
// acquisition loop, the schedule lifecycle, and paced delivery.
package quiz

import (
	"context"
	"time"
)

// Difficulty labels as stored by the question repository.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "EASY"
	DifficultyMedium Difficulty = "MEDIUM"
	DifficultyHard   Difficulty = "HARD"
	// DifficultyUnset marks questions without a label; they only take part
	// in shortfall backfill, never in ratio buckets.
	DifficultyUnset Difficulty = ""
)

// Question is a bilingual quiz question. Immutable once fetched; owned by
// the repository, read-only to this package.
type Question struct {
	ID            string     `json:"id"`
	TextEn        string     `json:"text_en"`
	TextHi        string     `json:"text_hi,omitempty"`
	OptionsEn     []string   `json:"options_en"`
	OptionsHi     []string   `json:"options_hi,omitempty"`
	Answer        string     `json:"answer"` // letter ("C") or option text
	ExplanationEn string     `json:"explanation_en,omitempty"`
	ExplanationHi string     `json:"explanation_hi,omitempty"`
	SubjectID     string     `json:"subject_id"`
	ChapterID     string     `json:"chapter_id,omitempty"`
	Difficulty    Difficulty `json:"difficulty,omitempty"`
	DedupeKey     string     `json:"dedupe_key,omitempty"`
	Verified      bool       `json:"verified"`
}

// ScheduleStatus is the lifecycle state of a scheduled quiz session.
type ScheduleStatus string

const (
	StatusScheduled  ScheduleStatus = "scheduled"
	StatusInProgress ScheduleStatus = "in_progress"
	StatusCompleted  ScheduleStatus = "completed"
	StatusCancelled  ScheduleStatus = "cancelled"
)

// Terminal reports whether the status is immutable.
func (s ScheduleStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// canTransition encodes the only legal lifecycle moves:
// scheduled → in_progress → completed, and scheduled|in_progress → cancelled.
func (s ScheduleStatus) canTransition(to ScheduleStatus) bool {
	switch s {
	case StatusScheduled:
		return to == StatusInProgress || to == StatusCancelled
	case StatusInProgress:
		return to == StatusCompleted || to == StatusCancelled
	default:
		return false
	}
}

// Schedule is one planned quiz session for a (date, slot) pair.
// At most one non-terminal schedule may exist per pair.
type Schedule struct {
	ID            string         `json:"id"`
	Date          string         `json:"date"` // YYYY-MM-DD in the quiz timezone
	Slot          string         `json:"slot"` // wall-clock slot, e.g. "08:00"
	SubjectIDs    []string       `json:"subject_ids"`
	SubjectNames  []string       `json:"subject_names,omitempty"`
	ChapterIDs    []string       `json:"chapter_ids,omitempty"`
	ChapterNames  []string       `json:"chapter_names,omitempty"`
	QuestionCount int            `json:"question_count"`
	Title         string         `json:"title,omitempty"`
	Status        ScheduleStatus `json:"status"`
	CreatedAt     time.Time      `json:"created_at"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
}

// Key returns the storage lookup key for a (date, slot) pair.
func ScheduleKey(date, slot string) string { return "schedule:" + date + ":" + slot }

// UsedQuestionRecord is one entry of the append-only used-question log.
type UsedQuestionRecord struct {
	QuestionID string    `json:"question_id"`
	ScheduleID string    `json:"schedule_id"`
	UsedAt     time.Time `json:"used_at"`
}

// QualityVerdict is the oracle's judgment for one question. Ephemeral;
// never persisted beyond the current acquisition loop.
type QualityVerdict struct {
	QuestionID string `json:"id"`
	Approved   bool   `json:"approved"`
	Reason     string `json:"reason,omitempty"`
}

// Chapter and Subject describe the repository's subject catalog, used by
// the auto-generation fallback.
type Chapter struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Subject struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Chapters []Chapter `json:"chapters,omitempty"`
}

// QueryFilter narrows a question repository query.
// No ordering guarantee is assumed on the result.
type QueryFilter struct {
	SubjectIDs   []string
	ChapterIDs   []string
	VerifiedOnly bool
	Limit        int
}

// QuestionSource is the external question repository boundary.
type QuestionSource interface {
	Query(ctx context.Context, f QueryFilter) ([]Question, error)
}

// Catalog exposes the repository's subject/chapter catalog.
type Catalog interface {
	Subjects(ctx context.Context) ([]Subject, error)
}
