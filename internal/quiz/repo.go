package quiz

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"quizbot/internal/storage"
)

// usedLogKey holds the whole used-question log as one JSON array.
// The store is whole-value, so every append is a read-modify-write.
const usedLogKey = "used_questions"

// DefaultRetention bounds the used-question log; older entries are pruned
// on every write.
const DefaultRetention = 30 * 24 * time.Hour

// ScheduleRepo persists schedules keyed by (date, slot).
type ScheduleRepo struct {
	store storage.Store
}

func NewScheduleRepo(store storage.Store) *ScheduleRepo {
	return &ScheduleRepo{store: store}
}

// Load returns the schedule for (date, slot), or nil when none exists.
func (r *ScheduleRepo) Load(ctx context.Context, date, slot string) (*Schedule, error) {
	b, ok, err := r.store.Get(ctx, ScheduleKey(date, slot))
	if err != nil {
		return nil, fmt.Errorf("load schedule %s/%s: %w", date, slot, err)
	}
	if !ok {
		return nil, nil
	}
	var s Schedule
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("decode schedule %s/%s: %w", date, slot, err)
	}
	return &s, nil
}

// Save writes the full schedule object.
func (r *ScheduleRepo) Save(ctx context.Context, s *Schedule) error {
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode schedule: %w", err)
	}
	if err := r.store.Set(ctx, ScheduleKey(s.Date, s.Slot), b); err != nil {
		return fmt.Errorf("save schedule %s/%s: %w", s.Date, s.Slot, err)
	}
	return nil
}

// UsedLog is the append-only log of delivered questions, used to build the
// recently-used exclusion set.
type UsedLog struct {
	store     storage.Store
	retention time.Duration

	now func() time.Time // test hook
}

func NewUsedLog(store storage.Store, retention time.Duration) *UsedLog {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &UsedLog{store: store, retention: retention, now: time.Now}
}

func (l *UsedLog) load(ctx context.Context) ([]UsedQuestionRecord, error) {
	b, ok, err := l.store.Get(ctx, usedLogKey)
	if err != nil {
		return nil, fmt.Errorf("load used log: %w", err)
	}
	if !ok {
		return nil, nil
	}
	var recs []UsedQuestionRecord
	if err := json.Unmarshal(b, &recs); err != nil {
		return nil, fmt.Errorf("decode used log: %w", err)
	}
	return recs, nil
}

// Append records the delivered questions for a schedule and prunes entries
// older than the retention window in the same write.
func (l *UsedLog) Append(ctx context.Context, scheduleID string, questionIDs []string) error {
	if len(questionIDs) == 0 {
		return nil
	}
	recs, err := l.load(ctx)
	if err != nil {
		return err
	}
	now := l.now()
	cutoff := now.Add(-l.retention)

	kept := recs[:0]
	for _, r := range recs {
		if r.UsedAt.After(cutoff) {
			kept = append(kept, r)
		}
	}
	for _, id := range questionIDs {
		kept = append(kept, UsedQuestionRecord{QuestionID: id, ScheduleID: scheduleID, UsedAt: now})
	}

	b, err := json.Marshal(kept)
	if err != nil {
		return fmt.Errorf("encode used log: %w", err)
	}
	if err := l.store.Set(ctx, usedLogKey, b); err != nil {
		return fmt.Errorf("save used log: %w", err)
	}
	return nil
}

// RecentIDs returns the identifiers used within the trailing window.
func (l *UsedLog) RecentIDs(ctx context.Context, window time.Duration) (map[string]struct{}, error) {
	recs, err := l.load(ctx)
	if err != nil {
		return nil, err
	}
	cutoff := l.now().Add(-window)
	out := make(map[string]struct{}, len(recs))
	for _, r := range recs {
		if r.UsedAt.After(cutoff) {
			out[r.QuestionID] = struct{}{}
		}
	}
	return out, nil
}
