package quiz

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	logx "quizbot/pkg/logx"
)

// ErrInvalidTransition is returned for any lifecycle move outside
// scheduled → in_progress → {completed|cancelled}.
var ErrInvalidTransition = errors.New("invalid schedule transition")

// ManagerConfig tunes the auto-generation fallback.
type ManagerConfig struct {
	DefaultQuestionCount int // default 10
	MaxAutoChapters      int // default 3
}

func (c ManagerConfig) withDefaults() ManagerConfig {
	if c.DefaultQuestionCount <= 0 {
		c.DefaultQuestionCount = 10
	}
	if c.MaxAutoChapters <= 0 {
		c.MaxAutoChapters = 3
	}
	return c
}

// Manager owns the schedule lifecycle: lookup-before-create per (date, slot),
// guarded state transitions, and the used-question log.
type Manager struct {
	cfg     ManagerConfig
	repo    *ScheduleRepo
	used    *UsedLog
	catalog Catalog
	log     logx.Logger

	rng *rand.Rand
	now func() time.Time // test hook
}

func NewManager(cfg ManagerConfig, repo *ScheduleRepo, used *UsedLog, catalog Catalog, log logx.Logger) *Manager {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Manager{
		cfg:     cfg.withDefaults(),
		repo:    repo,
		used:    used,
		catalog: catalog,
		log:     log,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		now:     time.Now,
	}
}

// UsedLog exposes the recently-used source for the selector.
func (m *Manager) UsedLog() *UsedLog { return m.used }

// GetOrCreate resolves the schedule for (date, slot), synthesizing one when
// none exists. The lookup-before-create makes duplicate creation a no-op:
// calling this twice for the same pair returns the same schedule.
func (m *Manager) GetOrCreate(ctx context.Context, date, slot string) (*Schedule, bool, error) {
	existing, err := m.repo.Load(ctx, date, slot)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	sched, err := m.generate(ctx, date, slot)
	if err != nil {
		return nil, false, err
	}
	if err := m.repo.Save(ctx, sched); err != nil {
		return nil, false, err
	}
	m.log.Info("schedule auto-generated",
		logx.String("date", date),
		logx.String("slot", slot),
		logx.Any("subjects", sched.SubjectNames),
		logx.Int("count", sched.QuestionCount))
	return sched, true, nil
}

// Get returns the schedule for (date, slot) without creating one.
func (m *Manager) Get(ctx context.Context, date, slot string) (*Schedule, error) {
	return m.repo.Load(ctx, date, slot)
}

// generate synthesizes a schedule from a random subject and up to
// MaxAutoChapters of its chapters. This keeps the daily cadence alive even
// without manual planning.
func (m *Manager) generate(ctx context.Context, date, slot string) (*Schedule, error) {
	subjects, err := m.catalog.Subjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("subject catalog: %w", err)
	}
	if len(subjects) == 0 {
		return nil, errors.New("subject catalog is empty")
	}

	subj := subjects[m.rng.Intn(len(subjects))]

	chapters := append([]Chapter(nil), subj.Chapters...)
	m.rng.Shuffle(len(chapters), func(i, j int) { chapters[i], chapters[j] = chapters[j], chapters[i] })
	if len(chapters) > m.cfg.MaxAutoChapters {
		chapters = chapters[:m.cfg.MaxAutoChapters]
	}

	chIDs := make([]string, 0, len(chapters))
	chNames := make([]string, 0, len(chapters))
	for _, c := range chapters {
		chIDs = append(chIDs, c.ID)
		chNames = append(chNames, c.Name)
	}

	return &Schedule{
		ID:            "qz-" + strings.ReplaceAll(date, "-", "") + "-" + strings.ReplaceAll(slot, ":", ""),
		Date:          date,
		Slot:          slot,
		SubjectIDs:    []string{subj.ID},
		SubjectNames:  []string{subj.Name},
		ChapterIDs:    chIDs,
		ChapterNames:  chNames,
		QuestionCount: m.cfg.DefaultQuestionCount,
		Title:         subj.Name + " Quiz",
		Status:        StatusScheduled,
		CreatedAt:     m.now(),
	}, nil
}

// Transition moves the schedule to the target status, enforcing the guard
// table and terminal immutability, and persists the change.
func (m *Manager) Transition(ctx context.Context, s *Schedule, to ScheduleStatus) error {
	if !s.Status.canTransition(to) {
		return fmt.Errorf("%w: %s → %s (%s/%s)", ErrInvalidTransition, s.Status, to, s.Date, s.Slot)
	}
	s.Status = to
	if to.Terminal() {
		t := m.now()
		s.CompletedAt = &t
	}
	if err := m.repo.Save(ctx, s); err != nil {
		return err
	}
	m.log.Info("schedule transitioned",
		logx.String("id", s.ID),
		logx.String("status", string(to)))
	return nil
}

// MarkDelivered appends every delivered question to the used-question log.
func (m *Manager) MarkDelivered(ctx context.Context, s *Schedule, delivered []Question) error {
	ids := make([]string, 0, len(delivered))
	for _, q := range delivered {
		ids = append(ids, q.ID)
	}
	return m.used.Append(ctx, s.ID, ids)
}
