package quiz

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// memStore is an in-memory storage.Store for tests.
type memStore struct {
	mu sync.Mutex
	m  map[string][]byte
}

func newMemStore() *memStore { return &memStore{m: map[string][]byte{}} }

func (s *memStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[key]
	if !ok {
		return nil, false, nil
	}
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp, true, nil
}

func (s *memStore) Set(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(value))
	copy(cp, value)
	s.m[key] = cp
	return nil
}

func (s *memStore) Close() error { return nil }

// fakeSource serves a fixed question set, honoring the Limit field only.
type fakeSource struct {
	questions []Question
	err       error
	calls     int
}

func (f *fakeSource) Query(ctx context.Context, filter QueryFilter) ([]Question, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]Question, 0, len(f.questions))
	for _, q := range f.questions {
		if filter.VerifiedOnly && !q.Verified {
			continue
		}
		out = append(out, q)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

// fakeCatalog serves a static subject catalog.
type fakeCatalog struct {
	subjects []Subject
	err      error
}

func (f *fakeCatalog) Subjects(ctx context.Context) ([]Subject, error) {
	return f.subjects, f.err
}

// fakeJudge scripts oracle verdicts (or a persistent failure).
type fakeJudge struct {
	rejects map[string]string // id -> reason
	err     error
	calls   int
	// omit suppresses verdicts for these ids entirely.
	omit map[string]struct{}
}

func (f *fakeJudge) Review(ctx context.Context, batch []Candidate) ([]QualityVerdict, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var out []QualityVerdict
	for _, c := range batch {
		if f.omit != nil {
			if _, skip := f.omit[c.ID]; skip {
				continue
			}
		}
		v := QualityVerdict{QuestionID: c.ID, Approved: true}
		if reason, bad := f.rejects[c.ID]; bad {
			v.Approved = false
			v.Reason = reason
		}
		out = append(out, v)
	}
	return out, nil
}

// fakeMessenger records sends and can fail selectively.
type fakeMessenger struct {
	polls    []Poll
	messages []string

	failPollIdx map[int]bool // fail the n-th SendPoll call (0-based)
	failMessage bool
	pollCalls   int
}

func (f *fakeMessenger) SendPoll(ctx context.Context, p Poll) error {
	idx := f.pollCalls
	f.pollCalls++
	if f.failPollIdx[idx] {
		return fmt.Errorf("send poll %d failed", idx)
	}
	f.polls = append(f.polls, p)
	return nil
}

func (f *fakeMessenger) SendMessage(ctx context.Context, html string) error {
	if f.failMessage {
		return fmt.Errorf("gateway unreachable")
	}
	f.messages = append(f.messages, html)
	return nil
}

// mkQuestions builds n verified questions with the given difficulty and an
// id prefix.
func mkQuestions(prefix string, n int, d Difficulty) []Question {
	out := make([]Question, 0, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("%s%02d", prefix, i)
		out = append(out, Question{
			ID:         id,
			TextEn:     "Question " + id,
			OptionsEn:  []string{"opt A " + id, "opt B " + id, "opt C " + id, "opt D " + id},
			Answer:     "A",
			SubjectID:  "subj1",
			Difficulty: d,
			Verified:   true,
		})
	}
	return out
}

// recentSet is a fixed RecentlyUsed implementation.
type recentSet map[string]struct{}

func (r recentSet) RecentIDs(ctx context.Context, window time.Duration) (map[string]struct{}, error) {
	return r, nil
}
