package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"competition-grader/internal/domain"
)

func TestSubmissionRepositoryCaches(t *testing.T) {
	loader := &countingLoader{
		SubmissionLoader: NewStaticSubmissionLoader(map[string]domain.RawSubmission{
			"sub-1": sampleSubmission(),
		}),
	}
	repo := NewSubmissionRepository(loader, time.Minute)

	if _, err := repo.GetSubmission(context.Background(), "sub-1"); err != nil {
		t.Fatalf("get submission: %v", err)
	}
	if loader.calls.Load() != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls.Load())
	}

	if _, err := repo.GetSubmission(context.Background(), "sub-1"); err != nil {
		t.Fatalf("get submission 2: %v", err)
	}
	if loader.calls.Load() != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls.Load())
	}
}

func TestSubmissionRepositoryExpires(t *testing.T) {
	loader := &countingLoader{
		SubmissionLoader: NewStaticSubmissionLoader(map[string]domain.RawSubmission{
			"sub-1": sampleSubmission(),
		}),
	}
	repo := NewSubmissionRepository(loader, time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.clock = func() time.Time { return now }

	_, _ = repo.GetSubmission(context.Background(), "sub-1")
	now = now.Add(2 * time.Minute)
	_, _ = repo.GetSubmission(context.Background(), "sub-1")
	if loader.calls.Load() != 2 {
		t.Fatalf("expected reload after expiry, loader calls %d", loader.calls.Load())
	}
}

func TestSubmissionRepositoryConcurrentMissLoadsOnce(t *testing.T) {
	release := make(chan struct{})
	loader := &countingLoader{
		SubmissionLoader: NewStaticSubmissionLoader(map[string]domain.RawSubmission{
			"sub-1": sampleSubmission(),
		}),
		gate: release,
	}
	repo := NewSubmissionRepository(loader, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = repo.GetSubmission(context.Background(), "sub-1")
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if loader.calls.Load() != 1 {
		t.Fatalf("expected a single load, got %d", loader.calls.Load())
	}
}

func TestStaticSubmissionLoaderNotFound(t *testing.T) {
	loader := NewStaticSubmissionLoader(nil)
	if _, err := loader.LoadSubmission(context.Background(), "missing"); !errors.Is(err, domain.ErrSubmissionNotFound) {
		t.Fatalf("expected ErrSubmissionNotFound, got %v", err)
	}
}

type countingLoader struct {
	SubmissionLoader
	calls atomic.Int32
	gate  chan struct{}
}

func (l *countingLoader) LoadSubmission(ctx context.Context, submissionID string) (domain.RawSubmission, error) {
	l.calls.Add(1)
	if l.gate != nil {
		<-l.gate
	}
	return l.SubmissionLoader.LoadSubmission(ctx, submissionID)
}

func sampleSubmission() domain.RawSubmission {
	return domain.RawSubmission{
		ID:              "sub-1",
		StudentID:       "student-1",
		CompetitionID:   "comp-1",
		CompetitionType: domain.QuestionMCQ,
		Questions: []domain.Question{
			{
				ID:     "q1",
				Prompt: "What is 2 + 2?",
				Options: []domain.Option{
					{Text: "3"},
					{Text: "4", IsCorrect: true},
				},
			},
		},
		Answers: []domain.LegacyAnswer{{QuestionID: "q1", Answer: "4"}},
	}
}
