package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"competition-grader/internal/domain"
	"competition-grader/internal/infra/memory"
)

func TestSubmissionRepositoryCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)

	loader := &countingLoader{
		SubmissionLoader: memory.NewStaticSubmissionLoader(map[string]domain.RawSubmission{
			"sub-1": sampleSubmission(),
		}),
	}
	repo := NewSubmissionRepository(client, loader, time.Minute)

	sub, err := repo.GetSubmission(context.Background(), "sub-1")
	if err != nil {
		t.Fatalf("get submission: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}
	if !mr.Exists("submission:sub-1") {
		t.Fatalf("expected submission cached in redis")
	}
	if ttl := mr.TTL("submission:sub-1"); ttl < time.Minute || ttl > time.Minute+6*time.Second {
		t.Fatalf("expected jittered ttl around a minute, got %s", ttl)
	}

	// Second call should hit cache, loader not incremented.
	cached, err := repo.GetSubmission(context.Background(), "sub-1")
	if err != nil {
		t.Fatalf("get cached submission: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
	if len(cached.Questions) != len(sub.Questions) || cached.Answers[0].Answer != "4" {
		t.Fatalf("cached submission differs: %+v", cached)
	}
}

func TestSubmissionRepositoryNotFound(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	repo := NewSubmissionRepository(newClient(mr), memory.NewStaticSubmissionLoader(nil), time.Minute)
	if _, err := repo.GetSubmission(context.Background(), "missing"); !errors.Is(err, domain.ErrSubmissionNotFound) {
		t.Fatalf("expected ErrSubmissionNotFound, got %v", err)
	}
	if mr.Exists("submission:missing") {
		t.Fatalf("missing submissions must not be cached")
	}
}

func TestSubmissionRepositoryKeepsCurrentShape(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	raw := domain.RawSubmission{ID: "sub-2", QuestionAnswers: []domain.QuestionAnswer{}}
	repo := NewSubmissionRepository(newClient(mr), memory.NewStaticSubmissionLoader(map[string]domain.RawSubmission{"sub-2": raw}), time.Minute)

	_, _ = repo.GetSubmission(context.Background(), "sub-2")
	cached, err := repo.GetSubmission(context.Background(), "sub-2")
	if err != nil {
		t.Fatalf("get cached submission: %v", err)
	}
	if cached.QuestionAnswers == nil {
		t.Fatalf("empty questionAnswers must survive the cache round trip")
	}
}

type countingLoader struct {
	memory.SubmissionLoader
	calls int
}

func (l *countingLoader) LoadSubmission(ctx context.Context, submissionID string) (domain.RawSubmission, error) {
	l.calls++
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

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
