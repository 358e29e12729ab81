package cli

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"

	"competition-grader/internal/app"
	"competition-grader/internal/config"
	"competition-grader/internal/domain"
	"competition-grader/internal/infra/memory"
	pgstore "competition-grader/internal/infra/postgres"
	redisstore "competition-grader/internal/infra/redis"
	"competition-grader/internal/infra/runner"
)

// backends picks the storage for each repository: Postgres for durable data
// when configured, Redis for caching and sessions when configured, and
// process memory otherwise.
type backends struct {
	submissions app.SubmissionRepository
	results     app.ResultStore
	sessions    app.SessionRepository
	loader      memory.SubmissionLoader
	pgLoader    *pgstore.SubmissionLoader

	closers []func()
}

func (b *backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func openBackends(ctx context.Context, cfg config.Config) (*backends, error) {
	b := &backends{}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		b.closers = append(b.closers, func() { _ = redisClient.Close() })
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		var err error
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.closers = append(b.closers, pool.Close)
	}

	b.loader = memory.NewStaticSubmissionLoader(sampleSubmissions())
	if pool != nil {
		b.pgLoader = pgstore.NewSubmissionLoader(pool)
		b.loader = b.pgLoader
	}

	submissionTTL := config.TTLDuration(cfg.Submissions.TTL, 10*time.Minute)
	if redisClient != nil {
		b.submissions = redisstore.NewSubmissionRepository(redisClient, b.loader, submissionTTL)
		b.sessions = redisstore.NewSessionStore(redisClient, redisTTL)
	} else {
		b.submissions = memory.NewSubmissionRepository(b.loader, submissionTTL)
		b.sessions = memory.NewSessionStore()
	}

	switch {
	case pool != nil:
		b.results = pgstore.NewResultStore(pool)
	case redisClient != nil:
		b.results = redisstore.NewResultStore(redisClient)
	default:
		b.results = memory.NewResultStore()
	}
	return b, nil
}

func newService(cfg config.Config, b *backends) *app.GradingService {
	opts := []app.Option{}
	if cfg.Grading.DefaultLanguage != "" {
		opts = append(opts, app.WithDefaultLanguage(cfg.Grading.DefaultLanguage))
	}
	if cfg.Runner.URL != "" {
		timeout := config.TTLDuration(cfg.Runner.Timeout, 10*time.Second)
		opts = append(opts, app.WithCodeRunner(runner.NewClient(cfg.Runner.URL, timeout)))
	}
	return app.NewGradingService(b.submissions, b.results, b.sessions, opts...)
}

// sampleSubmissions provides demo data in both stored shapes; swap the loader
// for the Postgres one in production.
func sampleSubmissions() map[string]domain.RawSubmission {
	code := `{"code":"print(sum(range(10)))","language":"python"}`
	essay := "A goroutine is a lightweight thread managed by the Go runtime."
	return map[string]domain.RawSubmission{
		"sub-mcq-1": {
			ID:              "sub-mcq-1",
			StudentID:       "student-1",
			CompetitionID:   "comp-quiz",
			CompetitionType: domain.QuestionMCQ,
			SubmittedAt:     time.Date(2024, 11, 22, 9, 0, 0, 0, time.UTC),
			Questions: []domain.Question{
				{
					ID:     "q1",
					Prompt: "What is 2 + 2?",
					Options: []domain.Option{
						{ID: "o1", Text: "3"},
						{ID: "o2", Text: "4", IsCorrect: true},
						{ID: "o3", Text: "5"},
					},
				},
				{
					ID:     "q2",
					Prompt: "Which keyword starts a goroutine?",
					Options: []domain.Option{
						{ID: "o1", Text: "go", IsCorrect: true},
						{ID: "o2", Text: "async"},
					},
				},
			},
			Answers: []domain.LegacyAnswer{
				{QuestionID: "q1", Answer: "4"},
				{QuestionID: "q2", Answer: "async"},
			},
		},
		"sub-code-1": {
			ID:              "sub-code-1",
			StudentID:       "student-2",
			CompetitionID:   "comp-code",
			CompetitionType: domain.QuestionCode,
			SubmittedAt:     time.Date(2024, 11, 22, 10, 0, 0, 0, time.UTC),
			QuestionAnswers: []domain.QuestionAnswer{
				{
					Question:       domain.Question{ID: "c1", Type: domain.QuestionCode, Prompt: "Print the sum of 0..9"},
					StudentAnswer:  &code,
					QuestionNumber: 1,
				},
			},
		},
		"sub-text-1": {
			ID:              "sub-text-1",
			StudentID:       "student-3",
			CompetitionID:   "comp-essay",
			CompetitionType: domain.QuestionText,
			SubmittedAt:     time.Date(2024, 11, 22, 11, 0, 0, 0, time.UTC),
			QuestionAnswers: []domain.QuestionAnswer{
				{
					Question:       domain.Question{ID: "t1", Type: domain.QuestionText, Prompt: "What is a goroutine?"},
					StudentAnswer:  &essay,
					QuestionNumber: 1,
				},
			},
		},
	}
}
