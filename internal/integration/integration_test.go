package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
	"golang.org/x/sync/errgroup"

	"competition-grader/internal/app"
	"competition-grader/internal/domain"
	pgstore "competition-grader/internal/infra/postgres"
	infraredis "competition-grader/internal/infra/redis"
	pgmigrations "competition-grader/internal/infra/postgres/migrations"
)

func TestGradingEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedSubmissions(t, ctx, pgURL, sampleSubmissions()...)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	// Two services share Postgres and Redis the way two replicas would.
	newInstance := func() *app.GradingService {
		loader := pgstore.NewSubmissionLoader(pool)
		submissions := infraredis.NewSubmissionRepository(redisClient, loader, 5*time.Minute)
		sessions := infraredis.NewSessionStore(redisClient, 5*time.Minute)
		return app.NewGradingService(submissions, pgstore.NewResultStore(pool), sessions)
	}
	instances := []*app.GradingService{newInstance(), newInstance()}

	t.Run("concurrent auto grading stores one result", func(t *testing.T) {
		resolutions := make([]domain.Resolution, 8)
		g, gctx := errgroup.WithContext(ctx)
		for i := range resolutions {
			i := i
			g.Go(func() error {
				res, err := instances[i%2].AutoGrade(gctx, "sub-mcq")
				if err != nil {
					return err
				}
				resolutions[i] = res
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			t.Fatalf("auto grade: %v", err)
		}
		var created *domain.Result
		for i, res := range resolutions {
			if res.Result.ID != resolutions[0].Result.ID {
				t.Fatalf("replicas returned different results: %+v", resolutions)
			}
			if !res.IsExisting {
				if created != nil {
					t.Fatalf("more than one call reported creating the result")
				}
				created = &resolutions[i].Result
			}
		}
		if created == nil {
			t.Fatalf("no call reported creating the result")
		}

		var rows int
		if err := pool.QueryRow(ctx, `SELECT count(*) FROM results WHERE submission_id=$1`, "sub-mcq").Scan(&rows); err != nil {
			t.Fatalf("count results: %v", err)
		}
		if rows != 1 {
			t.Fatalf("expected one stored result, got %d", rows)
		}

		res, err := instances[0].Result(ctx, "sub-mcq")
		if err != nil {
			t.Fatalf("result: %v", err)
		}
		if res.TotalScore != 1 || res.TotalQuestions != 2 || res.PercentageScore != 50 || len(res.Grades) != 2 {
			t.Fatalf("unexpected stored result %+v", res)
		}
		if !reflect.DeepEqual(res, *created) {
			t.Fatalf("stored result differs from the one returned on creation:\n%+v\n%+v", res, *created)
		}
		again, err := instances[1].AutoGrade(ctx, "sub-mcq")
		if err != nil {
			t.Fatalf("repeat auto grade: %v", err)
		}
		if !again.IsExisting || !reflect.DeepEqual(again.Result, *created) {
			t.Fatalf("repeat grading must return the created result, got %+v", again)
		}
	})

	t.Run("overrides are shared across replicas", func(t *testing.T) {
		if _, err := instances[0].SetOverride(ctx, "sub-text", "t1", true); err != nil {
			t.Fatalf("override t1: %v", err)
		}
		if _, err := instances[1].SetOverride(ctx, "sub-text", "t2", false); err != nil {
			t.Fatalf("override t2: %v", err)
		}
		overrides, err := instances[0].Overrides(ctx, "sub-text")
		if err != nil {
			t.Fatalf("overrides: %v", err)
		}
		if len(overrides) != 2 {
			t.Fatalf("expected both overrides, got %+v", overrides)
		}

		res, err := instances[1].SubmitManualGrades(ctx, "sub-text", nil)
		if err != nil {
			t.Fatalf("finalize: %v", err)
		}
		if res.IsExisting || res.Result.TotalScore != 1 || res.Result.TotalQuestions != 2 {
			t.Fatalf("unexpected resolution %+v", res)
		}

		view, err := instances[0].Submission(ctx, "sub-text")
		if err != nil {
			t.Fatalf("view: %v", err)
		}
		if view.State != domain.StateGraded {
			t.Fatalf("expected GRADED, got %s", view.State)
		}
	})
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "grader", "POSTGRES_PASSWORD": "graderpass", "POSTGRES_DB": "grading"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://grader:graderpass@%s:%s/grading?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func seedSubmissions(t *testing.T, ctx context.Context, dsn string, subs ...domain.RawSubmission) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	for _, sub := range subs {
		data, err := json.Marshal(sub)
		if err != nil {
			t.Fatalf("marshal submission: %v", err)
		}
		if _, err := db.ExecContext(ctx, `INSERT INTO submissions (id, data) VALUES (?, ?::jsonb) ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data`, sub.ID, string(data)); err != nil {
			t.Fatalf("insert submission: %v", err)
		}
	}
}

func sampleSubmissions() []domain.RawSubmission {
	first, second := "4", "go"
	essay1, essay2 := "first essay", "second essay"
	return []domain.RawSubmission{
		{
			ID:              "sub-mcq",
			StudentID:       "student-1",
			CompetitionID:   "comp-1",
			CompetitionType: domain.QuestionMCQ,
			QuestionAnswers: []domain.QuestionAnswer{
				{
					Question: domain.Question{ID: "q1", Type: domain.QuestionMCQ, Options: []domain.Option{
						{Text: "3"}, {Text: "4", IsCorrect: true},
					}},
					StudentAnswer:  &first,
					QuestionNumber: 1,
				},
				{
					Question: domain.Question{ID: "q2", Type: domain.QuestionMCQ, Options: []domain.Option{
						{Text: "go"}, {Text: "spawn", IsCorrect: true},
					}},
					StudentAnswer:  &second,
					QuestionNumber: 2,
				},
			},
		},
		{
			ID:              "sub-text",
			StudentID:       "student-2",
			CompetitionID:   "comp-2",
			CompetitionType: domain.QuestionText,
			QuestionAnswers: []domain.QuestionAnswer{
				{Question: domain.Question{ID: "t1", Type: domain.QuestionText}, StudentAnswer: &essay1, QuestionNumber: 1},
				{Question: domain.Question{ID: "t2", Type: domain.QuestionText}, StudentAnswer: &essay2, QuestionNumber: 2},
			},
		},
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
