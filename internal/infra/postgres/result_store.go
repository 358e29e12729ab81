package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"competition-grader/internal/domain"
)

// ResultStore persists results in the results table. The unique
// submission_id column makes CreateResult atomic across instances.
type ResultStore struct {
	pool *pgxpool.Pool
}

func NewResultStore(pool *pgxpool.Pool) *ResultStore {
	return &ResultStore{pool: pool}
}

const selectResult = `SELECT id, submission_id, student_id, competition_id, total_score, total_questions,
	percentage_score, breakdown, grades, mode, graded_at
	FROM results WHERE submission_id=$1`

func (s *ResultStore) GetResult(ctx context.Context, submissionID string) (domain.Result, error) {
	var (
		result    domain.Result
		breakdown []byte
		grades    []byte
		mode      string
	)
	err := s.pool.QueryRow(ctx, selectResult, submissionID).Scan(
		&result.ID, &result.SubmissionID, &result.StudentID, &result.CompetitionID,
		&result.TotalScore, &result.TotalQuestions, &result.PercentageScore,
		&breakdown, &grades, &mode, &result.GradedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Result{}, domain.ErrResultNotFound
	}
	if err != nil {
		return domain.Result{}, fmt.Errorf("get result: %w: %w", domain.ErrStoreUnavailable, err)
	}
	if err := json.Unmarshal(breakdown, &result.Breakdown); err != nil {
		return domain.Result{}, fmt.Errorf("unmarshal breakdown: %w", err)
	}
	if err := json.Unmarshal(grades, &result.Grades); err != nil {
		return domain.Result{}, fmt.Errorf("unmarshal grades: %w", err)
	}
	result.Mode = domain.GradingMode(mode)
	result.GradedAt = result.GradedAt.UTC()
	return result, nil
}

func (s *ResultStore) CreateResult(ctx context.Context, result domain.Result) (domain.Result, bool, error) {
	breakdown, err := json.Marshal(result.Breakdown)
	if err != nil {
		return domain.Result{}, false, err
	}
	grades, err := json.Marshal(result.Grades)
	if err != nil {
		return domain.Result{}, false, err
	}

	tag, err := s.pool.Exec(ctx, `INSERT INTO results
		(id, submission_id, student_id, competition_id, total_score, total_questions,
		 percentage_score, breakdown, grades, mode, graded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (submission_id) DO NOTHING`,
		result.ID, result.SubmissionID, result.StudentID, result.CompetitionID,
		result.TotalScore, result.TotalQuestions, result.PercentageScore,
		string(breakdown), string(grades), string(result.Mode), result.GradedAt,
	)
	if err != nil {
		return domain.Result{}, false, fmt.Errorf("insert result: %w: %w", domain.ErrStoreUnavailable, err)
	}
	if tag.RowsAffected() == 1 {
		return result, true, nil
	}

	existing, err := s.GetResult(ctx, result.SubmissionID)
	if err != nil {
		return domain.Result{}, false, err
	}
	return existing, false, nil
}
