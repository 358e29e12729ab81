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

// SubmissionLoader loads submission JSONB from Postgres.
type SubmissionLoader struct {
	pool *pgxpool.Pool
}

func NewSubmissionLoader(pool *pgxpool.Pool) *SubmissionLoader {
	return &SubmissionLoader{pool: pool}
}

func (l *SubmissionLoader) LoadSubmission(ctx context.Context, submissionID string) (domain.RawSubmission, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM submissions WHERE id=$1`, submissionID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.RawSubmission{}, fmt.Errorf("%w: %s", domain.ErrSubmissionNotFound, submissionID)
	}
	if err != nil {
		return domain.RawSubmission{}, fmt.Errorf("load submission: %w: %w", domain.ErrStoreUnavailable, err)
	}
	var sub domain.RawSubmission
	if err := json.Unmarshal(raw, &sub); err != nil {
		return domain.RawSubmission{}, fmt.Errorf("unmarshal submission: %w", err)
	}
	if sub.ID == "" {
		sub.ID = submissionID
	}
	return sub, nil
}

// SaveSubmission upserts a submission document. It backs the seed data of
// the start command and the integration tests.
func (l *SubmissionLoader) SaveSubmission(ctx context.Context, sub domain.RawSubmission) error {
	payload, err := json.Marshal(sub)
	if err != nil {
		return err
	}
	_, err = l.pool.Exec(ctx,
		`INSERT INTO submissions (id, data) VALUES ($1, $2) ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data`,
		sub.ID, string(payload))
	if err != nil {
		return fmt.Errorf("save submission: %w: %w", domain.ErrStoreUnavailable, err)
	}
	return nil
}
