package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"competition-grader/internal/domain"
)

// ResultStore keeps results as JSON under result:{submissionID}. SETNX gives
// the at-most-one guarantee across instances sharing the same Redis.
// Results never expire.
type ResultStore struct {
	client *redis.Client
}

func NewResultStore(client *redis.Client) *ResultStore {
	return &ResultStore{client: client}
}

func (s *ResultStore) GetResult(ctx context.Context, submissionID string) (domain.Result, error) {
	payload, err := s.client.Get(ctx, s.key(submissionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Result{}, domain.ErrResultNotFound
	}
	if err != nil {
		return domain.Result{}, fmt.Errorf("get result %s: %w: %w", submissionID, domain.ErrStoreUnavailable, err)
	}
	var result domain.Result
	if err := json.Unmarshal(payload, &result); err != nil {
		return domain.Result{}, fmt.Errorf("decode result %s: %w", submissionID, err)
	}
	return result, nil
}

func (s *ResultStore) CreateResult(ctx context.Context, result domain.Result) (domain.Result, bool, error) {
	payload, err := json.Marshal(result)
	if err != nil {
		return domain.Result{}, false, err
	}
	created, err := s.client.SetNX(ctx, s.key(result.SubmissionID), payload, 0).Result()
	if err != nil {
		return domain.Result{}, false, fmt.Errorf("create result %s: %w: %w", result.SubmissionID, domain.ErrStoreUnavailable, err)
	}
	if created {
		return result, true, nil
	}
	existing, err := s.GetResult(ctx, result.SubmissionID)
	if err != nil {
		return domain.Result{}, false, err
	}
	return existing, false, nil
}

func (s *ResultStore) key(submissionID string) string {
	return "result:" + submissionID
}
