package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"competition-grader/internal/domain"
	"competition-grader/internal/grading"
)

// SessionStore is a Redis implementation of app.SessionRepository.
// Notes:
//   - grading:session:{submissionID} marks a live session.
//   - grading:session:{submissionID}:overrides is a hash of questionID -> "1"/"0".
//     Each override is its own field, so graders on different instances do
//     not overwrite each other's questions.
//   - Both keys share a sliding TTL so abandoned sessions expire.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

func (s *SessionStore) Load(ctx context.Context, sub domain.NormalizedSubmission) (*grading.OverrideSet, bool, error) {
	live, err := s.client.Exists(ctx, s.key(sub.ID)).Result()
	if err != nil {
		return nil, false, fmt.Errorf("load session %s: %w: %w", sub.ID, domain.ErrStoreUnavailable, err)
	}
	if live == 0 {
		return nil, false, nil
	}
	fields, err := s.client.HGetAll(ctx, s.overridesKey(sub.ID)).Result()
	if err != nil {
		return nil, false, fmt.Errorf("load overrides %s: %w: %w", sub.ID, domain.ErrStoreUnavailable, err)
	}

	grades := make([]domain.QuestionGrade, 0, len(fields))
	for questionID, v := range fields {
		grades = append(grades, domain.QuestionGrade{QuestionID: questionID, IsCorrect: v == "1"})
	}
	set := grading.NewOverrideSet(sub)
	if err := set.Apply(grades); err != nil {
		return nil, false, err
	}
	return set, true, nil
}

func (s *SessionStore) Put(ctx context.Context, submissionID string, grades []domain.QuestionGrade) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(submissionID), "1", s.ttl)
		if len(grades) > 0 {
			values := make([]interface{}, 0, 2*len(grades))
			for _, g := range grades {
				values = append(values, g.QuestionID, flag(g.IsCorrect))
			}
			pipe.HSet(ctx, s.overridesKey(submissionID), values...)
			if s.ttl > 0 {
				pipe.Expire(ctx, s.overridesKey(submissionID), s.ttl)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save session %s: %w: %w", submissionID, domain.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *SessionStore) Delete(ctx context.Context, submissionID string) error {
	if err := s.client.Del(ctx, s.key(submissionID), s.overridesKey(submissionID)).Err(); err != nil {
		return fmt.Errorf("delete session %s: %w: %w", submissionID, domain.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *SessionStore) key(submissionID string) string {
	return "grading:session:" + submissionID
}

func (s *SessionStore) overridesKey(submissionID string) string {
	return s.key(submissionID) + ":overrides"
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
