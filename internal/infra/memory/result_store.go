package memory

import (
	"context"
	"sync"

	"competition-grader/internal/domain"
)

// ResultStore is an in-memory implementation of app.ResultStore. The map
// lock makes the existence check and the insert one step.
type ResultStore struct {
	mu      sync.RWMutex
	results map[string]domain.Result
}

func NewResultStore() *ResultStore {
	return &ResultStore{results: make(map[string]domain.Result)}
}

func (s *ResultStore) GetResult(_ context.Context, submissionID string) (domain.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result, ok := s.results[submissionID]
	if !ok {
		return domain.Result{}, domain.ErrResultNotFound
	}
	return cloneResult(result), nil
}

func (s *ResultStore) CreateResult(_ context.Context, result domain.Result) (domain.Result, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.results[result.SubmissionID]; ok {
		return cloneResult(existing), false, nil
	}
	stored := cloneResult(result)
	s.results[result.SubmissionID] = stored
	return cloneResult(stored), true, nil
}

// Len reports how many results are stored.
func (s *ResultStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.results)
}

// cloneResult keeps callers from mutating a stored result through shared maps and slices.
func cloneResult(r domain.Result) domain.Result {
	breakdown := make(map[string]bool, len(r.Breakdown))
	for k, v := range r.Breakdown {
		breakdown[k] = v
	}
	r.Breakdown = breakdown
	r.Grades = append([]domain.QuestionGrade(nil), r.Grades...)
	return r
}
