package memory

import (
	"context"
	"sync"

	"competition-grader/internal/domain"
	"competition-grader/internal/grading"
)

// SessionStore is an in-memory implementation of app.SessionRepository.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]map[string]bool
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]map[string]bool),
	}
}

func (s *SessionStore) Load(_ context.Context, sub domain.NormalizedSubmission) (*grading.OverrideSet, bool, error) {
	s.mu.RLock()
	overrides, ok := s.sessions[sub.ID]
	grades := make([]domain.QuestionGrade, 0, len(overrides))
	for questionID, isCorrect := range overrides {
		grades = append(grades, domain.QuestionGrade{QuestionID: questionID, IsCorrect: isCorrect})
	}
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}

	set := grading.NewOverrideSet(sub)
	if err := set.Apply(grades); err != nil {
		return nil, false, err
	}
	return set, true, nil
}

func (s *SessionStore) Put(_ context.Context, submissionID string, grades []domain.QuestionGrade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	overrides, ok := s.sessions[submissionID]
	if !ok {
		overrides = make(map[string]bool, len(grades))
		s.sessions[submissionID] = overrides
	}
	for _, g := range grades {
		overrides[g.QuestionID] = g.IsCorrect
	}
	return nil
}

func (s *SessionStore) Delete(_ context.Context, submissionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, submissionID)
	return nil
}
