package grading

import (
	"fmt"
	"sync"

	"competition-grader/internal/domain"
)

// OverrideSet is a grader's working set of verdicts for one TEXT/CODE
// submission. It is safe for concurrent use.
type OverrideSet struct {
	submission domain.NormalizedSubmission

	mu        sync.RWMutex
	overrides map[string]bool
}

// NewOverrideSet starts an empty working set for sub.
func NewOverrideSet(sub domain.NormalizedSubmission) *OverrideSet {
	return &OverrideSet{
		submission: sub,
		overrides:  make(map[string]bool),
	}
}

// SubmissionID identifies the submission being graded.
func (s *OverrideSet) SubmissionID() string {
	return s.submission.ID
}

// Set records a verdict for questionID, replacing any earlier one.
func (s *OverrideSet) Set(questionID string, isCorrect bool) error {
	if _, ok := s.submission.Entry(questionID); !ok {
		return fmt.Errorf("%w: %q", domain.ErrQuestionNotFound, questionID)
	}
	s.mu.Lock()
	s.overrides[questionID] = isCorrect
	s.mu.Unlock()
	return nil
}

// Apply sets a batch of grades. A batch naming the same question twice is
// rejected as a whole.
func (s *OverrideSet) Apply(grades []domain.QuestionGrade) error {
	seen := make(map[string]struct{}, len(grades))
	for _, g := range grades {
		if _, dup := seen[g.QuestionID]; dup {
			return fmt.Errorf("%w: %q", domain.ErrDuplicateGrade, g.QuestionID)
		}
		seen[g.QuestionID] = struct{}{}
		if _, ok := s.submission.Entry(g.QuestionID); !ok {
			return fmt.Errorf("%w: %q", domain.ErrQuestionNotFound, g.QuestionID)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range grades {
		s.overrides[g.QuestionID] = g.IsCorrect
	}
	return nil
}

// Map returns a copy of the explicit overrides.
func (s *OverrideSet) Map() map[string]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]bool, len(s.overrides))
	for k, v := range s.overrides {
		out[k] = v
	}
	return out
}

// Len is the number of explicit overrides.
func (s *OverrideSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.overrides)
}

// Overrides lists the explicit overrides in question order.
func (s *OverrideSet) Overrides() []domain.QuestionGrade {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.QuestionGrade, 0, len(s.overrides))
	for _, e := range s.submission.Entries {
		if v, ok := s.overrides[e.Question.ID]; ok {
			out = append(out, GradeFor(e, v))
		}
	}
	return out
}

// Finalize returns a grade for every question. Questions without an
// override keep the verdict shown for them (the answer's own verdict, else
// incorrect), so finalizing never contradicts the submission view.
func (s *OverrideSet) Finalize() []domain.QuestionGrade {
	s.mu.RLock()
	defer s.mu.RUnlock()
	verdicts := Verdicts{Overrides: s.overrides}
	out := make([]domain.QuestionGrade, 0, len(s.submission.Entries))
	for _, e := range s.submission.Entries {
		out = append(out, GradeFor(e, verdicts.Resolve(e)))
	}
	return out
}
