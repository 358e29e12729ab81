package grading

import (
	"errors"
	"fmt"

	"competition-grader/internal/domain"
)

// Evaluate decides whether answer is correct for q.
//
// MCQ correctness is always computed: the selected text must equal the text
// of the option flagged correct. TEXT and CODE answers have no automatic
// verdict, so existing is returned as given, or false when nil.
func Evaluate(q domain.Question, answer *domain.Answer, existing *bool) bool {
	switch q.Type {
	case domain.QuestionMCQ:
		if answer == nil {
			return false
		}
		choice, ok := answer.Payload.(domain.ChoiceAnswer)
		if !ok {
			return false
		}
		correct, ok := CorrectOption(q)
		if !ok {
			return false
		}
		// Options are compared by display text, not id.
		return choice.Selected == correct.Text
	case domain.QuestionText, domain.QuestionCode:
		if existing == nil {
			return false
		}
		return *existing
	default:
		return false
	}
}

// CorrectOption returns the first option flagged correct.
func CorrectOption(q domain.Question) (domain.Option, bool) {
	for _, opt := range q.Options {
		if opt.IsCorrect {
			return opt, true
		}
	}
	return domain.Option{}, false
}

// ValidateQuestion reports authoring mistakes that make MCQ grading
// ambiguous. Non-MCQ questions are always valid.
func ValidateQuestion(q domain.Question) error {
	if q.Type != domain.QuestionMCQ {
		return nil
	}
	correct := 0
	texts := make(map[string]struct{}, len(q.Options))
	for _, opt := range q.Options {
		if opt.IsCorrect {
			correct++
		}
		if _, dup := texts[opt.Text]; dup {
			return fmt.Errorf("%w: question %q has duplicate option text %q", domain.ErrQuestionConfig, q.ID, opt.Text)
		}
		texts[opt.Text] = struct{}{}
	}
	if correct != 1 {
		return fmt.Errorf("%w: question %q has %d correct options, want 1", domain.ErrQuestionConfig, q.ID, correct)
	}
	return nil
}

// ValidateSubmission runs ValidateQuestion over every entry and joins the failures.
func ValidateSubmission(sub domain.NormalizedSubmission) error {
	var errs []error
	for _, e := range sub.Entries {
		if err := ValidateQuestion(e.Question); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Verdicts resolves the verdict shown for a question. A persisted result wins
// over grader overrides, which win over a verdict carried on the answer.
type Verdicts struct {
	Result    *domain.Result
	Overrides map[string]bool
}

// Resolve applies the precedence rule to one entry.
func (v Verdicts) Resolve(e domain.Entry) bool {
	if v.Result != nil {
		return v.Result.Breakdown[e.Question.ID]
	}
	var existing *bool
	if ok, found := v.Overrides[e.Question.ID]; found {
		existing = &ok
	} else if e.Answer != nil {
		existing = e.Answer.Verdict
	}
	return Evaluate(e.Question, e.Answer, existing)
}

// ResolveAll returns question id -> verdict for every entry.
func (v Verdicts) ResolveAll(sub domain.NormalizedSubmission) map[string]bool {
	out := make(map[string]bool, len(sub.Entries))
	for _, e := range sub.Entries {
		out[e.Question.ID] = v.Resolve(e)
	}
	return out
}

// AutoGrade evaluates every entry of an MCQ submission. Non-MCQ entries keep
// whatever verdict their answer carries.
func AutoGrade(sub domain.NormalizedSubmission) []domain.QuestionGrade {
	grades := make([]domain.QuestionGrade, 0, len(sub.Entries))
	for _, e := range sub.Entries {
		grades = append(grades, GradeFor(e, Verdicts{}.Resolve(e)))
	}
	return grades
}

// GradeFor builds the audit record for one entry.
func GradeFor(e domain.Entry, isCorrect bool) domain.QuestionGrade {
	g := domain.QuestionGrade{
		QuestionID:   e.Question.ID,
		IsCorrect:    isCorrect,
		QuestionType: e.Question.Type,
	}
	if e.Answer != nil && e.Answer.Payload != nil {
		g.StudentAnswer = e.Answer.Payload.Display()
	}
	if e.Question.Type == domain.QuestionMCQ {
		if opt, ok := CorrectOption(e.Question); ok {
			g.CorrectAnswer = opt.Text
		}
	}
	return g
}
