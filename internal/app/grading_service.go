package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"competition-grader/internal/domain"
	"competition-grader/internal/grading"
)

// SubmissionRepository loads raw submissions (from cache/backing store).
type SubmissionRepository interface {
	GetSubmission(ctx context.Context, submissionID string) (domain.RawSubmission, error)
}

// SessionRepository holds grader override working sets between requests.
type SessionRepository interface {
	// Load rebuilds the working set for sub. ok is false when no grading
	// session has been started.
	Load(ctx context.Context, sub domain.NormalizedSubmission) (set *grading.OverrideSet, ok bool, err error)
	// Put upserts overrides and marks the session live.
	Put(ctx context.Context, submissionID string, grades []domain.QuestionGrade) error
	Delete(ctx context.Context, submissionID string) error
}

// CodeRunner forwards code to the external execution sandbox.
type CodeRunner interface {
	Run(ctx context.Context, language, code string) (domain.ExecutionOutput, error)
}

// SubmissionView is a normalized submission together with its grading state
// and the verdicts currently in effect.
type SubmissionView struct {
	Submission domain.NormalizedSubmission `json:"submission"`
	State      domain.GradingState         `json:"state"`
	Verdicts   map[string]bool             `json:"verdicts"`
	Overrides  []domain.QuestionGrade      `json:"overrides,omitempty"`
	Result     *domain.Result              `json:"result,omitempty"`
}

// GradingService contains the grading use cases.
type GradingService struct {
	submissions SubmissionRepository
	resolver    *ResultResolver
	sessions    SessionRepository
	runner      CodeRunner
	normalizer  grading.Normalizer
	now         func() time.Time
}

// Option customizes a GradingService.
type Option func(*GradingService)

// WithClock is used by tests for deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *GradingService) { s.now = now }
}

// WithDefaultLanguage sets the language given to code answers that lack one.
func WithDefaultLanguage(lang string) Option {
	return func(s *GradingService) { s.normalizer.DefaultLanguage = lang }
}

// WithCodeRunner enables RunCode.
func WithCodeRunner(runner CodeRunner) Option {
	return func(s *GradingService) { s.runner = runner }
}

func NewGradingService(submissions SubmissionRepository, results ResultStore, sessions SessionRepository, opts ...Option) *GradingService {
	s := &GradingService{
		submissions: submissions,
		resolver:    NewResultResolver(results),
		sessions:    sessions,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submission returns the normalized submission with verdicts resolved by
// precedence: stored result, then overrides, then answer verdicts.
func (s *GradingService) Submission(ctx context.Context, submissionID string) (SubmissionView, error) {
	sub, err := s.load(ctx, submissionID)
	if err != nil {
		return SubmissionView{}, err
	}
	result, graded, err := s.resolver.Lookup(ctx, submissionID)
	if err != nil {
		return SubmissionView{}, err
	}

	view := SubmissionView{Submission: sub}
	verdicts := grading.Verdicts{}
	hasSession := false
	if graded {
		view.Result = &result
		verdicts.Result = &result
	} else {
		set, ok, err := s.sessions.Load(ctx, sub)
		if err != nil {
			return SubmissionView{}, err
		}
		if ok {
			hasSession = true
			verdicts.Overrides = set.Map()
			view.Overrides = set.Overrides()
		}
	}
	view.State = domain.StateOf(graded, hasSession)
	view.Verdicts = verdicts.ResolveAll(sub)
	return view, nil
}

// Result returns the stored result or domain.ErrResultNotFound.
func (s *GradingService) Result(ctx context.Context, submissionID string) (domain.Result, error) {
	result, found, err := s.resolver.Lookup(ctx, submissionID)
	if err != nil {
		return domain.Result{}, err
	}
	if !found {
		return domain.Result{}, domain.ErrResultNotFound
	}
	return result, nil
}

// AutoGrade grades an MCQ submission. Repeated calls return the first result.
func (s *GradingService) AutoGrade(ctx context.Context, submissionID string) (domain.Resolution, error) {
	sub, err := s.load(ctx, submissionID)
	if err != nil {
		return domain.Resolution{}, err
	}
	if sub.CompetitionType != domain.QuestionMCQ {
		return domain.Resolution{}, fmt.Errorf("%w: auto grading a %s competition", domain.ErrGradingModeMismatch, sub.CompetitionType)
	}

	res, err := s.resolver.ResolveOrCreate(ctx, submissionID, func(ctx context.Context) (domain.Result, error) {
		if err := gradable(sub); err != nil {
			return domain.Result{}, err
		}
		if err := grading.ValidateSubmission(sub); err != nil {
			return domain.Result{}, err
		}
		return s.newResult(sub, grading.AutoGrade(sub), domain.GradingAuto), nil
	})
	if err != nil {
		return domain.Resolution{}, err
	}
	s.logResolution(res)
	return res, nil
}

// SubmitManualGrades finalizes grader verdicts for a TEXT/CODE submission.
// grades are merged over any overrides saved earlier in the session.
func (s *GradingService) SubmitManualGrades(ctx context.Context, submissionID string, grades []domain.QuestionGrade) (domain.Resolution, error) {
	sub, err := s.load(ctx, submissionID)
	if err != nil {
		return domain.Resolution{}, err
	}
	if sub.CompetitionType == domain.QuestionMCQ {
		return domain.Resolution{}, fmt.Errorf("%w: manual grading an MCQ competition", domain.ErrGradingModeMismatch)
	}
	// Validate the payload up front so a malformed request fails the same way
	// whether or not the submission is already graded.
	if err := grading.NewOverrideSet(sub).Apply(grades); err != nil {
		return domain.Resolution{}, err
	}

	res, err := s.resolver.ResolveOrCreate(ctx, submissionID, func(ctx context.Context) (domain.Result, error) {
		if err := gradable(sub); err != nil {
			return domain.Result{}, err
		}
		set, ok, err := s.sessions.Load(ctx, sub)
		if err != nil {
			return domain.Result{}, err
		}
		if !ok {
			set = grading.NewOverrideSet(sub)
		}
		if err := set.Apply(grades); err != nil {
			return domain.Result{}, err
		}
		return s.newResult(sub, set.Finalize(), domain.GradingManual), nil
	})
	if err != nil {
		return domain.Resolution{}, err
	}
	if err := s.sessions.Delete(ctx, submissionID); err != nil {
		log.Printf("drop grading session %s: %v", submissionID, err)
	}
	s.logResolution(res)
	return res, nil
}

// SetOverride records a grader verdict for one question of an ungraded
// TEXT/CODE submission and returns the current working set.
func (s *GradingService) SetOverride(ctx context.Context, submissionID, questionID string, isCorrect bool) ([]domain.QuestionGrade, error) {
	sub, err := s.load(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if sub.CompetitionType == domain.QuestionMCQ {
		return nil, fmt.Errorf("%w: overriding an MCQ competition", domain.ErrGradingModeMismatch)
	}
	if _, graded, err := s.resolver.Lookup(ctx, submissionID); err != nil {
		return nil, err
	} else if graded {
		return nil, domain.ErrAlreadyGraded
	}

	set, ok, err := s.sessions.Load(ctx, sub)
	if err != nil {
		return nil, err
	}
	if !ok {
		set = grading.NewOverrideSet(sub)
	}
	if err := set.Set(questionID, isCorrect); err != nil {
		return nil, err
	}
	entry, _ := sub.Entry(questionID)
	if err := s.sessions.Put(ctx, submissionID, []domain.QuestionGrade{grading.GradeFor(entry, isCorrect)}); err != nil {
		return nil, err
	}
	return set.Overrides(), nil
}

// Overrides lists the overrides saved for an ungraded submission. Once a
// result exists the list is empty, even if a stale session survived.
func (s *GradingService) Overrides(ctx context.Context, submissionID string) ([]domain.QuestionGrade, error) {
	sub, err := s.load(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if _, graded, err := s.resolver.Lookup(ctx, submissionID); err != nil {
		return nil, err
	} else if graded {
		return []domain.QuestionGrade{}, nil
	}
	set, ok, err := s.sessions.Load(ctx, sub)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []domain.QuestionGrade{}, nil
	}
	return set.Overrides(), nil
}

// RunCode sends the student's code for questionID to the execution sandbox.
func (s *GradingService) RunCode(ctx context.Context, submissionID, questionID string) (domain.ExecutionOutput, error) {
	if s.runner == nil {
		return domain.ExecutionOutput{}, fmt.Errorf("%w: no code runner configured", domain.ErrStoreUnavailable)
	}
	sub, err := s.load(ctx, submissionID)
	if err != nil {
		return domain.ExecutionOutput{}, err
	}
	entry, ok := sub.Entry(questionID)
	if !ok {
		return domain.ExecutionOutput{}, fmt.Errorf("%w: %q", domain.ErrQuestionNotFound, questionID)
	}
	if entry.Question.Type != domain.QuestionCode {
		return domain.ExecutionOutput{}, domain.ErrNotCodeQuestion
	}
	code := domain.CodeAnswer{Language: s.defaultLanguage()}
	if entry.Answer != nil {
		if c, ok := entry.Answer.Payload.(domain.CodeAnswer); ok {
			code = c
		}
	}
	return s.runner.Run(ctx, code.Language, code.Code)
}

func (s *GradingService) load(ctx context.Context, submissionID string) (domain.NormalizedSubmission, error) {
	raw, err := s.submissions.GetSubmission(ctx, submissionID)
	if err != nil {
		return domain.NormalizedSubmission{}, err
	}
	if raw.ID == "" {
		raw.ID = submissionID
	}
	sub := s.normalizer.Normalize(raw)
	for _, w := range sub.Warnings {
		log.Printf("submission %s: %s", submissionID, w)
	}
	return sub, nil
}

func (s *GradingService) newResult(sub domain.NormalizedSubmission, grades []domain.QuestionGrade, mode domain.GradingMode) domain.Result {
	score := grading.Aggregate(grades)
	return domain.Result{
		ID:              uuid.NewString(),
		SubmissionID:    sub.ID,
		StudentID:       sub.StudentID,
		CompetitionID:   sub.CompetitionID,
		TotalScore:      score.TotalScore,
		TotalQuestions:  score.TotalQuestions,
		PercentageScore: score.Percentage,
		Breakdown:       grading.Breakdown(grades),
		Grades:          grades,
		Mode:            mode,
		// Postgres keeps microseconds; trim so the creating call and later
		// reads return the same timestamp.
		GradedAt:        s.now().UTC().Truncate(time.Microsecond),
	}
}

func (s *GradingService) defaultLanguage() string {
	if s.normalizer.DefaultLanguage != "" {
		return s.normalizer.DefaultLanguage
	}
	return domain.DefaultLanguage
}

func (s *GradingService) logResolution(res domain.Resolution) {
	if res.IsExisting {
		log.Printf("submission %s already graded (result %s)", res.Result.SubmissionID, res.Result.ID)
		return
	}
	log.Printf("graded submission %s: %d/%d (%.2f%%) mode=%s", res.Result.SubmissionID,
		res.Result.TotalScore, res.Result.TotalQuestions, res.Result.PercentageScore, res.Result.Mode)
}

func gradable(sub domain.NormalizedSubmission) error {
	if sub.Answered() == 0 {
		return domain.ErrNothingToGrade
	}
	return nil
}
