package domain

import "errors"

var (
	// ErrSubmissionNotFound is returned when the submission does not exist upstream.
	ErrSubmissionNotFound = errors.New("submission not found")
	// ErrResultNotFound means no result has been created for the submission yet.
	ErrResultNotFound = errors.New("result not found")
	// ErrQuestionNotFound indicates a question id that is not part of the submission.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrUnknownQuestionType is returned for a type outside MCQ, TEXT and CODE.
	ErrUnknownQuestionType = errors.New("unknown question type")
	// ErrQuestionConfig marks an authoring problem, e.g. an MCQ without exactly one correct option.
	ErrQuestionConfig = errors.New("invalid question configuration")
	// ErrGradingModeMismatch is returned when auto grading is asked for a TEXT/CODE
	// competition or manual grading for an MCQ one.
	ErrGradingModeMismatch = errors.New("grading mode does not match competition type")
	// ErrNothingToGrade means the submission holds no answers yet.
	ErrNothingToGrade = errors.New("submission has no answers to grade")
	// ErrAlreadyGraded is returned when an override targets a graded submission.
	ErrAlreadyGraded = errors.New("submission already graded")
	// ErrDuplicateGrade indicates the same question was graded twice in one request.
	ErrDuplicateGrade = errors.New("duplicate grade for question")
	// ErrNotCodeQuestion is returned when code execution targets a non-code answer.
	ErrNotCodeQuestion = errors.New("question is not a code question")
	// ErrUnsupportedLanguage is returned for languages the execution sandbox cannot run.
	ErrUnsupportedLanguage = errors.New("unsupported language")
	// ErrStoreUnavailable wraps storage and transport failures. Callers may retry.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// IsRetryable reports whether err is a transient storage or transport failure.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}
