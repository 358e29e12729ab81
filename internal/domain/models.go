package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// QuestionType tags how a question is answered and graded.
type QuestionType string

const (
	QuestionMCQ  QuestionType = "MCQ"
	QuestionText QuestionType = "TEXT"
	QuestionCode QuestionType = "CODE"
)

// ParseQuestionType accepts the upper or lower case form of a known type.
func ParseQuestionType(raw string) (QuestionType, error) {
	switch t := QuestionType(strings.ToUpper(strings.TrimSpace(raw))); t {
	case QuestionMCQ, QuestionText, QuestionCode:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownQuestionType, raw)
	}
}

// AutoGraded reports whether correctness can be computed without a grader.
func (t QuestionType) AutoGraded() bool {
	return t == QuestionMCQ
}

// DefaultLanguage is used for code answers that do not name a language.
const DefaultLanguage = "javascript"

// Option is a possible answer for an MCQ question.
type Option struct {
	ID        string `json:"id,omitempty"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"isCorrect"`
}

// Question is read-only authoring data; exactly one option is correct for MCQ.
type Question struct {
	ID       string       `json:"id"`
	Type     QuestionType `json:"type,omitempty"`
	Prompt   string       `json:"questionText"`
	Number   int          `json:"questionNumber,omitempty"`
	Options  []Option     `json:"options,omitempty"`
	Language string       `json:"language,omitempty"`
}

// AnswerPayload is the type-dependent body of an answer. The concrete types
// are ChoiceAnswer, TextAnswer and CodeAnswer.
type AnswerPayload interface {
	QuestionType() QuestionType
	// Display renders the payload for audit records.
	Display() string
}

// ChoiceAnswer holds the selected option text of an MCQ answer.
type ChoiceAnswer struct {
	Selected string
}

func (ChoiceAnswer) QuestionType() QuestionType { return QuestionMCQ }
func (a ChoiceAnswer) Display() string          { return a.Selected }

// TextAnswer holds a free-text answer.
type TextAnswer struct {
	Text string
}

func (TextAnswer) QuestionType() QuestionType { return QuestionText }
func (a TextAnswer) Display() string          { return a.Text }

// CodeAnswer holds source code and the language it is written in.
type CodeAnswer struct {
	Code     string `json:"code"`
	Language string `json:"language"`
}

func (CodeAnswer) QuestionType() QuestionType { return QuestionCode }
func (a CodeAnswer) Display() string          { return a.Code }

// Answer is a student's answer to one question. Verdict carries a verdict
// recorded on the answer by an earlier pass, if any.
type Answer struct {
	QuestionID string
	Payload    AnswerPayload
	Verdict    *bool
}

type answerJSON struct {
	QuestionID string       `json:"questionId"`
	Type       QuestionType `json:"type"`
	Selected   string       `json:"selected,omitempty"`
	Text       string       `json:"text,omitempty"`
	Code       *CodeAnswer  `json:"code,omitempty"`
	IsCorrect  *bool        `json:"isCorrect,omitempty"`
}

func (a Answer) MarshalJSON() ([]byte, error) {
	out := answerJSON{QuestionID: a.QuestionID, IsCorrect: a.Verdict}
	switch p := a.Payload.(type) {
	case ChoiceAnswer:
		out.Type, out.Selected = QuestionMCQ, p.Selected
	case TextAnswer:
		out.Type, out.Text = QuestionText, p.Text
	case CodeAnswer:
		out.Type, out.Code = QuestionCode, &p
	}
	return json.Marshal(out)
}

// RawSubmission is a submission as stored upstream, in either the legacy
// (Questions + Answers) or the current (QuestionAnswers) shape.
type RawSubmission struct {
	ID              string       `json:"id"`
	StudentID       string       `json:"studentId"`
	CompetitionID   string       `json:"competitionId"`
	CompetitionType QuestionType `json:"competitionType"`
	SubmittedAt     time.Time    `json:"submissionTime"`

	Questions []Question     `json:"questions,omitempty"`
	Answers   []LegacyAnswer `json:"answers,omitempty"`

	QuestionAnswers []QuestionAnswer `json:"questionAnswers"`
}

// LegacyAnswer is an element of the legacy answers array.
type LegacyAnswer struct {
	QuestionID string `json:"questionId"`
	Answer     string `json:"answer"`
	Language   string `json:"language,omitempty"`
	IsCorrect  *bool  `json:"isCorrect,omitempty"`
}

// QuestionAnswer is an element of the current questionAnswers array.
// StudentAnswer is JSON-encoded {code, language} for CODE questions.
type QuestionAnswer struct {
	Question       Question `json:"question"`
	StudentAnswer  *string  `json:"studentAnswer"`
	QuestionNumber int      `json:"questionNumber"`
	IsCorrect      *bool    `json:"isCorrect,omitempty"`
}

// Entry pairs a question with its (possibly absent) answer.
type Entry struct {
	Question       Question `json:"question"`
	Answer         *Answer  `json:"answer"`
	QuestionNumber int      `json:"questionNumber"`
}

// NormalizedSubmission is the canonical shape every grading step works on.
type NormalizedSubmission struct {
	ID              string       `json:"id"`
	StudentID       string       `json:"studentId"`
	CompetitionID   string       `json:"competitionId"`
	CompetitionType QuestionType `json:"competitionType"`
	SubmittedAt     time.Time    `json:"submissionTime"`
	Entries         []Entry      `json:"entries"`
	// Warnings lists input problems that were recovered from.
	Warnings []string `json:"warnings,omitempty"`
}

// Answered counts entries carrying an answer.
func (s NormalizedSubmission) Answered() int {
	n := 0
	for _, e := range s.Entries {
		if e.Answer != nil {
			n++
		}
	}
	return n
}

// Entry looks up an entry by question id.
func (s NormalizedSubmission) Entry(questionID string) (Entry, bool) {
	for _, e := range s.Entries {
		if e.Question.ID == questionID {
			return e, true
		}
	}
	return Entry{}, false
}

// QuestionGrade is the verdict for one question.
type QuestionGrade struct {
	QuestionID    string       `json:"questionId"`
	IsCorrect     bool         `json:"isCorrect"`
	QuestionType  QuestionType `json:"questionType,omitempty"`
	StudentAnswer string       `json:"studentAnswer,omitempty"`
	CorrectAnswer string       `json:"correctAnswer,omitempty"`
}

// GradingMode records which path produced a Result.
type GradingMode string

const (
	GradingAuto   GradingMode = "auto"
	GradingManual GradingMode = "manual"
)

// Result is the immutable outcome of grading one submission.
type Result struct {
	ID              string          `json:"id"`
	SubmissionID    string          `json:"submissionId"`
	StudentID       string          `json:"studentId"`
	CompetitionID   string          `json:"competitionId"`
	TotalScore      int             `json:"totalScore"`
	TotalQuestions  int             `json:"totalQuestions"`
	PercentageScore float64         `json:"percentageScore"`
	Breakdown       map[string]bool `json:"breakdown"`
	Grades          []QuestionGrade `json:"grades"`
	Mode            GradingMode     `json:"mode"`
	GradedAt        time.Time       `json:"gradedAt"`
}

// Resolution is returned by grade operations. IsExisting is set when the
// result was created by an earlier request.
type Resolution struct {
	Result     Result `json:"result"`
	IsExisting bool   `json:"isExisting"`
}

// GradingState is the lifecycle position of a submission.
type GradingState string

const (
	StateUngraded          GradingState = "UNGRADED"
	StateGradingInProgress GradingState = "GRADING_IN_PROGRESS"
	StateGraded            GradingState = "GRADED"
)

// StateOf derives the state from what exists for a submission.
func StateOf(hasResult, hasSession bool) GradingState {
	switch {
	case hasResult:
		return StateGraded
	case hasSession:
		return StateGradingInProgress
	default:
		return StateUngraded
	}
}

// ExecutionOutput is what the code-execution sandbox reports for one run.
type ExecutionOutput struct {
	Language string `json:"language"`
	Output   string `json:"output"`
	Error    string `json:"error,omitempty"`
}
