// Package grading holds the pure grading steps: normalizing submissions,
// deciding per-question correctness, aggregating scores and collecting
// grader overrides. Nothing in here performs I/O.
package grading

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"competition-grader/internal/domain"
)

// Normalizer turns either submission shape into a NormalizedSubmission.
type Normalizer struct {
	// DefaultLanguage is assigned to code answers without a usable language.
	DefaultLanguage string
}

// Normalize uses a Normalizer with the package default language.
func Normalize(raw domain.RawSubmission) domain.NormalizedSubmission {
	return Normalizer{}.Normalize(raw)
}

// Normalize never fails: malformed pieces degrade to safe defaults and are
// reported in Warnings.
func (n Normalizer) Normalize(raw domain.RawSubmission) domain.NormalizedSubmission {
	out := domain.NormalizedSubmission{
		ID:              raw.ID,
		StudentID:       raw.StudentID,
		CompetitionID:   raw.CompetitionID,
		CompetitionType: raw.CompetitionType,
		SubmittedAt:     raw.SubmittedAt,
	}
	if raw.QuestionAnswers != nil {
		n.fromCurrent(raw, &out)
	} else {
		n.fromLegacy(raw, &out)
	}
	if out.CompetitionType == "" {
		out.CompetitionType = inferCompetitionType(out.Entries)
	}
	return out
}

func (n Normalizer) fromCurrent(raw domain.RawSubmission, out *domain.NormalizedSubmission) {
	out.Entries = make([]domain.Entry, 0, len(raw.QuestionAnswers))
	seen := make(map[string]struct{}, len(raw.QuestionAnswers))
	for i, qa := range raw.QuestionAnswers {
		if strings.TrimSpace(qa.Question.ID) == "" {
			out.Warnings = append(out.Warnings, fmt.Sprintf("questionAnswers[%d]: missing question reference, skipped", i))
			continue
		}
		if _, dup := seen[qa.Question.ID]; dup {
			out.Warnings = append(out.Warnings, fmt.Sprintf("questionAnswers[%d]: question %q repeated, first one kept", i, qa.Question.ID))
			continue
		}
		seen[qa.Question.ID] = struct{}{}
		q := n.question(qa.Question, raw.CompetitionType, out)
		var answer *domain.Answer
		if qa.StudentAnswer != nil && strings.TrimSpace(*qa.StudentAnswer) != "" {
			payload := n.currentPayload(q, *qa.StudentAnswer, out)
			answer = &domain.Answer{QuestionID: q.ID, Payload: payload, Verdict: qa.IsCorrect}
		}
		out.Entries = append(out.Entries, domain.Entry{
			Question:       q,
			Answer:         answer,
			QuestionNumber: qa.QuestionNumber,
		})
	}
	sort.SliceStable(out.Entries, func(i, j int) bool {
		return out.Entries[i].QuestionNumber < out.Entries[j].QuestionNumber
	})
}

func (n Normalizer) fromLegacy(raw domain.RawSubmission, out *domain.NormalizedSubmission) {
	byQuestion := make(map[string]domain.LegacyAnswer, len(raw.Answers))
	for _, a := range raw.Answers {
		if _, dup := byQuestion[a.QuestionID]; dup {
			out.Warnings = append(out.Warnings, fmt.Sprintf("answer for question %q repeated, first one kept", a.QuestionID))
			continue
		}
		byQuestion[a.QuestionID] = a
	}

	out.Entries = make([]domain.Entry, 0, len(raw.Questions))
	seen := make(map[string]struct{}, len(raw.Questions))
	for i, rq := range raw.Questions {
		q := n.question(rq, raw.CompetitionType, out)
		seen[q.ID] = struct{}{}

		number := q.Number
		if number <= 0 {
			number = i + 1
		}
		var answer *domain.Answer
		if a, ok := byQuestion[q.ID]; ok && strings.TrimSpace(a.Answer) != "" {
			answer = &domain.Answer{QuestionID: q.ID, Payload: n.legacyPayload(q, a), Verdict: a.IsCorrect}
		}
		out.Entries = append(out.Entries, domain.Entry{Question: q, Answer: answer, QuestionNumber: number})
	}
	for _, a := range raw.Answers {
		if _, ok := seen[a.QuestionID]; !ok {
			out.Warnings = append(out.Warnings, fmt.Sprintf("answer references unknown question %q, ignored", a.QuestionID))
		}
	}
}

// question fills in the type from the competition when the question omits it.
func (n Normalizer) question(q domain.Question, competition domain.QuestionType, out *domain.NormalizedSubmission) domain.Question {
	raw := string(q.Type)
	if raw == "" {
		raw = string(competition)
	}
	t, err := domain.ParseQuestionType(raw)
	if err != nil {
		// Unknown types are graded by hand; they are never auto-marked.
		out.Warnings = append(out.Warnings, fmt.Sprintf("question %q: %v, treated as TEXT", q.ID, err))
		t = domain.QuestionText
	}
	q.Type = t
	return q
}

func (n Normalizer) currentPayload(q domain.Question, studentAnswer string, out *domain.NormalizedSubmission) domain.AnswerPayload {
	switch q.Type {
	case domain.QuestionMCQ:
		return domain.ChoiceAnswer{Selected: studentAnswer}
	case domain.QuestionCode:
		var code domain.CodeAnswer
		if err := json.Unmarshal([]byte(studentAnswer), &code); err != nil {
			out.Warnings = append(out.Warnings, fmt.Sprintf("question %q: unparseable code answer: %v", q.ID, err))
			return domain.CodeAnswer{Language: n.language()}
		}
		code.Language = n.language(code.Language, q.Language)
		return code
	default:
		return domain.TextAnswer{Text: studentAnswer}
	}
}

func (n Normalizer) legacyPayload(q domain.Question, a domain.LegacyAnswer) domain.AnswerPayload {
	switch q.Type {
	case domain.QuestionMCQ:
		return domain.ChoiceAnswer{Selected: a.Answer}
	case domain.QuestionCode:
		return domain.CodeAnswer{Code: a.Answer, Language: n.language(a.Language, q.Language)}
	default:
		return domain.TextAnswer{Text: a.Answer}
	}
}

func (n Normalizer) language(candidates ...string) string {
	for _, c := range candidates {
		if c = strings.TrimSpace(c); c != "" {
			return strings.ToLower(c)
		}
	}
	if n.DefaultLanguage != "" {
		return n.DefaultLanguage
	}
	return domain.DefaultLanguage
}

// inferCompetitionType is used for records that predate the competition type field.
func inferCompetitionType(entries []domain.Entry) domain.QuestionType {
	if len(entries) == 0 {
		return ""
	}
	t := entries[0].Question.Type
	for _, e := range entries[1:] {
		if e.Question.Type != t {
			return domain.QuestionText
		}
	}
	return t
}
