package grading

import (
	"github.com/shopspring/decimal"

	"competition-grader/internal/domain"
)

// PercentagePlaces is the number of decimals kept in percentage scores.
const PercentagePlaces = 2

// Score is the aggregate of a set of question grades.
type Score struct {
	TotalScore     int     `json:"totalScore"`
	TotalQuestions int     `json:"totalQuestions"`
	Percentage     float64 `json:"percentage"`
}

// Aggregate counts correct grades and derives the percentage. The percentage
// is truncated, not rounded, so it only reaches 100 when every grade is
// correct. An empty set scores zero.
func Aggregate(grades []domain.QuestionGrade) Score {
	total := len(grades)
	if total == 0 {
		return Score{}
	}
	correct := 0
	for _, g := range grades {
		if g.IsCorrect {
			correct++
		}
	}
	pct := decimal.NewFromInt(int64(correct)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(total))).
		Truncate(PercentagePlaces)
	f, _ := pct.Float64()
	return Score{TotalScore: correct, TotalQuestions: total, Percentage: f}
}

// Breakdown maps question id to verdict.
func Breakdown(grades []domain.QuestionGrade) map[string]bool {
	out := make(map[string]bool, len(grades))
	for _, g := range grades {
		out[g.QuestionID] = g.IsCorrect
	}
	return out
}
