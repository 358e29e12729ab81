package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"competition-grader/internal/app"
	"competition-grader/internal/domain"
)

// GradingHandler exposes the grading use cases over REST.
type GradingHandler struct {
	service *app.GradingService
}

func NewGradingHandler(service *app.GradingService) *GradingHandler {
	return &GradingHandler{service: service}
}

type gradeInput struct {
	QuestionID string `json:"questionId"`
	IsCorrect  *bool  `json:"isCorrect"`
}

type manualGradesRequest struct {
	Grades []gradeInput `json:"grades"`
}

type overrideRequest struct {
	IsCorrect *bool `json:"isCorrect"`
}

func (h *GradingHandler) GetSubmission(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Submission(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeOK(w, r, http.StatusOK, view)
}

func (h *GradingHandler) GetResult(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Result(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeOK(w, r, http.StatusOK, result)
}

func (h *GradingHandler) AutoGrade(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.AutoGrade(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeOK(w, r, resolutionStatus(res), res)
}

func (h *GradingHandler) SubmitManualGrades(w http.ResponseWriter, r *http.Request) {
	var req manualGradesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid json body")
		return
	}
	grades, msg := toGrades(req.Grades)
	if msg != "" {
		writeError(w, r, http.StatusBadRequest, msg)
		return
	}
	res, err := h.service.SubmitManualGrades(r.Context(), chi.URLParam(r, "id"), grades)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeOK(w, r, resolutionStatus(res), res)
}

func (h *GradingHandler) ListOverrides(w http.ResponseWriter, r *http.Request) {
	overrides, err := h.service.Overrides(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeOK(w, r, http.StatusOK, overrides)
}

func (h *GradingHandler) SetOverride(w http.ResponseWriter, r *http.Request) {
	var req overrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.IsCorrect == nil {
		writeError(w, r, http.StatusBadRequest, "isCorrect is required")
		return
	}
	overrides, err := h.service.SetOverride(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "questionID"), *req.IsCorrect)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeOK(w, r, http.StatusOK, overrides)
}

func (h *GradingHandler) RunCode(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.RunCode(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "questionID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeOK(w, r, http.StatusOK, out)
}

// resolutionStatus is 201 for a freshly created result and 200 otherwise.
func resolutionStatus(res domain.Resolution) int {
	if res.IsExisting {
		return http.StatusOK
	}
	return http.StatusCreated
}

func toGrades(in []gradeInput) ([]domain.QuestionGrade, string) {
	grades := make([]domain.QuestionGrade, 0, len(in))
	for _, g := range in {
		if g.QuestionID == "" || g.IsCorrect == nil {
			return nil, "each grade needs questionId and isCorrect"
		}
		grades = append(grades, domain.QuestionGrade{QuestionID: g.QuestionID, IsCorrect: *g.IsCorrect})
	}
	return grades, ""
}
