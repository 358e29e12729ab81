package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"competition-grader/internal/app"
)

// NewRouter mounts the grading API and the grading websocket.
func NewRouter(service *app.GradingService) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)

	grading := NewGradingHandler(service)
	ws := NewWSHandler(service)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	r.Route("/api/v1/submissions/{id}", func(sub chi.Router) {
		sub.Get("/", grading.GetSubmission)
		sub.Get("/result", grading.GetResult)
		sub.Post("/grade/auto", grading.AutoGrade)
		sub.Post("/grade/manual", grading.SubmitManualGrades)
		sub.Get("/overrides", grading.ListOverrides)
		sub.Put("/overrides/{questionID}", grading.SetOverride)
		sub.Post("/questions/{questionID}/run", grading.RunCode)
	})

	r.Get("/ws/grading", ws.ServeWS)
	return r
}
