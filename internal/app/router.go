package app

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/slogsolutions/army-portal/internal/app/observability"
	"github.com/slogsolutions/army-portal/internal/exam"
	"github.com/slogsolutions/army-portal/internal/paper"
	"github.com/slogsolutions/army-portal/internal/question"
)

func NewRouter(cfg Config, db *sql.DB) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	collector := observability.NewCollector(db)
	r.Use(collector.Middleware)

	questionSvc := question.NewService(db)
	questionHandler := question.NewHandler(questionSvc)

	paperSvc := paper.NewService(db)
	paperHandler := paper.NewHandler(paperSvc)

	examSvc := exam.NewService(db, paperSvc, cfg.ShuffleQuestions)
	examHandler := exam.NewHandler(examSvc)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	r.Route("/api/v1", func(api chi.Router) {
		api.Post("/uploads", questionHandler.ImportUpload)
		api.Get("/questions", questionHandler.ListQuestions)

		api.Post("/papers", paperHandler.Create)
		api.Get("/papers", paperHandler.List)
		api.Post("/papers/{id}/questions", paperHandler.LinkQuestion)
		api.Post("/papers/{id}/link-upload", paperHandler.LinkUpload)
		api.Delete("/papers/{id}", paperHandler.Delete)
		api.Post("/papers/bulk-delete", paperHandler.BulkDelete)

		api.Post("/exam/start", examHandler.Start)
		api.Get("/exam/sessions/{id}", examHandler.GetSession)
		api.Get("/exam/sessions/{id}/questions", examHandler.GetQuestions)
		api.Put("/exam/sessions/{id}/answers/{questionID}", examHandler.SaveAnswer)
		api.Post("/exam/sessions/{id}/submit", examHandler.Submit)
		api.Post("/exam/sessions/{id}/finish", examHandler.Finish)

		api.Post("/admin/purge-exam-data", paperHandler.Purge)
		api.Get("/admin/metrics", collector.MetricsHandler)
	})

	return r
}
