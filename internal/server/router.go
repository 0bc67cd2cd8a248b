package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/loreleaf-app/loreleaf/internal/api"
	"github.com/loreleaf-app/loreleaf/internal/api/handlers"
	"github.com/loreleaf-app/loreleaf/internal/api/middleware"
)

type RouterConfig struct {
	APIToken         string
	RetrievalHandler *handlers.RetrievalHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 1 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.BearerAuth(cfg.APIToken))

		r.Post("/retrieve", cfg.RetrievalHandler.Retrieve)
		r.Post("/query/explain", cfg.RetrievalHandler.Explain)
	})

	return r
}
