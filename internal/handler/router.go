package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	sessionHandler "github.com/zhouzirui/z-novel-studio/internal/handler/session"
	middlewarePkg "github.com/zhouzirui/z-novel-studio/internal/middleware"
	sessionService "github.com/zhouzirui/z-novel-studio/internal/service/session"
	"github.com/zhouzirui/z-novel-studio/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(sessions *sessionService.Service) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Route("/api", func(api chi.Router) {
		sessionHandler.New(sessions).RegisterRoutes(api)

		api.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
			utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
	})

	return r
}
