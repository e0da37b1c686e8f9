package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/DoyleJ11/tagsrv/internal/hub"
	"github.com/DoyleJ11/tagsrv/internal/store"
	"github.com/DoyleJ11/tagsrv/internal/ws"
)

func SetupRoutes(h *hub.Hub, rec store.Recorder, log *zap.Logger) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	// Public routes
	r.Post("/rooms", CreateRoom(h, log))
	r.Get("/rooms/{code}", GetRoom(h))
	r.Get("/rooms/{code}/rounds", RecentRounds(rec, log))
	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(h, log))
	return r
}
