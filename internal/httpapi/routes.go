package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mpetrov/armada/internal/store"
	"github.com/mpetrov/armada/internal/ws"
)

func SetupRoutes(st store.Store, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Post("/sessions", CreateSession(st))
	r.Get("/sessions/code/{code}", SessionByCode(st))
	r.Get("/sessions/{id}", GetSession(st))
	r.Put("/sessions/{id}", UpdateSession(st))

	r.Post("/sessions/{id}/players", CreatePlayer(st))
	r.Put("/sessions/{id}/players", UpdatePlayer(st))
	r.Get("/sessions/{id}/players", ListPlayers(st))
	r.Delete("/sessions/{id}/players", DeletePlayers(st))

	r.Post("/sessions/{id}/shots", AppendShot(st))
	r.Get("/sessions/{id}/shots", ListShots(st))
	r.Delete("/sessions/{id}/shots", DeleteShots(st))

	r.Post("/sessions/{id}/presence", PublishPresence(st))
	r.Get("/sessions/{id}/snapshot", GetSnapshot(st))

	r.Get("/ws", ws.Feed(st, log))
	r.Get("/healthz", Healthz)
	return r
}
