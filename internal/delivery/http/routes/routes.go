package routes

import (
	"net/http"

	"elo-sync/internal/delivery/http/handler"
	"elo-sync/internal/ws"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
)

type Registry struct {
	health  *handler.HealthHandler
	elo     *handler.EloHandler
	session *handler.SessionHandler
	ws      *ws.Handler
	metrics http.Handler
}

// NewRegistry wires the given handlers; nil ones are left unrouted.
func NewRegistry(
	health *handler.HealthHandler,
	elo *handler.EloHandler,
	session *handler.SessionHandler,
	wsHandler *ws.Handler,
	metrics http.Handler,
) *Registry {
	return &Registry{health: health, elo: elo, session: session, ws: wsHandler, metrics: metrics}
}

func (r *Registry) Register(app *fiber.App) {
	if app == nil {
		return
	}

	r.registerHealth(app)
	r.registerRealtime(app)
	r.registerAPI(app)
}

func (r *Registry) registerHealth(app *fiber.App) {
	if r.health != nil {
		r.health.RegisterRoutes(app)
	}
	if r.metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(r.metrics))
	}
}

func (r *Registry) registerRealtime(app *fiber.App) {
	if r.ws != nil {
		app.Get("/ws", r.ws.HandleRatingWS)
	}
}

func (r *Registry) registerAPI(app *fiber.App) {
	api := app.Group("/api")
	RegisterV1(api.Group("/v1"), r.elo, r.session)
}
