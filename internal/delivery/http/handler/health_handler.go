package handler

import (
	"context"
	"time"

	"elo-sync/internal/delivery/http/middleware"
	"elo-sync/internal/pkg/response"

	"github.com/gofiber/fiber/v3"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	backend string
	pinger  Pinger
}

type healthResponse struct {
	Backend string `json:"backend"`
}

// NewHealthHandler reports on backend. pinger may be nil for backends with
// nothing to reach.
func NewHealthHandler(backend string, pinger Pinger) *HealthHandler {
	return &HealthHandler{backend: backend, pinger: pinger}
}

func (h *HealthHandler) RegisterRoutes(r fiber.Router) {
	if r == nil {
		return
	}
	r.Get("/health", h.Health)
}

func (h *HealthHandler) Health(c fiber.Ctx) error {
	if h.pinger != nil {
		ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
		defer cancel()
		if err := h.pinger.Ping(ctx); err != nil {
			return middleware.NewAppError(fiber.StatusServiceUnavailable, "backend unavailable", healthResponse{Backend: h.backend}, err)
		}
	}
	return response.Success(c, fiber.StatusOK, response.MessageOK, healthResponse{Backend: h.backend})
}
