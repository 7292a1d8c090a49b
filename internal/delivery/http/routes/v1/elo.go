package v1

import (
	"elo-sync/internal/delivery/http/handler"

	"github.com/gofiber/fiber/v3"
)

func RegisterElo(r fiber.Router, eloHandler *handler.EloHandler) {
	if r == nil {
		return
	}
	if eloHandler == nil {
		return
	}

	eloHandler.RegisterRoutes(r)
}
