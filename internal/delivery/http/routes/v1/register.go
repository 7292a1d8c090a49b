package v1

import (
	"elo-sync/internal/delivery/http/handler"

	"github.com/gofiber/fiber/v3"
)

func Register(r fiber.Router, eloHandler *handler.EloHandler, sessionHandler *handler.SessionHandler) {
	if r == nil {
		return
	}

	RegisterElo(r, eloHandler)
	RegisterSession(r, sessionHandler)
}
