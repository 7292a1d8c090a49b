package routes

import (
	"elo-sync/internal/delivery/http/handler"
	v1 "elo-sync/internal/delivery/http/routes/v1"

	"github.com/gofiber/fiber/v3"
)

func RegisterV1(r fiber.Router, eloHandler *handler.EloHandler, sessionHandler *handler.SessionHandler) {
	if r == nil {
		return
	}

	v1.Register(r, eloHandler, sessionHandler)
}
