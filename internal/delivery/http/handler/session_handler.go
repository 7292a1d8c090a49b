package handler

import (
	"encoding/json"

	"elo-sync/internal/delivery/http/dto"
	"elo-sync/internal/delivery/http/middleware"
	"elo-sync/internal/domain/user"
	"elo-sync/internal/pkg/response"
	"elo-sync/internal/usecase/header"
	"elo-sync/internal/usecase/rating"

	"github.com/gofiber/fiber/v3"
)

// SessionHandler exposes login and logout of the stored user. Identity is
// whatever the caller sends; nothing is verified.
type SessionHandler struct {
	store *rating.Store
	views *header.Service
}

func NewSessionHandler(store *rating.Store, views *header.Service) *SessionHandler {
	return &SessionHandler{store: store, views: views}
}

func (h *SessionHandler) RegisterRoutes(r fiber.Router) {
	if r == nil {
		return
	}

	grp := r.Group("/session")
	grp.Get("/", h.Get)
	grp.Put("/", h.Login)
	grp.Delete("/", h.Logout)
}

func (h *SessionHandler) Get(c fiber.Ctx) error {
	rec, ok := h.store.User(c.Context())
	if !ok {
		return middleware.NewAppError(fiber.StatusNotFound, rating.ErrNoUser.Error(), nil, rating.ErrNoUser)
	}
	return h.respond(c, fiber.StatusOK, response.MessageOK, rec)
}

func (h *SessionHandler) Login(c fiber.Ctx) error {
	rec, ok := user.ParseRecord(c.Body())
	if !ok {
		return middleware.NewAppError(fiber.StatusBadRequest, user.ErrNotObject.Error(), nil, user.ErrNotObject)
	}
	if err := h.store.SaveUser(c.Context(), rec); err != nil {
		return middleware.NewAppError(fiber.StatusInternalServerError, response.MessageInternalServerError, nil, err)
	}
	return h.respond(c, fiber.StatusOK, "Logged in", rec)
}

func (h *SessionHandler) Logout(c fiber.Ctx) error {
	if err := h.store.ClearUser(c.Context()); err != nil {
		return middleware.NewAppError(fiber.StatusInternalServerError, response.MessageInternalServerError, nil, err)
	}
	return response.Success(c, fiber.StatusOK, "Logged out", h.views.Current(c.Context()))
}

func (h *SessionHandler) respond(c fiber.Ctx, status int, msg string, rec user.Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return middleware.NewAppError(fiber.StatusInternalServerError, response.MessageInternalServerError, nil, err)
	}
	return response.Success(c, status, msg, dto.SessionResponse{User: b, Header: h.views.Current(c.Context())})
}
