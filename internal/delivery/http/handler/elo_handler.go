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

type EloHandler struct {
	store *rating.Store
	views *header.Service
}

// Numbers arrive raw so "25", true and "abc" coerce instead of failing.
type setRatingRequest struct {
	Rating json.RawMessage `json:"rating"`
}

type addDeltaRequest struct {
	Delta json.RawMessage `json:"delta"`
}

func NewEloHandler(store *rating.Store, views *header.Service) *EloHandler {
	return &EloHandler{store: store, views: views}
}

func (h *EloHandler) RegisterRoutes(r fiber.Router) {
	if r == nil {
		return
	}

	grp := r.Group("/elo")
	grp.Get("/", h.Get)
	grp.Put("/", h.Set)
	grp.Post("/delta", h.AddDelta)
	grp.Post("/refresh", h.Refresh)

	r.Get("/header", h.Header)
	r.Get("/tiers", h.Tiers)
}

func (h *EloHandler) Get(c fiber.Ctx) error {
	v := h.views.Current(c.Context())
	return response.Success(c, fiber.StatusOK, response.MessageOK, dto.NewRatingResponse(v))
}

func (h *EloHandler) Set(c fiber.Ctx) error {
	var req setRatingRequest
	if err := c.Bind().Body(&req); err != nil {
		return middleware.NewAppError(fiber.StatusBadRequest, response.MessageBadRequest, nil, err)
	}
	r := h.store.SetRating(c.Context(), user.CoerceNumber(req.Rating))
	v := h.views.ForRating(c.Context(), r)
	return response.Success(c, fiber.StatusOK, "Rating updated", dto.NewRatingResponse(v))
}

func (h *EloHandler) AddDelta(c fiber.Ctx) error {
	var req addDeltaRequest
	if err := c.Bind().Body(&req); err != nil {
		return middleware.NewAppError(fiber.StatusBadRequest, response.MessageBadRequest, nil, err)
	}
	r := h.store.AddDelta(c.Context(), user.CoerceNumber(req.Delta))
	v := h.views.ForRating(c.Context(), r)
	return response.Success(c, fiber.StatusOK, "Rating updated", dto.NewRatingResponse(v))
}

func (h *EloHandler) Refresh(c fiber.Ctx) error {
	r := h.store.Refresh(c.Context())
	v := h.views.ForRating(c.Context(), r)
	return response.Success(c, fiber.StatusOK, response.MessageOK, dto.NewRatingResponse(v))
}

func (h *EloHandler) Header(c fiber.Ctx) error {
	return response.Success(c, fiber.StatusOK, response.MessageOK, h.views.Current(c.Context()))
}

func (h *EloHandler) Tiers(c fiber.Ctx) error {
	return response.Success(c, fiber.StatusOK, response.MessageOK, dto.TierListResponse{Tiers: h.views.Table().Tiers()})
}
