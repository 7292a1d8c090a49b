package ws

import (
	"log"
	"net/http"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gorilla/websocket"
)

type Handler struct {
	hub      *Hub
	snapshot func() []byte
	logger   *log.Logger
}

// NewHandler upgrades browsers onto hub. snapshot, when set, produces the
// first message every new client receives.
func NewHandler(hub *Hub, snapshot func() []byte, logger *log.Logger) *Handler {
	return &Handler{hub: hub, snapshot: snapshot, logger: logger}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		if h.logger != nil {
			h.logger.Printf("WS upgrade error | error=%v", err)
		}
		return
	}

	client := NewClient(h.hub, conn)
	if h.snapshot != nil {
		if msg := h.snapshot(); msg != nil {
			client.send <- msg
		}
	}
	h.hub.Register(client)
	go client.WritePump()
	go client.ReadPump()
}

func (h *Handler) HandleRatingWS(c fiber.Ctx) error {
	if h == nil || h.hub == nil {
		return fiber.ErrServiceUnavailable
	}
	return adaptor.HTTPHandler(h)(c)
}
