package response

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v3"
)

// Envelope wraps every JSON body the API writes.
type Envelope struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

const (
	MessageOK                  = "ok"
	MessageBadRequest          = "bad request"
	MessageNotFound            = "not found"
	MessageInternalServerError = "internal server error"
	MessageServiceUnavailable  = "service unavailable"
)

func Success(c fiber.Ctx, status int, message string, data any) error {
	return write(c, status, message, data)
}

func Error(c fiber.Ctx, status int, message string, data any) error {
	return write(c, status, message, data)
}

func write(c fiber.Ctx, status int, message string, data any) error {
	if status < 100 || status > 599 {
		status = fiber.StatusInternalServerError
	}
	if message == "" {
		message = MessageFor(status)
	}
	return c.Status(status).JSON(Envelope{Status: status, Message: message, Data: data})
}

// MessageFor is the message used when a response carries none of its own.
// Unlisted 5xx collapse to the generic server error.
func MessageFor(status int) string {
	switch status {
	case fiber.StatusOK:
		return MessageOK
	case fiber.StatusBadRequest:
		return MessageBadRequest
	case fiber.StatusNotFound:
		return MessageNotFound
	case fiber.StatusServiceUnavailable:
		return MessageServiceUnavailable
	}
	if status >= 500 {
		return MessageInternalServerError
	}
	if text := http.StatusText(status); text != "" {
		return strings.ToLower(text)
	}
	return "error"
}
