package middleware

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

const (
	HeaderRequestID = "X-Request-ID"
	CtxRequestIDKey = "request_id"
)

type AccessLogMiddleware struct {
	logger *log.Logger
	skip   map[string]struct{}
}

// NewAccessLogMiddleware logs one line per request except for the paths in
// quiet, which still get a request id.
func NewAccessLogMiddleware(logger *log.Logger, quiet ...string) *AccessLogMiddleware {
	if logger == nil {
		logger = log.Default()
	}
	skip := make(map[string]struct{}, len(quiet))
	for _, p := range quiet {
		skip[p] = struct{}{}
	}
	return &AccessLogMiddleware{logger: logger, skip: skip}
}

func (m *AccessLogMiddleware) Middleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()

		rid := c.Get(HeaderRequestID)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(HeaderRequestID, rid)
		c.Locals(CtxRequestIDKey, rid)

		err := c.Next()

		if _, quiet := m.skip[c.Path()]; quiet {
			return err
		}

		m.logger.Printf(
			"HTTP access | rid=%s ip=%s method=%s path=%s status=%d latency=%s req_bytes=%d resp_bytes=%d ua=%q",
			rid, c.IP(), c.Method(), c.OriginalURL(), c.Response().StatusCode(), time.Since(start),
			c.Request().Header.ContentLength(), len(c.Response().Body()), c.Get("User-Agent"),
		)

		return err
	}
}
