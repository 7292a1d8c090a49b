package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"elo-sync/internal/config"
	"elo-sync/internal/delivery/http/handler"
	"elo-sync/internal/delivery/http/middleware"
	"elo-sync/internal/delivery/http/routes"
	"elo-sync/internal/pkg/metrics"
	"elo-sync/internal/ws"

	"github.com/gofiber/fiber/v3"
	"golang.org/x/sync/errgroup"
)

type App struct {
	Fiber     *fiber.App
	Container *Container
	Hub       *ws.Hub
	Metrics   *metrics.Recorder

	unsubscribe []func()
}

// New builds the HTTP surface over c and subscribes the hub and metrics to
// the store.
func New(c *Container) *App {
	f := fiber.New(fiber.Config{AppName: c.Config.App.AppName})

	hub := ws.NewHub(c.Logger)
	rec := metrics.New(c.Table, hub.ClientCount)

	a := &App{Fiber: f, Container: c, Hub: hub, Metrics: rec}
	a.unsubscribe = append(a.unsubscribe,
		c.Store.OnChange(ws.RatingNotifier(hub, c.Views, c.Logger)),
		c.Store.OnChange(rec.Observe),
	)

	registerGlobalMiddleware(f, c)
	routes.NewRegistry(
		handler.NewHealthHandler(c.Backend.Name, c.Backend.Pinger),
		handler.NewEloHandler(c.Store, c.Views),
		handler.NewSessionHandler(c.Store, c.Views),
		ws.NewHandler(hub, ws.Snapshot(c.Views, c.Logger), c.Logger),
		rec.Handler(),
	).Register(f)

	return a
}

func Bootstrap(cfg config.Config) (*App, func() error, error) {
	c, err := NewContainer(cfg, nil)
	if err != nil {
		return nil, nil, err
	}
	a := New(c)
	cleanup := func() error {
		for _, cancel := range a.unsubscribe {
			cancel()
		}
		return c.Close()
	}
	return a, cleanup, nil
}

// Run serves addr and relays backend changes until ctx is done or the
// listener fails. A broken change feed is restarted, not fatal.
func (a *App) Run(ctx context.Context, addr string) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		keepWatching(gctx, a.Container.Store, watchBackOff, a.Container.Logger)
		return nil
	})
	g.Go(func() error {
		err := a.Fiber.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true})
		if err != nil && gctx.Err() == nil {
			return fmt.Errorf("listen %s: %w", addr, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return a.Fiber.ShutdownWithContext(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func registerGlobalMiddleware(app *fiber.App, c *Container) {
	if app == nil {
		return
	}

	accessLog := middleware.NewAccessLogMiddleware(c.Logger, "/health", "/metrics")
	app.Use(accessLog.Middleware())

	errMw := middleware.NewErrorMiddleware(c.Logger)
	app.Use(errMw.Middleware())
}

func ListenAddr(port string) (string, error) {
	p := strings.TrimSpace(port)
	if p == "" {
		return "", fmt.Errorf("empty HTTP port")
	}
	if strings.HasPrefix(p, ":") {
		return p, nil
	}
	return ":" + p, nil
}
