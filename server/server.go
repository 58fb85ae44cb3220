package server

import (
	"context"
	"log"
	"os"

	"chatcore/apperrors"
	"chatcore/config"
	"chatcore/pkg/metrics"
	"chatcore/server/handlers"
	ws "chatcore/server/websocket"
	"chatcore/services/broadcast"
	"chatcore/services/directory"
	"chatcore/services/messages"
	"chatcore/services/presence"
	"chatcore/storage"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server hosts the WebSocket delivery endpoint and the REST query surface
type Server struct {
	App *fiber.App
	cfg *config.Config
}

func NewServer(
	cfg *config.Config,
	manager *ws.Manager,
	presenceSvc *presence.Service,
	hub *broadcast.Hub,
	dir *directory.Directory,
	store *messages.Store,
	notifier *storage.Notifier,
	recent handlers.RecentSource,
) (*Server, error) {
	errorConfig := apperrors.HandlerConfig{
		ShowInternalErrors: os.Getenv("APP_ENV") == "development",
		OnError: func(c *fiber.Ctx, err *apperrors.AppError) {
			metrics.RecordEventError(string(err.Code))
		},
	}

	app := fiber.New(fiber.Config{
		AppName:      "chatcore",
		ServerHeader: "chatcore",
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		ErrorHandler: apperrors.Handler(errorConfig),
	})

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Real-time endpoint. The handshake happens in-band after upgrade, via
	// the connect event.
	eventHandler := handlers.NewEventHandler(presenceSvc, hub, manager)
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(eventHandler.Serve))

	// Query surface
	api := app.Group("/messaging-api")
	handlers.NewChatHandler(dir, store, notifier, recent).RegisterRoutes(api)

	return &Server{App: app, cfg: cfg}, nil
}

func (s *Server) Start() error {
	addr := s.cfg.ServerAddress()
	log.Printf("Starting server on %s", addr)
	return s.App.Listen(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down server...")
	return s.App.ShutdownWithContext(ctx)
}
