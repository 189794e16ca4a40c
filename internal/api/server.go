package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/websocket/v2"
	"github.com/redis/go-redis/v9"

	"github.com/nik2168/nox-chat-backend/internal/metrics"
	"github.com/nik2168/nox-chat-backend/internal/presence"
	"github.com/nik2168/nox-chat-backend/internal/repository"
	wsh "github.com/nik2168/nox-chat-backend/internal/ws"
)

type Server struct {
	repo     *repository.MessageRepository
	presence *presence.Store
}

// NewServer wires the fiber app: the websocket upgrade route, the metrics
// endpoint, and the small REST read side (message history reconciliation and
// presence queries).
func NewServer(handler *wsh.Handler, repo *repository.MessageRepository, store *presence.Store) *fiber.App {
	app := fiber.New()
	app.Use(fiberlogger.New())
	s := &Server{repo: repo, presence: store}

	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	api := app.Group("/v1")
	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api.Get("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	api.Get("/ws", websocket.New(handler.Handle()))

	api.Get("/chats/:chat_id/messages", s.latestMessages)
	api.Get("/presence/:user_id", s.userPresence)

	return app
}

func (s *Server) latestMessages(c *fiber.Ctx) error {
	chatID := c.Params("chat_id")
	msgs, err := s.repo.LatestMessages(c.Context(), chatID, 50)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"status": "error", "message": "failed to load messages"})
	}
	return c.JSON(fiber.Map{"status": "success", "data": msgs})
}

func (s *Server) userPresence(c *fiber.Ctx) error {
	userID := c.Params("user_id")
	doc, err := s.presence.Get(c.Context(), userID)
	if errors.Is(err, redis.Nil) {
		return c.Status(fiber.StatusNotFound).
			JSON(fiber.Map{"status": "error", "message": "no presence record"})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"status": "error", "message": "failed to load presence"})
	}
	return c.JSON(fiber.Map{"status": "success", "data": doc})
}
