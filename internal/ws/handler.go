package ws

import (
	"context"
	"time"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/nik2168/nox-chat-backend/internal/auth"
	"github.com/nik2168/nox-chat-backend/internal/model"
	"github.com/nik2168/nox-chat-backend/internal/presence"
	"github.com/nik2168/nox-chat-backend/internal/registry"
)

// Handler owns a connection's lifecycle: handshake auth, registration,
// presence, the read loop, and disconnect cleanup.
type Handler struct {
	reg      *registry.Registry
	presence *presence.Tracker
	router   *Router

	jwtSecret     string
	pingInterval  time.Duration
	writeDeadline time.Duration
	maxMsgSize    int64
	log           *zap.SugaredLogger
}

func NewHandler(
	reg *registry.Registry,
	tracker *presence.Tracker,
	router *Router,
	jwtSecret string,
	pingInterval, writeDeadline time.Duration,
	maxMsgSize int64,
	log *zap.SugaredLogger,
) *Handler {
	return &Handler{
		reg:           reg,
		presence:      tracker,
		router:        router,
		jwtSecret:     jwtSecret,
		pingInterval:  pingInterval,
		writeDeadline: writeDeadline,
		maxMsgSize:    maxMsgSize,
		log:           log,
	}
}

// Handle returns the fiber websocket entry point: /v1/ws?token=<jwt>.
func (h *Handler) Handle() func(*websocket.Conn) {
	return func(conn *websocket.Conn) {
		token := conn.Query("token")
		if token == "" {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"error","payload":{"message":"missing token"}}`))
			_ = conn.Close()
			return
		}
		claims, err := auth.ParseAndValidateToken(h.jwtSecret, token)
		if err != nil {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"error","payload":{"message":"invalid token"}}`))
			_ = conn.Close()
			return
		}
		user := model.UserSummary{ID: claims.UserID, Name: claims.Name}

		c := registry.NewClient(conn, user.ID, user.Name)
		h.reg.Register(user.ID, c)
		h.presence.Connected(context.Background(), user.ID)
		h.log.Infow("client connected", "user_id", user.ID)

		go c.WritePump(h.pingInterval, h.writeDeadline)

		conn.SetReadLimit(h.maxMsgSize)
		for {
			mt, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			if mt != websocket.TextMessage {
				continue
			}
			h.router.HandleEvent(context.Background(), user, msg)
		}

		h.presence.Disconnected(context.Background(), user.ID, c)
		c.Close()
		h.log.Infow("client disconnected", "user_id", user.ID)
	}
}
