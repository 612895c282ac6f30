package handler

import (
	"net/http"
	"strings"

	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"creatorlink/internal/adapter/api/middleware"
	"creatorlink/internal/domain/repository"
	ws "creatorlink/internal/infrastructure/websocket"
	"creatorlink/pkg/errors"
	"creatorlink/pkg/logger"
)

type WebSocketHandler struct {
	wsManager      *ws.Manager
	userRepo       repository.UserRepository
	authMiddleware *middleware.AuthMiddleware
}

var upgrader = gorillaws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // You should restrict this in production
	},
}

func NewWebSocketHandler(wsManager *ws.Manager, userRepo repository.UserRepository, authMiddleware *middleware.AuthMiddleware) *WebSocketHandler {
	return &WebSocketHandler{
		wsManager:      wsManager,
		userRepo:       userRepo,
		authMiddleware: authMiddleware,
	}
}

// HandleWebSocket authenticates the caller and hands the upgraded socket
// to the connection registry. Browsers cannot set headers on a WebSocket
// handshake, so the token may also come in as a query parameter.
func (h *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		authHeader := c.Request().Header.Get("Authorization")
		token = strings.TrimPrefix(authHeader, "Bearer ")
	}
	if token == "" {
		return errors.Unauthorized("Authentication required", nil)
	}

	userID, err := h.authMiddleware.VerifyToken(c.Request().Context(), token)
	if err != nil {
		return errors.Unauthorized("Invalid or expired token", err)
	}

	user, err := h.userRepo.GetByID(c.Request().Context(), userID)
	if err != nil {
		return errors.Unauthorized("Unknown user", err)
	}
	if !user.IsActive() {
		return errors.Forbidden("Account is not active", nil)
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return errors.Internal("Failed to upgrade connection", err)
	}

	client := ws.NewClient(user.ID, user.DisplayLabel, conn)
	h.wsManager.Register(client)

	logger.Info("WebSocket connected: user %s", user.ID)

	go client.ReadPump(h.wsManager)
	go client.WritePump()

	return nil
}
