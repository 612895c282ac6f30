package router

import (
	"github.com/labstack/echo/v4"

	"creatorlink/internal/adapter/api/handler"
)

// SetupWebSocketRouter sets up WebSocket routes
func SetupWebSocketRouter(e *echo.Echo, wsHandler *handler.WebSocketHandler) {
	// Auth is handled inside the handler because browsers cannot
	// attach headers to a WebSocket handshake.
	e.GET("/ws", wsHandler.HandleWebSocket)
}
