package router

import (
	"github.com/labstack/echo/v4"

	"creatorlink/internal/adapter/api/handler"
	"creatorlink/internal/adapter/api/middleware"
)

// SetupChatRouter sets up all conversation routes (excluding WebSocket)
func SetupChatRouter(e *echo.Echo, chatHandler *handler.ChatHandler, authMiddleware *middleware.AuthMiddleware) {
	chatGroup := e.Group("/v1/conversations")
	chatGroup.Use(authMiddleware.Authenticate) // All conversation endpoints require authentication

	// Conversation management
	chatGroup.POST("", chatHandler.InitiateConversation) // POST /v1/conversations - Start conversation with an applied creator
	chatGroup.GET("", chatHandler.ListConversations)     // GET /v1/conversations - Get user's conversations
	chatGroup.GET("/:id", chatHandler.GetConversation)   // GET /v1/conversations/:id - Get specific conversation
	chatGroup.PATCH("/:id/status", chatHandler.UpdateStatus)

	// Message management
	chatGroup.POST("/:id/messages", chatHandler.SendMessage)
	chatGroup.GET("/:id/messages", chatHandler.ListMessages)

	// Read receipts
	chatGroup.PATCH("/:id/messages/:messageId/read", chatHandler.MarkMessageRead)
	chatGroup.PATCH("/:id/read-all", chatHandler.MarkAllRead)
}
