package router

import (
	"github.com/labstack/echo/v4"

	"lapakchat/internal/adapter/api/handler"
	"lapakchat/internal/adapter/api/middleware"
)

// SetupChatRouter sets up all chat-related routes (excluding WebSocket)
func SetupChatRouter(e *echo.Echo, chatHandler *handler.ChatHandler, authMiddleware *middleware.AuthMiddleware) {
	chatGroup := e.Group("/v1/chats")
	chatGroup.Use(authMiddleware.Authenticate)

	chatGroup.POST("", chatHandler.OpenRoom)       // POST /v1/chats - find or create the room with another party
	chatGroup.GET("", chatHandler.GetUserRooms)    // GET /v1/chats - caller's rooms, most recent activity first
	chatGroup.PUT("/:id/read", chatHandler.MarkRead)

	chatGroup.POST("/:id/messages", chatHandler.SendMessage)
	chatGroup.GET("/:id/messages", chatHandler.GetRoomMessages)

	// Unread totals are also served to support staff for arbitrary parties.
	chatGroup.GET("/unread-count", chatHandler.UnreadCount)
}
