package router

import (
	"github.com/labstack/echo/v4"

	"lapakchat/internal/adapter/api/handler"
)

// SetupWebSocketRouter sets up WebSocket routes
func SetupWebSocketRouter(e *echo.Echo, wsHandler *handler.WebSocketHandler) {
	// Auth happens inside the handler, before the upgrade.
	e.GET("/ws", wsHandler.HandleConnection)
}
