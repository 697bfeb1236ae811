package router

import (
	"github.com/labstack/echo/v4"

	"lapakchat/internal/adapter/api/handler"
	"lapakchat/internal/adapter/api/middleware"
)

func Setup(
	e *echo.Echo,
	chatHandler *handler.ChatHandler,
	wsHandler *handler.WebSocketHandler,
	fileHandler *handler.FileHandler,
	authMiddleware *middleware.AuthMiddleware,
	uploadLimiter *middleware.IPRateLimiter,
) {
	SetupChatRouter(e, chatHandler, authMiddleware)
	SetupWebSocketRouter(e, wsHandler)
	SetupFileRouter(e, fileHandler, authMiddleware, uploadLimiter)
}
