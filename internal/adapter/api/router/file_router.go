package router

import (
	"github.com/labstack/echo/v4"

	"lapakchat/internal/adapter/api/handler"
	"lapakchat/internal/adapter/api/middleware"
)

func SetupFileRouter(e *echo.Echo, fileHandler *handler.FileHandler, authMiddleware *middleware.AuthMiddleware, uploadLimiter *middleware.IPRateLimiter) {
	files := e.Group("/v1/files")
	files.Use(uploadLimiter.Middleware())
	files.Use(authMiddleware.Authenticate)

	files.POST("/upload", fileHandler.UploadFile)
}
