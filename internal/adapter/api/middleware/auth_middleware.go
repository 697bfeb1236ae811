package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"lapakchat/internal/domain/service"
)

type AuthMiddleware struct {
	identity service.IdentityProvider
}

func NewAuthMiddleware(identity service.IdentityProvider) *AuthMiddleware {
	return &AuthMiddleware{
		identity: identity,
	}
}

func (m *AuthMiddleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "Authorization header is required")
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid authorization format")
		}

		identity, err := m.identity.ResolveIdentity(c.Request().Context(), parts[1])
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token")
		}

		c.Set("uid", identity.ID)
		c.Set("role", identity.Role)

		return next(c)
	}
}
