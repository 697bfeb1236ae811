package utils

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// PaginationParams represents pagination parameters
type PaginationParams struct {
	Limit  int
	Offset int
}

// GetPaginationParams extracts limit/offset parameters from request
func GetPaginationParams(c echo.Context, defaultLimit int) PaginationParams {
	limit := defaultLimit
	offset := 0

	if limitStr := c.QueryParam("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	if offsetStr := c.QueryParam("offset"); offsetStr != "" {
		if parsed, err := strconv.Atoi(offsetStr); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	return PaginationParams{Limit: limit, Offset: offset}
}
