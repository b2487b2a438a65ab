// Package handler implements the HTTP endpoints. Every endpoint binds a
// typed request, validates it, and talks to storage through the store
// adapter; failures are returned as httperr values for the global handler.
package handler

import (
	"context"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
)

// reqCtx bounds the duration of storage calls made on behalf of a request.
func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), 5*time.Second)
}

// limitParam parses the ?limit query parameter, clamped to 1..100.
func limitParam(c echo.Context) int {
	limit := 50
	if s := c.QueryParam("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			limit = n
		}
	}
	if limit < 1 {
		limit = 1
	}
	if limit > 100 {
		limit = 100
	}
	return limit
}

// skipParam parses the ?skip query parameter; it is echoed back in list
// responses.
func skipParam(c echo.Context) int {
	if s := c.QueryParam("skip"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n >= 0 {
			return n
		}
	}
	return 0
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}
