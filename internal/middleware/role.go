package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/school-management/internal/httperr"
)

// RequireRole enforces that the authenticated caller's role is in the allowed
// set. It assumes JWTAuth already resolved the identity into the context; the
// role gate always runs after identity resolution, never before.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, ok := c.Get(CtxRole).(string)
			if !ok || !allowed[role] {
				return httperr.Forbidden("insufficient permissions")
			}
			return next(c)
		}
	}
}
