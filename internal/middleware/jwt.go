package middleware // middleware provides shared request processing for handlers

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/school-management/internal/auth"
	"github.com/iliyamo/school-management/internal/httperr"
)

// Context keys set by JWTAuth for downstream handlers.
const (
	CtxUserID   = "user_id"
	CtxEmail    = "email"
	CtxRole     = "role"
	CtxToken    = "access_token"     // raw bearer token, used by logout
	CtxTokenExp = "access_token_exp" // its expiry, used by the revocation registry
)

// JWTAuth returns middleware that resolves the caller's identity from a
// bearer access token. The checks run in a fixed order: header extraction,
// revocation lookup, signature/expiry verification, token-type check. Every
// failure maps to 401 without revealing which check failed beyond a coarse
// message.
func JWTAuth(secret string, revoker auth.Revoker) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				return httperr.Unauthenticated("missing bearer token")
			}
			raw := strings.TrimPrefix(header, "Bearer ")

			revoked, err := revoker.IsRevoked(c.Request().Context(), raw)
			if err != nil {
				return httperr.Dependency("authorization check failed", err)
			}
			if revoked {
				return httperr.Unauthenticated("token revoked")
			}

			claims, err := auth.DecodeToken(secret, raw)
			if err != nil {
				return httperr.Unauthenticated("invalid or expired token")
			}
			if claims.TokenType != auth.TokenTypeAccess {
				return httperr.Unauthenticated("wrong token type")
			}

			c.Set(CtxUserID, claims.UserID)
			c.Set(CtxEmail, claims.Email)
			c.Set(CtxRole, claims.Role)
			c.Set(CtxToken, raw)
			c.Set(CtxTokenExp, claims.ExpiresAt)
			return next(c)
		}
	}
}
