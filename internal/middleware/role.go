package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ride-hailing/internal/model"
)

// RequireRole lets the request through only when the authenticated account
// holds one of roles. It must run after JWTAuth.
func RequireRole(roles ...model.Role) echo.MiddlewareFunc {
	allowed := make(map[model.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			acc, ok := Account(c)
			if !ok || !allowed[acc.Role] {
				return deny(c, http.StatusForbidden, "Access denied")
			}
			return next(c)
		}
	}
}
