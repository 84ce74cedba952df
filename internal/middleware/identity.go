package middleware

// identity.go holds the context keys the auth middleware fills and the
// helpers downstream code uses to read them back.

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ride-hailing/internal/model"
	"github.com/iliyamo/ride-hailing/internal/service"
)

const (
	ctxAccount = "account"
	ctxUserID  = "user_id"
	ctxRole    = "role"
)

// SetAccount stores the authenticated account on the request context.
func SetAccount(c echo.Context, acc model.Account) {
	c.Set(ctxAccount, acc)
	c.Set(ctxUserID, acc.ID)
	c.Set(ctxRole, string(acc.Role))
}

// Account returns the authenticated account, if any.
func Account(c echo.Context) (model.Account, bool) {
	acc, ok := c.Get(ctxAccount).(model.Account)
	return acc, ok
}

// Caller converts the authenticated account into the service-level caller.
func Caller(c echo.Context) service.Caller {
	acc, _ := Account(c)
	return service.Caller{ID: acc.ID, Role: acc.Role}
}

// userID returns the authenticated account id or "anon".
func userID(c echo.Context) string {
	if s, ok := c.Get(ctxUserID).(string); ok && s != "" {
		return s
	}
	return "anon"
}
