package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ride-hailing/internal/model"
	"github.com/iliyamo/ride-hailing/internal/repository"
	"github.com/iliyamo/ride-hailing/internal/utils"
)

// AccountReader resolves a token subject to the stored account.
type AccountReader interface {
	GetByID(ctx context.Context, id string) (model.Account, error)
}

// JWTAuth verifies the bearer credential and loads the live account behind
// it. The credential is read from the Authorization header, or from the
// "token" query parameter for websocket upgrades where browsers cannot set
// headers. Accounts that are not active are turned away with 403.
func JWTAuth(secret string, accounts AccountReader, logger *slog.Logger) echo.MiddlewareFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := bearerToken(c)
			if raw == "" {
				return deny(c, http.StatusUnauthorized, "Access denied. No token provided.")
			}
			claims, err := utils.ParseAccessToken(secret, raw)
			if err != nil {
				if errors.Is(err, utils.ErrTokenExpired) {
					return deny(c, http.StatusUnauthorized, "Token expired")
				}
				return deny(c, http.StatusUnauthorized, "Invalid token")
			}

			ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
			defer cancel()
			acc, err := accounts.GetByID(ctx, claims.Subject)
			switch {
			case errors.Is(err, repository.ErrNotFound):
				return deny(c, http.StatusUnauthorized, "User not found")
			case err != nil:
				logger.Error("load account for token", "account_id", claims.Subject, "err", err)
				return deny(c, http.StatusInternalServerError, "internal server error")
			}
			if acc.Status != model.AccountStatusActive {
				return deny(c, http.StatusForbidden, "Account is "+string(acc.Status))
			}

			SetAccount(c, acc)
			return next(c)
		}
	}
}

func bearerToken(c echo.Context) string {
	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return c.QueryParam("token")
}

func deny(c echo.Context, status int, msg string) error {
	return c.JSON(status, echo.Map{"success": false, "message": msg})
}
