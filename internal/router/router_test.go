package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ride-hailing/internal/handler"
	"github.com/iliyamo/ride-hailing/internal/middleware"
	"github.com/iliyamo/ride-hailing/internal/model"
)

func noop(next echo.HandlerFunc) echo.HandlerFunc { return next }

// signedInAs replaces JWTAuth with a fixed account.
func signedInAs(role model.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			middleware.SetAccount(c, model.Account{ID: "acc-1", Role: role, Status: model.AccountStatusActive})
			return next(c)
		}
	}
}

func TestDriverOnlyRoutesRejectRiders(t *testing.T) {
	e := echo.New()
	auth := signedInAs(model.RoleRider)
	RegisterRides(e, handler.NewRideHandler(nil), auth, noop, noop)
	RegisterVehicles(e, handler.NewVehicleHandler(nil), auth, noop)

	for _, r := range []struct{ method, path string }{
		{http.MethodGet, "/rides/driver/active"},
		{http.MethodGet, "/rides/driver/history"},
		{http.MethodGet, "/vehicles"},
		{http.MethodGet, "/vehicles/veh-1"},
		{http.MethodPut, "/vehicles/veh-1"},
		{http.MethodDelete, "/vehicles/veh-1"},
	} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(r.method, r.path, nil))
		if rec.Code != http.StatusForbidden {
			t.Errorf("%s %s as rider = %d, want 403", r.method, r.path, rec.Code)
		}
	}
}

func TestRoutesAreRegistered(t *testing.T) {
	e := echo.New()
	RegisterRoutes(e, handler.NewHealthHandler(nil, nil))
	RegisterAuth(e, handler.NewAuthHandler(nil), noop, noop)
	RegisterRides(e, handler.NewRideHandler(nil), noop, noop, noop)
	RegisterVehicles(e, handler.NewVehicleHandler(nil), noop, noop)
	RegisterRealtime(e, handler.NewWSHandler(nil, nil, nil), noop)

	have := map[string]bool{}
	for _, r := range e.Routes() {
		have[r.Method+" "+r.Path] = true
	}
	for _, want := range []string{
		"GET /health",
		"POST /auth/register", "POST /auth/login", "GET /auth/profile", "PUT /auth/profile",
		"POST /rides", "GET /rides/active", "GET /rides/history",
		"GET /rides/driver/active", "GET /rides/driver/history", "GET /rides/driver/requests",
		"GET /rides/:id", "GET /rides/:id/events",
		"POST /rides/:id/accept", "PUT /rides/:id/status", "POST /rides/:id/cancel", "POST /rides/:id/complete",
		"GET /vehicles", "POST /vehicles", "GET /vehicles/:id", "PUT /vehicles/:id", "DELETE /vehicles/:id",
		"GET /ws/rides",
	} {
		if !have[want] {
			t.Errorf("route %s not registered", want)
		}
	}
}
