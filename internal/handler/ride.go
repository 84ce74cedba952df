package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ride-hailing/internal/middleware"
	"github.com/iliyamo/ride-hailing/internal/model"
	"github.com/iliyamo/ride-hailing/internal/service"
)

// RideEngine is the ride lifecycle as seen by the HTTP layer.
type RideEngine interface {
	RequestRide(ctx context.Context, caller service.Caller, in service.RideRequestInput) (model.Ride, error)
	AcceptRide(ctx context.Context, caller service.Caller, rideID string) (model.Ride, error)
	UpdateStatus(ctx context.Context, caller service.Caller, rideID string, in service.StatusUpdate) (model.Ride, error)
	CancelRide(ctx context.Context, caller service.Caller, rideID string, reason *string) (model.Ride, error)
	CompleteRide(ctx context.Context, caller service.Caller, rideID string, in service.CompletionInput) (model.Ride, error)
	GetRide(ctx context.Context, caller service.Caller, rideID string) (model.Ride, error)
	RideEvents(ctx context.Context, caller service.Caller, rideID string) ([]model.RideEventRecord, error)
	GetActiveRide(ctx context.Context, caller service.Caller, as model.Role) (model.Ride, error)
	GetDriverActiveRide(ctx context.Context, caller service.Caller) (model.DriverRide, error)
	ListHistory(ctx context.Context, caller service.Caller, as model.Role, limit int) ([]model.Ride, error)
	ListPendingRequests(ctx context.Context, caller service.Caller, limit int) ([]model.RideRequest, error)
}

// RideHandler serves /rides.
type RideHandler struct {
	Rides RideEngine
}

func NewRideHandler(rides RideEngine) *RideHandler {
	return &RideHandler{Rides: rides}
}

type rideRequestReq struct {
	PickupLocation      *model.Location      `json:"pickupLocation"`
	DropoffLocation     *model.Location      `json:"dropoffLocation"`
	RideType            model.RideType       `json:"rideType"`
	ScheduledPickupTime *time.Time           `json:"scheduledPickupTime"`
	EstimatedDistance   *float64             `json:"estimatedDistance"`
	EstimatedDuration   *int                 `json:"estimatedDuration"`
	BaseFare            float64              `json:"baseFare"`
	DistanceFare        float64              `json:"distanceFare"`
	TimeFare            float64              `json:"timeFare"`
	SurgeMultiplier     float64              `json:"surgeMultiplier"`
	PromoDiscount       float64              `json:"promoDiscount"`
	ServiceFee          float64              `json:"serviceFee"`
	TotalFare           float64              `json:"totalFare"`
	PaymentMethod       *model.PaymentMethod `json:"paymentMethod"`
	SpecialInstructions *string              `json:"specialInstructions"`
	PassengerCount      int                  `json:"passengerCount"`
	LuggageCount        int                  `json:"luggageCount"`
}

type statusReq struct {
	Status          model.RideStatus `json:"status"`
	CurrentLocation *model.Location  `json:"currentLocation"`
}

type cancelReq struct {
	Reason *string `json:"reason"`
}

type completeReq struct {
	ActualDistance *float64 `json:"actualDistance"`
	ActualDuration *int     `json:"actualDuration"`
}

// Request opens a ride for the calling rider.
func (h *RideHandler) Request(c echo.Context) error {
	var req rideRequestReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.PickupLocation == nil || req.DropoffLocation == nil {
		return badRequest(c, "Pickup and dropoff locations are required")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	ride, err := h.Rides.RequestRide(ctx, middleware.Caller(c), service.RideRequestInput{
		PickupLocation:      *req.PickupLocation,
		DropoffLocation:     *req.DropoffLocation,
		RideType:            req.RideType,
		ScheduledPickupTime: req.ScheduledPickupTime,
		EstimatedDistance:   req.EstimatedDistance,
		EstimatedDuration:   req.EstimatedDuration,
		BaseFare:            req.BaseFare,
		DistanceFare:        req.DistanceFare,
		TimeFare:            req.TimeFare,
		SurgeMultiplier:     req.SurgeMultiplier,
		PromoDiscount:       req.PromoDiscount,
		ServiceFee:          req.ServiceFee,
		TotalFare:           req.TotalFare,
		PaymentMethod:       req.PaymentMethod,
		SpecialInstructions: req.SpecialInstructions,
		PassengerCount:      req.PassengerCount,
		LuggageCount:        req.LuggageCount,
	})
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusCreated, "Ride requested successfully", echo.Map{"ride": ride})
}

func (h *RideHandler) Get(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	ride, err := h.Rides.GetRide(ctx, middleware.Caller(c), c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, "", echo.Map{"ride": ride})
}

// Events lists the audit trail of a ride, oldest first.
func (h *RideHandler) Events(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	events, err := h.Rides.RideEvents(ctx, middleware.Caller(c), c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, "", echo.Map{"events": events, "count": len(events)})
}

func (h *RideHandler) Active(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	ride, err := h.Rides.GetActiveRide(ctx, middleware.Caller(c), model.RoleRider)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, "", echo.Map{"ride": ride})
}

func (h *RideHandler) DriverActive(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	ride, err := h.Rides.GetDriverActiveRide(ctx, middleware.Caller(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, "", echo.Map{"ride": ride})
}

func (h *RideHandler) History(c echo.Context) error { return h.history(c, model.RoleRider) }

func (h *RideHandler) DriverHistory(c echo.Context) error { return h.history(c, model.RoleDriver) }

func (h *RideHandler) history(c echo.Context, as model.Role) error {
	limit, valid := queryLimit(c)
	if !valid {
		return badRequest(c, "limit must be between 1 and 100")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	rides, err := h.Rides.ListHistory(ctx, middleware.Caller(c), as, limit)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, "", echo.Map{"rides": rides, "count": len(rides)})
}

// Requests lists rides waiting for a driver.
func (h *RideHandler) Requests(c echo.Context) error {
	limit, valid := queryLimit(c)
	if !valid {
		return badRequest(c, "limit must be between 1 and 100")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	rides, err := h.Rides.ListPendingRequests(ctx, middleware.Caller(c), limit)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, "", echo.Map{"rides": rides, "count": len(rides)})
}

func (h *RideHandler) Accept(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	ride, err := h.Rides.AcceptRide(ctx, middleware.Caller(c), c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, "Ride accepted successfully", echo.Map{"ride": ride})
}

// UpdateStatus moves a ride and/or reports the current location.
func (h *RideHandler) UpdateStatus(c echo.Context) error {
	var req statusReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.Status == "" && req.CurrentLocation == nil {
		return badRequest(c, "Status or current location is required")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	ride, err := h.Rides.UpdateStatus(ctx, middleware.Caller(c), c.Param("id"), service.StatusUpdate{
		Status:          req.Status,
		CurrentLocation: req.CurrentLocation,
	})
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, "Ride status updated successfully", echo.Map{"ride": ride})
}

func (h *RideHandler) Cancel(c echo.Context) error {
	var req cancelReq
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return badRequest(c, "Invalid request body")
		}
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	ride, err := h.Rides.CancelRide(ctx, middleware.Caller(c), c.Param("id"), req.Reason)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, "Ride cancelled successfully", echo.Map{"ride": ride})
}

func (h *RideHandler) Complete(c echo.Context) error {
	var req completeReq
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return badRequest(c, "Invalid request body")
		}
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	ride, err := h.Rides.CompleteRide(ctx, middleware.Caller(c), c.Param("id"), service.CompletionInput{
		ActualDistance: req.ActualDistance,
		ActualDuration: req.ActualDuration,
	})
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, "Ride completed successfully", echo.Map{"ride": ride})
}
