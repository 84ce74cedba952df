package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ride-hailing/internal/middleware"
	"github.com/iliyamo/ride-hailing/internal/model"
	"github.com/iliyamo/ride-hailing/internal/service"
)

// VehicleManager is the vehicle side of the API.
type VehicleManager interface {
	List(ctx context.Context, caller service.Caller) ([]model.Vehicle, error)
	Get(ctx context.Context, caller service.Caller, id string) (model.Vehicle, error)
	Create(ctx context.Context, caller service.Caller, in service.VehicleInput) (model.Vehicle, error)
	Update(ctx context.Context, caller service.Caller, id string, p model.VehiclePatch) (model.Vehicle, error)
	Delete(ctx context.Context, caller service.Caller, id string) error
}

// VehicleHandler serves /vehicles.
type VehicleHandler struct {
	Vehicles VehicleManager
}

func NewVehicleHandler(v VehicleManager) *VehicleHandler {
	return &VehicleHandler{Vehicles: v}
}

type vehicleReq struct {
	Make            *string            `json:"make"`
	Model           *string            `json:"model"`
	Year            *int               `json:"year"`
	Color           *string            `json:"color"`
	PlateNumber     *string            `json:"plateNumber"`
	VehicleType     *model.VehicleType `json:"vehicleType"`
	SeatingCapacity *int               `json:"seatingCapacity"`
	IsActive        *bool              `json:"isActive"`
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func (h *VehicleHandler) List(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	list, err := h.Vehicles.List(ctx, middleware.Caller(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, "", echo.Map{"vehicles": list, "count": len(list)})
}

func (h *VehicleHandler) Get(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	v, err := h.Vehicles.Get(ctx, middleware.Caller(c), c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, "", echo.Map{"vehicle": v})
}

// Create registers a vehicle. Seating capacity defaults to 4.
func (h *VehicleHandler) Create(c echo.Context) error {
	var req vehicleReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	seats := 4
	if req.SeatingCapacity != nil {
		seats = *req.SeatingCapacity
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	v, err := h.Vehicles.Create(ctx, middleware.Caller(c), service.VehicleInput{
		Make:            deref(req.Make),
		Model:           deref(req.Model),
		Year:            deref(req.Year),
		Color:           req.Color,
		PlateNumber:     deref(req.PlateNumber),
		VehicleType:     deref(req.VehicleType),
		SeatingCapacity: seats,
	})
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusCreated, "Vehicle registered successfully", echo.Map{"vehicle": v})
}

func (h *VehicleHandler) Update(c echo.Context) error {
	var req vehicleReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	v, err := h.Vehicles.Update(ctx, middleware.Caller(c), c.Param("id"), model.VehiclePatch{
		Make:            req.Make,
		Model:           req.Model,
		Year:            req.Year,
		Color:           req.Color,
		PlateNumber:     req.PlateNumber,
		VehicleType:     req.VehicleType,
		SeatingCapacity: req.SeatingCapacity,
		IsActive:        req.IsActive,
	})
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, "Vehicle updated successfully", echo.Map{"vehicle": v})
}

func (h *VehicleHandler) Delete(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Vehicles.Delete(ctx, middleware.Caller(c), c.Param("id")); err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, "Vehicle deleted successfully", nil)
}
