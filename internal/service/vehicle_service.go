package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/iliyamo/ride-hailing/internal/model"
	"github.com/iliyamo/ride-hailing/internal/repository"
)

// VehicleStore is the persistence contract for vehicle management.
type VehicleStore interface {
	Create(ctx context.Context, in model.NewVehicle) (model.Vehicle, error)
	GetByID(ctx context.Context, id string) (model.Vehicle, error)
	ListByDriver(ctx context.Context, driverID string) ([]model.Vehicle, error)
	Update(ctx context.Context, id string, p model.VehiclePatch) (model.Vehicle, error)
	SetVerification(ctx context.Context, id string, status model.VerificationStatus) (model.Vehicle, error)
	Delete(ctx context.Context, id string) error
}

// ActiveRideFinder reports the ride currently occupying a driver.
type ActiveRideFinder interface {
	FindActiveByDriver(ctx context.Context, driverID string) (model.Ride, error)
}

// VehicleService lets drivers manage their own vehicles.
type VehicleService struct {
	vehicles VehicleStore
	rides    ActiveRideFinder
	now      func() time.Time
	log      *slog.Logger
}

func NewVehicleService(vehicles VehicleStore, rides ActiveRideFinder, logger *slog.Logger) *VehicleService {
	if logger == nil {
		logger = slog.Default()
	}
	return &VehicleService{
		vehicles: vehicles,
		rides:    rides,
		now:      func() time.Time { return time.Now().UTC() },
		log:      logger.With("component", "vehicles"),
	}
}

// VehicleInput is the registration form of a vehicle.
type VehicleInput struct {
	Make            string
	Model           string
	Year            int
	Color           *string
	PlateNumber     string
	VehicleType     model.VehicleType
	SeatingCapacity int
}

func (s *VehicleService) validYear(y int) bool { return y >= 1900 && y <= s.now().Year()+1 }

func validSeats(n int) bool { return n >= 1 && n <= 20 }

// List returns the caller's vehicles.
func (s *VehicleService) List(ctx context.Context, caller Caller) ([]model.Vehicle, error) {
	out, err := s.vehicles.ListByDriver(ctx, caller.ID)
	if err != nil {
		return nil, s.internal("list vehicles", err)
	}
	return out, nil
}

// Get returns one of the caller's vehicles.
func (s *VehicleService) Get(ctx context.Context, caller Caller, id string) (model.Vehicle, error) {
	v, err := s.vehicles.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Vehicle{}, newErr(ErrNotFound, "Vehicle not found")
		}
		return model.Vehicle{}, s.internal("load vehicle", err)
	}
	if v.DriverID != caller.ID {
		return model.Vehicle{}, newErr(ErrForbidden, "Access denied")
	}
	return v, nil
}

// Create registers a vehicle for a driver. It starts active and pending
// review.
func (s *VehicleService) Create(ctx context.Context, caller Caller, in VehicleInput) (model.Vehicle, error) {
	if caller.Role != model.RoleDriver {
		return model.Vehicle{}, newErr(ErrForbidden, "Only drivers can register vehicles")
	}
	in.Make = strings.TrimSpace(in.Make)
	in.Model = strings.TrimSpace(in.Model)
	switch {
	case in.Make == "":
		return model.Vehicle{}, newErr(ErrInvalid, "Make is required")
	case in.Model == "":
		return model.Vehicle{}, newErr(ErrInvalid, "Model is required")
	case !s.validYear(in.Year):
		return model.Vehicle{}, newErr(ErrInvalid, "Valid year is required")
	case repository.NormalizePlate(in.PlateNumber) == "":
		return model.Vehicle{}, newErr(ErrInvalid, "Plate number is required")
	case !in.VehicleType.Valid():
		return model.Vehicle{}, newErr(ErrInvalid, "Valid vehicle type is required")
	case !validSeats(in.SeatingCapacity):
		return model.Vehicle{}, newErr(ErrInvalid, "Seating capacity must be between 1 and 20")
	}
	v, err := s.vehicles.Create(ctx, model.NewVehicle{
		DriverID:        caller.ID,
		Make:            in.Make,
		Model:           in.Model,
		Year:            in.Year,
		Color:           in.Color,
		PlateNumber:     in.PlateNumber,
		VehicleType:     in.VehicleType,
		SeatingCapacity: in.SeatingCapacity,
	})
	if err != nil {
		if errors.Is(err, repository.ErrPlateExists) {
			return model.Vehicle{}, newErr(ErrInvalid, "Vehicle with this plate number already exists")
		}
		return model.Vehicle{}, s.internal("create vehicle", err)
	}
	return v, nil
}

// Update changes the caller's vehicle. Verification fields are not part of
// the patch.
func (s *VehicleService) Update(ctx context.Context, caller Caller, id string, p model.VehiclePatch) (model.Vehicle, error) {
	if _, err := s.Get(ctx, caller, id); err != nil {
		return model.Vehicle{}, err
	}
	switch {
	case p.Make != nil && strings.TrimSpace(*p.Make) == "":
		return model.Vehicle{}, newErr(ErrInvalid, "Make must not be empty")
	case p.Model != nil && strings.TrimSpace(*p.Model) == "":
		return model.Vehicle{}, newErr(ErrInvalid, "Model must not be empty")
	case p.Year != nil && !s.validYear(*p.Year):
		return model.Vehicle{}, newErr(ErrInvalid, "Valid year is required")
	case p.PlateNumber != nil && repository.NormalizePlate(*p.PlateNumber) == "":
		return model.Vehicle{}, newErr(ErrInvalid, "Plate number must not be empty")
	case p.VehicleType != nil && !p.VehicleType.Valid():
		return model.Vehicle{}, newErr(ErrInvalid, "Valid vehicle type is required")
	case p.SeatingCapacity != nil && !validSeats(*p.SeatingCapacity):
		return model.Vehicle{}, newErr(ErrInvalid, "Seating capacity must be between 1 and 20")
	}
	v, err := s.vehicles.Update(ctx, id, p)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrPlateExists):
			return model.Vehicle{}, newErr(ErrInvalid, "Vehicle with this plate number already exists")
		case errors.Is(err, repository.ErrNotFound):
			return model.Vehicle{}, newErr(ErrNotFound, "Vehicle not found")
		}
		return model.Vehicle{}, s.internal("update vehicle", err)
	}
	return v, nil
}

// Delete removes the caller's vehicle unless it is serving an open ride.
func (s *VehicleService) Delete(ctx context.Context, caller Caller, id string) error {
	if _, err := s.Get(ctx, caller, id); err != nil {
		return err
	}
	if s.rides != nil {
		ride, err := s.rides.FindActiveByDriver(ctx, caller.ID)
		switch {
		case err == nil && ride.VehicleID != nil && *ride.VehicleID == id:
			return newErr(ErrConflict, "Vehicle is assigned to an active ride")
		case err != nil && !errors.Is(err, repository.ErrNotFound):
			return s.internal("find active ride", err)
		}
	}
	if err := s.vehicles.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return newErr(ErrNotFound, "Vehicle not found")
		}
		return s.internal("delete vehicle", err)
	}
	return nil
}

// SetVerification records a document review outcome. It is an operator
// action and performs no ownership check.
func (s *VehicleService) SetVerification(ctx context.Context, id string, status model.VerificationStatus) (model.Vehicle, error) {
	if !status.Valid() {
		return model.Vehicle{}, newErr(ErrInvalid, "Invalid verification status")
	}
	v, err := s.vehicles.SetVerification(ctx, id, status)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Vehicle{}, newErr(ErrNotFound, "Vehicle not found")
		}
		return model.Vehicle{}, s.internal("set verification", err)
	}
	s.log.Info("vehicle verification changed", "vehicle_id", id, "status", status)
	return v, nil
}

func (s *VehicleService) internal(op string, err error) error {
	s.log.Error(op+" failed", "err", err)
	return internal(op, err)
}
