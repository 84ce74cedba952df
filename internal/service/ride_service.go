package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/iliyamo/ride-hailing/internal/cache"
	"github.com/iliyamo/ride-hailing/internal/model"
	"github.com/iliyamo/ride-hailing/internal/queue"
	"github.com/iliyamo/ride-hailing/internal/repository"
)

// RideStore is the persistence contract of the lifecycle engine.
type RideStore interface {
	Create(ctx context.Context, ride model.Ride) (model.Ride, error)
	GetByID(ctx context.Context, id string) (model.Ride, error)
	FindActiveByRider(ctx context.Context, riderID string) (model.Ride, error)
	FindActiveByDriver(ctx context.Context, driverID string) (model.Ride, error)
	ListByRider(ctx context.Context, riderID string, limit int) ([]model.Ride, error)
	ListByDriver(ctx context.Context, driverID string, limit int) ([]model.Ride, error)
	ListPending(ctx context.Context, limit int) ([]model.Ride, error)
	Transition(ctx context.Context, id string, from []model.RideStatus, patch model.RidePatch, ev model.RideEventRecord) (model.Ride, error)
	Events(ctx context.Context, rideID string) ([]model.RideEventRecord, error)
}

// AccountReader resolves accounts by id.
type AccountReader interface {
	GetByID(ctx context.Context, id string) (model.Account, error)
}

// VehicleFinder locates vehicles a driver may drive.
type VehicleFinder interface {
	GetByID(ctx context.Context, id string) (model.Vehicle, error)
	FindEligibleByDriver(ctx context.Context, driverID string) (model.Vehicle, error)
}

// Cache is the best-effort side channel. Implementations never fail the
// caller; a problem is a miss.
type Cache interface {
	GetJSON(ctx context.Context, key string, dst any) bool
	SetJSON(ctx context.Context, key string, v any, ttl time.Duration)
	Delete(ctx context.Context, keys ...string)
	DeletePrefix(ctx context.Context, prefix string)
}

// Notifier receives ride events after they are committed.
type Notifier interface {
	Publish(ctx context.Context, ev queue.RideEvent) error
}

// Caller is the authenticated account performing an operation.
type Caller struct {
	ID   string
	Role model.Role
}

// RideOptions tunes the engine. Zero values fall back to defaults.
type RideOptions struct {
	CommissionRate float64
	HistoryLimit   int
	RequestsLimit  int
	LocationTTL    time.Duration
	RequestsTTL    time.Duration

	Cache     Cache
	Notifiers []Notifier
	Logger    *slog.Logger
	Now       func() time.Time
}

// RideService is the ride lifecycle engine. It is the only writer of ride
// status and the timestamps derived from it.
type RideService struct {
	rides    RideStore
	accounts AccountReader
	vehicles VehicleFinder
	opt      RideOptions
	log      *slog.Logger
}

func NewRideService(rides RideStore, accounts AccountReader, vehicles VehicleFinder, opt RideOptions) *RideService {
	if opt.HistoryLimit <= 0 {
		opt.HistoryLimit = 50
	}
	if opt.RequestsLimit <= 0 {
		opt.RequestsLimit = 20
	}
	if opt.LocationTTL <= 0 {
		opt.LocationTTL = 30 * time.Second
	}
	if opt.RequestsTTL <= 0 {
		opt.RequestsTTL = 120 * time.Second
	}
	if opt.Cache == nil {
		opt.Cache = noCache{}
	}
	if opt.Now == nil {
		opt.Now = func() time.Time { return time.Now().UTC() }
	}
	logger := opt.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &RideService{
		rides:    rides,
		accounts: accounts,
		vehicles: vehicles,
		opt:      opt,
		log:      logger.With("component", "rides"),
	}
}

// RideRequestInput is what a rider supplies when asking for a ride.
type RideRequestInput struct {
	PickupLocation      model.Location
	DropoffLocation     model.Location
	RideType            model.RideType
	ScheduledPickupTime *time.Time
	EstimatedDistance   *float64
	EstimatedDuration   *int
	BaseFare            float64
	DistanceFare        float64
	TimeFare            float64
	SurgeMultiplier     float64
	PromoDiscount       float64
	ServiceFee          float64
	TotalFare           float64
	PaymentMethod       *model.PaymentMethod
	SpecialInstructions *string
	PassengerCount      int
	LuggageCount        int
}

func (in RideRequestInput) validate() error {
	if !in.PickupLocation.Valid() {
		return newErr(ErrInvalid, "Valid pickup location is required")
	}
	if !in.DropoffLocation.Valid() {
		return newErr(ErrInvalid, "Valid dropoff location is required")
	}
	for _, f := range []float64{in.BaseFare, in.DistanceFare, in.TimeFare, in.PromoDiscount, in.ServiceFee, in.TotalFare} {
		if f < 0 {
			return newErr(ErrInvalid, "Fare amounts must not be negative")
		}
	}
	if in.SurgeMultiplier < 0 {
		return newErr(ErrInvalid, "Surge multiplier must not be negative")
	}
	if in.RideType != "" && !in.RideType.Valid() {
		return newErr(ErrInvalid, "Invalid ride type")
	}
	if in.PaymentMethod != nil && !in.PaymentMethod.Valid() {
		return newErr(ErrInvalid, "Invalid payment method")
	}
	if in.PassengerCount < 0 || in.LuggageCount < 0 {
		return newErr(ErrInvalid, "Passenger and luggage counts must not be negative")
	}
	if in.EstimatedDistance != nil && *in.EstimatedDistance < 0 {
		return newErr(ErrInvalid, "Estimated distance must not be negative")
	}
	if in.EstimatedDuration != nil && *in.EstimatedDuration < 0 {
		return newErr(ErrInvalid, "Estimated duration must not be negative")
	}
	return nil
}

// RequestRide opens a new pending ride for a rider.
func (s *RideService) RequestRide(ctx context.Context, caller Caller, in RideRequestInput) (model.Ride, error) {
	if caller.Role != model.RoleRider {
		return model.Ride{}, newErr(ErrForbidden, "Only riders can request rides")
	}
	if _, err := s.rides.FindActiveByRider(ctx, caller.ID); err == nil {
		return model.Ride{}, newErr(ErrConflict, "You already have an active ride")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return model.Ride{}, s.storeErr("find active ride", err)
	}
	if err := in.validate(); err != nil {
		return model.Ride{}, err
	}

	ride := model.Ride{
		RiderID:             caller.ID,
		Status:              model.RideStatusPending,
		RideType:            in.RideType,
		PickupLocation:      in.PickupLocation,
		DropoffLocation:     in.DropoffLocation,
		EstimatedDistance:   in.EstimatedDistance,
		EstimatedDuration:   in.EstimatedDuration,
		BaseFare:            in.BaseFare,
		DistanceFare:        in.DistanceFare,
		TimeFare:            in.TimeFare,
		SurgeMultiplier:     in.SurgeMultiplier,
		PromoDiscount:       in.PromoDiscount,
		ServiceFee:          in.ServiceFee,
		TotalFare:           in.TotalFare,
		PaymentMethod:       in.PaymentMethod,
		PaymentStatus:       model.PaymentStatusPending,
		ScheduledPickupTime: in.ScheduledPickupTime,
		RequestedAt:         s.opt.Now(),
		SpecialInstructions: in.SpecialInstructions,
		PassengerCount:      in.PassengerCount,
		LuggageCount:        in.LuggageCount,
	}
	if ride.RideType == "" {
		ride.RideType = model.RideTypeStandard
	}
	if ride.SurgeMultiplier == 0 {
		ride.SurgeMultiplier = 1.0
	}
	if ride.PassengerCount == 0 {
		ride.PassengerCount = 1
	}

	created, err := s.rides.Create(ctx, ride)
	if err != nil {
		if errors.Is(err, repository.ErrActiveRide) {
			return model.Ride{}, newErr(ErrConflict, "You already have an active ride")
		}
		return model.Ride{}, s.storeErr("create ride", err)
	}
	s.opt.Cache.DeletePrefix(ctx, cache.RideRequestsPrefix())
	s.emit(ctx, model.EventRideRequested, created, caller.ID)
	return created, nil
}

// AcceptRide assigns the calling driver and their eligible vehicle to a
// waiting ride. Exactly one of several concurrent attempts succeeds.
func (s *RideService) AcceptRide(ctx context.Context, caller Caller, rideID string) (model.Ride, error) {
	if caller.Role != model.RoleDriver {
		return model.Ride{}, newErr(ErrForbidden, "Only drivers can accept rides")
	}
	if _, err := s.rides.FindActiveByDriver(ctx, caller.ID); err == nil {
		return model.Ride{}, newErr(ErrConflict, "You already have an active ride")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return model.Ride{}, s.storeErr("find active ride", err)
	}
	ride, err := s.getRide(ctx, rideID)
	if err != nil {
		return model.Ride{}, err
	}
	if !ride.Status.Acceptable() {
		return model.Ride{}, newErr(ErrConflict, "Ride is no longer available")
	}
	if ride.RiderID == caller.ID {
		return model.Ride{}, newErr(ErrForbidden, "You cannot accept your own ride")
	}
	vehicle, err := s.vehicles.FindEligibleByDriver(ctx, caller.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Ride{}, newErr(ErrFailedPrecondition, "No active vehicle found. Please register a vehicle first.")
		}
		return model.Ride{}, s.storeErr("find eligible vehicle", err)
	}

	now := s.opt.Now()
	status := model.RideStatusAccepted
	patch := model.RidePatch{
		Status:     &status,
		DriverID:   &caller.ID,
		VehicleID:  &vehicle.ID,
		AcceptedAt: &now,
	}
	updated, err := s.rides.Transition(ctx, rideID, model.AcceptableStatuses, patch,
		model.RideEventRecord{EventType: model.EventRideAccepted, ActorID: caller.ID})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrStaleStatus):
			return model.Ride{}, newErr(ErrConflict, "Ride is no longer available")
		case errors.Is(err, repository.ErrActiveRide):
			return model.Ride{}, newErr(ErrConflict, "You already have an active ride")
		case errors.Is(err, repository.ErrNotFound):
			return model.Ride{}, newErr(ErrNotFound, "Ride not found")
		}
		return model.Ride{}, s.storeErr("accept ride", err)
	}
	s.opt.Cache.DeletePrefix(ctx, cache.RideRequestsPrefix())
	s.emit(ctx, model.EventRideAccepted, updated, caller.ID)
	return updated, nil
}

// StatusUpdate is a participant's request to move a ride or report a position.
type StatusUpdate struct {
	Status          model.RideStatus
	CurrentLocation *model.Location
}

// UpdateStatus sets a new status on a ride the caller takes part in and
// stamps the matching timestamp once. Any non-terminal status may be set;
// leaving a terminal status is refused. A supplied currentLocation is always
// stored. An empty Status only records the location.
func (s *RideService) UpdateStatus(ctx context.Context, caller Caller, rideID string, in StatusUpdate) (model.Ride, error) {
	ride, err := s.getRide(ctx, rideID)
	if err != nil {
		return model.Ride{}, err
	}
	if !ride.IsParticipant(caller.ID) {
		return model.Ride{}, newErr(ErrForbidden, "Access denied")
	}
	if in.Status == "" && in.CurrentLocation == nil {
		return model.Ride{}, newErr(ErrInvalid, "Status or current location is required")
	}
	if in.Status != "" && !in.Status.Valid() {
		return model.Ride{}, newErr(ErrInvalid, "Invalid ride status")
	}
	if in.CurrentLocation != nil && !in.CurrentLocation.Valid() {
		return model.Ride{}, newErr(ErrInvalid, "Invalid current location")
	}
	if in.Status != "" && ride.Status.Terminal() {
		return model.Ride{}, newErr(ErrConflict, "Ride is already "+string(ride.Status))
	}

	now := s.opt.Now()
	patch := model.RidePatch{CurrentLocation: in.CurrentLocation}
	if in.Status != "" {
		st := in.Status
		patch.Status = &st
		switch st {
		case model.RideStatusAccepted:
			if ride.AcceptedAt == nil {
				patch.AcceptedAt = &now
			}
		case model.RideStatusDriverArriving:
			if ride.DriverArrivedAt == nil {
				patch.DriverArrivedAt = &now
			}
		case model.RideStatusInProgress:
			if ride.StartedAt == nil {
				patch.StartedAt = &now
			}
		case model.RideStatusCompleted:
			if ride.CompletedAt == nil {
				patch.CompletedAt = &now
			}
			s.settle(ride, &patch)
		case model.RideStatusCancelled:
			if ride.CancelledAt == nil {
				patch.CancelledAt = &now
			}
			patch.CancelledBy = &caller.ID
		}
	}

	eventType := model.EventTypeFor(in.Status)
	updated, err := s.rides.Transition(ctx, rideID, []model.RideStatus{ride.Status}, patch,
		model.RideEventRecord{EventType: eventType, ActorID: caller.ID})
	if err != nil {
		return model.Ride{}, s.transitionErr("update ride status", err)
	}
	if in.CurrentLocation != nil && updated.IsDriver(caller.ID) {
		s.opt.Cache.SetJSON(ctx, cache.DriverLocationKey(caller.ID), in.CurrentLocation, s.opt.LocationTTL)
	}
	if ride.Status.Acceptable() && in.Status != "" {
		s.opt.Cache.DeletePrefix(ctx, cache.RideRequestsPrefix())
	}
	if in.Status != "" {
		s.emit(ctx, eventType, updated, caller.ID)
	}
	return updated, nil
}

// CancelRide ends a ride on behalf of one of its participants.
func (s *RideService) CancelRide(ctx context.Context, caller Caller, rideID string, reason *string) (model.Ride, error) {
	ride, err := s.getRide(ctx, rideID)
	if err != nil {
		return model.Ride{}, err
	}
	if !ride.IsParticipant(caller.ID) {
		return model.Ride{}, newErr(ErrForbidden, "Access denied")
	}
	if ride.Status == model.RideStatusCompleted || ride.Status == model.RideStatusCancelled {
		return model.Ride{}, newErr(ErrConflict, "Ride cannot be cancelled")
	}
	if reason != nil {
		r := strings.TrimSpace(*reason)
		reason = &r
		if r == "" {
			reason = nil
		}
	}

	now := s.opt.Now()
	status := model.RideStatusCancelled
	patch := model.RidePatch{
		Status:             &status,
		CancelledAt:        &now,
		CancelledBy:        &caller.ID,
		CancellationReason: reason,
	}
	updated, err := s.rides.Transition(ctx, rideID, []model.RideStatus{ride.Status}, patch,
		model.RideEventRecord{EventType: model.EventRideCancelled, ActorID: caller.ID})
	if err != nil {
		if errors.Is(err, repository.ErrStaleStatus) {
			return model.Ride{}, newErr(ErrConflict, "Ride cannot be cancelled")
		}
		return model.Ride{}, s.transitionErr("cancel ride", err)
	}
	s.opt.Cache.DeletePrefix(ctx, cache.RideRequestsPrefix())
	s.emit(ctx, model.EventRideCancelled, updated, caller.ID)
	return updated, nil
}

// CompletionInput carries the measured trip figures. Missing values fall
// back to the estimates.
type CompletionInput struct {
	ActualDistance *float64
	ActualDuration *int
}

// CompleteRide finishes an in-progress ride. The fare is not recomputed;
// earnings are split from the total agreed at request time.
func (s *RideService) CompleteRide(ctx context.Context, caller Caller, rideID string, in CompletionInput) (model.Ride, error) {
	ride, err := s.getRide(ctx, rideID)
	if err != nil {
		return model.Ride{}, err
	}
	if !ride.IsDriver(caller.ID) {
		return model.Ride{}, newErr(ErrForbidden, "Only the driver can complete the ride")
	}
	if ride.Status != model.RideStatusInProgress {
		return model.Ride{}, newErr(ErrConflict, "Ride is not in progress")
	}
	if in.ActualDistance != nil && *in.ActualDistance < 0 {
		return model.Ride{}, newErr(ErrInvalid, "Actual distance must not be negative")
	}
	if in.ActualDuration != nil && *in.ActualDuration < 0 {
		return model.Ride{}, newErr(ErrInvalid, "Actual duration must not be negative")
	}

	now := s.opt.Now()
	status := model.RideStatusCompleted
	patch := model.RidePatch{
		Status:         &status,
		CompletedAt:    &now,
		ActualDistance: in.ActualDistance,
		ActualDuration: in.ActualDuration,
	}
	if patch.ActualDistance == nil {
		patch.ActualDistance = ride.EstimatedDistance
	}
	if patch.ActualDuration == nil {
		patch.ActualDuration = ride.EstimatedDuration
	}
	s.settle(ride, &patch)

	updated, err := s.rides.Transition(ctx, rideID, []model.RideStatus{model.RideStatusInProgress}, patch,
		model.RideEventRecord{EventType: model.EventRideCompleted, ActorID: caller.ID})
	if err != nil {
		if errors.Is(err, repository.ErrStaleStatus) {
			return model.Ride{}, newErr(ErrConflict, "Ride is not in progress")
		}
		return model.Ride{}, s.transitionErr("complete ride", err)
	}
	s.emit(ctx, model.EventRideCompleted, updated, caller.ID)
	return updated, nil
}

// settle fills the payment and earnings columns written at completion.
func (s *RideService) settle(ride model.Ride, patch *model.RidePatch) {
	earnings, commission := model.SplitFare(ride.TotalFare, s.opt.CommissionRate)
	processing := model.PaymentStatusProcessing
	patch.PaymentStatus = &processing
	patch.DriverEarnings = &earnings
	patch.PlatformCommission = &commission
}

// GetRide returns a ride to one of its participants.
func (s *RideService) GetRide(ctx context.Context, caller Caller, rideID string) (model.Ride, error) {
	ride, err := s.getRide(ctx, rideID)
	if err != nil {
		return model.Ride{}, err
	}
	if !ride.IsParticipant(caller.ID) {
		return model.Ride{}, newErr(ErrForbidden, "Access denied")
	}
	return ride, nil
}

// RideEvents returns the audit trail of a ride to one of its participants.
func (s *RideService) RideEvents(ctx context.Context, caller Caller, rideID string) ([]model.RideEventRecord, error) {
	if _, err := s.GetRide(ctx, caller, rideID); err != nil {
		return nil, err
	}
	events, err := s.rides.Events(ctx, rideID)
	if err != nil {
		return nil, s.storeErr("list ride events", err)
	}
	return events, nil
}

// GetActiveRide returns the caller's open ride in the given role.
func (s *RideService) GetActiveRide(ctx context.Context, caller Caller, as model.Role) (model.Ride, error) {
	var (
		ride model.Ride
		err  error
	)
	if as == model.RoleDriver {
		ride, err = s.rides.FindActiveByDriver(ctx, caller.ID)
	} else {
		ride, err = s.rides.FindActiveByRider(ctx, caller.ID)
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Ride{}, newErr(ErrNotFound, "No active ride found")
		}
		return model.Ride{}, s.storeErr("find active ride", err)
	}
	return ride, nil
}

// GetDriverActiveRide returns the driver's open ride together with the
// rider and vehicle summaries.
func (s *RideService) GetDriverActiveRide(ctx context.Context, caller Caller) (model.DriverRide, error) {
	ride, err := s.GetActiveRide(ctx, caller, model.RoleDriver)
	if err != nil {
		return model.DriverRide{}, err
	}
	out := model.DriverRide{Ride: ride}
	if rider, err := s.accounts.GetByID(ctx, ride.RiderID); err == nil {
		sum := rider.Summary()
		out.Rider = &sum
	} else if !errors.Is(err, repository.ErrNotFound) {
		return model.DriverRide{}, s.storeErr("load rider", err)
	}
	if ride.VehicleID != nil {
		if v, err := s.vehicles.GetByID(ctx, *ride.VehicleID); err == nil {
			sum := v.Summary()
			out.Vehicle = &sum
		} else if !errors.Is(err, repository.ErrNotFound) {
			return model.DriverRide{}, s.storeErr("load vehicle", err)
		}
	}
	return out, nil
}

// ListHistory returns the caller's rides in the given role, newest first.
func (s *RideService) ListHistory(ctx context.Context, caller Caller, as model.Role, limit int) ([]model.Ride, error) {
	if limit <= 0 {
		limit = s.opt.HistoryLimit
	}
	var (
		rides []model.Ride
		err   error
	)
	if as == model.RoleDriver {
		rides, err = s.rides.ListByDriver(ctx, caller.ID, limit)
	} else {
		rides, err = s.rides.ListByRider(ctx, caller.ID, limit)
	}
	if err != nil {
		return nil, s.storeErr("list ride history", err)
	}
	return rides, nil
}

// ListPendingRequests shows drivers the rides still waiting for a driver,
// each with a redacted rider summary.
func (s *RideService) ListPendingRequests(ctx context.Context, caller Caller, limit int) ([]model.RideRequest, error) {
	if caller.Role != model.RoleDriver {
		return nil, newErr(ErrForbidden, "Only drivers can view ride requests")
	}
	if limit <= 0 {
		limit = s.opt.RequestsLimit
	}
	key := cache.RideRequestsKey(limit)
	var cached []model.RideRequest
	if s.opt.Cache.GetJSON(ctx, key, &cached) {
		return cached, nil
	}

	rides, err := s.rides.ListPending(ctx, limit)
	if err != nil {
		return nil, s.storeErr("list pending rides", err)
	}
	out := make([]model.RideRequest, 0, len(rides))
	riders := map[string]*model.RiderSummary{}
	for _, r := range rides {
		sum, seen := riders[r.RiderID]
		if !seen {
			acc, err := s.accounts.GetByID(ctx, r.RiderID)
			switch {
			case err == nil:
				v := acc.Summary()
				sum = &v
			case errors.Is(err, repository.ErrNotFound):
			default:
				return nil, s.storeErr("load rider", err)
			}
			riders[r.RiderID] = sum
		}
		out = append(out, model.RideRequest{Ride: r, Rider: sum})
	}
	s.opt.Cache.SetJSON(ctx, key, out, s.opt.RequestsTTL)
	return out, nil
}

func (s *RideService) getRide(ctx context.Context, id string) (model.Ride, error) {
	ride, err := s.rides.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Ride{}, newErr(ErrNotFound, "Ride not found")
		}
		return model.Ride{}, s.storeErr("load ride", err)
	}
	return ride, nil
}

func (s *RideService) transitionErr(op string, err error) error {
	switch {
	case errors.Is(err, repository.ErrStaleStatus):
		return newErr(ErrConflict, "Ride status changed, please retry")
	case errors.Is(err, repository.ErrActiveRide):
		return newErr(ErrConflict, "A participant already has an active ride")
	case errors.Is(err, repository.ErrNotFound):
		return newErr(ErrNotFound, "Ride not found")
	}
	return s.storeErr(op, err)
}

func (s *RideService) storeErr(op string, err error) error {
	s.log.Error(op+" failed", "err", err)
	return internal(op, err)
}

func (s *RideService) emit(ctx context.Context, eventType string, ride model.Ride, actorID string) {
	ev := queue.NewRideEvent(eventType, ride, actorID, s.opt.Now())
	for _, n := range s.opt.Notifiers {
		if n == nil {
			continue
		}
		if err := n.Publish(ctx, ev); err != nil {
			s.log.Warn("ride event delivery failed", "type", eventType, "ride_id", ride.ID, "err", err)
		}
	}
}

type noCache struct{}

func (noCache) GetJSON(context.Context, string, any) bool           { return false }
func (noCache) SetJSON(context.Context, string, any, time.Duration) {}
func (noCache) Delete(context.Context, ...string)                   {}
func (noCache) DeletePrefix(context.Context, string)                {}
