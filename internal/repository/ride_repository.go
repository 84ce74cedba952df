package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/ride-hailing/internal/database"
	"github.com/iliyamo/ride-hailing/internal/model"
)

// RideRepo persists rides and their audit trail. Status changes go through
// Transition, which is a compare-and-swap on the current status.
type RideRepo struct {
	DB  *database.DB
	Now func() time.Time
}

func NewRideRepo(db *database.DB) *RideRepo { return &RideRepo{DB: db, Now: utcNow} }

const rideColumns = `id, rider_id, driver_id, vehicle_id, status, ride_type,
	pickup_lat, pickup_lng, pickup_address, dropoff_lat, dropoff_lng, dropoff_address,
	current_lat, current_lng, current_address,
	estimated_distance, actual_distance, estimated_duration, actual_duration,
	base_fare, distance_fare, time_fare, surge_multiplier, promo_discount, service_fee,
	total_fare, driver_earnings, platform_commission,
	payment_method, payment_status,
	scheduled_pickup_time, requested_at, accepted_at, driver_arrived_at, started_at, completed_at, cancelled_at,
	cancelled_by, cancellation_reason, special_instructions, passenger_count, luggage_count,
	rider_rating, driver_rating, rider_review, driver_review, created_at, updated_at`

const rideColumnCount = 48

func scanRide(s rowScanner) (model.Ride, error) {
	var (
		r                                       model.Ride
		driverID, vehicleID                     sql.NullString
		pickupAddr, dropoffAddr, curAddr        sql.NullString
		curLat, curLng                          sql.NullFloat64
		estDist, actDist                        sql.NullFloat64
		estDur, actDur                          sql.NullInt64
		payMethod                               sql.NullString
		scheduled, accepted, arrived, started   sql.NullTime
		completed, cancelled                    sql.NullTime
		cancelledBy, cancelReason, instructions sql.NullString
		riderRating, driverRating               sql.NullFloat64
		riderReview, driverReview               sql.NullString
	)
	err := s.Scan(&r.ID, &r.RiderID, &driverID, &vehicleID, &r.Status, &r.RideType,
		&r.PickupLocation.Latitude, &r.PickupLocation.Longitude, &pickupAddr,
		&r.DropoffLocation.Latitude, &r.DropoffLocation.Longitude, &dropoffAddr,
		&curLat, &curLng, &curAddr,
		&estDist, &actDist, &estDur, &actDur,
		&r.BaseFare, &r.DistanceFare, &r.TimeFare, &r.SurgeMultiplier, &r.PromoDiscount, &r.ServiceFee,
		&r.TotalFare, &r.DriverEarnings, &r.PlatformCommission,
		&payMethod, &r.PaymentStatus,
		&scheduled, &r.RequestedAt, &accepted, &arrived, &started, &completed, &cancelled,
		&cancelledBy, &cancelReason, &instructions, &r.PassengerCount, &r.LuggageCount,
		&riderRating, &driverRating, &riderReview, &driverReview, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return model.Ride{}, notFound(err)
	}
	r.DriverID = strPtr(driverID)
	r.VehicleID = strPtr(vehicleID)
	r.PickupLocation.Address = pickupAddr.String
	r.DropoffLocation.Address = dropoffAddr.String
	if curLat.Valid && curLng.Valid {
		r.CurrentLocation = &model.Location{Latitude: curLat.Float64, Longitude: curLng.Float64, Address: curAddr.String}
	}
	r.EstimatedDistance = floatPtr(estDist)
	r.ActualDistance = floatPtr(actDist)
	r.EstimatedDuration = intPtr(estDur)
	r.ActualDuration = intPtr(actDur)
	if payMethod.Valid {
		m := model.PaymentMethod(payMethod.String)
		r.PaymentMethod = &m
	}
	r.ScheduledPickupTime = timePtr(scheduled)
	r.AcceptedAt = timePtr(accepted)
	r.DriverArrivedAt = timePtr(arrived)
	r.StartedAt = timePtr(started)
	r.CompletedAt = timePtr(completed)
	r.CancelledAt = timePtr(cancelled)
	r.CancelledBy = strPtr(cancelledBy)
	r.CancellationReason = strPtr(cancelReason)
	r.SpecialInstructions = strPtr(instructions)
	r.RiderRating = floatPtr(riderRating)
	r.DriverRating = floatPtr(driverRating)
	r.RiderReview = strPtr(riderReview)
	r.DriverReview = strPtr(driverReview)
	r.RequestedAt = r.RequestedAt.UTC()
	r.CreatedAt = r.CreatedAt.UTC()
	r.UpdatedAt = r.UpdatedAt.UTC()
	return r, nil
}

func optAddr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Create inserts ride together with its "requested" audit row. A second
// open ride for the same rider is rejected with ErrActiveRide.
func (r *RideRepo) Create(ctx context.Context, ride model.Ride) (model.Ride, error) {
	now := r.Now()
	if ride.ID == "" {
		ride.ID = uuid.NewString()
	}
	if ride.RequestedAt.IsZero() {
		ride.RequestedAt = now
	}
	ride.CreatedAt, ride.UpdatedAt = now, now

	var (
		curLat, curLng, curAddr any
		payMethod               any
	)
	if c := ride.CurrentLocation; c != nil {
		curLat, curLng, curAddr = c.Latitude, c.Longitude, optAddr(c.Address)
	}
	if ride.PaymentMethod != nil {
		payMethod = string(*ride.PaymentMethod)
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return model.Ride{}, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, r.DB.Rebind("INSERT INTO rides ("+rideColumns+") VALUES ("+database.Placeholders(rideColumnCount)+")"),
		ride.ID, ride.RiderID, nullStr(ride.DriverID), nullStr(ride.VehicleID), string(ride.Status), string(ride.RideType),
		ride.PickupLocation.Latitude, ride.PickupLocation.Longitude, optAddr(ride.PickupLocation.Address),
		ride.DropoffLocation.Latitude, ride.DropoffLocation.Longitude, optAddr(ride.DropoffLocation.Address),
		curLat, curLng, curAddr,
		nullFloat(ride.EstimatedDistance), nullFloat(ride.ActualDistance), nullInt(ride.EstimatedDuration), nullInt(ride.ActualDuration),
		ride.BaseFare, ride.DistanceFare, ride.TimeFare, ride.SurgeMultiplier, ride.PromoDiscount, ride.ServiceFee,
		ride.TotalFare, ride.DriverEarnings, ride.PlatformCommission,
		payMethod, string(ride.PaymentStatus),
		nullTime(ride.ScheduledPickupTime), ride.RequestedAt.UTC(), nullTime(ride.AcceptedAt), nullTime(ride.DriverArrivedAt),
		nullTime(ride.StartedAt), nullTime(ride.CompletedAt), nullTime(ride.CancelledAt),
		nullStr(ride.CancelledBy), nullStr(ride.CancellationReason), nullStr(ride.SpecialInstructions),
		ride.PassengerCount, ride.LuggageCount,
		nullFloat(ride.RiderRating), nullFloat(ride.DriverRating), nullStr(ride.RiderReview), nullStr(ride.DriverReview),
		now, now)
	if err != nil {
		return model.Ride{}, rideUniqueErr(err)
	}
	if err := r.insertEventTx(ctx, tx, model.RideEventRecord{
		RideID:    ride.ID,
		EventType: model.EventRideRequested,
		ActorID:   ride.RiderID,
		ToStatus:  ride.Status,
		CreatedAt: now,
	}); err != nil {
		return model.Ride{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Ride{}, rideUniqueErr(err)
	}
	return r.GetByID(ctx, ride.ID)
}

// GetByID fetches a ride by id.
func (r *RideRepo) GetByID(ctx context.Context, id string) (model.Ride, error) {
	row := r.DB.QueryRowContext(ctx, r.DB.Rebind("SELECT "+rideColumns+" FROM rides WHERE id=? LIMIT 1"), id)
	return scanRide(row)
}

// FindActiveByRider returns the rider's open ride, if any.
func (r *RideRepo) FindActiveByRider(ctx context.Context, riderID string) (model.Ride, error) {
	return r.findOne(ctx, "rider_id", riderID, model.RiderActiveStatuses)
}

// FindActiveByDriver returns the ride currently occupying the driver, if any.
func (r *RideRepo) FindActiveByDriver(ctx context.Context, driverID string) (model.Ride, error) {
	return r.findOne(ctx, "driver_id", driverID, model.DriverActiveStatuses)
}

func (r *RideRepo) findOne(ctx context.Context, col, id string, statuses []model.RideStatus) (model.Ride, error) {
	args := append([]any{id}, statusArgs(statuses)...)
	row := r.DB.QueryRowContext(ctx, r.DB.Rebind(
		"SELECT "+rideColumns+" FROM rides WHERE "+col+"=? AND status IN ("+database.Placeholders(len(statuses))+
			") ORDER BY created_at DESC LIMIT 1"), args...)
	return scanRide(row)
}

// ListByRider returns the rider's rides, newest first.
func (r *RideRepo) ListByRider(ctx context.Context, riderID string, limit int) ([]model.Ride, error) {
	return r.list(ctx, "WHERE rider_id=?", []any{riderID}, limit)
}

// ListByDriver returns the rides assigned to the driver, newest first.
func (r *RideRepo) ListByDriver(ctx context.Context, driverID string, limit int) ([]model.Ride, error) {
	return r.list(ctx, "WHERE driver_id=?", []any{driverID}, limit)
}

// ListPending returns rides still waiting for a driver, newest first.
func (r *RideRepo) ListPending(ctx context.Context, limit int) ([]model.Ride, error) {
	return r.list(ctx, "WHERE status IN ("+database.Placeholders(len(model.AcceptableStatuses))+")",
		statusArgs(model.AcceptableStatuses), limit)
}

func (r *RideRepo) list(ctx context.Context, where string, args []any, limit int) ([]model.Ride, error) {
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, r.DB.Rebind(
		"SELECT "+rideColumns+" FROM rides "+where+" ORDER BY created_at DESC LIMIT ?"), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Ride{}
	for rows.Next() {
		ride, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ride)
	}
	return out, rows.Err()
}

// Transition moves a ride out of one of the from statuses and applies
// patch. When the patch changes the status, ev is appended to the audit
// trail in the same transaction. The update is conditional on the status
// observed inside the transaction, so a concurrent writer makes it fail
// with ErrStaleStatus instead of losing an update. An empty from accepts
// any current status.
func (r *RideRepo) Transition(ctx context.Context, id string, from []model.RideStatus, patch model.RidePatch, ev model.RideEventRecord) (model.Ride, error) {
	now := r.Now()

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return model.Ride{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var current model.RideStatus
	if err := tx.QueryRowContext(ctx, r.DB.Rebind("SELECT status FROM rides WHERE id=?"), id).Scan(&current); err != nil {
		return model.Ride{}, notFound(err)
	}
	if len(from) > 0 && !containsStatus(from, current) {
		return model.Ride{}, ErrStaleStatus
	}

	sets, args := ridePatchSet(patch)
	sets = append(sets, "updated_at=?")
	args = append(args, now, id, string(current))
	res, err := tx.ExecContext(ctx, r.DB.Rebind(
		"UPDATE rides SET "+strings.Join(sets, ", ")+" WHERE id=? AND status=?"), args...)
	if err != nil {
		return model.Ride{}, rideUniqueErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.Ride{}, err
	}
	if n == 0 {
		return model.Ride{}, ErrStaleStatus
	}

	// location-only updates are not part of the audit trail
	if patch.Status != nil {
		ev.RideID = id
		ev.FromStatus = &current
		ev.ToStatus = *patch.Status
		ev.CreatedAt = now
		if err := r.insertEventTx(ctx, tx, ev); err != nil {
			return model.Ride{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return model.Ride{}, rideUniqueErr(err)
	}
	return r.GetByID(ctx, id)
}

func ridePatchSet(p model.RidePatch) ([]string, []any) {
	var (
		sets []string
		args []any
	)
	add := func(col string, v any) {
		sets = append(sets, col+"=?")
		args = append(args, v)
	}
	if p.Status != nil {
		add("status", string(*p.Status))
	}
	if p.DriverID != nil {
		add("driver_id", *p.DriverID)
	}
	if p.VehicleID != nil {
		add("vehicle_id", *p.VehicleID)
	}
	if c := p.CurrentLocation; c != nil {
		add("current_lat", c.Latitude)
		add("current_lng", c.Longitude)
		add("current_address", optAddr(c.Address))
	}
	if p.ActualDistance != nil {
		add("actual_distance", *p.ActualDistance)
	}
	if p.ActualDuration != nil {
		add("actual_duration", *p.ActualDuration)
	}
	if p.DriverEarnings != nil {
		add("driver_earnings", *p.DriverEarnings)
	}
	if p.PlatformCommission != nil {
		add("platform_commission", *p.PlatformCommission)
	}
	if p.PaymentStatus != nil {
		add("payment_status", string(*p.PaymentStatus))
	}
	if p.AcceptedAt != nil {
		add("accepted_at", p.AcceptedAt.UTC())
	}
	if p.DriverArrivedAt != nil {
		add("driver_arrived_at", p.DriverArrivedAt.UTC())
	}
	if p.StartedAt != nil {
		add("started_at", p.StartedAt.UTC())
	}
	if p.CompletedAt != nil {
		add("completed_at", p.CompletedAt.UTC())
	}
	if p.CancelledAt != nil {
		add("cancelled_at", p.CancelledAt.UTC())
	}
	if p.CancelledBy != nil {
		add("cancelled_by", *p.CancelledBy)
	}
	if p.CancellationReason != nil {
		add("cancellation_reason", *p.CancellationReason)
	}
	return sets, args
}

func (r *RideRepo) insertEventTx(ctx context.Context, tx *sql.Tx, ev model.RideEventRecord) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	var from any
	if ev.FromStatus != nil {
		from = string(*ev.FromStatus)
	}
	_, err := tx.ExecContext(ctx, r.DB.Rebind(
		"INSERT INTO ride_events (id, ride_id, event_type, actor_id, from_status, to_status, created_at) VALUES (?,?,?,?,?,?,?)"),
		ev.ID, ev.RideID, ev.EventType, ev.ActorID, from, string(ev.ToStatus), ev.CreatedAt.UTC())
	return err
}

// Events returns the audit trail of a ride, oldest first.
func (r *RideRepo) Events(ctx context.Context, rideID string) ([]model.RideEventRecord, error) {
	rows, err := r.DB.QueryContext(ctx, r.DB.Rebind(
		`SELECT id, ride_id, event_type, actor_id, from_status, to_status, created_at
		   FROM ride_events WHERE ride_id=? ORDER BY created_at ASC, id ASC`), rideID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.RideEventRecord{}
	for rows.Next() {
		var (
			ev   model.RideEventRecord
			from sql.NullString
		)
		if err := rows.Scan(&ev.ID, &ev.RideID, &ev.EventType, &ev.ActorID, &from, &ev.ToStatus, &ev.CreatedAt); err != nil {
			return nil, err
		}
		if from.Valid {
			s := model.RideStatus(from.String)
			ev.FromStatus = &s
		}
		ev.CreatedAt = ev.CreatedAt.UTC()
		out = append(out, ev)
	}
	return out, rows.Err()
}

func statusArgs(statuses []model.RideStatus) []any {
	out := make([]any, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func containsStatus(set []model.RideStatus, s model.RideStatus) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

func rideUniqueErr(err error) error {
	if _, ok := uniqueKey(err); ok {
		return errors.Join(ErrActiveRide, err)
	}
	return err
}
