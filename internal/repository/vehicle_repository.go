package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/ride-hailing/internal/database"
	"github.com/iliyamo/ride-hailing/internal/model"
)

// VehicleRepo persists vehicles. Every vehicle belongs to one driver.
type VehicleRepo struct {
	DB  *database.DB
	Now func() time.Time
}

func NewVehicleRepo(db *database.DB) *VehicleRepo { return &VehicleRepo{DB: db, Now: utcNow} }

const vehicleColumns = `id, driver_id, make, model, year, color, plate_number, vehicle_type, seating_capacity,
	is_active, is_verified, verification_status, verified_at, created_at, updated_at`

func scanVehicle(s rowScanner) (model.Vehicle, error) {
	var (
		v          model.Vehicle
		color      sql.NullString
		verifiedAt sql.NullTime
	)
	err := s.Scan(&v.ID, &v.DriverID, &v.Make, &v.Model, &v.Year, &color, &v.PlateNumber, &v.VehicleType,
		&v.SeatingCapacity, &v.IsActive, &v.IsVerified, &v.VerificationStatus, &verifiedAt, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return model.Vehicle{}, notFound(err)
	}
	v.Color = strPtr(color)
	v.VerifiedAt = timePtr(verifiedAt)
	v.CreatedAt = v.CreatedAt.UTC()
	v.UpdatedAt = v.UpdatedAt.UTC()
	return v, nil
}

// Create inserts a vehicle as active, unverified and pending review.
func (r *VehicleRepo) Create(ctx context.Context, in model.NewVehicle) (model.Vehicle, error) {
	now := r.Now()
	id := uuid.NewString()
	_, err := r.DB.ExecContext(ctx, r.DB.Rebind(
		`INSERT INTO vehicles (id, driver_id, make, model, year, color, plate_number, vehicle_type, seating_capacity,
			is_active, is_verified, verification_status, created_at, updated_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`),
		id, in.DriverID, in.Make, in.Model, in.Year, nullStr(in.Color), NormalizePlate(in.PlateNumber),
		string(in.VehicleType), in.SeatingCapacity, true, false, string(model.VerificationPending), now, now)
	if err != nil {
		return model.Vehicle{}, vehicleUniqueErr(err)
	}
	return r.GetByID(ctx, id)
}

// GetByID fetches a vehicle by id.
func (r *VehicleRepo) GetByID(ctx context.Context, id string) (model.Vehicle, error) {
	row := r.DB.QueryRowContext(ctx, r.DB.Rebind("SELECT "+vehicleColumns+" FROM vehicles WHERE id=? LIMIT 1"), id)
	return scanVehicle(row)
}

// ListByDriver returns the driver's vehicles, newest first.
func (r *VehicleRepo) ListByDriver(ctx context.Context, driverID string) ([]model.Vehicle, error) {
	rows, err := r.DB.QueryContext(ctx, r.DB.Rebind(
		"SELECT "+vehicleColumns+" FROM vehicles WHERE driver_id=? ORDER BY created_at DESC"), driverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Vehicle{}
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// FindEligibleByDriver returns the newest vehicle of the driver that is
// active, verified and approved.
func (r *VehicleRepo) FindEligibleByDriver(ctx context.Context, driverID string) (model.Vehicle, error) {
	row := r.DB.QueryRowContext(ctx, r.DB.Rebind(
		`SELECT `+vehicleColumns+` FROM vehicles
		  WHERE driver_id=? AND is_active=? AND is_verified=? AND verification_status=?
		  ORDER BY created_at DESC LIMIT 1`),
		driverID, true, true, string(model.VerificationApproved))
	return scanVehicle(row)
}

// Update applies the non-nil fields of p.
func (r *VehicleRepo) Update(ctx context.Context, id string, p model.VehiclePatch) (model.Vehicle, error) {
	if p.Empty() {
		return r.GetByID(ctx, id)
	}
	var (
		sets []string
		args []any
	)
	add := func(col string, v any) {
		sets = append(sets, col+"=?")
		args = append(args, v)
	}
	if p.Make != nil {
		add("make", strings.TrimSpace(*p.Make))
	}
	if p.Model != nil {
		add("model", strings.TrimSpace(*p.Model))
	}
	if p.Year != nil {
		add("year", *p.Year)
	}
	if p.Color != nil {
		add("color", *p.Color)
	}
	if p.PlateNumber != nil {
		add("plate_number", NormalizePlate(*p.PlateNumber))
	}
	if p.VehicleType != nil {
		add("vehicle_type", string(*p.VehicleType))
	}
	if p.SeatingCapacity != nil {
		add("seating_capacity", *p.SeatingCapacity)
	}
	if p.IsActive != nil {
		add("is_active", *p.IsActive)
	}
	add("updated_at", r.Now())
	args = append(args, id)

	res, err := r.DB.ExecContext(ctx, r.DB.Rebind("UPDATE vehicles SET "+strings.Join(sets, ", ")+" WHERE id=?"), args...)
	if err != nil {
		return model.Vehicle{}, vehicleUniqueErr(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return model.Vehicle{}, ErrNotFound
	}
	return r.GetByID(ctx, id)
}

// SetVerification records the outcome of a document review. Only an
// approved review marks the vehicle verified.
func (r *VehicleRepo) SetVerification(ctx context.Context, id string, status model.VerificationStatus) (model.Vehicle, error) {
	now := r.Now()
	verified := status == model.VerificationApproved
	var verifiedAt any
	if verified {
		verifiedAt = now
	}
	res, err := r.DB.ExecContext(ctx, r.DB.Rebind(
		"UPDATE vehicles SET verification_status=?, is_verified=?, verified_at=?, updated_at=? WHERE id=?"),
		string(status), verified, verifiedAt, now, id)
	if err != nil {
		return model.Vehicle{}, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return model.Vehicle{}, ErrNotFound
	}
	return r.GetByID(ctx, id)
}

// Delete removes a vehicle.
func (r *VehicleRepo) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, r.DB.Rebind("DELETE FROM vehicles WHERE id=?"), id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// NormalizePlate trims and upper-cases a plate number.
func NormalizePlate(plate string) string { return strings.ToUpper(strings.TrimSpace(plate)) }

func vehicleUniqueErr(err error) error {
	if key, ok := uniqueKey(err); ok && strings.Contains(key, "plate") {
		return ErrPlateExists
	}
	return err
}
