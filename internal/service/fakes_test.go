package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/ride-hailing/internal/model"
	"github.com/iliyamo/ride-hailing/internal/queue"
	"github.com/iliyamo/ride-hailing/internal/repository"
)

// memRides mirrors RideRepo: transitions compare the stored status under a
// lock, and the one-open-ride rules are enforced like the unique indexes.
type memRides struct {
	mu     sync.Mutex
	seq    int
	rides  map[string]model.Ride
	events []model.RideEventRecord
	now    func() time.Time
}

func newMemRides(now func() time.Time) *memRides {
	return &memRides{rides: map[string]model.Ride{}, now: now}
}

func (m *memRides) Create(_ context.Context, r model.Ride) (model.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.rides {
		if o.RiderID == r.RiderID && o.Status.RiderActive() {
			return model.Ride{}, repository.ErrActiveRide
		}
	}
	m.seq++
	r.ID = fmt.Sprintf("ride-%d", m.seq)
	r.CreatedAt, r.UpdatedAt = m.now(), m.now()
	m.rides[r.ID] = r
	m.events = append(m.events, model.RideEventRecord{RideID: r.ID, EventType: model.EventRideRequested, ToStatus: r.Status, CreatedAt: m.now()})
	return r, nil
}

func (m *memRides) GetByID(_ context.Context, id string) (model.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[id]
	if !ok {
		return model.Ride{}, repository.ErrNotFound
	}
	return r, nil
}

func (m *memRides) find(match func(model.Ride) bool) (model.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rides {
		if match(r) {
			return r, nil
		}
	}
	return model.Ride{}, repository.ErrNotFound
}

func (m *memRides) FindActiveByRider(_ context.Context, id string) (model.Ride, error) {
	return m.find(func(r model.Ride) bool { return r.RiderID == id && r.Status.RiderActive() })
}

func (m *memRides) FindActiveByDriver(_ context.Context, id string) (model.Ride, error) {
	return m.find(func(r model.Ride) bool { return r.IsDriver(id) && r.Status.DriverActive() })
}

func (m *memRides) list(limit int, match func(model.Ride) bool) []model.Ride {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Ride
	for _, r := range m.rides {
		if match(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (m *memRides) ListByRider(_ context.Context, id string, limit int) ([]model.Ride, error) {
	return m.list(limit, func(r model.Ride) bool { return r.RiderID == id }), nil
}

func (m *memRides) ListByDriver(_ context.Context, id string, limit int) ([]model.Ride, error) {
	return m.list(limit, func(r model.Ride) bool { return r.IsDriver(id) }), nil
}

func (m *memRides) ListPending(_ context.Context, limit int) ([]model.Ride, error) {
	return m.list(limit, func(r model.Ride) bool { return r.Status.Acceptable() }), nil
}

func (m *memRides) Transition(_ context.Context, id string, from []model.RideStatus, p model.RidePatch, ev model.RideEventRecord) (model.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[id]
	if !ok {
		return model.Ride{}, repository.ErrNotFound
	}
	if len(from) > 0 {
		allowed := false
		for _, s := range from {
			allowed = allowed || s == r.Status
		}
		if !allowed {
			return model.Ride{}, repository.ErrStaleStatus
		}
	}
	prev := r.Status
	if p.Status != nil {
		r.Status = *p.Status
	}
	if p.DriverID != nil {
		for _, o := range m.rides {
			if o.ID != id && o.IsDriver(*p.DriverID) && o.Status.DriverActive() && r.Status.DriverActive() {
				return model.Ride{}, repository.ErrActiveRide
			}
		}
		r.DriverID = p.DriverID
	}
	set := func(dst **time.Time, v *time.Time) {
		if v != nil {
			*dst = v
		}
	}
	if p.VehicleID != nil {
		r.VehicleID = p.VehicleID
	}
	if p.CurrentLocation != nil {
		r.CurrentLocation = p.CurrentLocation
	}
	if p.ActualDistance != nil {
		r.ActualDistance = p.ActualDistance
	}
	if p.ActualDuration != nil {
		r.ActualDuration = p.ActualDuration
	}
	if p.DriverEarnings != nil {
		r.DriverEarnings = *p.DriverEarnings
	}
	if p.PlatformCommission != nil {
		r.PlatformCommission = *p.PlatformCommission
	}
	if p.PaymentStatus != nil {
		r.PaymentStatus = *p.PaymentStatus
	}
	set(&r.AcceptedAt, p.AcceptedAt)
	set(&r.DriverArrivedAt, p.DriverArrivedAt)
	set(&r.StartedAt, p.StartedAt)
	set(&r.CompletedAt, p.CompletedAt)
	set(&r.CancelledAt, p.CancelledAt)
	if p.CancelledBy != nil {
		r.CancelledBy = p.CancelledBy
	}
	if p.CancellationReason != nil {
		r.CancellationReason = p.CancellationReason
	}
	r.UpdatedAt = m.now()
	m.rides[id] = r
	if p.Status != nil {
		ev.RideID, ev.FromStatus, ev.ToStatus, ev.CreatedAt = id, &prev, r.Status, m.now()
		m.events = append(m.events, ev)
	}
	return r, nil
}

func (m *memRides) Events(_ context.Context, id string) ([]model.RideEventRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.RideEventRecord
	for _, e := range m.events {
		if e.RideID == id {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memRides) put(r model.Ride) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rides[r.ID] = r
}

// memAccounts mirrors AccountRepo including the lockout bookkeeping.
type memAccounts struct {
	mu       sync.Mutex
	seq      int
	accounts map[string]model.Account
	now      func() time.Time
	failErr  error
}

func newMemAccounts(now func() time.Time) *memAccounts {
	return &memAccounts{accounts: map[string]model.Account{}, now: now}
}

func (m *memAccounts) Create(_ context.Context, in model.NewAccount) (model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email := strings.ToLower(strings.TrimSpace(in.Email))
	for _, a := range m.accounts {
		if a.Email == email {
			return model.Account{}, repository.ErrEmailExists
		}
		if a.Phone == strings.TrimSpace(in.Phone) {
			return model.Account{}, repository.ErrPhoneExists
		}
	}
	m.seq++
	a := model.Account{
		ID:           fmt.Sprintf("acc-%d", m.seq),
		Email:        email,
		Phone:        strings.TrimSpace(in.Phone),
		Name:         strings.TrimSpace(in.Name),
		PasswordHash: in.PasswordHash,
		Role:         in.Role,
		Status:       model.AccountStatusActive,
		Rating:       5,
		CreatedAt:    m.now(),
		UpdatedAt:    m.now(),
	}
	m.accounts[a.ID] = a
	return a, nil
}

func (m *memAccounts) add(a model.Account) model.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.Status == "" {
		a.Status = model.AccountStatusActive
	}
	m.accounts[a.ID] = a
	return a
}

func (m *memAccounts) GetByID(_ context.Context, id string) (model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return model.Account{}, repository.ErrNotFound
	}
	return a, nil
}

func (m *memAccounts) GetByEmail(_ context.Context, email string) (model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.Email == email {
			return a, nil
		}
	}
	return model.Account{}, repository.ErrNotFound
}

func (m *memAccounts) Update(_ context.Context, id string, p model.AccountPatch) (model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return model.Account{}, repository.ErrNotFound
	}
	if p.Phone != nil {
		for _, o := range m.accounts {
			if o.ID != id && o.Phone == *p.Phone {
				return model.Account{}, repository.ErrPhoneExists
			}
		}
		a.Phone = *p.Phone
	}
	if p.Name != nil {
		a.Name = *p.Name
	}
	if p.Role != nil {
		a.Role = *p.Role
	}
	if p.CNIC != nil {
		a.CNIC = p.CNIC
	}
	if p.DrivingLicenseNumber != nil {
		a.DrivingLicenseNumber = p.DrivingLicenseNumber
	}
	if p.Bio != nil {
		a.Bio = p.Bio
	}
	m.accounts[id] = a
	return a, nil
}

func (m *memAccounts) RecordLoginFailure(_ context.Context, id string, maxAttempts int, lockUntil time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	a := m.accounts[id]
	a.FailedLoginAttempts++
	if a.FailedLoginAttempts >= maxAttempts {
		a.AccountLockedUntil = &lockUntil
	}
	m.accounts[id] = a
	return nil
}

func (m *memAccounts) RecordLoginSuccess(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.accounts[id]
	now := m.now()
	a.FailedLoginAttempts, a.AccountLockedUntil, a.LastLoginAt = 0, nil, &now
	m.accounts[id] = a
	return nil
}

type memVehicles struct {
	mu       sync.Mutex
	vehicles map[string]model.Vehicle
}

func newMemVehicles() *memVehicles { return &memVehicles{vehicles: map[string]model.Vehicle{}} }

func (m *memVehicles) add(v model.Vehicle) model.Vehicle {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vehicles[v.ID] = v
	return v
}

func (m *memVehicles) GetByID(_ context.Context, id string) (model.Vehicle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vehicles[id]
	if !ok {
		return model.Vehicle{}, repository.ErrNotFound
	}
	return v, nil
}

func (m *memVehicles) FindEligibleByDriver(_ context.Context, driverID string) (model.Vehicle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.vehicles {
		if v.DriverID == driverID && v.Eligible() {
			return v, nil
		}
	}
	return model.Vehicle{}, repository.ErrNotFound
}

func (m *memVehicles) Create(_ context.Context, in model.NewVehicle) (model.Vehicle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	plate := repository.NormalizePlate(in.PlateNumber)
	for _, v := range m.vehicles {
		if v.PlateNumber == plate {
			return model.Vehicle{}, repository.ErrPlateExists
		}
	}
	v := model.Vehicle{
		ID:                 fmt.Sprintf("veh-%d", len(m.vehicles)+1),
		DriverID:           in.DriverID,
		Make:               in.Make,
		Model:              in.Model,
		Year:               in.Year,
		PlateNumber:        plate,
		VehicleType:        in.VehicleType,
		SeatingCapacity:    in.SeatingCapacity,
		IsActive:           true,
		VerificationStatus: model.VerificationPending,
	}
	m.vehicles[v.ID] = v
	return v, nil
}

func (m *memVehicles) ListByDriver(_ context.Context, driverID string) ([]model.Vehicle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Vehicle
	for _, v := range m.vehicles {
		if v.DriverID == driverID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *memVehicles) Update(_ context.Context, id string, p model.VehiclePatch) (model.Vehicle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vehicles[id]
	if !ok {
		return model.Vehicle{}, repository.ErrNotFound
	}
	if p.Make != nil {
		v.Make = *p.Make
	}
	if p.SeatingCapacity != nil {
		v.SeatingCapacity = *p.SeatingCapacity
	}
	if p.IsActive != nil {
		v.IsActive = *p.IsActive
	}
	m.vehicles[id] = v
	return v, nil
}

func (m *memVehicles) SetVerification(_ context.Context, id string, s model.VerificationStatus) (model.Vehicle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vehicles[id]
	if !ok {
		return model.Vehicle{}, repository.ErrNotFound
	}
	v.VerificationStatus = s
	v.IsVerified = s == model.VerificationApproved
	m.vehicles[id] = v
	return v, nil
}

func (m *memVehicles) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.vehicles[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.vehicles, id)
	return nil
}

// memCache is a map-backed Cache that records what was written.
type memCache struct {
	mu      sync.Mutex
	entries map[string]any
}

func newMemCache() *memCache { return &memCache{entries: map[string]any{}} }

func (c *memCache) GetJSON(_ context.Context, key string, dst any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	if !ok {
		return false
	}
	switch d := dst.(type) {
	case *model.Account:
		a, ok := v.(model.Account)
		*d = a
		return ok
	case *[]model.RideRequest:
		r, ok := v.([]model.RideRequest)
		*d = r
		return ok
	}
	return false
}

func (c *memCache) SetJSON(_ context.Context, key string, v any, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := v.(*model.Location); ok {
		v = *p
	}
	c.entries[key] = v
}

func (c *memCache) Delete(_ context.Context, keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.entries, k)
	}
}

func (c *memCache) DeletePrefix(_ context.Context, prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
		}
	}
}

func (c *memCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []queue.RideEvent
	err    error
}

func (n *recordingNotifier) Publish(_ context.Context, ev queue.RideEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return n.err
}

func (n *recordingNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.events))
	for i, e := range n.events {
		out[i] = e.Type
	}
	return out
}

// fixedClock is a settable clock for lockout and timestamp tests.
type fixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}
