package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/iliyamo/ride-hailing/internal/model"
	"github.com/iliyamo/ride-hailing/internal/service"
)

type stubAuth struct {
	err      error
	result   service.AuthResult
	register service.RegisterInput
	email    string
	password string
	patch    model.AccountPatch
	id       string
}

func (s *stubAuth) Register(_ context.Context, in service.RegisterInput) (service.AuthResult, error) {
	s.register = in
	return s.result, s.err
}

func (s *stubAuth) Login(_ context.Context, email, password string) (service.AuthResult, error) {
	s.email, s.password = email, password
	return s.result, s.err
}

func (s *stubAuth) Profile(_ context.Context, id string) (model.Account, error) {
	s.id = id
	return s.result.User, s.err
}

func (s *stubAuth) UpdateProfile(_ context.Context, id string, p model.AccountPatch) (model.Account, error) {
	s.id, s.patch = id, p
	return s.result.User, s.err
}

func TestRegisterAndLogin(t *testing.T) {
	stub := &stubAuth{result: service.AuthResult{
		Token:     "tok",
		ExpiresAt: time.Date(2025, 1, 1, 1, 0, 0, 0, time.UTC),
		User:      model.Account{ID: "rider-a", Email: "a@example.com", PasswordHash: "secret-hash", Role: model.RoleRider},
	}}
	h := NewAuthHandler(stub)

	rec, out := serve(t, nil, http.MethodPost, "/auth/register", "/auth/register",
		`{"name":"Ayesha","email":"a@example.com","password":"secret1","phone":"+923001112233"}`, h.Register)
	if rec.Code != http.StatusCreated || out["message"] != "User registered successfully" || out["token"] != "tok" {
		t.Fatalf("register %d %v", rec.Code, out)
	}
	user := out["user"].(map[string]any)
	if _, leaked := user["PasswordHash"]; leaked {
		t.Fatal("password hash serialized")
	}
	if stub.register.Phone != "+923001112233" || stub.register.Name != "Ayesha" {
		t.Fatalf("register input %+v", stub.register)
	}

	rec, out = serve(t, nil, http.MethodPost, "/auth/login", "/auth/login", `{"email":"a@example.com","password":"secret1"}`, h.Login)
	if rec.Code != http.StatusOK || out["message"] != "Login successful" {
		t.Fatalf("login %d %v", rec.Code, out)
	}
	if stub.email != "a@example.com" || stub.password != "secret1" {
		t.Fatalf("credentials %q %q", stub.email, stub.password)
	}
}

func TestLoginLockedIs423(t *testing.T) {
	stub := &stubAuth{err: &service.Error{Kind: service.ErrLocked, Message: "Account is locked"}}
	rec, out := serve(t, nil, http.MethodPost, "/auth/login", "/auth/login", `{"email":"a@example.com","password":"x"}`, NewAuthHandler(stub).Login)
	if rec.Code != http.StatusLocked || out["message"] != "Account is locked" {
		t.Fatalf("got %d %v", rec.Code, out)
	}
}

func TestProfileUsesCaller(t *testing.T) {
	stub := &stubAuth{result: service.AuthResult{User: model.Account{ID: "driver-b", Role: model.RoleDriver}}}
	h := NewAuthHandler(stub)

	rec, out := serve(t, &driver, http.MethodGet, "/auth/profile", "/auth/profile", "", h.Profile)
	if rec.Code != http.StatusOK || stub.id != "driver-b" {
		t.Fatalf("profile %d id=%q", rec.Code, stub.id)
	}
	if out["user"].(map[string]any)["role"] != "driver" {
		t.Fatalf("user %v", out["user"])
	}

	rec, _ = serve(t, &rider, http.MethodPut, "/auth/profile", "/auth/profile",
		`{"role":"driver","cnic":"35202-1234567-1","drivingLicenseNumber":"LHR-99"}`, h.UpdateProfile)
	if rec.Code != http.StatusOK {
		t.Fatalf("update %d", rec.Code)
	}
	if stub.id != "rider-a" || stub.patch.Role == nil || *stub.patch.Role != model.RoleDriver || *stub.patch.DrivingLicenseNumber != "LHR-99" {
		t.Fatalf("patch %+v", stub.patch)
	}
	if stub.patch.Name != nil {
		t.Fatal("absent field became non-nil")
	}
}

type stubVehicles struct {
	err    error
	v      model.Vehicle
	input  service.VehicleInput
	patch  model.VehiclePatch
	lastID string
}

func (s *stubVehicles) List(context.Context, service.Caller) ([]model.Vehicle, error) {
	return []model.Vehicle{s.v}, s.err
}

func (s *stubVehicles) Get(_ context.Context, _ service.Caller, id string) (model.Vehicle, error) {
	s.lastID = id
	return s.v, s.err
}

func (s *stubVehicles) Create(_ context.Context, _ service.Caller, in service.VehicleInput) (model.Vehicle, error) {
	s.input = in
	return s.v, s.err
}

func (s *stubVehicles) Update(_ context.Context, _ service.Caller, id string, p model.VehiclePatch) (model.Vehicle, error) {
	s.lastID, s.patch = id, p
	return s.v, s.err
}

func (s *stubVehicles) Delete(_ context.Context, _ service.Caller, id string) error {
	s.lastID = id
	return s.err
}

func TestVehicleCreateDefaultsSeats(t *testing.T) {
	stub := &stubVehicles{v: model.Vehicle{ID: "veh-1", PlateNumber: "LEA-1234"}}
	h := NewVehicleHandler(stub)
	rec, out := serve(t, &driver, http.MethodPost, "/vehicles", "/vehicles",
		`{"make":"Toyota","model":"Corolla","year":2020,"plateNumber":"lea-1234","vehicleType":"sedan"}`, h.Create)
	if rec.Code != http.StatusCreated || out["message"] != "Vehicle registered successfully" {
		t.Fatalf("got %d %v", rec.Code, out)
	}
	if stub.input.SeatingCapacity != 4 || stub.input.VehicleType != model.VehicleTypeSedan || stub.input.Color != nil {
		t.Fatalf("input %+v", stub.input)
	}
}

func TestVehicleUpdateAndDelete(t *testing.T) {
	stub := &stubVehicles{v: model.Vehicle{ID: "veh-1"}}
	h := NewVehicleHandler(stub)

	rec, _ := serve(t, &driver, http.MethodPut, "/vehicles/:id", "/vehicles/veh-1", `{"isActive":false}`, h.Update)
	if rec.Code != http.StatusOK || stub.lastID != "veh-1" || stub.patch.IsActive == nil || *stub.patch.IsActive {
		t.Fatalf("update %d %+v", rec.Code, stub.patch)
	}
	if stub.patch.Make != nil {
		t.Fatal("absent make became non-nil")
	}

	stub.err = &service.Error{Kind: service.ErrConflict, Message: "Vehicle is assigned to an active ride"}
	rec, out := serve(t, &driver, http.MethodDelete, "/vehicles/:id", "/vehicles/veh-1", "", h.Delete)
	if rec.Code != http.StatusBadRequest || out["message"] != "Vehicle is assigned to an active ride" {
		t.Fatalf("delete %d %v", rec.Code, out)
	}
}

type pingFunc func(context.Context) error

func (f pingFunc) PingContext(ctx context.Context) error { return f(ctx) }

type probe struct {
	enabled bool
	err     error
}

func (p probe) Enabled() bool              { return p.enabled }
func (p probe) Ping(context.Context) error { return p.err }

func TestHealth(t *testing.T) {
	up := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("dial tcp: refused") })

	cases := []struct {
		name      string
		db        Pinger
		cache     CacheProbe
		code      int
		wantDB    string
		wantCache string
	}{
		{"no cache", up, nil, http.StatusOK, "connected", "disabled"},
		{"cache up", up, probe{enabled: true}, http.StatusOK, "connected", "connected"},
		{"cache down", up, probe{enabled: true, err: errors.New("eof")}, http.StatusOK, "connected", "error"},
		{"db down", down, probe{}, http.StatusServiceUnavailable, "disconnected", "disabled"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHealthHandler(tc.db, tc.cache)
			rec, out := serve(t, nil, http.MethodGet, "/health", "/health", "", h.Health)
			if rec.Code != tc.code || out["database"] != tc.wantDB || out["cache"] != tc.wantCache {
				t.Fatalf("got %d %v", rec.Code, out)
			}
		})
	}
}
