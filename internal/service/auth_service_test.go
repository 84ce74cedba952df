package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/iliyamo/ride-hailing/internal/cache"
	"github.com/iliyamo/ride-hailing/internal/model"
	"github.com/iliyamo/ride-hailing/internal/utils"
)

func newAuthFixture(t *testing.T) (*AuthService, *memAccounts, *memCache, *fixedClock) {
	t.Helper()
	clock := &fixedClock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	accounts := newMemAccounts(clock.Now)
	c := newMemCache()
	svc := NewAuthService(accounts, AuthOptions{
		JWTSecret:    "test-secret",
		AccessTTLMin: 15,
		BcryptCost:   4,
		Cache:        c,
		Now:          clock.Now,
	})
	return svc, accounts, c, clock
}

func validRegistration() RegisterInput {
	return RegisterInput{Name: "Ayesha Khan", Email: "Ayesha@Example.com", Password: "secret1", Phone: "+923001112233"}
}

func TestRegisterCreatesRiderAndToken(t *testing.T) {
	svc, _, c, _ := newAuthFixture(t)
	res, err := svc.Register(context.Background(), validRegistration())
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if res.User.Role != model.RoleRider || res.User.Email != "ayesha@example.com" {
		t.Fatalf("user %+v", res.User)
	}
	claims, err := utils.ParseAccessToken("test-secret", res.Token)
	if err != nil || claims.Subject != res.User.ID || claims.Role != "rider" {
		t.Fatalf("token claims %+v, %v", claims, err)
	}
	if !c.has(cache.SessionKey(res.User.ID)) {
		t.Fatal("session not cached")
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	svc, _, _, _ := newAuthFixture(t)
	ctx := context.Background()
	if _, err := svc.Register(ctx, validRegistration()); err != nil {
		t.Fatal(err)
	}

	dupEmail := validRegistration()
	dupEmail.Phone = "+923009998877"
	_, err := svc.Register(ctx, dupEmail)
	wantKind(t, err, ErrInvalid)
	if MessageOf(err) != "User with this email already exists" {
		t.Fatalf("message = %q", MessageOf(err))
	}

	dupPhone := validRegistration()
	dupPhone.Email = "other@example.com"
	_, err = svc.Register(ctx, dupPhone)
	wantKind(t, err, ErrInvalid)
	if MessageOf(err) != "User with this phone number already exists" {
		t.Fatalf("message = %q", MessageOf(err))
	}
}

func TestRegisterValidation(t *testing.T) {
	svc, _, _, _ := newAuthFixture(t)
	cases := map[string]func(*RegisterInput){
		"short name":     func(in *RegisterInput) { in.Name = "A" },
		"bad email":      func(in *RegisterInput) { in.Email = "not-an-email" },
		"short password": func(in *RegisterInput) { in.Password = "12345" },
		"missing phone":  func(in *RegisterInput) { in.Phone = "" },
		"bad phone":      func(in *RegisterInput) { in.Phone = "call me maybe" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := validRegistration()
			mutate(&in)
			_, err := svc.Register(context.Background(), in)
			wantKind(t, err, ErrInvalid)
		})
	}
}

func TestLoginLockout(t *testing.T) {
	svc, accounts, _, clock := newAuthFixture(t)
	ctx := context.Background()
	reg, err := svc.Register(ctx, validRegistration())
	if err != nil {
		t.Fatal(err)
	}

	for i := 1; i <= 5; i++ {
		_, err := svc.Login(ctx, "ayesha@example.com", "wrong-password")
		wantKind(t, err, ErrUnauthorized)
		clock.Advance(time.Second)
	}
	fifth := clock.Now().Add(-time.Second)
	acc, _ := accounts.GetByID(ctx, reg.User.ID)
	if acc.FailedLoginAttempts != 5 || acc.AccountLockedUntil == nil || !acc.AccountLockedUntil.Equal(fifth.Add(30*time.Minute)) {
		t.Fatalf("lock state attempts=%d until=%v", acc.FailedLoginAttempts, acc.AccountLockedUntil)
	}

	_, err = svc.Login(ctx, "ayesha@example.com", "secret1")
	wantKind(t, err, ErrLocked)

	clock.t = fifth.Add(30*time.Minute + time.Second)
	res, err := svc.Login(ctx, "ayesha@example.com", "secret1")
	if err != nil {
		t.Fatalf("login after lock expiry: %v", err)
	}
	acc, _ = accounts.GetByID(ctx, res.User.ID)
	if acc.FailedLoginAttempts != 0 || acc.AccountLockedUntil != nil || acc.LastLoginAt == nil {
		t.Fatalf("success did not reset: %+v", acc)
	}
}

func TestLoginSuccessResetsCounter(t *testing.T) {
	svc, accounts, _, _ := newAuthFixture(t)
	ctx := context.Background()
	reg, _ := svc.Register(ctx, validRegistration())
	for i := 0; i < 3; i++ {
		_, _ = svc.Login(ctx, "ayesha@example.com", "nope")
	}
	if _, err := svc.Login(ctx, "AYESHA@example.com ", "secret1"); err != nil {
		t.Fatal(err)
	}
	acc, _ := accounts.GetByID(ctx, reg.User.ID)
	if acc.FailedLoginAttempts != 0 {
		t.Fatalf("attempts = %d", acc.FailedLoginAttempts)
	}
}

func TestLoginCheckOrder(t *testing.T) {
	svc, accounts, _, clock := newAuthFixture(t)
	ctx := context.Background()
	reg, _ := svc.Register(ctx, validRegistration())

	acc, _ := accounts.GetByID(ctx, reg.User.ID)
	acc.Status = model.AccountStatusSuspended
	accounts.add(acc)
	_, err := svc.Login(ctx, "ayesha@example.com", "wrong")
	wantKind(t, err, ErrForbidden)

	until := clock.Now().Add(time.Hour)
	acc.AccountLockedUntil = &until
	accounts.add(acc)
	_, err = svc.Login(ctx, "ayesha@example.com", "wrong")
	wantKind(t, err, ErrLocked)

	_, err = svc.Login(ctx, "nobody@example.com", "secret1")
	wantKind(t, err, ErrUnauthorized)
}

func TestLoginBookkeepingFailureIsSwallowed(t *testing.T) {
	svc, accounts, _, _ := newAuthFixture(t)
	ctx := context.Background()
	if _, err := svc.Register(ctx, validRegistration()); err != nil {
		t.Fatal(err)
	}
	accounts.failErr = errors.New("write timeout")
	_, err := svc.Login(ctx, "ayesha@example.com", "wrong")
	wantKind(t, err, ErrUnauthorized)
}

func TestUpdateProfileDriverOnboarding(t *testing.T) {
	svc, _, c, _ := newAuthFixture(t)
	ctx := context.Background()
	reg, _ := svc.Register(ctx, validRegistration())
	driver := model.RoleDriver

	_, err := svc.UpdateProfile(ctx, reg.User.ID, model.AccountPatch{Role: &driver})
	wantKind(t, err, ErrInvalid)

	cnic, licence := "35202-1234567-1", "LHR-998877"
	got, err := svc.UpdateProfile(ctx, reg.User.ID, model.AccountPatch{Role: &driver, CNIC: &cnic, DrivingLicenseNumber: &licence})
	if err != nil {
		t.Fatal(err)
	}
	if got.Role != model.RoleDriver {
		t.Fatalf("role = %s", got.Role)
	}
	if c.has(cache.SessionKey(reg.User.ID)) {
		t.Fatal("session cache not invalidated")
	}

	rider := model.RoleRider
	_, err = svc.UpdateProfile(ctx, reg.User.ID, model.AccountPatch{Role: &rider})
	wantKind(t, err, ErrInvalid)
}

func TestProfileServedFromCache(t *testing.T) {
	svc, accounts, _, _ := newAuthFixture(t)
	ctx := context.Background()
	reg, _ := svc.Register(ctx, validRegistration())

	acc, _ := accounts.GetByID(ctx, reg.User.ID)
	acc.Name = "Renamed Directly"
	accounts.add(acc)

	got, err := svc.Profile(ctx, reg.User.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "Ayesha Khan" {
		t.Fatalf("expected cached profile, got %q", got.Name)
	}
	_, err = svc.Profile(ctx, "missing")
	wantKind(t, err, ErrNotFound)
}
