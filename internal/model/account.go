package model

import "time"

// Role is what an account may do in the marketplace.
type Role string

const (
	RoleRider  Role = "rider"
	RoleDriver Role = "driver"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool { return r == RoleRider || r == RoleDriver }

// AccountStatus gates access independently of credentials.
type AccountStatus string

const (
	AccountStatusActive    AccountStatus = "active"
	AccountStatusInactive  AccountStatus = "inactive"
	AccountStatusSuspended AccountStatus = "suspended"
	AccountStatusBanned    AccountStatus = "banned"
)

// Valid reports whether s is a known account status.
func (s AccountStatus) Valid() bool {
	switch s {
	case AccountStatusActive, AccountStatusInactive, AccountStatusSuspended, AccountStatusBanned:
		return true
	}
	return false
}

// Account mirrors the `accounts` table. PasswordHash never leaves the
// process; it is excluded from JSON.
//
// Fields:
//
//	ID                   – uuid primary key.
//	Email                – unique, stored lower-cased.
//	Phone                – unique, trimmed.
//	Role                 – rider or driver; rider may become driver, never the reverse.
//	IsVerified           – contact details verified.
//	Status               – only active accounts may authenticate.
//	FailedLoginAttempts  – consecutive password failures.
//	AccountLockedUntil   – login refused until this instant when set.
//	Rating               – average rating received from counterparties.
//	CNIC / DrivingLicenseNumber – driver credentials supplied on onboarding.
type Account struct {
	ID                   string        `json:"id"`
	Email                string        `json:"email"`
	Phone                string        `json:"phone"`
	Name                 string        `json:"name"`
	PasswordHash         string        `json:"-"`
	Role                 Role          `json:"role"`
	IsVerified           bool          `json:"isVerified"`
	Status               AccountStatus `json:"status"`
	FailedLoginAttempts  int           `json:"-"`
	AccountLockedUntil   *time.Time    `json:"-"`
	DateOfBirth          *string       `json:"dateOfBirth"`
	Gender               *string       `json:"gender"`
	Avatar               *string       `json:"avatar"`
	Bio                  *string       `json:"bio"`
	Address              *string       `json:"address"`
	CNIC                 *string       `json:"cnic,omitempty"`
	DrivingLicenseNumber *string       `json:"drivingLicenseNumber,omitempty"`
	Rating               float64       `json:"rating"`
	LastLoginAt          *time.Time    `json:"lastLoginAt"`
	CreatedAt            time.Time     `json:"createdAt"`
	UpdatedAt            time.Time     `json:"updatedAt"`
}

// Locked reports whether the account is inside a lockout window at now.
func (a Account) Locked(now time.Time) bool {
	return a.AccountLockedUntil != nil && a.AccountLockedUntil.After(now)
}

// HasDriverCredentials reports whether onboarding documents are on file.
func (a Account) HasDriverCredentials() bool {
	return a.CNIC != nil && *a.CNIC != "" && a.DrivingLicenseNumber != nil && *a.DrivingLicenseNumber != ""
}

// NewAccount carries the columns written on registration.
type NewAccount struct {
	Email        string
	Phone        string
	Name         string
	PasswordHash string
	Role         Role
	DateOfBirth  *string
	Gender       *string
}

// AccountPatch is the explicit profile update contract. A nil field leaves
// the column untouched.
type AccountPatch struct {
	Name                 *string
	Phone                *string
	Avatar               *string
	Bio                  *string
	Address              *string
	Role                 *Role
	CNIC                 *string
	DrivingLicenseNumber *string
}

// Empty reports whether the patch writes nothing.
func (p AccountPatch) Empty() bool { return p == (AccountPatch{}) }

// RiderSummary is the redacted view of a rider shown to drivers.
type RiderSummary struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Phone  string  `json:"phone"`
	Rating float64 `json:"rating"`
}

// Summary returns the redacted rider view of a.
func (a Account) Summary() RiderSummary {
	return RiderSummary{ID: a.ID, Name: a.Name, Phone: a.Phone, Rating: a.Rating}
}
