// Package repository holds the SQL adapters for accounts, vehicles and rides.
// Lookups never hide failures: an absent row is ErrNotFound, anything else is
// a wrapped driver error, so callers can tell "absent" from "backend down".
package repository

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/ride-hailing/internal/database"
)

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrEmailExists and ErrPhoneExists report a duplicate account contact.
	ErrEmailExists = errors.New("email already exists")
	ErrPhoneExists = errors.New("phone already exists")

	// ErrPlateExists reports a duplicate vehicle plate number.
	ErrPlateExists = errors.New("plate number already exists")

	// ErrActiveRide is returned when the storage backstop rejects a second
	// open ride for the same rider or driver.
	ErrActiveRide = errors.New("participant already has an active ride")

	// ErrStaleStatus is returned by Transition when the ride is no longer
	// in one of the expected statuses.
	ErrStaleStatus = errors.New("ride status changed")
)

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// uniqueKey returns the lower-cased violation detail when err is a unique
// constraint failure.
func uniqueKey(err error) (string, bool) {
	detail, ok := database.UniqueViolation(err)
	return strings.ToLower(detail), ok
}
