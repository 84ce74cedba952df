package cache

import "strconv"

// Key layout shared by every writer and reader of the cache.
const (
	sessionPrefix        = "session:"
	driverLocationPrefix = "driver:location:"
	rideRequestsPrefix   = "ride:requests:"
)

// SessionKey caches the public profile of a signed-in account.
func SessionKey(accountID string) string { return sessionPrefix + accountID }

// DriverLocationKey holds the last position reported by a driver.
func DriverLocationKey(driverID string) string { return driverLocationPrefix + driverID }

// RideRequestsKey caches the enriched pending-request list for one page size.
func RideRequestsKey(limit int) string { return rideRequestsPrefix + strconv.Itoa(limit) }

// RideRequestsPrefix matches every cached pending-request page.
func RideRequestsPrefix() string { return rideRequestsPrefix }
