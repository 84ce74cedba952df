package config

import (
	"strings"
	"time"
)

// CacheConfig defines settings for the response cache middleware used on
// the ride history endpoints. Keys are always scoped to the caller so one
// account never sees another's cached page. When Enabled is false or no
// Redis client is configured, caching is disabled.
type CacheConfig struct {
	Enabled      bool
	Methods      map[string]bool
	TTL          time.Duration
	Prefix       string
	MaxBodyBytes int
}

// LoadCacheConfig reads CACHE_* variables. All methods are upper-cased.
func LoadCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:      envBool("CACHE_ENABLED", true),
		Methods:      parseMethods(getenv("CACHE_METHODS", "GET")),
		TTL:          envDur("CACHE_TTL", 30*time.Second),
		Prefix:       getenv("CACHE_PREFIX", "cache"),
		MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 1<<20),
	}
}

// CacheTTLs are the expiries of the domain cache entries.
type CacheTTLs struct {
	Session        time.Duration // session:<accountId>
	DriverLocation time.Duration // driver:location:<driverId>
	RideRequests   time.Duration // ride:requests:<limit>
}

// LoadCacheTTLs reads CACHE_TTL_* variables.
func LoadCacheTTLs() CacheTTLs {
	return CacheTTLs{
		Session:        envDur("CACHE_TTL_SESSION", time.Hour),
		DriverLocation: envDur("CACHE_TTL_DRIVER_LOCATION", 30*time.Second),
		RideRequests:   envDur("CACHE_TTL_RIDE_REQUESTS", 120*time.Second),
	}
}

func parseMethods(s string) map[string]bool {
	m := map[string]bool{}
	for _, p := range splitList(s) {
		m[strings.ToUpper(p)] = true
	}
	return m
}
