package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// RateLimitConfig configures one token bucket limiter. The API and the
// credential endpoints each get their own bucket so login attempts are
// throttled harder than ordinary traffic.
type RateLimitConfig struct {
	Enabled        bool
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
	KeyStrategy    string
	Prefix         string
	Debug          bool
}

// LoadRateLimitConfig reads the general API limiter (RATE_LIMIT_*).
func LoadRateLimitConfig() RateLimitConfig {
	return loadRateLimit("RATE_LIMIT_", RateLimitConfig{
		Enabled:        true,
		Capacity:       60,
		RefillTokens:   1,
		RefillInterval: time.Second,
		TTL:            10 * time.Minute,
		KeyStrategy:    "ip_user_route",
		Prefix:         "rl",
	})
}

// LoadAuthRateLimitConfig reads the limiter guarding /auth/register and
// /auth/login (AUTH_RATE_LIMIT_*). It keys by client IP.
func LoadAuthRateLimitConfig() RateLimitConfig {
	return loadRateLimit("AUTH_RATE_LIMIT_", RateLimitConfig{
		Enabled:        true,
		Capacity:       10,
		RefillTokens:   1,
		RefillInterval: 6 * time.Second,
		TTL:            10 * time.Minute,
		KeyStrategy:    "ip_route",
		Prefix:         "rl:auth",
	})
}

func loadRateLimit(p string, def RateLimitConfig) RateLimitConfig {
	c := RateLimitConfig{
		Enabled:        envBool(p+"ENABLED", def.Enabled),
		Capacity:       envInt(p+"CAPACITY", def.Capacity),
		RefillTokens:   envInt(p+"REFILL_TOKENS", def.RefillTokens),
		RefillInterval: envDur(p+"REFILL_INTERVAL", def.RefillInterval),
		TTL:            envDur(p+"TTL", def.TTL),
		KeyStrategy:    envStr(p+"KEY_STRATEGY", def.KeyStrategy),
		Prefix:         envStr(p+"PREFIX", def.Prefix),
		Debug:          envBool(p+"DEBUG", false),
	}
	if b := envInt(p+"BURST", -1); b > 0 {
		c.Capacity = b
	}
	if every := envDur(p+"REFILL_EVERY", 0); every > 0 {
		c.RefillTokens = 1
		c.RefillInterval = every
	}
	if c.Capacity < 1 {
		c.Capacity = 1
	}
	if c.RefillTokens < 1 {
		c.RefillTokens = 1
	}
	if c.RefillInterval <= 0 {
		c.RefillInterval = time.Second
	}
	if minTTL := 5 * c.RefillInterval; c.TTL < minTTL {
		c.TTL = minTTL
	}
	return c
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	switch strings.ToLower(os.Getenv(k)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	if n, err := strconv.Atoi(os.Getenv(k)); err == nil {
		return n
	}
	return d
}

func envFloat(k string, d float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(k), 64); err == nil {
		return f
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	if dur, err := time.ParseDuration(os.Getenv(k)); err == nil {
		return dur
	}
	return d
}

func getenv(key, def string) string { return envStr(key, def) }

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
