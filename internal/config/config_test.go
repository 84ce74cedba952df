package config

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestLoadSQLiteSkipsServerSettings(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("APP_PORT", "8080")
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("ACCESS_TOKEN_TTL_MIN", "60")
	t.Setenv("BCRYPT_COST", "10")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_PATH", ":memory:")
	t.Setenv("CORS_ORIGIN", "https://app.example.com, https://admin.example.com")
	t.Setenv("LOGIN_LOCKOUT", "15m")

	cfg := Load()
	if cfg.DBPath != ":memory:" || cfg.DBHost != "" {
		t.Fatalf("db settings %+v", cfg)
	}
	if cfg.CommissionRate != 0.20 || cfg.LoginMaxAttempts != 5 || cfg.LoginLockout != 15*time.Minute {
		t.Fatalf("defaults %+v", cfg)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://admin.example.com" {
		t.Fatalf("origins %q", cfg.CORSOrigins)
	}
}

func TestEnvHelpersFallBack(t *testing.T) {
	t.Setenv("X_BOOL", "maybe")
	t.Setenv("X_INT", "ten")
	t.Setenv("X_DUR", "5")
	if !envBool("X_BOOL", true) || envInt("X_INT", 7) != 7 || envDur("X_DUR", time.Second) != time.Second {
		t.Fatal("unparseable values did not fall back")
	}
	t.Setenv("X_BOOL", "off")
	if envBool("X_BOOL", true) {
		t.Fatal("off parsed as true")
	}
	if got := splitList(" a, ,b ,"); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("splitList = %q", got)
	}
}

func TestRateLimitLoaders(t *testing.T) {
	api := LoadRateLimitConfig()
	if api.Capacity != 60 || api.KeyStrategy != "ip_user_route" || api.Prefix != "rl" {
		t.Fatalf("api limiter %+v", api)
	}
	t.Setenv("AUTH_RATE_LIMIT_BURST", "3")
	t.Setenv("AUTH_RATE_LIMIT_REFILL_EVERY", "1m")
	t.Setenv("AUTH_RATE_LIMIT_TTL", "1s")
	auth := LoadAuthRateLimitConfig()
	if auth.Capacity != 3 || auth.RefillTokens != 1 || auth.RefillInterval != time.Minute {
		t.Fatalf("auth limiter %+v", auth)
	}
	if auth.TTL != 5*time.Minute {
		t.Fatalf("ttl %v not raised to five refill intervals", auth.TTL)
	}
}

func TestCacheAndQueueLoaders(t *testing.T) {
	t.Setenv("CACHE_METHODS", "get, head")
	cc := LoadCacheConfig()
	if !cc.Methods["GET"] || !cc.Methods["HEAD"] || cc.Methods["POST"] || cc.TTL != 30*time.Second {
		t.Fatalf("cache config %+v", cc)
	}
	ttls := LoadCacheTTLs()
	if ttls.Session != time.Hour || ttls.RideRequests != 2*time.Minute {
		t.Fatalf("ttls %+v", ttls)
	}

	t.Setenv("RABBITMQ_URL", "")
	t.Setenv("AMQP_URL", "amqp://broker:5672/")
	q := LoadQueueConfig()
	if q.URL != "amqp://broker:5672/" || q.Enabled || q.Queue != "ride.events" {
		t.Fatalf("queue config %+v", q)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(&buf, "warn", "json").Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("info written at warn level: %s", buf.String())
	}
	NewLogger(&buf, "debug", "text").Debug("shown", "ride_id", "r1")
	if !strings.Contains(buf.String(), "ride_id=r1") {
		t.Fatalf("text output %q", buf.String())
	}
}
