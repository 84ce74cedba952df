package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"time"
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable.
type Config struct {
	Env  string // application environment (e.g. "dev", "prod")
	Port string // HTTP port to listen on

	DBDriver string // mysql | postgres | sqlite
	DBUser   string // database username
	DBPass   string // database password (optional)
	DBHost   string // database host address
	DBPort   string // database port number
	DBName   string // database name
	DBPath   string // sqlite file, ":memory:" for an ephemeral store

	JWTSecret    string // secret used to sign JWTs
	AccessTTLMin int    // access token time-to-live in minutes
	BcryptCost   int    // bcrypt cost for password hashing

	LoginMaxAttempts int           // consecutive failures before lockout
	LoginLockout     time.Duration // how long a locked account stays locked

	CommissionRate float64 // platform share of a completed fare
	HistoryLimit   int     // default page size of ride history
	RequestsLimit  int     // default page size of pending ride requests

	LogLevel    string // debug | info | warn | error
	LogFormat   string // json | text
	CORSOrigins []string
	AutoMigrate bool // apply the embedded schema on start
}

// Load reads configuration values from environment variables and returns a
// Config. Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message. Connection settings
// are only required for the selected DB_DRIVER.
func Load() Config {
	cfg := Config{
		Env:              must("APP_ENV"),
		Port:             must("APP_PORT"),
		DBDriver:         getenv("DB_DRIVER", "mysql"),
		JWTSecret:        must("JWT_SECRET"),
		AccessTTLMin:     mustInt("ACCESS_TOKEN_TTL_MIN"),
		BcryptCost:       mustInt("BCRYPT_COST"),
		LoginMaxAttempts: envInt("LOGIN_MAX_ATTEMPTS", 5),
		LoginLockout:     envDur("LOGIN_LOCKOUT", 30*time.Minute),
		CommissionRate:   envFloat("PLATFORM_COMMISSION_RATE", 0.20),
		HistoryLimit:     envInt("RIDE_HISTORY_LIMIT", 50),
		RequestsLimit:    envInt("RIDE_REQUESTS_LIMIT", 20),
		LogLevel:         getenv("LOG_LEVEL", "info"),
		LogFormat:        getenv("LOG_FORMAT", "json"),
		CORSOrigins:      splitList(getenv("CORS_ORIGIN", "*")),
		AutoMigrate:      envBool("DB_AUTO_MIGRATE", false),
	}
	switch cfg.DBDriver {
	case "sqlite", "sqlite3":
		cfg.DBPath = getenv("DB_PATH", "ridehail.db")
	default:
		cfg.DBUser = must("DB_USER")
		cfg.DBPass = os.Getenv("DB_PASS") // empty allowed
		cfg.DBHost = must("DB_HOST")
		cfg.DBPort = must("DB_PORT")
		cfg.DBName = must("DB_NAME")
	}
	if cfg.CommissionRate < 0 || cfg.CommissionRate > 1 {
		log.Fatalf("PLATFORM_COMMISSION_RATE must be within [0,1], got %v", cfg.CommissionRate)
	}
	return cfg
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
