package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Driver names the relational backend selected at deployment time.
type Driver string

const (
	MySQL    Driver = "mysql"
	Postgres Driver = "postgres"
	SQLite   Driver = "sqlite"
)

// ParseDriver normalises a configured driver name.
func ParseDriver(s string) (Driver, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "mysql":
		return MySQL, nil
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	}
	return "", fmt.Errorf("unsupported DB_DRIVER %q", s)
}

// DB is a connection pool bound to the SQL dialect of its driver.
type DB struct {
	*sql.DB
	Driver Driver
}

// Options describes how to reach the store.
type Options struct {
	Driver Driver
	User   string
	Pass   string
	Host   string
	Port   string
	Name   string
	Path   string // sqlite file path or ":memory:"
}

// Open connects to the configured backend and verifies the connection.
func Open(opt Options) (*DB, error) {
	var (
		driverName string
		dsn        string
	)
	switch opt.Driver {
	case MySQL:
		auth := opt.User
		if opt.Pass != "" {
			auth = fmt.Sprintf("%s:%s", opt.User, opt.Pass)
		}
		// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
		dsn = fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
			auth, opt.Host, opt.Port, opt.Name)
		driverName = "mysql"
	case Postgres:
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(opt.User, opt.Pass),
			Host:     opt.Host + ":" + opt.Port,
			Path:     "/" + opt.Name,
			RawQuery: "sslmode=disable",
		}
		if opt.Pass == "" {
			u.User = url.User(opt.User)
		}
		dsn = u.String()
		driverName = "pgx"
	case SQLite:
		dsn = opt.Path
		if dsn == "" {
			dsn = "ridehail.db"
		}
		if dsn != ":memory:" {
			dsn = "file:" + dsn + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
		}
		driverName = "sqlite"
	default:
		return nil, fmt.Errorf("unsupported driver %q", opt.Driver)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}

	// Pool settings
	if opt.Driver == SQLite {
		// single writer; an in-memory database also lives on one connection
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	// Ping with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &DB{DB: db, Driver: opt.Driver}, nil
}

// Rebind rewrites `?` placeholders into the driver's native form.
func (d *DB) Rebind(query string) string {
	if d.Driver != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// Placeholders returns n comma separated `?` markers.
func Placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
