package database

import (
	"errors"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// UniqueViolation reports whether err is a unique-constraint failure from
// any supported driver. The returned detail names the violated key or
// column so callers can tell which uniqueness rule fired.
func UniqueViolation(err error) (detail string, ok bool) {
	if err == nil {
		return "", false
	}
	var my *mysql.MySQLError
	if errors.As(err, &my) {
		// 1062: duplicate entry for key
		return my.Message, my.Number == 1062
	}
	var pg *pgconn.PgError
	if errors.As(err, &pg) {
		return pg.ConstraintName + " " + pg.Detail, pg.Code == "23505"
	}
	var lite *sqlite.Error
	if errors.As(err, &lite) {
		code := lite.Code()
		return lite.Error(), code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return "", false
}
