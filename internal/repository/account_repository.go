package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/ride-hailing/internal/database"
	"github.com/iliyamo/ride-hailing/internal/model"
)

// AccountRepo persists rider and driver accounts.
type AccountRepo struct {
	DB  *database.DB
	Now func() time.Time
}

func NewAccountRepo(db *database.DB) *AccountRepo { return &AccountRepo{DB: db, Now: utcNow} }

const accountColumns = `id, email, phone, name, password_hash, role, is_verified, status,
	failed_login_attempts, account_locked_until, date_of_birth, gender, avatar, bio, address,
	cnic, driving_license_number, rating, last_login_at, created_at, updated_at`

func scanAccount(s rowScanner) (model.Account, error) {
	var (
		a                                         model.Account
		lockedUntil, lastLogin                    sql.NullTime
		dob, gender, avatar, bio, addr, cnic, dln sql.NullString
	)
	err := s.Scan(&a.ID, &a.Email, &a.Phone, &a.Name, &a.PasswordHash, &a.Role, &a.IsVerified, &a.Status,
		&a.FailedLoginAttempts, &lockedUntil, &dob, &gender, &avatar, &bio, &addr,
		&cnic, &dln, &a.Rating, &lastLogin, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return model.Account{}, notFound(err)
	}
	a.AccountLockedUntil = timePtr(lockedUntil)
	a.LastLoginAt = timePtr(lastLogin)
	a.DateOfBirth = strPtr(dob)
	a.Gender = strPtr(gender)
	a.Avatar = strPtr(avatar)
	a.Bio = strPtr(bio)
	a.Address = strPtr(addr)
	a.CNIC = strPtr(cnic)
	a.DrivingLicenseNumber = strPtr(dln)
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return a, nil
}

// Create inserts a new active account. Email is stored lower-cased.
func (r *AccountRepo) Create(ctx context.Context, in model.NewAccount) (model.Account, error) {
	now := r.Now()
	id := uuid.NewString()
	role := in.Role
	if role == "" {
		role = model.RoleRider
	}
	_, err := r.DB.ExecContext(ctx, r.DB.Rebind(
		`INSERT INTO accounts (id, email, phone, name, password_hash, role, is_verified, status,
			failed_login_attempts, date_of_birth, gender, rating, created_at, updated_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`),
		id, normalizeEmail(in.Email), strings.TrimSpace(in.Phone), strings.TrimSpace(in.Name), in.PasswordHash,
		string(role), false, string(model.AccountStatusActive), 0, nullStr(in.DateOfBirth), nullStr(in.Gender),
		0.0, now, now)
	if err != nil {
		return model.Account{}, accountUniqueErr(err)
	}
	return r.GetByID(ctx, id)
}

// GetByID fetches an account by id.
func (r *AccountRepo) GetByID(ctx context.Context, id string) (model.Account, error) {
	row := r.DB.QueryRowContext(ctx, r.DB.Rebind("SELECT "+accountColumns+" FROM accounts WHERE id=? LIMIT 1"), id)
	return scanAccount(row)
}

// GetByEmail fetches an account by normalized email.
func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (model.Account, error) {
	row := r.DB.QueryRowContext(ctx, r.DB.Rebind("SELECT "+accountColumns+" FROM accounts WHERE email=? LIMIT 1"),
		normalizeEmail(email))
	return scanAccount(row)
}

// GetByPhone fetches an account by phone number.
func (r *AccountRepo) GetByPhone(ctx context.Context, phone string) (model.Account, error) {
	row := r.DB.QueryRowContext(ctx, r.DB.Rebind("SELECT "+accountColumns+" FROM accounts WHERE phone=? LIMIT 1"),
		strings.TrimSpace(phone))
	return scanAccount(row)
}

// Update applies the non-nil fields of p and returns the fresh row.
func (r *AccountRepo) Update(ctx context.Context, id string, p model.AccountPatch) (model.Account, error) {
	if p.Empty() {
		return r.GetByID(ctx, id)
	}
	var (
		sets []string
		args []any
	)
	add := func(col string, v any) {
		sets = append(sets, col+"=?")
		args = append(args, v)
	}
	if p.Name != nil {
		add("name", strings.TrimSpace(*p.Name))
	}
	if p.Phone != nil {
		add("phone", strings.TrimSpace(*p.Phone))
	}
	if p.Avatar != nil {
		add("avatar", *p.Avatar)
	}
	if p.Bio != nil {
		add("bio", *p.Bio)
	}
	if p.Address != nil {
		add("address", *p.Address)
	}
	if p.Role != nil {
		add("role", string(*p.Role))
	}
	if p.CNIC != nil {
		add("cnic", *p.CNIC)
	}
	if p.DrivingLicenseNumber != nil {
		add("driving_license_number", *p.DrivingLicenseNumber)
	}
	add("updated_at", r.Now())
	args = append(args, id)

	res, err := r.DB.ExecContext(ctx, r.DB.Rebind("UPDATE accounts SET "+strings.Join(sets, ", ")+" WHERE id=?"), args...)
	if err != nil {
		return model.Account{}, accountUniqueErr(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return model.Account{}, ErrNotFound
	}
	return r.GetByID(ctx, id)
}

// RecordLoginFailure increments the failed-login counter and, once it
// reaches maxAttempts, locks the account until lockUntil. The lock column
// is assigned first so every dialect evaluates the CASE against the
// counter value before the increment.
func (r *AccountRepo) RecordLoginFailure(ctx context.Context, id string, maxAttempts int, lockUntil time.Time) error {
	_, err := r.DB.ExecContext(ctx, r.DB.Rebind(
		`UPDATE accounts
		    SET account_locked_until = CASE WHEN failed_login_attempts + 1 >= ? THEN ? ELSE account_locked_until END,
		        failed_login_attempts = failed_login_attempts + 1,
		        updated_at = ?
		  WHERE id = ?`),
		maxAttempts, lockUntil.UTC(), r.Now(), id)
	return err
}

// RecordLoginSuccess clears the failure counter and any lock and stamps
// the login time.
func (r *AccountRepo) RecordLoginSuccess(ctx context.Context, id string) error {
	now := r.Now()
	_, err := r.DB.ExecContext(ctx, r.DB.Rebind(
		`UPDATE accounts
		    SET failed_login_attempts = 0, account_locked_until = NULL, last_login_at = ?, updated_at = ?
		  WHERE id = ?`),
		now, now, id)
	return err
}

// SetStatus changes the account status. Used by operator tooling.
func (r *AccountRepo) SetStatus(ctx context.Context, id string, status model.AccountStatus) error {
	res, err := r.DB.ExecContext(ctx, r.DB.Rebind("UPDATE accounts SET status=?, updated_at=? WHERE id=?"),
		string(status), r.Now(), id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func normalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

func accountUniqueErr(err error) error {
	key, ok := uniqueKey(err)
	if !ok {
		return err
	}
	switch {
	case strings.Contains(key, "email"):
		return ErrEmailExists
	case strings.Contains(key, "phone"):
		return ErrPhoneExists
	}
	return err
}
