package service

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/iliyamo/ride-hailing/internal/cache"
	"github.com/iliyamo/ride-hailing/internal/model"
	"github.com/iliyamo/ride-hailing/internal/repository"
	"github.com/iliyamo/ride-hailing/internal/utils"
)

// AccountStore is the persistence contract for registration, login and
// profile management.
type AccountStore interface {
	Create(ctx context.Context, in model.NewAccount) (model.Account, error)
	GetByID(ctx context.Context, id string) (model.Account, error)
	GetByEmail(ctx context.Context, email string) (model.Account, error)
	Update(ctx context.Context, id string, p model.AccountPatch) (model.Account, error)
	RecordLoginFailure(ctx context.Context, id string, maxAttempts int, lockUntil time.Time) error
	RecordLoginSuccess(ctx context.Context, id string) error
}

// AuthOptions configures credentials and lockout.
type AuthOptions struct {
	JWTSecret    string
	AccessTTLMin int
	BcryptCost   int
	MaxAttempts  int           // consecutive failures before lockout
	Lockout      time.Duration // lockout window
	SessionTTL   time.Duration

	Cache  Cache
	Logger *slog.Logger
	Now    func() time.Time
}

// AuthService registers accounts, signs them in and maintains profiles.
type AuthService struct {
	accounts AccountStore
	opt      AuthOptions
	log      *slog.Logger
}

func NewAuthService(accounts AccountStore, opt AuthOptions) *AuthService {
	if opt.MaxAttempts <= 0 {
		opt.MaxAttempts = 5
	}
	if opt.Lockout <= 0 {
		opt.Lockout = 30 * time.Minute
	}
	if opt.SessionTTL <= 0 {
		opt.SessionTTL = time.Hour
	}
	if opt.AccessTTLMin <= 0 {
		opt.AccessTTLMin = 60
	}
	if opt.Cache == nil {
		opt.Cache = noCache{}
	}
	if opt.Now == nil {
		opt.Now = func() time.Time { return time.Now().UTC() }
	}
	logger := opt.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{accounts: accounts, opt: opt, log: logger.With("component", "auth")}
}

// AuthResult is returned by a successful register or login.
type AuthResult struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expiresAt"`
	User      model.Account `json:"user"`
}

// RegisterInput is the registration form.
type RegisterInput struct {
	Name        string
	Email       string
	Password    string
	Phone       string
	DateOfBirth *string
	Gender      *string
}

var phonePattern = regexp.MustCompile(`^[+]?[(]?[0-9]{1,4}[)]?[-\s.]?[(]?[0-9]{1,4}[)]?[-\s.]?[0-9]{1,9}$`)

func validName(name string) bool {
	n := utf8.RuneCountInString(strings.TrimSpace(name))
	return n >= 2 && n <= 50
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

func (in RegisterInput) validate() error {
	switch {
	case strings.TrimSpace(in.Name) == "":
		return newErr(ErrInvalid, "Name is required")
	case !validName(in.Name):
		return newErr(ErrInvalid, "Name must be between 2 and 50 characters")
	case !validEmail(strings.TrimSpace(in.Email)):
		return newErr(ErrInvalid, "Please provide a valid email")
	case len(in.Password) < 6:
		return newErr(ErrInvalid, "Password must be at least 6 characters")
	case strings.TrimSpace(in.Phone) == "":
		return newErr(ErrInvalid, "Phone number is required")
	case !phonePattern.MatchString(strings.TrimSpace(in.Phone)):
		return newErr(ErrInvalid, "Please provide a valid phone number")
	}
	return nil
}

// Register creates a rider account and signs it in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (AuthResult, error) {
	if err := in.validate(); err != nil {
		return AuthResult{}, err
	}
	hash, err := utils.HashPassword(in.Password, s.opt.BcryptCost)
	if err != nil {
		return AuthResult{}, s.internal("hash password", err)
	}
	acc, err := s.accounts.Create(ctx, model.NewAccount{
		Email:        in.Email,
		Phone:        in.Phone,
		Name:         in.Name,
		PasswordHash: hash,
		Role:         model.RoleRider,
		DateOfBirth:  in.DateOfBirth,
		Gender:       in.Gender,
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrEmailExists):
			return AuthResult{}, newErr(ErrInvalid, "User with this email already exists")
		case errors.Is(err, repository.ErrPhoneExists):
			return AuthResult{}, newErr(ErrInvalid, "User with this phone number already exists")
		}
		return AuthResult{}, s.internal("create account", err)
	}
	return s.signIn(ctx, acc)
}

// Login checks credentials. The lockout window is consulted before the
// account status, and both before the password.
func (s *AuthService) Login(ctx context.Context, email, password string) (AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !validEmail(email) {
		return AuthResult{}, newErr(ErrInvalid, "Please provide a valid email")
	}
	if password == "" {
		return AuthResult{}, newErr(ErrInvalid, "Password is required")
	}

	acc, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			utils.BurnPasswordCheck(password)
			return AuthResult{}, newErr(ErrUnauthorized, "Invalid email or password")
		}
		return AuthResult{}, s.internal("load account", err)
	}

	now := s.opt.Now()
	if acc.Locked(now) {
		return AuthResult{}, newErr(ErrLocked,
			"Account is locked. Please try again after "+acc.AccountLockedUntil.UTC().Format(time.RFC3339))
	}
	if acc.Status != model.AccountStatusActive {
		return AuthResult{}, newErr(ErrForbidden, "Account is "+string(acc.Status)+". Please contact support.")
	}
	if !utils.VerifyPassword(acc.PasswordHash, password) {
		if err := s.accounts.RecordLoginFailure(ctx, acc.ID, s.opt.MaxAttempts, now.Add(s.opt.Lockout)); err != nil {
			s.log.Warn("record login failure", "account_id", acc.ID, "err", err)
		}
		return AuthResult{}, newErr(ErrUnauthorized, "Invalid email or password")
	}

	if err := s.accounts.RecordLoginSuccess(ctx, acc.ID); err != nil {
		s.log.Warn("record login success", "account_id", acc.ID, "err", err)
	} else {
		acc.FailedLoginAttempts = 0
		acc.AccountLockedUntil = nil
		acc.LastLoginAt = &now
	}
	return s.signIn(ctx, acc)
}

func (s *AuthService) signIn(ctx context.Context, acc model.Account) (AuthResult, error) {
	tok, err := utils.NewAccessToken(s.opt.JWTSecret, acc.ID, string(acc.Role), s.opt.AccessTTLMin)
	if err != nil {
		return AuthResult{}, s.internal("issue token", err)
	}
	s.opt.Cache.SetJSON(ctx, cache.SessionKey(acc.ID), acc, s.opt.SessionTTL)
	return AuthResult{Token: tok.Token, ExpiresAt: tok.Exp, User: acc}, nil
}

// Profile returns the account, served from the session cache when present.
func (s *AuthService) Profile(ctx context.Context, accountID string) (model.Account, error) {
	var cached model.Account
	if s.opt.Cache.GetJSON(ctx, cache.SessionKey(accountID), &cached) && cached.ID == accountID {
		return cached, nil
	}
	acc, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Account{}, newErr(ErrNotFound, "User not found")
		}
		return model.Account{}, s.internal("load account", err)
	}
	s.opt.Cache.SetJSON(ctx, cache.SessionKey(acc.ID), acc, s.opt.SessionTTL)
	return acc, nil
}

// UpdateProfile applies a partial update. A rider becomes a driver only
// with a CNIC and a driving licence on file; a driver cannot go back.
func (s *AuthService) UpdateProfile(ctx context.Context, accountID string, p model.AccountPatch) (model.Account, error) {
	acc, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Account{}, newErr(ErrNotFound, "User not found")
		}
		return model.Account{}, s.internal("load account", err)
	}
	if p.Name != nil && !validName(*p.Name) {
		return model.Account{}, newErr(ErrInvalid, "Name must be between 2 and 50 characters")
	}
	if p.Phone != nil && !phonePattern.MatchString(strings.TrimSpace(*p.Phone)) {
		return model.Account{}, newErr(ErrInvalid, "Please provide a valid phone number")
	}
	if p.Role != nil {
		switch {
		case !p.Role.Valid():
			return model.Account{}, newErr(ErrInvalid, "Role must be rider or driver")
		case *p.Role == acc.Role:
			p.Role = nil
		case *p.Role == model.RoleRider:
			return model.Account{}, newErr(ErrInvalid, "Drivers cannot switch back to rider")
		default:
			merged := acc
			if p.CNIC != nil {
				merged.CNIC = p.CNIC
			}
			if p.DrivingLicenseNumber != nil {
				merged.DrivingLicenseNumber = p.DrivingLicenseNumber
			}
			if !merged.HasDriverCredentials() {
				return model.Account{}, newErr(ErrInvalid, "CNIC and driving license number are required to become a driver")
			}
		}
	}

	updated, err := s.accounts.Update(ctx, accountID, p)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrPhoneExists):
			return model.Account{}, newErr(ErrInvalid, "User with this phone number already exists")
		case errors.Is(err, repository.ErrNotFound):
			return model.Account{}, newErr(ErrNotFound, "User not found")
		}
		return model.Account{}, s.internal("update account", err)
	}
	s.opt.Cache.Delete(ctx, cache.SessionKey(accountID))
	return updated, nil
}

func (s *AuthService) internal(op string, err error) error {
	s.log.Error(op+" failed", "err", err)
	return internal(op, err)
}
