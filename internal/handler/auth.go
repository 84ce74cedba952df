package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ride-hailing/internal/middleware"
	"github.com/iliyamo/ride-hailing/internal/model"
	"github.com/iliyamo/ride-hailing/internal/service"
)

// Authenticator is the account side of the API.
type Authenticator interface {
	Register(ctx context.Context, in service.RegisterInput) (service.AuthResult, error)
	Login(ctx context.Context, email, password string) (service.AuthResult, error)
	Profile(ctx context.Context, accountID string) (model.Account, error)
	UpdateProfile(ctx context.Context, accountID string, p model.AccountPatch) (model.Account, error)
}

// AuthHandler serves /auth.
type AuthHandler struct {
	Auth Authenticator
}

func NewAuthHandler(auth Authenticator) *AuthHandler {
	return &AuthHandler{Auth: auth}
}

type registerReq struct {
	Name        string  `json:"name"`
	Email       string  `json:"email"`
	Password    string  `json:"password"`
	Phone       string  `json:"phone"`
	DateOfBirth *string `json:"dateOfBirth"`
	Gender      *string `json:"gender"`
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type profileReq struct {
	Name                 *string     `json:"name"`
	Phone                *string     `json:"phone"`
	Avatar               *string     `json:"avatar"`
	Bio                  *string     `json:"bio"`
	Address              *string     `json:"address"`
	Role                 *model.Role `json:"role"`
	CNIC                 *string     `json:"cnic"`
	DrivingLicenseNumber *string     `json:"drivingLicenseNumber"`
}

// Register creates a rider account and returns a token for it.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	res, err := h.Auth.Register(ctx, service.RegisterInput{
		Name:        req.Name,
		Email:       req.Email,
		Password:    req.Password,
		Phone:       req.Phone,
		DateOfBirth: req.DateOfBirth,
		Gender:      req.Gender,
	})
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusCreated, "User registered successfully", echo.Map{
		"token":     res.Token,
		"expiresAt": res.ExpiresAt,
		"user":      res.User,
	})
}

// Login exchanges credentials for a token.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	res, err := h.Auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, "Login successful", echo.Map{
		"token":     res.Token,
		"expiresAt": res.ExpiresAt,
		"user":      res.User,
	})
}

func (h *AuthHandler) Profile(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	acc, err := h.Auth.Profile(ctx, middleware.Caller(c).ID)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, "", echo.Map{"user": acc})
}

// UpdateProfile applies a partial profile change, including the
// rider-to-driver upgrade.
func (h *AuthHandler) UpdateProfile(c echo.Context) error {
	var req profileReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	acc, err := h.Auth.UpdateProfile(ctx, middleware.Caller(c).ID, model.AccountPatch{
		Name:                 req.Name,
		Phone:                req.Phone,
		Avatar:               req.Avatar,
		Bio:                  req.Bio,
		Address:              req.Address,
		Role:                 req.Role,
		CNIC:                 req.CNIC,
		DrivingLicenseNumber: req.DrivingLicenseNumber,
	})
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, "Profile updated successfully", echo.Map{"user": acc})
}
