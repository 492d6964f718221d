package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/havenapp/haven-backend/internal/model"
	"github.com/havenapp/haven-backend/internal/repository"
	"github.com/havenapp/haven-backend/internal/utils"
)

// requestTimeout bounds the database work of a single request.
const requestTimeout = 5 * time.Second

// AuthHandler bundles dependencies for auth endpoints. Store gives access
// to users and the audit trail, Tokens signs and verifies JWTs and
// BcryptCost is the work factor for new password hashes.
type AuthHandler struct {
	Store      *repository.Store
	Tokens     *utils.TokenService
	BcryptCost int
	Log        *zap.Logger

	// absentHash is compared against when the email is unknown so that
	// login costs one bcrypt comparison whether or not the account exists.
	absentOnce sync.Once
	absentHash string
}

// NewAuthHandler constructs an AuthHandler. A nil logger discards output.
func NewAuthHandler(store *repository.Store, tokens *utils.TokenService, bcryptCost int, log *zap.Logger) *AuthHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthHandler{Store: store, Tokens: tokens, BcryptCost: bcryptCost, Log: log}
}

// ----- DTOs -----

// registerReq is the body of POST /api/auth/register. Name is optional and
// may be null.
type registerReq struct {
	Email    string  `json:"email" validate:"required,email"`
	Password string  `json:"password" validate:"required,min=8"`
	Name     *string `json:"name"`
}

// loginReq is the body of POST /api/auth/login.
type loginReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// refreshReq is the body of POST /api/auth/refresh.
type refreshReq struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// authResp is returned by register and login: a fresh token pair plus
// the public user.
type authResp struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	User         userResponse `json:"user"`
}

// userResponse is the public form of a user. It has no password field at
// all, so the hash cannot leak through serialisation.
type userResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      *string   `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	IsActive  bool      `json:"is_active"`
}

// toUserResponse copies the public fields of u.
func toUserResponse(u model.User) userResponse {
	return userResponse{ID: u.ID, Email: u.Email, Name: u.Name, CreatedAt: u.CreatedAt, IsActive: u.IsActive}
}

// Register creates a user and returns a token pair immediately.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := decodeBody(c, &req); err != nil {
		return err
	}
	req.Email = strings.TrimSpace(req.Email)
	if err := validateStruct(req); err != nil {
		return err
	}

	hash, err := utils.HashPassword(req.Password, h.BcryptCost)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	var u model.User
	err = h.Store.WithTx(ctx, func(r *repository.Repos) error {
		var err error
		if u, err = r.Users.Create(ctx, req.Email, hash, req.Name); err != nil {
			return err
		}
		_, err = r.Audit.Append(ctx, u.ID, model.ActionUserRegistered, model.ResourceUser, u.ID, nil)
		return err
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return ErrUserExists
		}
		return err
	}

	pair, err := h.Tokens.IssuePair(u.ID)
	if err != nil {
		return err
	}
	h.Log.Info("user registered", zap.String("user_id", u.ID))
	return c.JSON(http.StatusCreated, authResp{
		AccessToken:  pair.Access.Token,
		RefreshToken: pair.Refresh.Token,
		User:         toUserResponse(u),
	})
}

// Login verifies credentials and returns a new pair. Unknown email, wrong
// password and deactivated account all produce the same 401.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := decodeBody(c, &req); err != nil {
		return err
	}
	req.Email = strings.TrimSpace(req.Email)
	if err := validateStruct(req); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	u, err := h.Store.Repos().Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Pay the same bcrypt cost as a known account.
			utils.VerifyPassword(h.absentUserHash(), req.Password)
			return ErrInvalidCredentials
		}
		return err
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) || !u.IsActive {
		return ErrInvalidCredentials
	}

	pair, err := h.Tokens.IssuePair(u.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, authResp{
		AccessToken:  pair.Access.Token,
		RefreshToken: pair.Refresh.Token,
		User:         toUserResponse(u),
	})
}

// absentUserHash returns a hash of a random value at the handler's cost,
// computed on first use. No password can match it.
func (h *AuthHandler) absentUserHash() string {
	h.absentOnce.Do(func() {
		hash, err := utils.HashPassword(uuid.NewString(), h.BcryptCost)
		if err != nil {
			h.Log.Error("hash placeholder password", zap.Error(err))
			return
		}
		h.absentHash = hash
	})
	return h.absentHash
}

// Logout has no server-side effect. Tokens are stateless, so the client
// discards them and they stay valid until they expire.
func (h *AuthHandler) Logout(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"message": "Logged out successfully"})
}

// RefreshAccess exchanges a refresh token for a new access token without
// rotating the refresh token.
func (h *AuthHandler) RefreshAccess(c echo.Context) error {
	var req refreshReq
	if err := decodeBody(c, &req); err != nil {
		return err
	}
	req.RefreshToken = strings.TrimSpace(req.RefreshToken)
	if err := validateStruct(req); err != nil {
		return err
	}

	userID, access, err := h.Tokens.Refresh(req.RefreshToken)
	if err != nil {
		return echo.ErrUnauthorized
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	u, err := h.Store.Repos().Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return echo.ErrUnauthorized
		}
		return err
	}
	if !u.IsActive {
		return echo.ErrUnauthorized
	}
	return c.JSON(http.StatusOK, echo.Map{"access_token": access.Token})
}
