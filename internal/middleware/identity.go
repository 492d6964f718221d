package middleware

// identity.go resolves an access token to an active user and exposes the
// helpers handlers use to read the resolved identity back out of the echo
// context.

import (
	"context"
	"errors"

	"github.com/labstack/echo/v4"

	"github.com/havenapp/haven-backend/internal/model"
	"github.com/havenapp/haven-backend/internal/utils"
)

// Context keys set by JWTAuth.
const (
	ContextUser   = "user"
	ContextUserID = "user_id"
)

// ErrUnauthorized is the only error Resolve returns. Callers cannot tell a
// bad token from a missing or deactivated account.
var ErrUnauthorized = errors.New("unauthorized")

// UserLookup is the slice of the user repository the resolver needs.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (model.User, error)
}

// Resolver maps a raw access token to the active user it was issued for.
type Resolver struct {
	Tokens *utils.TokenService
	Users  UserLookup
}

// NewResolver builds a Resolver.
func NewResolver(tokens *utils.TokenService, users UserLookup) *Resolver {
	return &Resolver{Tokens: tokens, Users: users}
}

// Resolve verifies raw as an access token, loads its subject and requires
// the account to be active.
func (r *Resolver) Resolve(ctx context.Context, raw string) (model.User, error) {
	sub, err := r.Tokens.VerifyKind(raw, utils.KindAccess)
	if err != nil || sub == "" {
		return model.User{}, ErrUnauthorized
	}
	u, err := r.Users.GetByID(ctx, sub)
	if err != nil || !u.IsActive {
		return model.User{}, ErrUnauthorized
	}
	return u, nil
}

// CurrentUser returns the user stored by JWTAuth.
func CurrentUser(c echo.Context) (model.User, bool) {
	u, ok := c.Get(ContextUser).(model.User)
	return u, ok
}

// userID returns the authenticated user's id, or "anon" on public routes.
func userID(c echo.Context) string {
	if s, ok := c.Get(ContextUserID).(string); ok && s != "" {
		return s
	}
	return "anon"
}
