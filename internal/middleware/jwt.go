package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// JWTAuth returns an Echo middleware that resolves the Bearer access token
// to an active user and stores it in the context under "user" (model.User)
// and "user_id" (string). Any failure answers 401 {"error":"Unauthorized"}
// without calling the handler.
func JWTAuth(resolver *Resolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(auth, "Bearer ") {
				return unauthorized(c)
			}
			raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			if raw == "" {
				return unauthorized(c)
			}

			u, err := resolver.Resolve(c.Request().Context(), raw)
			if err != nil {
				return unauthorized(c)
			}

			c.Set(ContextUser, u)
			c.Set(ContextUserID, u.ID)
			return next(c)
		}
	}
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Unauthorized"})
}
