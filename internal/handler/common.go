package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/havenapp/haven-backend/internal/middleware"
	"github.com/havenapp/haven-backend/internal/model"
)

// currentUser returns the user JWTAuth resolved for this request. Routes
// mounted without JWTAuth get ErrUnauthorized.
func currentUser(c echo.Context) (model.User, error) {
	u, ok := middleware.CurrentUser(c)
	if !ok || u.ID == "" {
		return model.User{}, middleware.ErrUnauthorized
	}
	return u, nil
}
