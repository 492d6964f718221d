// Package router registers the HTTP routes of the API on an Echo instance.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/havenapp/haven-backend/internal/handler"
	"github.com/havenapp/haven-backend/internal/middleware"
)

// Handlers groups the handlers served behind authentication.
type Handlers struct {
	Alerts  *handler.AlertHandler
	Signals *handler.SignalHandler
	Users   *handler.UserHandler
}

// RegisterRoutes registers routes that need no authentication: the health
// check and the Prometheus scrape endpoint.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/api/health", handler.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// RegisterAuth registers /api/auth. limit is applied to every auth route;
// pass nil for none.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, limit echo.MiddlewareFunc) {
	g := e.Group("/api/auth")
	mw := chain(limit)
	g.POST("/register", a.Register, mw...)
	g.POST("/login", a.Login, mw...)
	g.POST("/refresh", a.RefreshAccess, mw...)
	// Logout needs no token; the client simply discards its pair.
	g.POST("/logout", a.Logout, mw...)
}

// RegisterProtected registers the per-user resources. Authentication is
// attached per route rather than with Group.Use so unknown /api paths still
// answer 404 instead of 401.
func RegisterProtected(e *echo.Echo, h Handlers, resolver *middleware.Resolver, limit echo.MiddlewareFunc) {
	g := e.Group("/api")
	mw := append([]echo.MiddlewareFunc{middleware.JWTAuth(resolver)}, chain(limit)...)

	g.GET("/alerts", h.Alerts.List, mw...)
	g.POST("/alerts", h.Alerts.Create, mw...)
	g.GET("/alerts/:id", h.Alerts.Get, mw...)
	g.PUT("/alerts/:id/acknowledge", h.Alerts.Acknowledge, mw...)

	g.GET("/signals", h.Signals.List, mw...)
	g.POST("/signals", h.Signals.Create, mw...)
	g.GET("/signals/:id", h.Signals.Get, mw...)

	g.GET("/user", h.Users.GetProfile, mw...)
	g.PUT("/user", h.Users.UpdateProfile, mw...)
	g.GET("/user/consent", h.Users.GetConsent, mw...)
	g.PUT("/user/consent", h.Users.UpdateConsent, mw...)
	g.GET("/user/audit", h.Users.ListAudit, mw...)
}

func chain(limit echo.MiddlewareFunc) []echo.MiddlewareFunc {
	if limit == nil {
		return nil
	}
	return []echo.MiddlewareFunc{limit}
}
