// Package app wires configuration, storage, handlers and middleware into a
// single application value built once at startup.
package app

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/havenapp/haven-backend/internal/config"
	"github.com/havenapp/haven-backend/internal/handler"
	"github.com/havenapp/haven-backend/internal/middleware"
	"github.com/havenapp/haven-backend/internal/repository"
	"github.com/havenapp/haven-backend/internal/router"
	"github.com/havenapp/haven-backend/internal/service"
	"github.com/havenapp/haven-backend/internal/utils"
)

// App holds every long-lived dependency. Handlers receive what they need
// from it explicitly; nothing is kept in package globals.
type App struct {
	Cfg       config.Config
	Log       *zap.Logger
	Store     *repository.Store
	Tokens    *utils.TokenService
	Publisher service.Publisher
	Echo      *echo.Echo
}

// Options carries the dependencies New does not construct itself. Redis and
// Publisher may be nil.
type Options struct {
	Config    config.Config
	RateLimit config.RateLimitConfig
	Logger    *zap.Logger
	DB        *sql.DB
	Redis     *redis.Client
	Publisher service.Publisher
}

// New builds the Echo server with middleware and routes registered.
func New(opts Options) *App {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	pub := opts.Publisher
	if pub == nil {
		pub = service.NopPublisher{}
	}
	cfg := opts.Config

	store := repository.NewStore(opts.DB)
	tokens := utils.NewTokenService(cfg.JWTSecret, cfg.AccessTTL, cfg.RefreshTTL)
	resolver := middleware.NewResolver(tokens, store.Repos().Users)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handler.ErrorHandler(log)

	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(log))
	e.Use(middleware.Metrics())
	e.Use(echomw.Recover())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	var limit echo.MiddlewareFunc
	if opts.RateLimit.Enabled {
		limit = middleware.RateLimit(middleware.NewRedisPolicy(opts.RateLimit, opts.Redis), opts.RateLimit, log)
	}

	router.RegisterRoutes(e)
	router.RegisterAuth(e, handler.NewAuthHandler(store, tokens, cfg.BcryptCost, log), limit)
	router.RegisterProtected(e, router.Handlers{
		Alerts:  handler.NewAlertHandler(store, pub, log),
		Signals: handler.NewSignalHandler(store, log),
		Users:   handler.NewUserHandler(store, log),
	}, resolver, limit)

	return &App{Cfg: cfg, Log: log, Store: store, Tokens: tokens, Publisher: pub, Echo: e}
}

// Start serves HTTP on addr until Shutdown is called.
func (a *App) Start(addr string) error {
	a.Log.Info("listening", zap.String("addr", addr), zap.String("env", a.Cfg.Env))
	if err := a.Echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (a *App) Shutdown(ctx context.Context) error {
	return a.Echo.Shutdown(ctx)
}
