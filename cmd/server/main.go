package main // Entry point package

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/havenapp/haven-backend/internal/app"
	"github.com/havenapp/haven-backend/internal/config"
	"github.com/havenapp/haven-backend/internal/database"
	"github.com/havenapp/haven-backend/internal/logger"
	"github.com/havenapp/haven-backend/internal/queue"
	"github.com/havenapp/haven-backend/internal/service"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat, "haven-backend")
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatal("open database", zap.Error(err))
	}
	defer db.Close()

	if cfg.MigrateOnStart {
		if err := database.Migrate(db); err != nil {
			log.Fatal("apply migrations", zap.Error(err))
		}
		log.Info("migrations applied")
	}

	rl := config.LoadRateLimitConfig()
	opts := app.Options{Config: cfg, RateLimit: rl, Logger: log, DB: db}
	if rl.Enabled {
		opts.Redis = config.NewRedisClient()
		if opts.Redis == nil {
			log.Warn("redis unreachable, rate limiting disabled")
		} else {
			defer opts.Redis.Close()
		}
	}
	if cfg.EventsEnabled {
		opts.Publisher = service.NewAMQPPublisher(cfg.AMQPURL, log)
	}

	a := app.New(opts)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.AlertConsumerEnabled {
		go func() {
			if err := queue.StartAlertConsumer(ctx, cfg.AMQPURL, log); err != nil && ctx.Err() == nil {
				log.Error("alert consumer stopped", zap.Error(err))
			}
		}()
	}

	go func() {
		if err := a.Start(":" + cfg.Port); err != nil {
			log.Error("http server", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", zap.Error(err))
	}
	log.Info("server stopped")
}
