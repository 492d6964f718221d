package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"go.uber.org/zap"

	"github.com/havenapp/haven-backend/internal/config"
	"github.com/havenapp/haven-backend/internal/database"
	"github.com/havenapp/haven-backend/internal/logger"
	"github.com/havenapp/haven-backend/internal/repository"
)

func main() {
	flag.Usage = usage
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	cfg := config.LoadForTools()
	log, err := logger.New(cfg.LogLevel, "console", "haven-migrate")
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatal("open database", zap.Error(err))
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	store := repository.NewStore(db)

	switch args[0] {
	case "purge-signals":
		days := cfg.SignalRetentionDays
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n < 1 {
				log.Fatal("purge-signals: invalid days argument", zap.String("arg", args[1]))
			}
			days = n
		}
		cutoff := time.Now().UTC().AddDate(0, 0, -days)
		n, err := store.Repos().Signals.PurgeBefore(ctx, cutoff)
		if err != nil {
			log.Fatal("purge-signals failed", zap.Error(err))
		}
		log.Info("signals purged", zap.Int64("rows", n), zap.Time("cutoff", cutoff))
		return

	case "deactivate-user", "activate-user":
		if len(args) < 2 {
			log.Fatal(args[0] + ": user id argument required")
		}
		if err := store.Repos().Users.SetActive(ctx, args[1], args[0] == "activate-user"); err != nil {
			log.Fatal(args[0]+" failed", zap.String("user_id", args[1]), zap.Error(err))
		}
		log.Info(args[0]+" done", zap.String("user_id", args[1]))
		return

	case "delete-user":
		if len(args) < 2 {
			log.Fatal("delete-user: user id argument required")
		}
		err := store.WithTx(ctx, func(r *repository.Repos) error {
			return r.Users.Delete(ctx, args[1])
		})
		if err != nil {
			log.Fatal("delete-user failed", zap.String("user_id", args[1]), zap.Error(err))
		}
		log.Info("user and owned records deleted", zap.String("user_id", args[1]))
		return
	}

	m, err := database.NewMigrator(db)
	if err != nil {
		log.Fatal("migration init failed", zap.Error(err))
	}
	m.Log = &migrateLogger{log: log}

	switch args[0] {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatal("up failed", zap.Error(err))
		}
		log.Info("migrations: up completed")

	case "down":
		steps := 1
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n < 1 {
				log.Fatal("down: invalid steps argument", zap.String("arg", args[1]))
			}
			steps = n
		}
		if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatal("down failed", zap.Error(err))
		}
		log.Info("migrations: down completed", zap.Int("steps", steps))

	case "version":
		v, dirty, err := m.Version()
		if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
			log.Fatal("version failed", zap.Error(err))
		}
		fmt.Printf("version: %d  dirty: %v\n", v, dirty)

	case "force":
		if len(args) < 2 {
			log.Fatal("force: version argument required")
		}
		v, err := strconv.Atoi(args[1])
		if err != nil {
			log.Fatal("force: invalid version", zap.String("arg", args[1]))
		}
		if err := m.Force(v); err != nil {
			log.Fatal("force failed", zap.Error(err))
		}
		log.Info("migrations: forced", zap.Int("version", v))

	default:
		usage()
		os.Exit(1)
	}
}

type migrateLogger struct{ log *zap.Logger }

func (l *migrateLogger) Printf(format string, v ...any) {
	l.log.Info(fmt.Sprintf(format, v...))
}
func (l *migrateLogger) Verbose() bool { return false }

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: migrate <command> [args]

Commands:
  up                   Apply all pending migrations
  down [N]             Roll back N migrations (default: 1)
  version              Print current migration version
  force <V>            Force set migration version (bypass dirty state)
  purge-signals [D]    Delete signals older than D days (default: SIGNAL_RETENTION_DAYS)
  deactivate-user <ID> Block an account from authenticating
  activate-user <ID>   Re-enable an account
  delete-user <ID>     Delete an account and every record it owns

Environment:
  DB_USER, DB_PASS, DB_HOST, DB_PORT, DB_NAME   MySQL connection
  SIGNAL_RETENTION_DAYS                         Retention window (default: 30)`)
}
