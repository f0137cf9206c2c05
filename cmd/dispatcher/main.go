// Command dispatcher runs the long-lived send loop: poll for due
// queue items, render them just-in-time, transmit via SparkPost, and
// record the outcome.
package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/ignite/sparkpost-monitor/internal/aigen"
	"github.com/ignite/sparkpost-monitor/internal/config"
	"github.com/ignite/sparkpost-monitor/internal/dispatch"
	"github.com/ignite/sparkpost-monitor/internal/pkg/httpretry"
	"github.com/ignite/sparkpost-monitor/internal/pkg/logger"
	"github.com/ignite/sparkpost-monitor/internal/reconcile"
	"github.com/ignite/sparkpost-monitor/internal/render"
	"github.com/ignite/sparkpost-monitor/internal/store/postgres"
	"github.com/ignite/sparkpost-monitor/internal/transmit"
)

func main() {
	logger.Info("dispatcher: starting")

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := config.LoadFromEnv(cfgPath)
	if err != nil {
		logger.Error("dispatcher: config load failed", "error", err.Error())
		os.Exit(1)
	}

	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		logger.Error("dispatcher: open database failed", "error", err.Error())
		os.Exit(1)
	}
	defer db.Close()

	maxOpen := cfg.Database.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 25
	}
	maxIdle := cfg.Database.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = 5
	}
	connLife := cfg.Database.ConnMaxLifeMins
	if connLife <= 0 {
		connLife = 5
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(time.Duration(connLife) * time.Minute)

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelPing()
	if err := db.PingContext(pingCtx); err != nil {
		logger.Error("dispatcher: ping database failed", "error", err.Error())
		os.Exit(1)
	}
	logger.Info("dispatcher: connected to database")

	s := postgres.New(db)

	aiHTTP := httpretry.NewRetryClient(&http.Client{Timeout: time.Duration(cfg.AI.TimeoutSeconds) * time.Second}, 3)
	generator := aigen.NewClient(cfg.AI.APIKey, cfg.AI.Model, aiHTTP)

	sparkpostHTTP := httpretry.NewRetryClient(&http.Client{Timeout: time.Duration(cfg.SparkPost.TimeoutSeconds) * time.Second}, 3)
	sender := transmit.NewSparkPostClient(cfg.SparkPost.APIKey, sparkpostHTTP)

	renderer := render.New()

	workerCfg := dispatch.Config{
		PollInterval:        time.Duration(cfg.Dispatcher.PollIntervalSeconds) * time.Second,
		BatchSize:           cfg.Dispatcher.BatchSize,
		CircuitThreshold:    cfg.Dispatcher.CircuitThreshold,
		Timezone:            cfg.Scheduler.Timezone,
		WorkStart:           cfg.Scheduler.WorkingHourStart,
		WorkEnd:             cfg.Scheduler.WorkingHourEnd,
		DisableWorkingHours: cfg.Scheduler.DisableWorkingHours,
	}
	worker := dispatch.NewWorker(workerCfg, s, generator, renderer, sender)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	worker.Start(ctx)
	logger.Info("dispatcher: running", "poll_interval_seconds", cfg.Dispatcher.PollIntervalSeconds, "batch_size", cfg.Dispatcher.BatchSize)

	// The completion sweep is optional and disabled unless a cron
	// expression is configured: Reconcile already runs lazily on every
	// read-path lookup, so the sweep only matters for campaigns nobody
	// happens to query after their last item finishes.
	var sweeper *reconcile.Sweeper
	if cfg.Dispatcher.Cron != "" {
		sweeper, err = reconcile.NewSweeper(s, cfg.Dispatcher.Cron)
		if err != nil {
			logger.Error("dispatcher: invalid sweep schedule", "cron", cfg.Dispatcher.Cron, "error", err.Error())
			os.Exit(1)
		}
		sweeper.Start()
		logger.Info("dispatcher: completion sweep enabled", "cron", cfg.Dispatcher.Cron)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("dispatcher: shutting down")
	cancel()
	worker.Stop()
	if sweeper != nil {
		sweeper.Stop()
	}
	logger.Info("dispatcher: stopped")
}
