// Command launchctl is the one-shot admin CLI for moving a campaign
// through its staging and launch transitions: stage, launch, and
// retry-failed.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"

	_ "github.com/lib/pq"

	"github.com/ignite/sparkpost-monitor/internal/config"
	"github.com/ignite/sparkpost-monitor/internal/launch"
	"github.com/ignite/sparkpost-monitor/internal/pkg/distlock"
	"github.com/ignite/sparkpost-monitor/internal/pkg/logger"
	"github.com/ignite/sparkpost-monitor/internal/store/postgres"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: launchctl <stage|launch|retry-failed> --campaign <id> [--items id1,id2,...]")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	action := os.Args[1]

	flags := pflag.NewFlagSet("launchctl", pflag.ExitOnError)
	campaignID := flags.String("campaign", "", "campaign id")
	items := flags.StringSlice("items", nil, "comma-separated queue item ids (launch only; defaults to all staged)")
	configPath := flags.String("config", "config.yaml", "path to config file")
	if err := flags.Parse(os.Args[2:]); err != nil {
		os.Exit(2)
	}
	if *campaignID == "" {
		usage()
		os.Exit(2)
	}

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		logger.Error("launchctl: config load failed", "error", err.Error())
		os.Exit(1)
	}

	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		logger.Error("launchctl: open database failed", "error", err.Error())
		os.Exit(1)
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	s := postgres.New(db)
	lockFactory := func(key string, ttl time.Duration) distlock.DistLock {
		return distlock.NewLock(redisClient, db, key, ttl)
	}
	coordinator := launch.New(s, lockFactory, nil, nil, cfg.Scheduler)

	ctx := context.Background()

	switch action {
	case "stage":
		err = coordinator.Stage(ctx, *campaignID)
	case "launch":
		err = coordinator.Launch(ctx, *campaignID, *items)
	case "retry-failed":
		err = coordinator.RetryFailed(ctx, *campaignID)
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		logger.Error("launchctl: operation failed", "action", action, "campaign_id", *campaignID, "error", err.Error())
		os.Exit(1)
	}
	logger.Info("launchctl: operation succeeded", "action", action, "campaign_id", *campaignID)
}
