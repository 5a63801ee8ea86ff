package main

import (
	"context"
	"os"
	"time"

	"hashfund/internal/escrow"
	dbconfig "hashfund/pkg/config"
	"hashfund/pkg/hedera"
	"hashfund/pkg/mirror"

	"github.com/robfig/cron/v3"
	logger "github.com/sirupsen/logrus"
)

const (
	reconcileTimeout = 5 * time.Minute
	auditTimeout     = 5 * time.Minute
)

func main() {
	// Log to file
	os.MkdirAll("logs", 0755)
	file, err := os.OpenFile("logs/reconcile_schedule.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err == nil {
		logger.SetOutput(file)
	} else {
		logger.Warn("Cannot open log file, logging to stdout")
	}

	logger.SetFormatter(&logger.TextFormatter{
		FullTimestamp: true,
	})
	logger.SetLevel(logger.InfoLevel)
	logger.Info("> Initializing reconcile scheduler...")

	dbconfig.InitDB()
	logger.Info("> Database connection initialized")

	settle, err := hedera.NewClientFromEnv()
	if err != nil {
		logger.Fatalf("> Failed to initialize settlement client: %v", err)
	}
	defer settle.Close()

	engine := escrow.New(dbconfig.DB, settle, nil)
	resolver := mirror.NewClient(os.Getenv("MIRROR_NODE_URL"))
	reconciler := escrow.NewReconciler(engine, resolver)

	c := cron.New(cron.WithSeconds())

	// Replay open settlement intents once a minute
	_, err = c.AddFunc("0 * * * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), reconcileTimeout)
		defer cancel()
		if err := reconciler.Run(ctx); err != nil {
			logger.Errorf("> Reconcile run failed: %v", err)
		}
	})
	if err != nil {
		logger.Fatalf("> Failed to add reconcile task: %v", err)
	}

	// Audit ledger invariants every 10 minutes
	_, err = c.AddFunc("0 */10 * * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
		defer cancel()
		if err := reconciler.Audit(ctx); err != nil {
			logger.Errorf("> Ledger audit failed: %v", err)
		}
	})
	if err != nil {
		logger.Fatalf("> Failed to add audit task: %v", err)
	}

	logger.Info("> Scheduler started: reconcile every minute, audit every 10 minutes")

	c.Start()

	// Keep the process running
	select {}
}
