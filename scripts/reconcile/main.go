package main

import (
	"context"
	"flag"
	"os"
	"time"

	"hashfund/internal/escrow"
	dbconfig "hashfund/pkg/config"
	"hashfund/pkg/hedera"
	"hashfund/pkg/mirror"

	logger "github.com/sirupsen/logrus"
)

// One-shot reconciliation: replays open settlement intents against the
// mirror node and optionally audits ledger invariants. Meant for
// operators working a flagged intent, the scheduler covers the steady
// state.
func main() {
	audit := flag.Bool("audit", false, "also audit per-project ledger invariants")
	timeout := flag.Duration("timeout", 5*time.Minute, "overall timeout")
	flag.Parse()

	logger.SetFormatter(&logger.TextFormatter{FullTimestamp: true})
	logger.SetLevel(logger.InfoLevel)

	dbconfig.InitDB()

	settle, err := hedera.NewClientFromEnv()
	if err != nil {
		logger.Fatalf("Failed to initialize settlement client: %v", err)
	}
	defer settle.Close()

	engine := escrow.New(dbconfig.DB, settle, nil)
	resolver := mirror.NewClient(os.Getenv("MIRROR_NODE_URL"))
	reconciler := escrow.NewReconciler(engine, resolver)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := reconciler.Run(ctx); err != nil {
		logger.Fatalf("Reconcile run failed: %v", err)
	}
	logger.Info("Reconcile run complete")

	if *audit {
		if err := reconciler.Audit(ctx); err != nil {
			logger.Fatalf("Ledger audit failed: %v", err)
		}
		logger.Info("Ledger audit complete")
	}
}
