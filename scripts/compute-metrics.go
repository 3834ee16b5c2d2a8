//go:build ignore

// compute-metrics.go - Recompute response metrics for a date range.
//
// Usage:
//   go run scripts/compute-metrics.go -config config.yaml -from 2026-08-01 -to 2026-08-10
//   go run scripts/compute-metrics.go -config config.yaml            (rolling window)

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/pulsedesk/slack-sync/pkg/analytics"
	"github.com/pulsedesk/slack-sync/pkg/config"
	"github.com/pulsedesk/slack-sync/pkg/pgutil"
	"github.com/pulsedesk/slack-sync/pkg/syncdb"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	fromArg := flag.String("from", "", "start date (YYYY-MM-DD)")
	toArg := flag.String("to", "", "end date (YYYY-MM-DD), inclusive")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fail("failed to load config: %v", err)
	}
	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		fail("failed to build logger: %v", err)
	}

	db, err := pgutil.ConnectDB(&cfg.Database)
	if err != nil {
		fail("failed to connect to database: %v", err)
	}
	defer db.Close()

	engine := analytics.NewEngine(syncdb.NewStore(db), cfg, logger)
	ctx := context.Background()

	var res *analytics.BulkResult
	if *fromArg == "" && *toArg == "" {
		res, err = engine.ComputeDailyRollingWindow(ctx)
	} else {
		var from, to time.Time
		if from, err = time.Parse("2006-01-02", *fromArg); err != nil {
			fail("invalid -from date: %v", err)
		}
		if to, err = time.Parse("2006-01-02", *toArg); err != nil {
			fail("invalid -to date: %v", err)
		}
		res, err = engine.ComputeRange(ctx, from, to)
	}
	if err != nil {
		fail("computation failed: %v", err)
	}

	fmt.Printf("computed %d, failed %d\n", res.Computed, res.Failed)
	for _, msg := range res.Errors {
		fmt.Printf("  error: %s\n", msg)
	}
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
