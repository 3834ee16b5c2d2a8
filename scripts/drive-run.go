//go:build ignore

// drive-run.go - Create a sync run and drive it to completion locally.
//
// Usage:
//   go run scripts/drive-run.go -config config.yaml
//   go run scripts/drive-run.go -config config.yaml -run <existing-run-id>
//
// Processes one chunk at a time until the run completes, which is what the
// external scheduler normally does through the admin API. Useful for local
// testing and for draining a stuck run by hand.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/pulsedesk/slack-sync/pkg/config"
	"github.com/pulsedesk/slack-sync/pkg/pgutil"
	"github.com/pulsedesk/slack-sync/pkg/slack"
	"github.com/pulsedesk/slack-sync/pkg/sync"
	"github.com/pulsedesk/slack-sync/pkg/syncdb"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	runID := flag.String("run", "", "existing run id to drive (default: create a new run)")
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
	store := syncdb.NewStore(db)

	client, err := slack.NewClient(&cfg.Slack, logger)
	if err != nil {
		fail("%v", err)
	}

	ctx := context.Background()
	engine := sync.NewEngine(client, store, cfg, logger)
	coord := sync.NewCoordinator(store, client, engine, cfg, logger)

	id := *runID
	if id == "" {
		run, err := coord.CreateRun(ctx, "drive-run-script")
		if err != nil {
			fail("failed to create run: %v", err)
		}
		id = run.ID
		fmt.Printf("created run %s (%d channels)\n", id, run.TotalChannels)
	}

	for {
		res, err := coord.ProcessChunk(ctx, id)
		if err != nil {
			fail("chunk failed: %v", err)
		}
		if !res.LeaseHeld {
			fail("run lease is held by another worker")
		}
		fmt.Printf("chunk: %d channels (%d ok, %d failed), %d messages\n",
			res.ChannelsProcessed, res.SyncedChannels, res.FailedChannels, res.MessagesSynced)
		if res.Completed {
			fmt.Println("run completed")
			return
		}
	}
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
