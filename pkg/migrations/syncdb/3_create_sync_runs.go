package syncdb

import (
	"context"
	"log"

	"github.com/uptrace/bun"

	mghelper "github.com/pulsedesk/slack-sync/pkg/pgutil/migrations"
	"github.com/pulsedesk/slack-sync/pkg/syncdb"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating slack_sync_runs table...")
		if err := mghelper.CreateSchema(ctx, db, &syncdb.SyncRun{}); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &syncdb.SyncRun{}, "status")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping slack_sync_runs table...")
		return mghelper.DropTables(ctx, db, &syncdb.SyncRun{})
	})
}
