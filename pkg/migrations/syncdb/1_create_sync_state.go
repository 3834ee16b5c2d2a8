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
		log.Println("creating slack_sync_state table...")
		if err := mghelper.CreateSchema(ctx, db, &syncdb.ChannelSyncState{}); err != nil {
			return err
		}
		// The coordinator pages mapped channels ordered by staleness.
		return mghelper.CreateModelIndexes(ctx, db, &syncdb.ChannelSyncState{},
			"mapped_partner_id", "last_synced_at")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping slack_sync_state table...")
		return mghelper.DropTables(ctx, db, &syncdb.ChannelSyncState{})
	})
}
