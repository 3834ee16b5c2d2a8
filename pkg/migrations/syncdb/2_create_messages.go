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
		log.Println("creating slack_messages table...")
		if err := mghelper.CreateSchema(ctx, db, &syncdb.Message{}); err != nil {
			return err
		}
		// Natural idempotency key: duplicate ingestion must be a no-op.
		if err := mghelper.CreateCompositeUniqueIndex(ctx, db, &syncdb.Message{},
			"channel_id", "message_ts"); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &syncdb.Message{},
			"sender_external_id", "sender_staff_id", "posted_at")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping slack_messages table...")
		return mghelper.DropTables(ctx, db, &syncdb.Message{})
	})
}
