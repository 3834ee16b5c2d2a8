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
		log.Println("creating slack_response_metrics table...")
		if err := mghelper.CreateSchema(ctx, db, &syncdb.ResponseMetric{}); err != nil {
			return err
		}
		// Recomputation upserts on (channel_id, date).
		if err := mghelper.CreateCompositeUniqueIndex(ctx, db, &syncdb.ResponseMetric{},
			"channel_id", "date"); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &syncdb.ResponseMetric{},
			"partner_id", "date")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping slack_response_metrics table...")
		return mghelper.DropTables(ctx, db, &syncdb.ResponseMetric{})
	})
}
