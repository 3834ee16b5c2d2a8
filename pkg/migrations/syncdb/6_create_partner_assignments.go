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
		log.Println("creating partner_assignments table...")
		if err := mghelper.CreateSchema(ctx, db, &syncdb.PartnerAssignment{}); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &syncdb.PartnerAssignment{},
			"partner_id", "role")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping partner_assignments table...")
		return mghelper.DropTables(ctx, db, &syncdb.PartnerAssignment{})
	})
}
