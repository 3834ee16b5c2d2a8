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
		log.Println("creating external_identities table...")
		if err := mghelper.CreateSchema(ctx, db, &syncdb.ExternalIdentity{}); err != nil {
			return err
		}
		return mghelper.CreateCompositeUniqueIndex(ctx, db, &syncdb.ExternalIdentity{},
			"entity_type", "source", "external_id")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping external_identities table...")
		return mghelper.DropTables(ctx, db, &syncdb.ExternalIdentity{})
	})
}
