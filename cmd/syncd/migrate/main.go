package main

import (
	"flag"
	"log"

	"github.com/uptrace/bun/migrate"

	"github.com/pulsedesk/slack-sync/pkg/config"
	migrationsyncdb "github.com/pulsedesk/slack-sync/pkg/migrations/syncdb"
	"github.com/pulsedesk/slack-sync/pkg/pgutil"
	mghelper "github.com/pulsedesk/slack-sync/pkg/pgutil/migrations"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		mghelper.Exitf("failed to load config: %v", err)
	}

	db, err := pgutil.ConnectDB(&cfg.Database)
	if err != nil {
		mghelper.Exitf("failed to connect to database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("failed to close database: %v", err)
		}
	}()

	migrator := migrate.NewMigrator(db, migrationsyncdb.Migrations)
	if err := mghelper.RunMigrations(migrator, flag.Args()...); err != nil {
		mghelper.Exitf("migration failed: %v", err)
	}
}
