// Package api assembles the syncd admin server: it wires configuration,
// the datastore, the Slack client and the sync/analytics engines behind a
// small JSON surface intended for schedulers and operators.
package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/pulsedesk/slack-sync/pkg/analytics"
	"github.com/pulsedesk/slack-sync/pkg/app/httpserver"
	"github.com/pulsedesk/slack-sync/pkg/config"
	"github.com/pulsedesk/slack-sync/pkg/pgutil"
	"github.com/pulsedesk/slack-sync/pkg/slack"
	"github.com/pulsedesk/slack-sync/pkg/sync"
	"github.com/pulsedesk/slack-sync/pkg/syncdb"
)

// Server is the syncd admin application.
type Server struct {
	cfg *config.Config
}

func NewServer(cfg *config.Config) *Server {
	return &Server{cfg: cfg}
}

// Run wires all components and serves until interrupted. A missing or
// rejected bot token fails here, before the server accepts any request.
func (s *Server) Run() error {
	logger, err := config.NewLogger(s.cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	db, err := pgutil.ConnectDB(&s.cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	store := syncdb.NewStore(db)

	client, err := slack.NewClient(&s.cfg.Slack, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	probeCtx, cancel := context.WithTimeout(ctx, time.Minute)
	identity, err := client.AuthTest(probeCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("slack token verification failed: %w", err)
	}
	logger.Info("slack token verified",
		zap.String("team", identity.Team),
		zap.String("bot_user_id", identity.UserID))

	engine := sync.NewEngine(client, store, s.cfg, logger)
	coord := sync.NewCoordinator(store, client, engine, s.cfg, logger)
	reclassifier := sync.NewReclassifier(store, logger)
	analyticsEngine := analytics.NewEngine(store, s.cfg, logger)

	h := newHandler(coord, engine, analyticsEngine, reclassifier, store, logger)
	router := newRouter(h, s.cfg.Monitoring.Enabled)

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return httpserver.ServeAndWait(ctx, logger, srv, s.cfg.Shutdown.Timeout)
}
