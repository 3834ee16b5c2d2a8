package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pulsedesk/slack-sync/internal/metrics"
	"github.com/pulsedesk/slack-sync/pkg/config"
	"github.com/pulsedesk/slack-sync/pkg/syncdb"
)

// ErrRunActive is returned when a run creation is attempted while another
// run is still pending or running.
var ErrRunActive = errors.New("a sync run is already pending or running")

// Coordinator owns run lifecycle: one active run system-wide, chunked
// progress through the mapped channel list, and the datastore lease that
// keeps concurrent workers from overlapping.
type Coordinator struct {
	store            Store
	api              SlackAPI
	syncer           ChannelSyncer
	logger           *zap.Logger
	channelsPerChunk int
	leaseDuration    time.Duration
}

// ChunkResult summarizes one ProcessChunk invocation. A result with
// LeaseHeld false means another worker holds the run lease and this
// invocation did nothing, which is a normal outcome, not an error.
type ChunkResult struct {
	RunID             string          `json:"run_id"`
	LeaseHeld         bool            `json:"lease_held"`
	ChannelsProcessed int             `json:"channels_processed"`
	SyncedChannels    int             `json:"synced_channels"`
	FailedChannels    int             `json:"failed_channels"`
	MessagesSynced    int64           `json:"messages_synced"`
	Completed         bool            `json:"completed"`
	Channels          []ChannelResult `json:"-"`
}

func NewCoordinator(store Store, api SlackAPI, syncer ChannelSyncer, cfg *config.Config, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		store:            store,
		api:              api,
		syncer:           syncer,
		logger:           logger,
		channelsPerChunk: cfg.Sync.ChannelsPerChunk,
		leaseDuration:    cfg.Sync.LeaseDuration,
	}
}

// CreateRun starts a new sync run. total_channels is a snapshot for
// progress estimation only; channels mapped or unmapped mid-run make it
// stale and that staleness is tolerated.
func (c *Coordinator) CreateRun(ctx context.Context, triggeredBy string) (*syncdb.SyncRun, error) {
	active, err := c.store.ActiveRunExists(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check for active runs: %w", err)
	}
	if active {
		return nil, ErrRunActive
	}

	total, err := c.store.CountMappedChannels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count mapped channels: %w", err)
	}

	run := &syncdb.SyncRun{
		ID:            uuid.NewString(),
		Status:        syncdb.RunStatusPending,
		TriggeredBy:   triggeredBy,
		TotalChannels: total,
		StartedAt:     time.Now().UTC(),
	}
	if err := c.store.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create sync run: %w", err)
	}

	c.logger.Info("sync run created",
		zap.String("run_id", run.ID),
		zap.String("triggered_by", triggeredBy),
		zap.Int("total_channels", total))
	return run, nil
}

// ProcessChunk acquires the run lease and synchronizes the next window of
// mapped channels, strictly sequentially. Channels are ordered by
// last_synced_at ascending with nulls first so never-synced and stalest
// channels go first. Losing the lease race yields an empty no-op result.
func (c *Coordinator) ProcessChunk(ctx context.Context, runID string) (*ChunkResult, error) {
	res := &ChunkResult{RunID: runID}

	ok, err := c.store.AcquireRunLease(ctx, runID, c.leaseDuration)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire run lease: %w", err)
	}
	if !ok {
		c.logger.Info("run lease held elsewhere, skipping chunk", zap.String("run_id", runID))
		return res, nil
	}
	res.LeaseHeld = true

	start := time.Now()
	defer func() { metrics.ChunkDuration.Observe(time.Since(start).Seconds()) }()

	run, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	channels, err := c.store.ListMappedChannels(ctx, run.NextChannelOffset, c.channelsPerChunk)
	if err != nil {
		return nil, err
	}

	staffLookup := BuildStaffLookup(ctx, c.store, c.logger)

	for _, state := range channels {
		chRes := c.syncer.SyncChannel(ctx, state.ChannelID, staffLookup)
		res.Channels = append(res.Channels, chRes)
		res.MessagesSynced += chRes.MessagesSynced
		if chRes.Err != nil {
			res.FailedChannels++
		} else {
			res.SyncedChannels++
		}
	}
	res.ChannelsProcessed = len(channels)

	if err := c.store.AdvanceRunProgress(ctx, runID,
		res.ChannelsProcessed, res.SyncedChannels, res.FailedChannels, res.MessagesSynced); err != nil {
		return nil, err
	}

	// A short window signals the channel list is exhausted even when the
	// snapshotted total has gone stale.
	newOffset := run.NextChannelOffset + res.ChannelsProcessed
	if newOffset >= run.TotalChannels || res.ChannelsProcessed < c.channelsPerChunk {
		if err := c.store.CompleteRun(ctx, runID); err != nil {
			return nil, err
		}
		res.Completed = true
	}

	c.logger.Info("sync chunk processed",
		zap.String("run_id", runID),
		zap.Int("channels_processed", res.ChannelsProcessed),
		zap.Int("synced", res.SyncedChannels),
		zap.Int("failed", res.FailedChannels),
		zap.Int64("messages_synced", res.MessagesSynced),
		zap.Bool("completed", res.Completed))
	return res, nil
}

// RefreshChannelDirectory reconciles channel names for known sync states
// against the upstream channel listing. Names drift upstream; ids do not.
// It never creates or deletes sync states.
func (c *Coordinator) RefreshChannelDirectory(ctx context.Context) (int, error) {
	upstream, err := c.api.ListChannels(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list upstream channels: %w", err)
	}
	names := make(map[string]string, len(upstream))
	for _, ch := range upstream {
		names[ch.ID] = ch.Name
	}

	states, err := c.store.ListAllMappedChannels(ctx)
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, state := range states {
		name, ok := names[state.ChannelID]
		if !ok || name == "" || name == state.ChannelName {
			continue
		}
		if err := c.store.UpdateChannelName(ctx, state.ChannelID, name); err != nil {
			return updated, err
		}
		c.logger.Info("channel renamed upstream",
			zap.String("channel_id", state.ChannelID),
			zap.String("old_name", state.ChannelName),
			zap.String("new_name", name))
		updated++
	}
	return updated, nil
}
