package sync

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pulsedesk/slack-sync/internal/metrics"
	"github.com/pulsedesk/slack-sync/pkg/config"
	"github.com/pulsedesk/slack-sync/pkg/slack"
	"github.com/pulsedesk/slack-sync/pkg/syncdb"
	"github.com/pulsedesk/slack-sync/pkg/tstamp"
)

// Engine synchronizes one channel per call using two watermarks: latest_ts
// only ever advances (forward pass) and oldest_ts only ever recedes
// (backfill pass). Page caps bound per-invocation work so one large channel
// cannot starve its chunk; backfill resumes on later invocations until the
// upstream reports no more history, which latches is_backfill_complete.
type Engine struct {
	api      SlackAPI
	store    Store
	logger   *zap.Logger
	lookback time.Duration
	maxPages int
	pageSize int
}

// ChannelResult summarizes one channel's sync attempt.
type ChannelResult struct {
	ChannelID      string
	MessagesSynced int64
	Err            error
}

func NewEngine(api SlackAPI, store Store, cfg *config.Config, logger *zap.Logger) *Engine {
	return &Engine{
		api:      api,
		store:    store,
		logger:   logger,
		lookback: time.Duration(cfg.Sync.LookbackDays) * 24 * time.Hour,
		maxPages: cfg.Sync.MaxPagesPerChannel,
		pageSize: cfg.Slack.HistoryPageSize,
	}
}

// SyncChannel runs one sync invocation for the channel. Failures are
// recorded on the channel's state row and returned in the result; they never
// propagate, so a failing channel cannot abort its siblings.
func (e *Engine) SyncChannel(ctx context.Context, channelID string, staffLookup map[string]string) ChannelResult {
	res := ChannelResult{ChannelID: channelID}
	res.MessagesSynced, res.Err = e.syncChannel(ctx, channelID, staffLookup)
	if res.Err != nil {
		e.logger.Error("channel sync failed",
			zap.String("channel_id", channelID),
			zap.Error(res.Err))
		if err := e.store.SetChannelError(ctx, channelID, res.Err.Error()); err != nil {
			e.logger.Error("failed to record channel error",
				zap.String("channel_id", channelID),
				zap.Error(err))
		}
		metrics.ChannelsSynced.WithLabelValues("failure").Inc()
		return res
	}
	metrics.ChannelsSynced.WithLabelValues("success").Inc()
	return res
}

func (e *Engine) syncChannel(ctx context.Context, channelID string, staffLookup map[string]string) (int64, error) {
	state, err := e.store.GetChannelState(ctx, channelID)
	if err != nil {
		return 0, err
	}

	if err := e.ensureMembership(ctx, state); err != nil {
		return 0, err
	}

	added, err := e.forwardPass(ctx, state, staffLookup)
	if err != nil {
		return added, err
	}

	backfilled, err := e.backfillPass(ctx, state, staffLookup)
	added += backfilled
	if err != nil {
		return added, err
	}

	if err := e.store.RecordChannelSyncSuccess(ctx, channelID,
		state.LatestTs, state.OldestTs, state.IsBackfillComplete, added); err != nil {
		return added, err
	}

	e.logger.Info("channel synced",
		zap.String("channel_id", channelID),
		zap.Int64("messages_added", added),
		zap.Bool("backfill_complete", state.IsBackfillComplete))
	return added, nil
}

// ensureMembership joins the channel if the bot is not yet a member. Private
// channels cannot be self-joined; for those a single-message history probe
// decides whether an invite already grants access.
func (e *Engine) ensureMembership(ctx context.Context, state *syncdb.ChannelSyncState) error {
	if state.BotIsMember {
		return nil
	}

	err := e.api.JoinChannel(ctx, state.ChannelID)
	if err != nil && slack.ErrorCode(err) != "already_in_channel" {
		e.logger.Warn("could not join channel, treating as private",
			zap.String("channel_id", state.ChannelID),
			zap.String("slack_error", slack.ErrorCode(err)))
		if _, probeErr := e.api.GetChannelHistoryPage(ctx, state.ChannelID, slack.HistoryOptions{Limit: 1}); probeErr != nil {
			return fmt.Errorf("bot is not a member of channel %s: %w", state.ChannelID, probeErr)
		}
	}

	state.BotIsMember = true
	return e.store.SetChannelMembership(ctx, state.ChannelID, true)
}

// forwardPass pages newer-than-latest_ts history and advances latest_ts to
// the maximum timestamp observed. On a channel's very first sync it also
// seeds oldest_ts to the lookback boundary so backfill has a starting point.
func (e *Engine) forwardPass(ctx context.Context, state *syncdb.ChannelSyncState, staffLookup map[string]string) (int64, error) {
	firstSync := state.LatestTs == nil && state.OldestTs == nil
	lookbackTs := tstamp.FromTime(time.Now().UTC().Add(-e.lookback))

	oldest := lookbackTs
	if state.LatestTs != nil {
		oldest = *state.LatestTs
	}

	var added int64
	var maxTs string
	cursor := ""
	for page := 0; page < e.maxPages; page++ {
		hp, err := e.api.GetChannelHistoryPage(ctx, state.ChannelID, slack.HistoryOptions{
			Oldest: oldest,
			Cursor: cursor,
			Limit:  e.pageSize,
		})
		if err != nil {
			return added, fmt.Errorf("forward pass page %d: %w", page, err)
		}

		n, ts, err := e.storePage(ctx, state.ChannelID, hp, staffLookup)
		if err != nil {
			return added, err
		}
		added += n
		if ts.max != "" && (maxTs == "" || tstamp.Compare(ts.max, maxTs) > 0) {
			maxTs = ts.max
		}

		if !hp.HasMore || hp.NextCursor == "" {
			break
		}
		cursor = hp.NextCursor
	}

	if maxTs != "" && (state.LatestTs == nil || tstamp.Compare(maxTs, *state.LatestTs) > 0) {
		state.LatestTs = &maxTs
	}
	if firstSync {
		state.OldestTs = &lookbackTs
	}
	return added, nil
}

// backfillPass pages older-than-oldest_ts history and recedes oldest_ts to
// the minimum timestamp observed. Exhausting upstream history latches
// is_backfill_complete permanently.
func (e *Engine) backfillPass(ctx context.Context, state *syncdb.ChannelSyncState, staffLookup map[string]string) (int64, error) {
	if state.IsBackfillComplete || state.OldestTs == nil {
		return 0, nil
	}

	var added int64
	var minTs string
	exhausted := false
	cursor := ""
	for page := 0; page < e.maxPages; page++ {
		hp, err := e.api.GetChannelHistoryPage(ctx, state.ChannelID, slack.HistoryOptions{
			Latest: *state.OldestTs,
			Cursor: cursor,
			Limit:  e.pageSize,
		})
		if err != nil {
			return added, fmt.Errorf("backfill pass page %d: %w", page, err)
		}

		n, ts, err := e.storePage(ctx, state.ChannelID, hp, staffLookup)
		if err != nil {
			return added, err
		}
		added += n
		if ts.min != "" && (minTs == "" || tstamp.Compare(ts.min, minTs) < 0) {
			minTs = ts.min
		}

		if !hp.HasMore || hp.NextCursor == "" {
			exhausted = true
			break
		}
		cursor = hp.NextCursor
	}

	if minTs != "" && tstamp.Compare(minTs, *state.OldestTs) < 0 {
		state.OldestTs = &minTs
	}
	if exhausted {
		state.IsBackfillComplete = true
	}
	return added, nil
}

type tsRange struct {
	min, max string
}

// storePage parses and upserts one history page, returning the number of
// rows actually inserted and the timestamp range of the parsed messages.
func (e *Engine) storePage(ctx context.Context, channelID string, page *slack.HistoryPage, staffLookup map[string]string) (int64, tsRange, error) {
	var ts tsRange
	msgs := parsePage(page, channelID, staffLookup)
	for _, m := range msgs {
		if ts.min == "" || tstamp.Compare(m.MessageTs, ts.min) < 0 {
			ts.min = m.MessageTs
		}
		if ts.max == "" || tstamp.Compare(m.MessageTs, ts.max) > 0 {
			ts.max = m.MessageTs
		}
	}
	if len(msgs) == 0 {
		return 0, ts, nil
	}

	n, err := e.store.UpsertMessages(ctx, msgs)
	if err != nil {
		return 0, ts, fmt.Errorf("failed to store page: %w", err)
	}
	metrics.MessagesUpserted.Add(float64(n))
	return n, ts, nil
}
