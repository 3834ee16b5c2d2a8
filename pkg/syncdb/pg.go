// Package syncdb provides the PostgreSQL persistence layer for the sync and
// analytics engines.
package syncdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

var (
	// ErrChannelNotFound is returned when a channel sync state lookup finds no row.
	ErrChannelNotFound = errors.New("channel sync state not found")
	// ErrRunNotFound is returned when a sync run lookup finds no row.
	ErrRunNotFound = errors.New("sync run not found")
)

// Store provides database operations for the sync and analytics engines.
type Store struct {
	db *bun.DB
}

// NewStore creates a new postgres-backed store.
func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

// ---- channel sync state ----

// GetChannelState fetches one channel's sync state by channel id.
func (s *Store) GetChannelState(ctx context.Context, channelID string) (*ChannelSyncState, error) {
	state := new(ChannelSyncState)
	err := s.db.NewSelect().
		Model(state).
		Where("channel_id = ?", channelID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrChannelNotFound
		}
		return nil, fmt.Errorf("failed to get channel state: %w", err)
	}
	return state, nil
}

// ListMappedChannels returns a window of partner-mapped channels ordered by
// last_synced_at ascending with nulls first, so never-synced and stalest
// channels are served before recently synced ones.
func (s *Store) ListMappedChannels(ctx context.Context, offset, limit int) ([]*ChannelSyncState, error) {
	var states []*ChannelSyncState
	err := s.db.NewSelect().
		Model(&states).
		Where("mapped_partner_id IS NOT NULL").
		OrderExpr("last_synced_at ASC NULLS FIRST").
		Order("channel_id ASC").
		Offset(offset).
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list mapped channels: %w", err)
	}
	return states, nil
}

// ListAllMappedChannels returns every partner-mapped channel.
func (s *Store) ListAllMappedChannels(ctx context.Context) ([]*ChannelSyncState, error) {
	var states []*ChannelSyncState
	err := s.db.NewSelect().
		Model(&states).
		Where("mapped_partner_id IS NOT NULL").
		Order("channel_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list mapped channels: %w", err)
	}
	return states, nil
}

// CountMappedChannels counts partner-mapped channels.
func (s *Store) CountMappedChannels(ctx context.Context) (int, error) {
	count, err := s.db.NewSelect().
		Model((*ChannelSyncState)(nil)).
		Where("mapped_partner_id IS NOT NULL").
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count mapped channels: %w", err)
	}
	return count, nil
}

// SetChannelMembership records whether the bot is a member of the channel.
func (s *Store) SetChannelMembership(ctx context.Context, channelID string, member bool) error {
	_, err := s.db.NewUpdate().
		Model((*ChannelSyncState)(nil)).
		Set("bot_is_member = ?", member).
		Set("updated_at = NOW()").
		Where("channel_id = ?", channelID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set channel membership: %w", err)
	}
	return nil
}

// UpdateChannelName refreshes the cached channel name.
func (s *Store) UpdateChannelName(ctx context.Context, channelID, name string) error {
	_, err := s.db.NewUpdate().
		Model((*ChannelSyncState)(nil)).
		Set("channel_name = ?", name).
		Set("updated_at = NOW()").
		Where("channel_id = ?", channelID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update channel name: %w", err)
	}
	return nil
}

// RecordChannelSyncSuccess persists the watermarks computed by a successful
// channel sync, bumps message_count additively, stamps last_synced_at and
// clears any prior error. The engine guarantees watermark monotonicity
// before calling.
func (s *Store) RecordChannelSyncSuccess(ctx context.Context, channelID string, latestTs, oldestTs *string, backfillComplete bool, messagesAdded int64) error {
	_, err := s.db.NewUpdate().
		Model((*ChannelSyncState)(nil)).
		Set("latest_ts = ?", latestTs).
		Set("oldest_ts = ?", oldestTs).
		Set("is_backfill_complete = ?", backfillComplete).
		Set("message_count = message_count + ?", messagesAdded).
		Set("last_synced_at = NOW()").
		Set("error = NULL").
		Set("updated_at = NOW()").
		Where("channel_id = ?", channelID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to record channel sync success: %w", err)
	}
	return nil
}

// SetChannelError records the last error seen while syncing a channel.
func (s *Store) SetChannelError(ctx context.Context, channelID, message string) error {
	_, err := s.db.NewUpdate().
		Model((*ChannelSyncState)(nil)).
		Set("error = ?", message).
		Set("updated_at = NOW()").
		Where("channel_id = ?", channelID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set channel error: %w", err)
	}
	return nil
}

// ---- messages ----

// UpsertMessages bulk-inserts message metadata rows, silently skipping rows
// whose (channel_id, message_ts) already exists. Returns the number of rows
// actually inserted.
func (s *Store) UpsertMessages(ctx context.Context, msgs []*Message) (int64, error) {
	if len(msgs) == 0 {
		return 0, nil
	}
	res, err := s.db.NewInsert().
		Model(&msgs).
		On("CONFLICT (channel_id, message_ts) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert messages: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read upsert row count: %w", err)
	}
	return inserted, nil
}

// ListMessagesBetween returns a channel's messages with posted_at in
// [from, to), in chronological order.
func (s *Store) ListMessagesBetween(ctx context.Context, channelID string, from, to time.Time) ([]*Message, error) {
	var msgs []*Message
	err := s.db.NewSelect().
		Model(&msgs).
		Where("channel_id = ?", channelID).
		Where("posted_at >= ?", from).
		Where("posted_at < ?", to).
		Order("posted_at ASC").
		Order("message_ts ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return msgs, nil
}

// ReclassifyStaffMessages attributes all still-unattributed messages from the
// given external user to the given staff id. Returns the number of rows
// updated; re-running with the same inputs is a no-op.
func (s *Store) ReclassifyStaffMessages(ctx context.Context, externalUserID, staffID string) (int64, error) {
	res, err := s.db.NewUpdate().
		Model((*Message)(nil)).
		Set("sender_staff_id = ?", staffID).
		Set("sender_is_staff = TRUE").
		Where("sender_external_id = ?", externalUserID).
		Where("sender_staff_id IS NULL").
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to reclassify staff messages: %w", err)
	}
	updated, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read reclassify row count: %w", err)
	}
	return updated, nil
}

// UnclassifyStaffMessages clears staff attribution from all messages
// currently attributed to the given staff id.
func (s *Store) UnclassifyStaffMessages(ctx context.Context, staffID string) (int64, error) {
	res, err := s.db.NewUpdate().
		Model((*Message)(nil)).
		Set("sender_staff_id = NULL").
		Set("sender_is_staff = FALSE").
		Where("sender_staff_id = ?", staffID).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to unclassify staff messages: %w", err)
	}
	updated, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read unclassify row count: %w", err)
	}
	return updated, nil
}

// ---- sync runs ----

// ActiveRunExists reports whether any run is currently pending or running.
func (s *Store) ActiveRunExists(ctx context.Context) (bool, error) {
	exists, err := s.db.NewSelect().
		Model((*SyncRun)(nil)).
		Where("status IN (?)", bun.In([]RunStatus{RunStatusPending, RunStatusRunning})).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check active runs: %w", err)
	}
	return exists, nil
}

// CreateRun inserts a new sync run row.
func (s *Store) CreateRun(ctx context.Context, run *SyncRun) error {
	_, err := s.db.NewInsert().
		Model(run).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create sync run: %w", err)
	}
	return nil
}

// GetRun fetches one sync run by id.
func (s *Store) GetRun(ctx context.Context, runID string) (*SyncRun, error) {
	run := new(SyncRun)
	err := s.db.NewSelect().
		Model(run).
		Where("id = ?", runID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to get sync run: %w", err)
	}
	return run, nil
}

// AcquireRunLease atomically transitions the run to running and extends its
// lease, but only if the run is still pending/running and either no lease is
// held or the held lease has already expired. A false return means another
// worker owns the lease and the caller must do nothing this invocation.
func (s *Store) AcquireRunLease(ctx context.Context, runID string, leaseFor time.Duration) (bool, error) {
	now := time.Now().UTC()
	res, err := s.db.NewUpdate().
		Model((*SyncRun)(nil)).
		Set("status = ?", RunStatusRunning).
		Set("worker_lease_expires_at = ?", now.Add(leaseFor)).
		Set("last_heartbeat_at = ?", now).
		Where("id = ?", runID).
		Where("status IN (?)", bun.In([]RunStatus{RunStatusPending, RunStatusRunning})).
		Where("(worker_lease_expires_at IS NULL OR worker_lease_expires_at < ?)", now).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to acquire run lease: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read lease row count: %w", err)
	}
	return rows > 0, nil
}

// AdvanceRunProgress additively bumps the run counters and its channel
// offset after a chunk, and records a heartbeat.
func (s *Store) AdvanceRunProgress(ctx context.Context, runID string, channelsProcessed, syncedChannels, failedChannels int, messagesSynced int64) error {
	_, err := s.db.NewUpdate().
		Model((*SyncRun)(nil)).
		Set("next_channel_offset = next_channel_offset + ?", channelsProcessed).
		Set("synced_channels = synced_channels + ?", syncedChannels).
		Set("failed_channels = failed_channels + ?", failedChannels).
		Set("total_messages_synced = total_messages_synced + ?", messagesSynced).
		Set("last_heartbeat_at = NOW()").
		Where("id = ?", runID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to advance run progress: %w", err)
	}
	return nil
}

// CompleteRun marks a run completed. Terminal states are written at most once.
func (s *Store) CompleteRun(ctx context.Context, runID string) error {
	return s.finishRun(ctx, runID, RunStatusCompleted, nil)
}

// FailRun marks a run failed with the given error text.
func (s *Store) FailRun(ctx context.Context, runID, errMsg string) error {
	return s.finishRun(ctx, runID, RunStatusFailed, &errMsg)
}

// CancelRun marks a run cancelled.
func (s *Store) CancelRun(ctx context.Context, runID string) error {
	return s.finishRun(ctx, runID, RunStatusCancelled, nil)
}

func (s *Store) finishRun(ctx context.Context, runID string, status RunStatus, errMsg *string) error {
	q := s.db.NewUpdate().
		Model((*SyncRun)(nil)).
		Set("status = ?", status).
		Set("completed_at = NOW()").
		Where("id = ?", runID).
		Where("status IN (?)", bun.In([]RunStatus{RunStatusPending, RunStatusRunning}))
	if errMsg != nil {
		q = q.Set("error = ?", *errMsg)
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to mark run %s: %w", status, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read run update row count: %w", err)
	}
	if rows == 0 {
		return ErrRunNotFound
	}
	return nil
}

// ---- identities and assignments ----

// ListStaffSlackIdentities builds the Slack-user-id to staff-id lookup for a
// sync chunk.
func (s *Store) ListStaffSlackIdentities(ctx context.Context) (map[string]string, error) {
	var rows []*ExternalIdentity
	err := s.db.NewSelect().
		Model(&rows).
		Where("entity_type = ?", EntityTypeStaff).
		Where("source = ?", SourceSlackUser).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list staff identities: %w", err)
	}
	lookup := make(map[string]string, len(rows))
	for _, row := range rows {
		lookup[row.ExternalID] = row.EntityID
	}
	return lookup, nil
}

// GetPodLeader resolves the partner's currently-assigned pod leader. Returns
// nil without error when no active assignment exists.
func (s *Store) GetPodLeader(ctx context.Context, partnerID string) (*string, error) {
	assignment := new(PartnerAssignment)
	err := s.db.NewSelect().
		Model(assignment).
		Where("partner_id = ?", partnerID).
		Where("role = ?", RolePodLeader).
		Where("unassigned_at IS NULL").
		Order("assigned_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get pod leader: %w", err)
	}
	return &assignment.StaffID, nil
}

// GetPartnerStatus returns the partner status recorded on the most recent
// active assignment, or nil when unknown.
func (s *Store) GetPartnerStatus(ctx context.Context, partnerID string) (*string, error) {
	assignment := new(PartnerAssignment)
	err := s.db.NewSelect().
		Model(assignment).
		Where("partner_id = ?", partnerID).
		Where("unassigned_at IS NULL").
		Order("assigned_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get partner status: %w", err)
	}
	return assignment.PartnerStatus, nil
}

// ---- response metrics ----

// UpsertResponseMetric writes one per-channel-per-day metric row, replacing
// any prior computation for that day.
func (s *Store) UpsertResponseMetric(ctx context.Context, m *ResponseMetric) error {
	_, err := s.db.NewInsert().
		Model(m).
		On("CONFLICT (channel_id, date) DO UPDATE").
		Set("partner_id = EXCLUDED.partner_id").
		Set("pod_leader_id = EXCLUDED.pod_leader_id").
		Set("total_messages = EXCLUDED.total_messages").
		Set("staff_messages = EXCLUDED.staff_messages").
		Set("partner_messages = EXCLUDED.partner_messages").
		Set("avg_response_minutes = EXCLUDED.avg_response_minutes").
		Set("median_response_minutes = EXCLUDED.median_response_minutes").
		Set("p95_response_minutes = EXCLUDED.p95_response_minutes").
		Set("max_response_minutes = EXCLUDED.max_response_minutes").
		Set("min_response_minutes = EXCLUDED.min_response_minutes").
		Set("resp_under_30m = EXCLUDED.resp_under_30m").
		Set("resp_30m_to_1h = EXCLUDED.resp_30m_to_1h").
		Set("resp_1h_to_4h = EXCLUDED.resp_1h_to_4h").
		Set("resp_4h_to_24h = EXCLUDED.resp_4h_to_24h").
		Set("resp_over_24h = EXCLUDED.resp_over_24h").
		Set("unanswered_count = EXCLUDED.unanswered_count").
		Set("algorithm_version = EXCLUDED.algorithm_version").
		Set("computed_at = NOW()").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to upsert response metric: %w", err)
	}
	return nil
}

// GetResponseMetric fetches one metric row by channel and day.
func (s *Store) GetResponseMetric(ctx context.Context, channelID string, date time.Time) (*ResponseMetric, error) {
	m := new(ResponseMetric)
	err := s.db.NewSelect().
		Model(m).
		Where("channel_id = ?", channelID).
		Where("date = ?", date.Format("2006-01-02")).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get response metric: %w", err)
	}
	return m, nil
}
