// Package sync implements incremental Slack channel synchronization: message
// parsing and classification, per-channel two-watermark sync, chunked run
// coordination behind a datastore lease, and staff reclassification.
package sync

import (
	"context"
	"time"

	"github.com/pulsedesk/slack-sync/pkg/slack"
	"github.com/pulsedesk/slack-sync/pkg/syncdb"
)

// SlackAPI is the slice of the upstream client the sync engines consume.
type SlackAPI interface {
	JoinChannel(ctx context.Context, channelID string) error
	GetChannelHistoryPage(ctx context.Context, channelID string, opts slack.HistoryOptions) (*slack.HistoryPage, error)
	ListChannels(ctx context.Context) ([]slack.Channel, error)
}

// Store is the persistence surface the sync engines consume.
type Store interface {
	GetChannelState(ctx context.Context, channelID string) (*syncdb.ChannelSyncState, error)
	ListMappedChannels(ctx context.Context, offset, limit int) ([]*syncdb.ChannelSyncState, error)
	ListAllMappedChannels(ctx context.Context) ([]*syncdb.ChannelSyncState, error)
	CountMappedChannels(ctx context.Context) (int, error)
	SetChannelMembership(ctx context.Context, channelID string, member bool) error
	UpdateChannelName(ctx context.Context, channelID, name string) error
	RecordChannelSyncSuccess(ctx context.Context, channelID string, latestTs, oldestTs *string, backfillComplete bool, messagesAdded int64) error
	SetChannelError(ctx context.Context, channelID, message string) error
	UpsertMessages(ctx context.Context, msgs []*syncdb.Message) (int64, error)
	ActiveRunExists(ctx context.Context) (bool, error)
	CreateRun(ctx context.Context, run *syncdb.SyncRun) error
	GetRun(ctx context.Context, runID string) (*syncdb.SyncRun, error)
	AcquireRunLease(ctx context.Context, runID string, leaseFor time.Duration) (bool, error)
	AdvanceRunProgress(ctx context.Context, runID string, channelsProcessed, syncedChannels, failedChannels int, messagesSynced int64) error
	CompleteRun(ctx context.Context, runID string) error
	ListStaffSlackIdentities(ctx context.Context) (map[string]string, error)
	ReclassifyStaffMessages(ctx context.Context, externalUserID, staffID string) (int64, error)
	UnclassifyStaffMessages(ctx context.Context, staffID string) (int64, error)
}

// ChannelSyncer is what the coordinator drives for each channel in a chunk.
type ChannelSyncer interface {
	SyncChannel(ctx context.Context, channelID string, staffLookup map[string]string) ChannelResult
}
