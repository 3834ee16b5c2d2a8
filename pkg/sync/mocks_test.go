package sync

import (
	"context"
	"time"

	"github.com/pulsedesk/slack-sync/pkg/slack"
	"github.com/pulsedesk/slack-sync/pkg/syncdb"
)

// mockStore implements Store with overridable func fields. Unset fields
// return zero values so tests only wire what they exercise.
type mockStore struct {
	getChannelState          func(ctx context.Context, channelID string) (*syncdb.ChannelSyncState, error)
	listMappedChannels       func(ctx context.Context, offset, limit int) ([]*syncdb.ChannelSyncState, error)
	listAllMappedChannels    func(ctx context.Context) ([]*syncdb.ChannelSyncState, error)
	countMappedChannels      func(ctx context.Context) (int, error)
	setChannelMembership     func(ctx context.Context, channelID string, member bool) error
	updateChannelName        func(ctx context.Context, channelID, name string) error
	recordChannelSyncSuccess func(ctx context.Context, channelID string, latestTs, oldestTs *string, backfillComplete bool, messagesAdded int64) error
	setChannelError          func(ctx context.Context, channelID, message string) error
	upsertMessages           func(ctx context.Context, msgs []*syncdb.Message) (int64, error)
	activeRunExists          func(ctx context.Context) (bool, error)
	createRun                func(ctx context.Context, run *syncdb.SyncRun) error
	getRun                   func(ctx context.Context, runID string) (*syncdb.SyncRun, error)
	acquireRunLease          func(ctx context.Context, runID string, leaseFor time.Duration) (bool, error)
	advanceRunProgress       func(ctx context.Context, runID string, channelsProcessed, syncedChannels, failedChannels int, messagesSynced int64) error
	completeRun              func(ctx context.Context, runID string) error
	listStaffSlackIdentities func(ctx context.Context) (map[string]string, error)
	reclassifyStaffMessages  func(ctx context.Context, externalUserID, staffID string) (int64, error)
	unclassifyStaffMessages  func(ctx context.Context, staffID string) (int64, error)
}

func (m *mockStore) GetChannelState(ctx context.Context, channelID string) (*syncdb.ChannelSyncState, error) {
	if m.getChannelState == nil {
		return nil, syncdb.ErrChannelNotFound
	}
	return m.getChannelState(ctx, channelID)
}

func (m *mockStore) ListMappedChannels(ctx context.Context, offset, limit int) ([]*syncdb.ChannelSyncState, error) {
	if m.listMappedChannels == nil {
		return nil, nil
	}
	return m.listMappedChannels(ctx, offset, limit)
}

func (m *mockStore) ListAllMappedChannels(ctx context.Context) ([]*syncdb.ChannelSyncState, error) {
	if m.listAllMappedChannels == nil {
		return nil, nil
	}
	return m.listAllMappedChannels(ctx)
}

func (m *mockStore) CountMappedChannels(ctx context.Context) (int, error) {
	if m.countMappedChannels == nil {
		return 0, nil
	}
	return m.countMappedChannels(ctx)
}

func (m *mockStore) SetChannelMembership(ctx context.Context, channelID string, member bool) error {
	if m.setChannelMembership == nil {
		return nil
	}
	return m.setChannelMembership(ctx, channelID, member)
}

func (m *mockStore) UpdateChannelName(ctx context.Context, channelID, name string) error {
	if m.updateChannelName == nil {
		return nil
	}
	return m.updateChannelName(ctx, channelID, name)
}

func (m *mockStore) RecordChannelSyncSuccess(ctx context.Context, channelID string, latestTs, oldestTs *string, backfillComplete bool, messagesAdded int64) error {
	if m.recordChannelSyncSuccess == nil {
		return nil
	}
	return m.recordChannelSyncSuccess(ctx, channelID, latestTs, oldestTs, backfillComplete, messagesAdded)
}

func (m *mockStore) SetChannelError(ctx context.Context, channelID, message string) error {
	if m.setChannelError == nil {
		return nil
	}
	return m.setChannelError(ctx, channelID, message)
}

func (m *mockStore) UpsertMessages(ctx context.Context, msgs []*syncdb.Message) (int64, error) {
	if m.upsertMessages == nil {
		return int64(len(msgs)), nil
	}
	return m.upsertMessages(ctx, msgs)
}

func (m *mockStore) ActiveRunExists(ctx context.Context) (bool, error) {
	if m.activeRunExists == nil {
		return false, nil
	}
	return m.activeRunExists(ctx)
}

func (m *mockStore) CreateRun(ctx context.Context, run *syncdb.SyncRun) error {
	if m.createRun == nil {
		return nil
	}
	return m.createRun(ctx, run)
}

func (m *mockStore) GetRun(ctx context.Context, runID string) (*syncdb.SyncRun, error) {
	if m.getRun == nil {
		return nil, syncdb.ErrRunNotFound
	}
	return m.getRun(ctx, runID)
}

func (m *mockStore) AcquireRunLease(ctx context.Context, runID string, leaseFor time.Duration) (bool, error) {
	if m.acquireRunLease == nil {
		return true, nil
	}
	return m.acquireRunLease(ctx, runID, leaseFor)
}

func (m *mockStore) AdvanceRunProgress(ctx context.Context, runID string, channelsProcessed, syncedChannels, failedChannels int, messagesSynced int64) error {
	if m.advanceRunProgress == nil {
		return nil
	}
	return m.advanceRunProgress(ctx, runID, channelsProcessed, syncedChannels, failedChannels, messagesSynced)
}

func (m *mockStore) CompleteRun(ctx context.Context, runID string) error {
	if m.completeRun == nil {
		return nil
	}
	return m.completeRun(ctx, runID)
}

func (m *mockStore) ListStaffSlackIdentities(ctx context.Context) (map[string]string, error) {
	if m.listStaffSlackIdentities == nil {
		return map[string]string{}, nil
	}
	return m.listStaffSlackIdentities(ctx)
}

func (m *mockStore) ReclassifyStaffMessages(ctx context.Context, externalUserID, staffID string) (int64, error) {
	if m.reclassifyStaffMessages == nil {
		return 0, nil
	}
	return m.reclassifyStaffMessages(ctx, externalUserID, staffID)
}

func (m *mockStore) UnclassifyStaffMessages(ctx context.Context, staffID string) (int64, error) {
	if m.unclassifyStaffMessages == nil {
		return 0, nil
	}
	return m.unclassifyStaffMessages(ctx, staffID)
}

// mockAPI implements SlackAPI with overridable func fields.
type mockAPI struct {
	joinChannel           func(ctx context.Context, channelID string) error
	getChannelHistoryPage func(ctx context.Context, channelID string, opts slack.HistoryOptions) (*slack.HistoryPage, error)
	listChannels          func(ctx context.Context) ([]slack.Channel, error)
}

func (m *mockAPI) JoinChannel(ctx context.Context, channelID string) error {
	if m.joinChannel == nil {
		return nil
	}
	return m.joinChannel(ctx, channelID)
}

func (m *mockAPI) GetChannelHistoryPage(ctx context.Context, channelID string, opts slack.HistoryOptions) (*slack.HistoryPage, error) {
	if m.getChannelHistoryPage == nil {
		return &slack.HistoryPage{}, nil
	}
	return m.getChannelHistoryPage(ctx, channelID, opts)
}

func (m *mockAPI) ListChannels(ctx context.Context) ([]slack.Channel, error) {
	if m.listChannels == nil {
		return nil, nil
	}
	return m.listChannels(ctx)
}

// mockSyncer implements ChannelSyncer for coordinator tests.
type mockSyncer struct {
	syncChannel func(ctx context.Context, channelID string, staffLookup map[string]string) ChannelResult
}

func (m *mockSyncer) SyncChannel(ctx context.Context, channelID string, staffLookup map[string]string) ChannelResult {
	if m.syncChannel == nil {
		return ChannelResult{ChannelID: channelID}
	}
	return m.syncChannel(ctx, channelID, staffLookup)
}
