package syncdb_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"

	migrationsyncdb "github.com/pulsedesk/slack-sync/pkg/migrations/syncdb"
	"github.com/pulsedesk/slack-sync/pkg/pgutil"
	"github.com/pulsedesk/slack-sync/pkg/syncdb"
)

// requireDockerAccess skips integration tests where no Docker socket is
// reachable for testcontainers.
func requireDockerAccess(t *testing.T) {
	t.Helper()
	if os.Getenv("DOCKER_HOST") != "" || os.Getenv("TESTCONTAINERS_RYUK_DISABLED") != "" {
		return
	}
	if _, err := os.Stat("/var/run/docker.sock"); err != nil {
		t.Skip("docker is not available, skipping integration test")
	}
}

func setupStore(t *testing.T) (*bun.DB, *syncdb.Store) {
	t.Helper()
	requireDockerAccess(t)

	db, cleanup := pgutil.SetupTestDB(t)
	t.Cleanup(cleanup)

	ctx := context.Background()
	migrator := migrate.NewMigrator(db, migrationsyncdb.Migrations)
	require.NoError(t, migrator.Init(ctx))
	_, err := migrator.Migrate(ctx)
	require.NoError(t, err)

	return db, syncdb.NewStore(db)
}

func insertChannelState(t *testing.T, db *bun.DB, state *syncdb.ChannelSyncState) {
	t.Helper()
	_, err := db.NewInsert().Model(state).Exec(context.Background())
	require.NoError(t, err)
}

func strPtr(s string) *string { return &s }

func TestUpsertMessagesIdempotent(t *testing.T) {
	db, store := setupStore(t)
	ctx := context.Background()

	msg := &syncdb.Message{
		ChannelID:  "C1",
		MessageTs:  "1700000000.000001",
		SenderType: syncdb.SenderTypeUser,
		PostedAt:   time.Unix(1700000000, 0).UTC(),
	}

	n, err := store.UpsertMessages(ctx, []*syncdb.Message{msg})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	dup := *msg
	dup.ID = 0
	n, err = store.UpsertMessages(ctx, []*syncdb.Message{&dup})
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	count, err := db.NewSelect().Model((*syncdb.Message)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestAcquireRunLeaseMutualExclusion(t *testing.T) {
	db, store := setupStore(t)
	ctx := context.Background()

	run := &syncdb.SyncRun{
		ID:          uuid.NewString(),
		Status:      syncdb.RunStatusPending,
		TriggeredBy: "test",
		StartedAt:   time.Now().UTC(),
	}
	require.NoError(t, store.CreateRun(ctx, run))

	ok, err := store.AcquireRunLease(ctx, run.ID, 4*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	// A live lease denies a second caller.
	ok, err = store.AcquireRunLease(ctx, run.ID, 4*time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// An expired lease is reclaimable even while status is still running.
	expired := time.Now().UTC().Add(-time.Minute)
	_, err = db.NewUpdate().Model((*syncdb.SyncRun)(nil)).
		Set("worker_lease_expires_at = ?", expired).
		Where("id = ?", run.ID).
		Exec(ctx)
	require.NoError(t, err)

	ok, err = store.AcquireRunLease(ctx, run.ID, 4*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, syncdb.RunStatusRunning, got.Status)
	require.NotNil(t, got.WorkerLeaseExpiresAt)
	assert.True(t, got.WorkerLeaseExpiresAt.After(time.Now().UTC()))
}

func TestAcquireRunLeaseOnTerminalRunFails(t *testing.T) {
	_, store := setupStore(t)
	ctx := context.Background()

	run := &syncdb.SyncRun{
		ID:          uuid.NewString(),
		Status:      syncdb.RunStatusPending,
		TriggeredBy: "test",
		StartedAt:   time.Now().UTC(),
	}
	require.NoError(t, store.CreateRun(ctx, run))
	require.NoError(t, store.CompleteRun(ctx, run.ID))

	ok, err := store.AcquireRunLease(ctx, run.ID, 4*time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListMappedChannelsOrdersNullsFirst(t *testing.T) {
	db, store := setupStore(t)
	ctx := context.Background()

	synced := time.Now().UTC().Add(-time.Hour)
	insertChannelState(t, db, &syncdb.ChannelSyncState{
		ChannelID: "C-synced", ChannelName: "a",
		MappedPartnerID: strPtr("p1"), LastSyncedAt: &synced,
	})
	insertChannelState(t, db, &syncdb.ChannelSyncState{
		ChannelID: "C-never", ChannelName: "b",
		MappedPartnerID: strPtr("p2"),
	})
	insertChannelState(t, db, &syncdb.ChannelSyncState{
		ChannelID: "C-unmapped", ChannelName: "c",
	})

	channels, err := store.ListMappedChannels(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, channels, 2)
	assert.Equal(t, "C-never", channels[0].ChannelID)
	assert.Equal(t, "C-synced", channels[1].ChannelID)

	count, err := store.CountMappedChannels(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestRecordChannelSyncSuccessIsAdditiveAndClearsError(t *testing.T) {
	db, store := setupStore(t)
	ctx := context.Background()

	insertChannelState(t, db, &syncdb.ChannelSyncState{
		ChannelID: "C1", ChannelName: "support",
		MappedPartnerID: strPtr("p1"),
		MessageCount:    10,
		Error:           strPtr("old failure"),
	})

	latest := "1700000500.000000"
	oldest := "1700000000.000000"
	require.NoError(t, store.RecordChannelSyncSuccess(ctx, "C1", &latest, &oldest, true, 5))

	state, err := store.GetChannelState(ctx, "C1")
	require.NoError(t, err)
	assert.Equal(t, int64(15), state.MessageCount)
	assert.Nil(t, state.Error)
	require.NotNil(t, state.LatestTs)
	assert.Equal(t, latest, *state.LatestTs)
	assert.True(t, state.IsBackfillComplete)
	require.NotNil(t, state.LastSyncedAt)
}

func TestUpsertResponseMetricOverwrites(t *testing.T) {
	db, store := setupStore(t)
	ctx := context.Background()

	date := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)
	avg1, avg2 := 12.5, 42.0

	first := &syncdb.ResponseMetric{
		ChannelID: "C1", PartnerID: "p1", Date: date,
		TotalMessages: 3, AvgResponseMinutes: &avg1,
		AlgorithmVersion: 2, ComputedAt: time.Now().UTC(),
	}
	require.NoError(t, store.UpsertResponseMetric(ctx, first))

	second := &syncdb.ResponseMetric{
		ChannelID: "C1", PartnerID: "p1", Date: date,
		TotalMessages: 9, AvgResponseMinutes: &avg2,
		AlgorithmVersion: 2, ComputedAt: time.Now().UTC(),
	}
	require.NoError(t, store.UpsertResponseMetric(ctx, second))

	got, err := store.GetResponseMetric(ctx, "C1", date)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 9, got.TotalMessages)
	require.NotNil(t, got.AvgResponseMinutes)
	assert.Equal(t, avg2, *got.AvgResponseMinutes)

	count, err := db.NewSelect().Model((*syncdb.ResponseMetric)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestReclassifyStaffMessagesScopedToUnattributed(t *testing.T) {
	_, store := setupStore(t)
	ctx := context.Background()

	user := "U1"
	already := "staff-existing"
	msgs := []*syncdb.Message{
		{
			ChannelID: "C1", MessageTs: "1700000000.000001",
			SenderType: syncdb.SenderTypeUser, SenderExternalID: &user,
			PostedAt: time.Unix(1700000000, 0).UTC(),
		},
		{
			ChannelID: "C1", MessageTs: "1700000000.000002",
			SenderType: syncdb.SenderTypeUser, SenderExternalID: &user,
			SenderStaffID: &already, SenderIsStaff: true,
			PostedAt: time.Unix(1700000001, 0).UTC(),
		},
	}
	_, err := store.UpsertMessages(ctx, msgs)
	require.NoError(t, err)

	n, err := store.ReclassifyStaffMessages(ctx, "U1", "staff-new")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// Re-running with the same inputs finds nothing left to update.
	n, err = store.ReclassifyStaffMessages(ctx, "U1", "staff-new")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	n, err = store.UnclassifyStaffMessages(ctx, "staff-new")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
