package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pulsedesk/slack-sync/pkg/analytics"
	"github.com/pulsedesk/slack-sync/pkg/sync"
	"github.com/pulsedesk/slack-sync/pkg/syncdb"
)

type mockCoord struct {
	createRun               func(ctx context.Context, triggeredBy string) (*syncdb.SyncRun, error)
	processChunk            func(ctx context.Context, runID string) (*sync.ChunkResult, error)
	refreshChannelDirectory func(ctx context.Context) (int, error)
}

func (m *mockCoord) CreateRun(ctx context.Context, triggeredBy string) (*syncdb.SyncRun, error) {
	return m.createRun(ctx, triggeredBy)
}

func (m *mockCoord) ProcessChunk(ctx context.Context, runID string) (*sync.ChunkResult, error) {
	return m.processChunk(ctx, runID)
}

func (m *mockCoord) RefreshChannelDirectory(ctx context.Context) (int, error) {
	if m.refreshChannelDirectory == nil {
		return 0, nil
	}
	return m.refreshChannelDirectory(ctx)
}

type mockAnalytics struct {
	computeRange              func(ctx context.Context, from, to time.Time) (*analytics.BulkResult, error)
	computeDailyRollingWindow func(ctx context.Context) (*analytics.BulkResult, error)
}

func (m *mockAnalytics) ComputeRange(ctx context.Context, from, to time.Time) (*analytics.BulkResult, error) {
	return m.computeRange(ctx, from, to)
}

func (m *mockAnalytics) ComputeDailyRollingWindow(ctx context.Context) (*analytics.BulkResult, error) {
	return m.computeDailyRollingWindow(ctx)
}

type mockReclassifier struct {
	bulkReclassify func(ctx context.Context, pairs []sync.ReclassifyPair) (int64, error)
}

func (m *mockReclassifier) BulkReclassifyStaffMessages(ctx context.Context, pairs []sync.ReclassifyPair) (int64, error) {
	return m.bulkReclassify(ctx, pairs)
}

type mockRunStore struct {
	getRun              func(ctx context.Context, runID string) (*syncdb.SyncRun, error)
	cancelRun           func(ctx context.Context, runID string) error
	listStaffIdentities func(ctx context.Context) (map[string]string, error)
}

func (m *mockRunStore) GetRun(ctx context.Context, runID string) (*syncdb.SyncRun, error) {
	return m.getRun(ctx, runID)
}

func (m *mockRunStore) CancelRun(ctx context.Context, runID string) error {
	return m.cancelRun(ctx, runID)
}

func (m *mockRunStore) ListStaffSlackIdentities(ctx context.Context) (map[string]string, error) {
	if m.listStaffIdentities == nil {
		return map[string]string{}, nil
	}
	return m.listStaffIdentities(ctx)
}

type mockSyncer struct {
	syncChannel func(ctx context.Context, channelID string, staffLookup map[string]string) sync.ChannelResult
}

func (m *mockSyncer) SyncChannel(ctx context.Context, channelID string, staffLookup map[string]string) sync.ChannelResult {
	return m.syncChannel(ctx, channelID, staffLookup)
}

type testDeps struct {
	coord        *mockCoord
	syncer       *mockSyncer
	analytics    *mockAnalytics
	reclassifier *mockReclassifier
	store        *mockRunStore
}

func newTestRouter(deps testDeps) http.Handler {
	h := newHandler(deps.coord, deps.syncer, deps.analytics, deps.reclassifier, deps.store, zap.NewNop())
	return newRouter(h, false)
}

func doRequest(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateRunReturnsCreated(t *testing.T) {
	router := newTestRouter(testDeps{
		coord: &mockCoord{
			createRun: func(ctx context.Context, triggeredBy string) (*syncdb.SyncRun, error) {
				assert.Equal(t, "scheduler", triggeredBy)
				return &syncdb.SyncRun{ID: "run-1", Status: syncdb.RunStatusPending, TriggeredBy: triggeredBy, TotalChannels: 3}, nil
			},
		},
	})

	rec := doRequest(t, router, http.MethodPost, "/api/v1/runs", `{"triggered_by":"scheduler"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"run-1"`)
	assert.Contains(t, rec.Body.String(), `"status":"pending"`)
}

func TestCreateRunConflictsWhenRunActive(t *testing.T) {
	router := newTestRouter(testDeps{
		coord: &mockCoord{
			createRun: func(ctx context.Context, triggeredBy string) (*syncdb.SyncRun, error) {
				return nil, sync.ErrRunActive
			},
		},
	})

	rec := doRequest(t, router, http.MethodPost, "/api/v1/runs", `{}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetRunNotFound(t *testing.T) {
	router := newTestRouter(testDeps{
		store: &mockRunStore{
			getRun: func(ctx context.Context, runID string) (*syncdb.SyncRun, error) {
				return nil, syncdb.ErrRunNotFound
			},
		},
	})

	rec := doRequest(t, router, http.MethodGet, "/api/v1/runs/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProcessChunkReportsLeaseDenied(t *testing.T) {
	router := newTestRouter(testDeps{
		coord: &mockCoord{
			processChunk: func(ctx context.Context, runID string) (*sync.ChunkResult, error) {
				assert.Equal(t, "run-1", runID)
				return &sync.ChunkResult{RunID: runID, LeaseHeld: false}, nil
			},
		},
	})

	rec := doRequest(t, router, http.MethodPost, "/api/v1/runs/run-1/chunk", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"lease_held":false`)
}

func TestSyncChannelNotFound(t *testing.T) {
	router := newTestRouter(testDeps{
		store: &mockRunStore{},
		syncer: &mockSyncer{
			syncChannel: func(ctx context.Context, channelID string, staffLookup map[string]string) sync.ChannelResult {
				return sync.ChannelResult{ChannelID: channelID, Err: syncdb.ErrChannelNotFound}
			},
		},
	})

	rec := doRequest(t, router, http.MethodPost, "/api/v1/channels/C404/sync", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSyncChannelReportsResult(t *testing.T) {
	router := newTestRouter(testDeps{
		store: &mockRunStore{},
		syncer: &mockSyncer{
			syncChannel: func(ctx context.Context, channelID string, staffLookup map[string]string) sync.ChannelResult {
				return sync.ChannelResult{ChannelID: channelID, MessagesSynced: 12}
			},
		},
	})

	rec := doRequest(t, router, http.MethodPost, "/api/v1/channels/C1/sync", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"messages_synced":12`)
}

func TestRecomputeMetricsValidatesDates(t *testing.T) {
	router := newTestRouter(testDeps{analytics: &mockAnalytics{}})

	rec := doRequest(t, router, http.MethodPost, "/api/v1/metrics/recompute", `{"from":"not-a-date","to":"2026-08-10"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecomputeMetricsReturnsBulkResult(t *testing.T) {
	router := newTestRouter(testDeps{
		analytics: &mockAnalytics{
			computeRange: func(ctx context.Context, from, to time.Time) (*analytics.BulkResult, error) {
				assert.Equal(t, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), from)
				assert.Equal(t, time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC), to)
				return &analytics.BulkResult{Computed: 20, Failed: 1, Errors: []string{"channel C9 date 2026-08-03: query timeout"}}, nil
			},
		},
	})

	rec := doRequest(t, router, http.MethodPost, "/api/v1/metrics/recompute", `{"from":"2026-08-01","to":"2026-08-10"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"computed":20`)
	assert.Contains(t, rec.Body.String(), `"failed":1`)
}

func TestBulkReclassifyValidatesPairs(t *testing.T) {
	router := newTestRouter(testDeps{reclassifier: &mockReclassifier{}})

	rec := doRequest(t, router, http.MethodPost, "/api/v1/reclassify", `{"pairs":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, router, http.MethodPost, "/api/v1/reclassify", `{"pairs":[{"external_user_id":"U1"}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBulkReclassifyReturnsUpdatedCount(t *testing.T) {
	router := newTestRouter(testDeps{
		reclassifier: &mockReclassifier{
			bulkReclassify: func(ctx context.Context, pairs []sync.ReclassifyPair) (int64, error) {
				require.Len(t, pairs, 2)
				return 7, nil
			},
		},
	})

	rec := doRequest(t, router, http.MethodPost, "/api/v1/reclassify",
		`{"pairs":[{"external_user_id":"U1","staff_id":"s1"},{"external_user_id":"U2","staff_id":"s2"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"updated":7`)
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(testDeps{})
	rec := doRequest(t, router, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
