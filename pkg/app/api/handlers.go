package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/pulsedesk/slack-sync/pkg/analytics"
	apperrors "github.com/pulsedesk/slack-sync/pkg/app/errors"
	apphttp "github.com/pulsedesk/slack-sync/pkg/app/http"
	"github.com/pulsedesk/slack-sync/pkg/sync"
	"github.com/pulsedesk/slack-sync/pkg/syncdb"
)

// runCoordinator, metricsEngine, bulkReclassifier and runStore are the
// slices of the engines the handlers consume; tests substitute func-field
// mocks for them.
type runCoordinator interface {
	CreateRun(ctx context.Context, triggeredBy string) (*syncdb.SyncRun, error)
	ProcessChunk(ctx context.Context, runID string) (*sync.ChunkResult, error)
	RefreshChannelDirectory(ctx context.Context) (int, error)
}

type metricsEngine interface {
	ComputeRange(ctx context.Context, from, to time.Time) (*analytics.BulkResult, error)
	ComputeDailyRollingWindow(ctx context.Context) (*analytics.BulkResult, error)
}

type bulkReclassifier interface {
	BulkReclassifyStaffMessages(ctx context.Context, pairs []sync.ReclassifyPair) (int64, error)
}

type runStore interface {
	GetRun(ctx context.Context, runID string) (*syncdb.SyncRun, error)
	CancelRun(ctx context.Context, runID string) error
	ListStaffSlackIdentities(ctx context.Context) (map[string]string, error)
}

type handler struct {
	coord        runCoordinator
	syncer       sync.ChannelSyncer
	analytics    metricsEngine
	reclassifier bulkReclassifier
	store        runStore
	logger       *zap.Logger
}

func newHandler(coord runCoordinator, syncer sync.ChannelSyncer, analytics metricsEngine,
	reclassifier bulkReclassifier, store runStore, logger *zap.Logger) *handler {
	return &handler{
		coord:        coord,
		syncer:       syncer,
		analytics:    analytics,
		reclassifier: reclassifier,
		store:        store,
		logger:       logger,
	}
}

func newRouter(h *handler, metricsEnabled bool) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		apphttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/runs", apphttp.HandleError(h.createRun))
		r.Get("/runs/{runID}", apphttp.HandleError(h.getRun))
		r.Post("/runs/{runID}/chunk", apphttp.HandleError(h.processChunk))
		r.Post("/runs/{runID}/cancel", apphttp.HandleError(h.cancelRun))
		r.Post("/channels/{channelID}/sync", apphttp.HandleError(h.syncChannel))
		r.Post("/channels/refresh", apphttp.HandleError(h.refreshChannels))
		r.Post("/metrics/recompute", apphttp.HandleError(h.recomputeMetrics))
		r.Post("/metrics/rolling", apphttp.HandleError(h.computeRollingWindow))
		r.Post("/reclassify", apphttp.HandleError(h.bulkReclassify))
	})
	return r
}

type runResponse struct {
	ID                  string     `json:"id"`
	Status              string     `json:"status"`
	TriggeredBy         string     `json:"triggered_by"`
	TotalChannels       int        `json:"total_channels"`
	SyncedChannels      int        `json:"synced_channels"`
	FailedChannels      int        `json:"failed_channels"`
	TotalMessagesSynced int64      `json:"total_messages_synced"`
	NextChannelOffset   int        `json:"next_channel_offset"`
	StartedAt           time.Time  `json:"started_at"`
	CompletedAt         *time.Time `json:"completed_at,omitempty"`
	Error               *string    `json:"error,omitempty"`
}

func toRunResponse(run *syncdb.SyncRun) *runResponse {
	return &runResponse{
		ID:                  run.ID,
		Status:              string(run.Status),
		TriggeredBy:         run.TriggeredBy,
		TotalChannels:       run.TotalChannels,
		SyncedChannels:      run.SyncedChannels,
		FailedChannels:      run.FailedChannels,
		TotalMessagesSynced: run.TotalMessagesSynced,
		NextChannelOffset:   run.NextChannelOffset,
		StartedAt:           run.StartedAt,
		CompletedAt:         run.CompletedAt,
		Error:               run.Error,
	}
}

func (h *handler) createRun(w http.ResponseWriter, r *http.Request) error {
	var req struct {
		TriggeredBy string `json:"triggered_by"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apperrors.BadRequestError(err, "invalid request body")
	}
	if req.TriggeredBy == "" {
		req.TriggeredBy = "api"
	}

	run, err := h.coord.CreateRun(r.Context(), req.TriggeredBy)
	if err != nil {
		if errors.Is(err, sync.ErrRunActive) {
			return apperrors.ConflictError(err, "a sync run is already active")
		}
		return apperrors.GeneralError(err)
	}
	apphttp.WriteJSON(w, http.StatusCreated, toRunResponse(run))
	return nil
}

func (h *handler) getRun(w http.ResponseWriter, r *http.Request) error {
	run, err := h.store.GetRun(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		if errors.Is(err, syncdb.ErrRunNotFound) {
			return apperrors.ResourceNotFoundError(err, "run not found")
		}
		return apperrors.GeneralError(err)
	}
	apphttp.WriteJSON(w, http.StatusOK, toRunResponse(run))
	return nil
}

func (h *handler) processChunk(w http.ResponseWriter, r *http.Request) error {
	res, err := h.coord.ProcessChunk(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		if errors.Is(err, syncdb.ErrRunNotFound) {
			return apperrors.ResourceNotFoundError(err, "run not found")
		}
		return apperrors.GeneralError(err)
	}
	apphttp.WriteJSON(w, http.StatusOK, res)
	return nil
}

func (h *handler) cancelRun(w http.ResponseWriter, r *http.Request) error {
	runID := chi.URLParam(r, "runID")
	if err := h.store.CancelRun(r.Context(), runID); err != nil {
		if errors.Is(err, syncdb.ErrRunNotFound) {
			return apperrors.ResourceNotFoundError(err, "no cancellable run found")
		}
		return apperrors.GeneralError(err)
	}
	apphttp.WriteJSON(w, http.StatusOK, map[string]string{"id": runID, "status": string(syncdb.RunStatusCancelled)})
	return nil
}

// syncChannel is the debug/admin path that syncs one channel outside any
// run. Per-channel failures come back in the payload, except a missing
// channel which is a plain 404.
func (h *handler) syncChannel(w http.ResponseWriter, r *http.Request) error {
	channelID := chi.URLParam(r, "channelID")
	staffLookup, err := h.store.ListStaffSlackIdentities(r.Context())
	if err != nil {
		h.logger.Warn("failed to build staff lookup, proceeding unattributed", zap.Error(err))
		staffLookup = map[string]string{}
	}

	res := h.syncer.SyncChannel(r.Context(), channelID, staffLookup)
	if errors.Is(res.Err, syncdb.ErrChannelNotFound) {
		return apperrors.ResourceNotFoundError(res.Err, "channel not found")
	}

	payload := struct {
		ChannelID      string `json:"channel_id"`
		MessagesSynced int64  `json:"messages_synced"`
		Error          string `json:"error,omitempty"`
	}{ChannelID: res.ChannelID, MessagesSynced: res.MessagesSynced}
	if res.Err != nil {
		payload.Error = res.Err.Error()
	}
	apphttp.WriteJSON(w, http.StatusOK, payload)
	return nil
}

func (h *handler) refreshChannels(w http.ResponseWriter, r *http.Request) error {
	updated, err := h.coord.RefreshChannelDirectory(r.Context())
	if err != nil {
		return apperrors.GeneralError(err)
	}
	apphttp.WriteJSON(w, http.StatusOK, map[string]int{"updated": updated})
	return nil
}

func (h *handler) recomputeMetrics(w http.ResponseWriter, r *http.Request) error {
	var req struct {
		From string `json:"from"`
		To   string `json:"to"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apperrors.BadRequestError(err, "invalid request body")
	}
	from, err := time.Parse("2006-01-02", req.From)
	if err != nil {
		return apperrors.BadRequestError(err, "invalid from date, expected YYYY-MM-DD")
	}
	to, err := time.Parse("2006-01-02", req.To)
	if err != nil {
		return apperrors.BadRequestError(err, "invalid to date, expected YYYY-MM-DD")
	}

	res, err := h.analytics.ComputeRange(r.Context(), from, to)
	if err != nil {
		return apperrors.BadRequestError(err, err.Error())
	}
	apphttp.WriteJSON(w, http.StatusOK, res)
	return nil
}

func (h *handler) computeRollingWindow(w http.ResponseWriter, r *http.Request) error {
	res, err := h.analytics.ComputeDailyRollingWindow(r.Context())
	if err != nil {
		return apperrors.GeneralError(err)
	}
	apphttp.WriteJSON(w, http.StatusOK, res)
	return nil
}

func (h *handler) bulkReclassify(w http.ResponseWriter, r *http.Request) error {
	var req struct {
		Pairs []sync.ReclassifyPair `json:"pairs"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apperrors.BadRequestError(err, "invalid request body")
	}
	if len(req.Pairs) == 0 {
		return apperrors.BadRequestError(nil, "pairs must not be empty")
	}
	for _, p := range req.Pairs {
		if p.ExternalUserID == "" || p.StaffID == "" {
			return apperrors.BadRequestError(nil, "each pair requires external_user_id and staff_id")
		}
	}

	updated, err := h.reclassifier.BulkReclassifyStaffMessages(r.Context(), req.Pairs)
	if err != nil {
		return apperrors.GeneralError(err)
	}
	apphttp.WriteJSON(w, http.StatusOK, map[string]int64{"updated": updated})
	return nil
}
