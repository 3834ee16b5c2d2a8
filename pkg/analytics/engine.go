// Package analytics derives per-channel-per-day response-time metrics from
// synced message metadata using a pending/reply state walk.
package analytics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/pulsedesk/slack-sync/internal/metrics"
	"github.com/pulsedesk/slack-sync/pkg/config"
	"github.com/pulsedesk/slack-sync/pkg/syncdb"
)

// algorithmVersion stamps metric rows so consumers can tell recomputed rows
// from rows produced by older walk semantics.
const algorithmVersion = 2

// Store is the persistence surface the analytics engine consumes.
type Store interface {
	ListAllMappedChannels(ctx context.Context) ([]*syncdb.ChannelSyncState, error)
	ListMessagesBetween(ctx context.Context, channelID string, from, to time.Time) ([]*syncdb.Message, error)
	GetPodLeader(ctx context.Context, partnerID string) (*string, error)
	GetPartnerStatus(ctx context.Context, partnerID string) (*string, error)
	UpsertResponseMetric(ctx context.Context, m *syncdb.ResponseMetric) error
}

// Engine computes response-time metrics. A day's true response times cannot
// be finalized until the lookahead window has passed, so recent days are
// recomputed repeatedly by the rolling window; the (channel_id, date) upsert
// makes that self-healing.
type Engine struct {
	store     Store
	logger    *zap.Logger
	lookahead int
}

func NewEngine(store Store, cfg *config.Config, logger *zap.Logger) *Engine {
	return &Engine{
		store:     store,
		logger:    logger,
		lookahead: cfg.Analytics.LookaheadDays,
	}
}

// ProcessMessageSequence walks one chronologically ordered, single-scope
// message sequence (top-level stream or one thread) and returns response-time
// samples in minutes plus the count of partner messages left unanswered.
//
// Bot messages are ignored entirely. A staff reply closes every pending
// partner message at once and is credited against the earliest of them; a
// staff message with nothing pending yields no sample. Partner messages only
// open pending windows when posted within the anchor day: lookahead-day
// partner traffic can be waited on only through windows the anchor day
// already opened, never open new ones. This asymmetry lets a same-day
// question be credited even when the reply lands the next day, without
// polluting the day's metric with windows that belong to days measured
// separately.
func ProcessMessageSequence(msgs []*syncdb.Message, anchorDayStart, anchorDayEnd time.Time) (samples []float64, unanswered int) {
	var pending []time.Time
	for _, msg := range msgs {
		if msg.SenderType == syncdb.SenderTypeBot {
			continue
		}
		if msg.SenderIsStaff {
			if len(pending) > 0 {
				samples = append(samples, msg.PostedAt.Sub(pending[0]).Minutes())
				pending = pending[:0]
			}
			continue
		}
		if msg.SenderType != syncdb.SenderTypeUser {
			continue
		}
		if !msg.PostedAt.Before(anchorDayStart) && msg.PostedAt.Before(anchorDayEnd) {
			pending = append(pending, msg.PostedAt)
		}
	}
	return samples, len(pending)
}

// dayComputation carries the raw outcome of one (channel, anchor day) walk
// before aggregation.
type dayComputation struct {
	samples         []float64
	unanswered      int
	totalMessages   int
	staffMessages   int
	partnerMessages int
	podLeaderID     *string
}

// computeResponseTimes fetches the anchor day plus its lookahead window,
// partitions messages into the top-level stream and one group per thread,
// and walks each partition independently: a reply in one thread must not
// close pending windows in another.
func (e *Engine) computeResponseTimes(ctx context.Context, channelID, partnerID string, anchorDate time.Time) (*dayComputation, error) {
	dayStart := anchorDate.UTC().Truncate(24 * time.Hour)
	dayEnd := dayStart.Add(24 * time.Hour)
	windowEnd := dayStart.Add(time.Duration(e.lookahead+1) * 24 * time.Hour)

	msgs, err := e.store.ListMessagesBetween(ctx, channelID, dayStart, windowEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages for channel %s: %w", channelID, err)
	}

	comp := &dayComputation{}

	var topLevel []*syncdb.Message
	threads := map[string][]*syncdb.Message{}
	for _, msg := range msgs {
		if msg.ThreadTs == nil {
			topLevel = append(topLevel, msg)
		} else {
			threads[*msg.ThreadTs] = append(threads[*msg.ThreadTs], msg)
		}

		// Volume counts are restricted strictly to the anchor day and are
		// independent of the response-time windows. Totals include bots.
		if !msg.PostedAt.Before(dayStart) && msg.PostedAt.Before(dayEnd) {
			comp.totalMessages++
			if msg.SenderIsStaff {
				comp.staffMessages++
			} else if msg.SenderType == syncdb.SenderTypeUser {
				comp.partnerMessages++
			}
		}
	}

	walk := func(scope []*syncdb.Message) {
		samples, unanswered := ProcessMessageSequence(scope, dayStart, dayEnd)
		comp.samples = append(comp.samples, samples...)
		comp.unanswered += unanswered
	}
	walk(topLevel)
	for _, thread := range threads {
		walk(thread)
	}

	// Pod leader resolution is best-effort; the metric row carries null
	// when the partner has no current leader.
	leader, err := e.store.GetPodLeader(ctx, partnerID)
	if err != nil {
		e.logger.Warn("pod leader lookup failed",
			zap.String("partner_id", partnerID),
			zap.Error(err))
	} else {
		comp.podLeaderID = leader
	}
	return comp, nil
}

// ComputeChannelMetrics runs the walk for one channel and anchor day,
// aggregates the samples and upserts the (channel_id, date) metric row,
// overwriting any prior computation for that day.
func (e *Engine) ComputeChannelMetrics(ctx context.Context, state *syncdb.ChannelSyncState, anchorDate time.Time) error {
	if state.MappedPartnerID == nil {
		return fmt.Errorf("channel %s is not mapped to a partner", state.ChannelID)
	}
	partnerID := *state.MappedPartnerID

	comp, err := e.computeResponseTimes(ctx, state.ChannelID, partnerID, anchorDate)
	if err != nil {
		return err
	}

	row := &syncdb.ResponseMetric{
		ChannelID:        state.ChannelID,
		PartnerID:        partnerID,
		PodLeaderID:      comp.podLeaderID,
		Date:             anchorDate.UTC().Truncate(24 * time.Hour),
		TotalMessages:    comp.totalMessages,
		StaffMessages:    comp.staffMessages,
		PartnerMessages:  comp.partnerMessages,
		UnansweredCount:  comp.unanswered,
		AlgorithmVersion: algorithmVersion,
		ComputedAt:       time.Now().UTC(),
	}
	aggregate(row, comp.samples)

	if err := e.store.UpsertResponseMetric(ctx, row); err != nil {
		return fmt.Errorf("failed to upsert response metric: %w", err)
	}
	return nil
}

// aggregate fills the statistical fields from the sample set. All of them
// stay null when no response times were observed.
func aggregate(row *syncdb.ResponseMetric, samples []float64) {
	for _, v := range samples {
		// Half-open buckets, checked in increasing threshold order, so a
		// response of exactly 30.0 minutes lands in the 30m-1h bucket.
		switch {
		case v < 30:
			row.RespUnder30m++
		case v < 60:
			row.Resp30mTo1h++
		case v < 240:
			row.Resp1hTo4h++
		case v < 1440:
			row.Resp4hTo24h++
		default:
			row.RespOver24h++
		}
	}

	if len(samples) == 0 {
		return
	}

	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	n := len(sorted)

	avg := sum / float64(n)
	median := sorted[n/2]
	if n%2 == 0 {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	}
	p95Idx := int(float64(n)*0.95+0.999999) - 1
	if p95Idx < 0 {
		p95Idx = 0
	}
	if p95Idx >= n {
		p95Idx = n - 1
	}
	p95 := sorted[p95Idx]
	minV, maxV := sorted[0], sorted[n-1]

	row.AvgResponseMinutes = &avg
	row.MedianResponseMinutes = &median
	row.P95ResponseMinutes = &p95
	row.MinResponseMinutes = &minV
	row.MaxResponseMinutes = &maxV
}

// BulkResult summarizes a multi-(channel, day) computation. Per-item
// failures are collected, never propagated, so one bad combination cannot
// abort the rest of the window.
type BulkResult struct {
	Computed int      `json:"computed"`
	Failed   int      `json:"failed"`
	Errors   []string `json:"errors,omitempty"`
}

// ComputeRange recomputes every mapped channel for every day in
// [from, to], inclusive, both truncated to UTC days.
func (e *Engine) ComputeRange(ctx context.Context, from, to time.Time) (*BulkResult, error) {
	from = from.UTC().Truncate(24 * time.Hour)
	to = to.UTC().Truncate(24 * time.Hour)
	if to.Before(from) {
		return nil, fmt.Errorf("invalid date range: %s is after %s", from.Format("2006-01-02"), to.Format("2006-01-02"))
	}

	channels, err := e.store.ListAllMappedChannels(ctx)
	if err != nil {
		return nil, err
	}

	res := &BulkResult{}
	for _, state := range channels {
		for day := from; !day.After(to); day = day.Add(24 * time.Hour) {
			if err := e.ComputeChannelMetrics(ctx, state, day); err != nil {
				res.Failed++
				res.Errors = append(res.Errors,
					fmt.Sprintf("channel %s date %s: %v", state.ChannelID, day.Format("2006-01-02"), err))
				metrics.ResponseMetricsComputed.WithLabelValues("failure").Inc()
				e.logger.Error("response metric computation failed",
					zap.String("channel_id", state.ChannelID),
					zap.Time("date", day),
					zap.Error(err))
				continue
			}
			res.Computed++
			metrics.ResponseMetricsComputed.WithLabelValues("success").Inc()
		}
	}

	e.logPartnerStatusDistribution(ctx, channels)
	return res, nil
}

// ComputeDailyRollingWindow is the scheduled entry point. It recomputes
// [today − lookahead, yesterday]: days inside the lookahead horizon are
// still accumulating staff replies and are intentionally recomputed each
// day until they age out of the window.
func (e *Engine) ComputeDailyRollingWindow(ctx context.Context) (*BulkResult, error) {
	today := time.Now().UTC().Truncate(24 * time.Hour)
	from := today.Add(-time.Duration(e.lookahead) * 24 * time.Hour)
	yesterday := today.Add(-24 * time.Hour)

	res, err := e.ComputeRange(ctx, from, yesterday)
	if err != nil {
		return nil, err
	}
	e.logger.Info("rolling window computed",
		zap.Time("from", from),
		zap.Time("to", yesterday),
		zap.Int("computed", res.Computed),
		zap.Int("failed", res.Failed))
	return res, nil
}

// logPartnerStatusDistribution summarizes, per status bucket, how many
// partners the window covered. Purely informational.
func (e *Engine) logPartnerStatusDistribution(ctx context.Context, channels []*syncdb.ChannelSyncState) {
	dist := map[string]int{}
	var raw []string
	for _, state := range channels {
		if state.MappedPartnerID == nil {
			continue
		}
		status, err := e.store.GetPartnerStatus(ctx, *state.MappedPartnerID)
		if err != nil || status == nil {
			continue
		}
		raw = append(raw, *status)
		dist[ClassifyStatus(*status, DefaultPartnerStatusBuckets)]++
	}
	if len(dist) == 0 {
		return
	}

	fields := []zap.Field{}
	for bucket, count := range dist {
		fields = append(fields, zap.Int("partners_"+bucket, count))
	}
	if unmapped := FindUnmappedStatuses(raw, DefaultPartnerStatusBuckets); len(unmapped) > 0 {
		fields = append(fields, zap.Strings("unmapped_statuses", unmapped))
	}
	e.logger.Info("partner status distribution", fields...)
}
