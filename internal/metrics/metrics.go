package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SlackAPICalls counts requests to the Slack Web API by method and outcome
	SlackAPICalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slack_sync_api_calls_total",
			Help: "Total number of Slack Web API calls",
		},
		[]string{"method", "outcome"},
	)

	// SlackAPIRetries counts 429 retries by method
	SlackAPIRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slack_sync_api_retries_total",
			Help: "Total number of rate-limited Slack API retries",
		},
		[]string{"method"},
	)

	// ChannelsSynced counts per-channel sync outcomes
	ChannelsSynced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slack_sync_channels_total",
			Help: "Total number of channel sync attempts",
		},
		[]string{"outcome"},
	)

	// MessagesUpserted counts message metadata rows written
	MessagesUpserted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "slack_sync_messages_upserted_total",
			Help: "Total number of message metadata rows inserted",
		},
	)

	// ChunkDuration tracks how long one coordinator chunk takes
	ChunkDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "slack_sync_chunk_duration_seconds",
			Help:    "Sync chunk processing duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		},
	)

	// ResponseMetricsComputed counts per-(channel,day) analytics outcomes
	ResponseMetricsComputed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slack_sync_response_metrics_total",
			Help: "Total number of per-channel-per-day response metric computations",
		},
		[]string{"outcome"},
	)

	// MessagesReclassified counts staff attribution updates
	MessagesReclassified = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "slack_sync_messages_reclassified_total",
			Help: "Total number of messages whose staff attribution was updated",
		},
	)
)
