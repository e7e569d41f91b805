package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the replay pipeline.
type Metrics struct {
	// --- Ingestion ---
	IngestLinesRead    *prometheus.CounterVec
	IngestEventsParsed *prometheus.CounterVec
	IngestSpotFiltered prometheus.Counter
	IngestOutOfWindow  prometheus.Counter
	IngestParseErrors  *prometheus.CounterVec

	// --- Replay core ---
	ReplayEventsApplied *prometheus.CounterVec
	ReplayEventsSkipped *prometheus.CounterVec
	ReplayFillActions   *prometheus.CounterVec
	ReplayLastTimestamp prometheus.Gauge
	ReplayAccounts      prometheus.Gauge
	ReplayDuration      prometheus.Gauge

	// --- Trigger captures ---
	CapturesTotal          prometheus.Counter
	CapturesIncomplete     prometheus.Counter
	CapturesNegativeEquity prometheus.Counter

	// --- Channel & backpressure ---
	ChannelSize        *prometheus.GaugeVec
	ChannelCapacity    *prometheus.GaugeVec
	ChannelUtilization *prometheus.GaugeVec

	// --- Record sink (Postgres) ---
	SinkRecordsWritten prometheus.Counter
	SinkBatchSize      prometheus.Histogram
	SinkBatchDuration  prometheus.Histogram
	SinkErrors         *prometheus.CounterVec
	SinkRetry          prometheus.Counter

	// --- Publisher (NATS) ---
	PublishRecords prometheus.Counter
	PublishDrops   prometheus.Counter
	PublishErrors  prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	batchDurBuckets := []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25}

	return &Metrics{
		// Ingestion
		IngestLinesRead: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "cascade_ingest_lines_read_total",
			Help: "Archive lines read",
		}, []string{"source"}),

		IngestEventsParsed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "cascade_ingest_events_parsed_total",
			Help: "Events decoded from archive lines",
		}, []string{"source", "event_kind"}),

		IngestSpotFiltered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cascade_ingest_spot_filtered_total",
			Help: "Spot-market fills dropped before replay",
		}),

		IngestOutOfWindow: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cascade_ingest_out_of_window_total",
			Help: "Events outside the replay window",
		}),

		IngestParseErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "cascade_ingest_parse_errors_total",
			Help: "Lines that failed to decode",
		}, []string{"source"}),

		// Replay core
		ReplayEventsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "cascade_replay_events_applied_total",
			Help: "Events applied to account ledgers",
		}, []string{"event_kind"}),

		ReplayEventsSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "cascade_replay_events_skipped_total",
			Help: "Events skipped (unknown_instrument, unbalanced_transfer)",
		}, []string{"reason"}),

		ReplayFillActions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "cascade_replay_fill_actions_total",
			Help: "Fill effects by position action",
		}, []string{"action"}),

		ReplayLastTimestamp: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "cascade_replay_last_timestamp_ms",
			Help: "Timestamp of last applied event (epoch ms)",
		}),

		ReplayAccounts: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "cascade_replay_accounts",
			Help: "Accounts tracked in the ledger store",
		}),

		ReplayDuration: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "cascade_replay_duration_seconds",
			Help: "Total replay wall time",
		}),

		// Trigger captures
		CapturesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cascade_captures_total",
			Help: "Pre-application snapshots captured at triggers",
		}),

		CapturesIncomplete: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cascade_captures_incomplete_total",
			Help: "Captures flagged incomplete (missing mark price)",
		}),

		CapturesNegativeEquity: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cascade_captures_negative_equity_total",
			Help: "Captures with account value below zero",
		}),

		// Channel & backpressure
		ChannelSize: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cascade_channel_size",
			Help: "Current items in channel",
		}, []string{"name"}),

		ChannelCapacity: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cascade_channel_capacity",
			Help: "Channel capacity (constant)",
		}, []string{"name"}),

		ChannelUtilization: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cascade_channel_utilization",
			Help: "Channel size / capacity (0.0-1.0)",
		}, []string{"name"}),

		// Record sink
		SinkRecordsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cascade_sink_records_written_total",
			Help: "Capture records written to Postgres",
		}),

		SinkBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "cascade_sink_batch_size",
			Help:    "Records per batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),

		SinkBatchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "cascade_sink_batch_duration_seconds",
			Help:    "Postgres batch write duration",
			Buckets: batchDurBuckets,
		}),

		SinkErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "cascade_sink_errors_total",
			Help: "Sink write errors",
		}, []string{"error_type"}),

		SinkRetry: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cascade_sink_retry_total",
			Help: "Sink write retries",
		}),

		// Publisher
		PublishRecords: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cascade_publish_records_total",
			Help: "Capture records published to NATS",
		}),

		PublishDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cascade_publish_drops_total",
			Help: "Records dropped due to full publish channel",
		}),

		PublishErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cascade_publish_errors_total",
			Help: "NATS publish errors",
		}),
	}
}

// SetChannelMetrics updates channel utilization metrics.
func (m *Metrics) SetChannelMetrics(name string, size, capacity int) {
	m.ChannelSize.WithLabelValues(name).Set(float64(size))
	m.ChannelCapacity.WithLabelValues(name).Set(float64(capacity))
	if capacity > 0 {
		m.ChannelUtilization.WithLabelValues(name).Set(float64(size) / float64(capacity))
	}
}
