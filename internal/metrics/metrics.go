package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	ReasonMalformedValue     = "malformed_value"
	ReasonMalformedTimestamp = "malformed_timestamp"
	ReasonDuplicate          = "duplicate"
)

var (
	SourceFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "energybill_source_fetch_total",
			Help: "Total source dataset fetches",
		},
		[]string{"dataset", "scheme", "status"},
	)

	SourceFetchLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "energybill_source_fetch_latency_seconds",
			Help:    "Source dataset fetch latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"dataset", "scheme"},
	)

	RowsLoaded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "energybill_rows_loaded_total",
			Help: "Total raw rows read from source datasets",
		},
		[]string{"dataset"},
	)

	RowsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "energybill_rows_dropped_total",
			Help: "Total raw rows dropped during normalization",
		},
		[]string{"dataset", "reason"},
	)

	QualityFlags = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "energybill_quality_flags_total",
			Help: "Merged records flagged as implausible, by flag",
		},
		[]string{"flag"},
	)

	MergedRecords = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "energybill_merged_records",
			Help: "Number of merged records in the loaded dataset",
		},
	)

	ComputeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "energybill_compute_latency_seconds",
			Help:    "Aggregation and summary latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		},
		[]string{"operation", "granularity"},
	)

	EmptyRanges = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "energybill_empty_range_total",
			Help: "Total summaries requested over a range with no data",
		},
	)
)
