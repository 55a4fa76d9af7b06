package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	recordsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "titleplant",
			Name:      "records_processed_total",
			Help:      "Total records processed by the download worker, by portal and result",
		},
		[]string{"portal", "result"},
	)

	recordDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "titleplant",
			Name:      "record_duration_seconds",
			Help:      "End-to-end duration of a single record's download pipeline",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"portal"},
	)

	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "titleplant",
			Name:      "errors_total",
			Help:      "Errors encountered by the download worker, bucketed by error kind",
		},
		[]string{"kind"},
	)

	bytesDownloaded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "titleplant",
			Name:      "bytes_total",
			Help:      "Bytes processed, by stage (original, optimized)",
		},
		[]string{"stage"},
	)

	queueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "titleplant",
			Name:      "queue_depth",
			Help:      "Index-store queue depth by download_status",
		},
		[]string{"status"},
	)

	checkpointsWritten = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "titleplant",
			Name:      "checkpoints_written_total",
			Help:      "Total checkpoint files written by the scheduler",
		},
	)

	staleRecovered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "titleplant",
			Name:      "stale_recovered_total",
			Help:      "Total in_progress rows returned to pending by reset_stale",
		},
	)
)

// Init registers collectors.
func Init() {
	prometheus.MustRegister(
		recordsProcessed, recordDuration, errorsTotal, bytesDownloaded,
		queueDepth, checkpointsWritten, staleRecovered,
	)
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

func ObserveRecord(portal, result string, dur time.Duration) {
	recordsProcessed.WithLabelValues(portal, result).Inc()
	recordDuration.WithLabelValues(portal).Observe(dur.Seconds())
}

func IncError(kind string) { errorsTotal.WithLabelValues(kind).Inc() }

func AddBytes(stage string, n int) {
	if n > 0 {
		bytesDownloaded.WithLabelValues(stage).Add(float64(n))
	}
}

func SetQueueDepth(status string, v int64) { queueDepth.WithLabelValues(status).Set(float64(v)) }

func IncCheckpointWritten() { checkpointsWritten.Inc() }

func AddStaleRecovered(n int) {
	if n > 0 {
		staleRecovered.Add(float64(n))
	}
}
