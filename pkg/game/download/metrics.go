package download

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the download counters, labelled by pipeline (client,
// libraries, assets, runtime).
type Metrics struct {
	fetchTotal    *prometheus.CounterVec
	cacheHitTotal *prometheus.CounterVec
	retryTotal    *prometheus.CounterVec
	failureTotal  *prometheus.CounterVec
	bytesTotal    *prometheus.CounterVec
	duration      *prometheus.HistogramVec
}

// NewMetrics creates the download metrics and registers them on reg when
// reg is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		fetchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gamepipe_download_fetch_total",
				Help: "Number of artifact fetch attempts.",
			},
			[]string{"pipeline"},
		),
		cacheHitTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gamepipe_download_cache_hit_total",
				Help: "Number of artifacts already present with the expected hash.",
			},
			[]string{"pipeline"},
		),
		retryTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gamepipe_download_retry_total",
				Help: "Number of fetch attempts beyond the first.",
			},
			[]string{"pipeline"},
		),
		failureTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gamepipe_download_failure_total",
				Help: "Number of artifacts that could not be fetched and verified.",
			},
			[]string{"pipeline"},
		),
		bytesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gamepipe_download_bytes_total",
				Help: "Number of bytes written to disk.",
			},
			[]string{"pipeline"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gamepipe_download_pipeline_duration_seconds",
				Help:    "Time taken by a download pipeline.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"pipeline"},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.fetchTotal,
			m.cacheHitTotal,
			m.retryTotal,
			m.failureTotal,
			m.bytesTotal,
			m.duration,
		)
	}
	return m
}
