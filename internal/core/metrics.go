package core

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for upload activity. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	sessionsCreated  prometheus.Counter
	sessionsExpired  prometheus.Counter
	sessionsActive   prometheus.Gauge
	chunksReceived   prometheus.Counter
	chunkBytes       prometheus.Counter
	finalizations    *prometheus.CounterVec
	finalizeDuration prometheus.Histogram
	archives         *prometheus.CounterVec
}

// MustNewMetrics creates the collectors and registers them with reg,
// panicking on a registration conflict. Pass a fresh registry in tests.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	const ns, sub = "csvpreview", "upload"

	m := &Metrics{
		sessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "sessions_created_total",
			Help: "Upload sessions created.",
		}),
		sessionsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "sessions_expired_total",
			Help: "Upload sessions removed by the janitor.",
		}),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: sub,
			Name: "sessions_active",
			Help: "Upload sessions currently tracked.",
		}),
		chunksReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "chunks_received_total",
			Help: "Chunks stored, including retried indices.",
		}),
		chunkBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "chunk_bytes_total",
			Help: "Bytes of chunk payload stored.",
		}),
		finalizations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "finalizations_total",
			Help: "Finalize attempts that did real work, by outcome.",
		}, []string{"outcome"}),
		finalizeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns, Subsystem: sub,
			Name:    "finalize_duration_seconds",
			Help:    "Time spent assembling and parsing uploads.",
			Buckets: prometheus.DefBuckets,
		}),
		archives: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "archives_total",
			Help: "Assembled files copied to object storage, by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		m.sessionsCreated,
		m.sessionsExpired,
		m.sessionsActive,
		m.chunksReceived,
		m.chunkBytes,
		m.finalizations,
		m.finalizeDuration,
		m.archives,
	)
	return m
}

// SessionCreated counts a new session and updates the active gauge.
func (m *Metrics) SessionCreated(active int) {
	if m == nil {
		return
	}
	m.sessionsCreated.Inc()
	m.sessionsActive.Set(float64(active))
}

// SetActiveSessions sets the active gauge.
func (m *Metrics) SetActiveSessions(active int) {
	if m == nil {
		return
	}
	m.sessionsActive.Set(float64(active))
}

// SessionsExpired counts sessions removed by expiry.
func (m *Metrics) SessionsExpired(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.sessionsExpired.Add(float64(n))
}

// ChunkStored counts one stored chunk of the given size.
func (m *Metrics) ChunkStored(bytes int64) {
	if m == nil {
		return
	}
	m.chunksReceived.Inc()
	m.chunkBytes.Add(float64(bytes))
}

// ObserveFinalize records a finalize outcome and its duration.
func (m *Metrics) ObserveFinalize(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.finalizations.WithLabelValues(outcome).Inc()
	m.finalizeDuration.Observe(d.Seconds())
}

// ObserveArchive records an archive outcome.
func (m *Metrics) ObserveArchive(outcome string) {
	if m == nil {
		return
	}
	m.archives.WithLabelValues(outcome).Inc()
}
