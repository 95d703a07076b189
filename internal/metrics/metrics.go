package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the backup subsystem.
// A private registry keeps test processes from tripping over
// duplicate registration.
type Metrics struct {
	BackupsTotal     *prometheus.CounterVec
	RestoresTotal    *prometheus.CounterVec
	BackupDuration   prometheus.Histogram
	RestoreDuration  prometheus.Histogram
	BackupSizeBytes  prometheus.Histogram
	RetentionDeletes prometheus.Counter
	RPOMinutes       prometheus.Gauge

	registry *prometheus.Registry
}

// New creates and registers all collectors on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		BackupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recoverd_backups_total",
				Help: "Backup runs by outcome",
			},
			[]string{"outcome"},
		),
		RestoresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recoverd_restores_total",
				Help: "Restore runs by outcome",
			},
			[]string{"outcome"},
		),
		BackupDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "recoverd_backup_duration_seconds",
				Help:    "Wall-clock duration of backup runs",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
			},
		),
		RestoreDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "recoverd_restore_duration_seconds",
				Help:    "Wall-clock duration of restore runs",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
			},
		),
		BackupSizeBytes: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "recoverd_backup_size_bytes",
				Help:    "Serialized payload size per backup",
				Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
			},
		),
		RetentionDeletes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "recoverd_retention_deletes_total",
				Help: "Recovery points removed by retention cleanup",
			},
		),
		RPOMinutes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "recoverd_rpo_minutes",
				Help: "Minutes since the last completed backup",
			},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.BackupsTotal,
		m.RestoresTotal,
		m.BackupDuration,
		m.RestoreDuration,
		m.BackupSizeBytes,
		m.RetentionDeletes,
		m.RPOMinutes,
	)
	return m
}

// Registry exposes the underlying registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveBackup records one backup run.
func (m *Metrics) ObserveBackup(outcome string, d time.Duration, sizeBytes int64) {
	m.BackupsTotal.WithLabelValues(outcome).Inc()
	m.BackupDuration.Observe(d.Seconds())
	if sizeBytes > 0 {
		m.BackupSizeBytes.Observe(float64(sizeBytes))
	}
}

// ObserveRestore records one restore run.
func (m *Metrics) ObserveRestore(outcome string, d time.Duration) {
	m.RestoresTotal.WithLabelValues(outcome).Inc()
	m.RestoreDuration.Observe(d.Seconds())
}
