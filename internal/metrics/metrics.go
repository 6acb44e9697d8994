// Package metrics records catalog loads as Prometheus metrics.
//
// A LoadMetrics is a loader.Recorder: pass it with loader.WithRecorder and
// every load updates the collectors. The CLI writes the registry to a
// node-exporter text file after the load.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/geocatalog/internal/loader"
	apperrors "github.com/geocatalog/pkg/errors"
)

const namespace = "geocatalog"

// LoadMetrics is the Prometheus implementation of loader.Recorder.
type LoadMetrics struct {
	registry *prometheus.Registry

	loadsTotal     *prometheus.CounterVec
	loadDuration   prometheus.Histogram
	phaseDuration  *prometheus.GaugeVec
	phaseRecords   *prometheus.GaugeVec
	objects        *prometheus.GaugeVec
	decoded        prometheus.Gauge
	failures       prometheus.Gauge
	dropped        *prometheus.GaugeVec
	patched        prometheus.Gauge
	parallelism    prometheus.Gauge
	poolTasks      *prometheus.GaugeVec
	sparesStarted  prometheus.Gauge
	lastSuccessSec prometheus.Gauge
}

// NewLoadMetrics registers the load collectors on a new registry.
func NewLoadMetrics() *LoadMetrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &LoadMetrics{
		registry: reg,
		loadsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "loads_total",
				Help:      "Catalog loads by outcome",
			},
			[]string{"status"},
		),
		loadDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "load_duration_seconds",
				Help:      "Wall time of catalog loads",
				Buckets: []float64{
					0.1,
					1,
					10,
					60,
					300,
				},
			},
		),
		phaseDuration: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "load_phase_duration_seconds",
				Help:      "Duration of each phase of the last load",
			},
			[]string{"phase"},
		),
		phaseRecords: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "load_phase_records",
				Help:      "Records consumed by each phase of the last load",
			},
			[]string{"phase"},
		),
		objects: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "catalog_objects_added",
				Help:      "Objects inserted by the last load, by kind",
			},
			[]string{"kind"},
		),
		decoded: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "load_decoded_records",
			Help:      "Records decoded by the last load",
		}),
		failures: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "load_failed_records",
			Help:      "Record files that could not be read or decoded in the last load",
		}),
		dropped: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "load_dropped_objects",
				Help:      "Decoded objects left out of the catalog by the last load, by reason",
			},
			[]string{"reason"},
		),
		patched: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "load_patched_objects",
			Help:      "Objects inserted with fallback styles in the last load",
		}),
		parallelism: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "load_parallelism",
			Help:      "Worker count of the last load",
		}),
		poolTasks: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "load_pool_tasks",
				Help:      "Worker pool tasks of the last load, by state",
			},
			[]string{"state"},
		),
		sparesStarted: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "load_pool_spares_started",
			Help:      "Compensating workers started while workers blocked in the last load",
		}),
		lastSuccessSec: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_successful_load_timestamp_seconds",
			Help:      "Unix time of the last successful load",
		}),
	}
}

// Registry returns the registry holding the load collectors.
func (m *LoadMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Record implements loader.Recorder.
func (m *LoadMetrics) Record(report *loader.Report, err error) {
	m.loadsTotal.WithLabelValues(status(err)).Inc()
	if err == nil {
		m.lastSuccessSec.SetToCurrentTime()
	}
	if report == nil {
		return
	}

	m.loadDuration.Observe(report.Elapsed.Seconds())
	m.parallelism.Set(float64(report.Parallelism))
	m.decoded.Set(float64(report.Decoded))
	m.failures.Set(float64(len(report.Failures())))
	m.patched.Set(float64(len(report.Patched)))

	m.phaseDuration.Reset()
	m.phaseRecords.Reset()
	for _, t := range report.Phases {
		m.phaseDuration.WithLabelValues(t.Phase.String()).Set(t.Duration.Seconds())
		m.phaseRecords.WithLabelValues(t.Phase.String()).Set(float64(t.Records))
	}

	m.objects.Reset()
	for kind, n := range report.Added {
		m.objects.WithLabelValues(kind.String()).Set(float64(n))
	}

	m.dropped.Reset()
	for _, d := range report.Dropped {
		m.dropped.WithLabelValues(apperrors.GetErrorCode(d.Err)).Inc()
	}

	m.poolTasks.WithLabelValues("submitted").Set(float64(report.Pool.SubmittedTasks))
	m.poolTasks.WithLabelValues("completed").Set(float64(report.Pool.CompletedTasks))
	m.poolTasks.WithLabelValues("dropped").Set(float64(report.Pool.DroppedTasks))
	m.poolTasks.WithLabelValues("panicked").Set(float64(report.Pool.Panics))
	m.sparesStarted.Set(float64(report.Pool.SparesStarted))
}

// WriteTextfile writes every collector to path in the text exposition
// format, replacing the file atomically.
func (m *LoadMetrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return apperrors.Wrap(apperrors.CodeIOError, "failed to write metrics to "+path, err)
	}
	return nil
}

func status(err error) string {
	switch {
	case err == nil:
		return "success"
	case apperrors.IsInterrupted(err):
		return "interrupted"
	default:
		return "failure"
	}
}
