package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the sampler's Prometheus collectors. Each Engine owns its
// own registry so several engines can coexist in one process.
type Metrics struct {
	Registry *prometheus.Registry

	ticks          *prometheus.CounterVec
	tickDuration   prometheus.Histogram
	trackedTabs    prometheus.Gauge
	totalMemoryMB  prometheus.Gauge
	availableMB    prometheus.Gauge
	leaksDetected  prometheus.Counter
	notifications  *prometheus.CounterVec
	activations    prometheus.Counter
	predictionsRun prometheus.Counter
}

// NewMetrics registers the collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		ticks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tabpulse",
			Subsystem: "sampler",
			Name:      "ticks_total",
			Help:      "Sampling passes by outcome",
		}, []string{"result"}),
		tickDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tabpulse",
			Subsystem: "sampler",
			Name:      "tick_duration_seconds",
			Help:      "Sampling pass duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		trackedTabs: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "tabpulse",
			Subsystem: "sampler",
			Name:      "tracked_tabs",
			Help:      "Tabs with a sample history",
		}),
		totalMemoryMB: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "tabpulse",
			Subsystem: "sampler",
			Name:      "tab_memory_megabytes",
			Help:      "Summed tab memory from the last pass",
		}),
		availableMB: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "tabpulse",
			Subsystem: "host",
			Name:      "available_memory_megabytes",
			Help:      "Host available memory from the last pass",
		}),
		leaksDetected: f.NewCounter(prometheus.CounterOpts{
			Namespace: "tabpulse",
			Subsystem: "leaks",
			Name:      "detected_total",
			Help:      "Leak detections, including repeats for the same tab",
		}),
		notifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tabpulse",
			Subsystem: "notify",
			Name:      "sent_total",
			Help:      "Notifications requested by kind",
		}, []string{"kind"}),
		activations: f.NewCounter(prometheus.CounterOpts{
			Namespace: "tabpulse",
			Subsystem: "usage",
			Name:      "activations_total",
			Help:      "Tab activations recorded",
		}),
		predictionsRun: f.NewCounter(prometheus.CounterOpts{
			Namespace: "tabpulse",
			Subsystem: "predictor",
			Name:      "predictions_total",
			Help:      "Per-tab predictions computed",
		}),
	}
}
