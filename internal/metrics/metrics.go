// Package metrics exposes cycle and step outcomes as Prometheus metrics.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ignite/aicmo-cam/internal/contracts"
)

const namespace = "cam"

// Recorder implements ports.Metering on a private registry.
type Recorder struct {
	registry *prometheus.Registry

	cycles        *prometheus.CounterVec
	cycleDuration prometheus.Histogram
	lastCycle     prometheus.Gauge
	steps         *prometheus.CounterVec
	stepDuration  *prometheus.HistogramVec
	stepItems     *prometheus.CounterVec
	moduleHealthy *prometheus.GaugeVec
}

// NewRecorder creates and registers the worker metrics.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Flow cycles run, by outcome.",
		}, []string{"success"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of a full flow cycle.",
			Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}),
		lastCycle: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_cycle_timestamp_seconds",
			Help:      "Unix time the last cycle finished.",
		}),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_total",
			Help:      "Flow steps run, by step and outcome.",
		}, []string{"step", "outcome"}),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Duration of each flow step.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"step"}),
		stepItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "step_items_total",
			Help:      "Items processed by each flow step.",
		}, []string{"step"}),
		moduleHealthy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "module_healthy",
			Help:      "1 when the module is enabled and healthy.",
		}, []string{"module"}),
	}
	r.registry.MustRegister(
		r.cycles, r.cycleDuration, r.lastCycle,
		r.steps, r.stepDuration, r.stepItems, r.moduleHealthy,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// RecordCycle implements ports.Metering.
func (r *Recorder) RecordCycle(result contracts.CycleResult) {
	success := "false"
	if result.Success {
		success = "true"
	}
	r.cycles.WithLabelValues(success).Inc()
	r.cycleDuration.Observe(result.Duration.Seconds())
	r.lastCycle.Set(float64(result.StartedAt.Add(result.Duration).Unix()))

	for _, s := range result.Steps {
		r.steps.WithLabelValues(s.StepName, outcome(s)).Inc()
		if s.Skipped {
			continue
		}
		r.stepDuration.WithLabelValues(s.StepName).Observe(s.Duration.Seconds())
		r.stepItems.WithLabelValues(s.StepName).Add(float64(s.ItemsProcessed))
	}
}

// SetModuleHealth records the probed state of a module.
func (r *Recorder) SetModuleHealth(module string, healthy bool) {
	v := 0.0
	if healthy {
		v = 1
	}
	r.moduleHealthy.WithLabelValues(module).Set(v)
}

func outcome(s contracts.StepResult) string {
	switch {
	case s.Skipped:
		return "skipped"
	case s.Success:
		return "success"
	default:
		return "failure"
	}
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

func (r *Recorder) ModuleName() string { return "metrics" }

func (r *Recorder) IsConfigured() bool { return true }

func (r *Recorder) Health(context.Context) contracts.ModuleHealth {
	return contracts.ModuleHealth{ModuleName: r.ModuleName(), Status: contracts.HealthHealthy, CheckedAt: time.Now()}
}
