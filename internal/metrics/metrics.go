// Package metrics holds the Prometheus collectors describing pipeline runs.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "bluebird"

// Pipeline groups the counters updated by one orchestrator.
type Pipeline struct {
	registry *prometheus.Registry

	PostsReceived   prometheus.Counter
	RecordsWritten  prometheus.Counter
	Failures        *prometheus.CounterVec
	RunDuration     prometheus.Histogram
	LastRunWritten  prometheus.Gauge
	LastRunComplete prometheus.Gauge
}

// NewPipeline registers all collectors on a fresh registry.
func NewPipeline() *Pipeline {
	reg := prometheus.NewRegistry()

	p := &Pipeline{
		registry: reg,
		PostsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "posts_received_total",
			Help:      "Posts pulled from the source.",
		}),
		RecordsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_written_total",
			Help:      "Scored records appended to the sink.",
		}),
		Failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "run_failures_total",
			Help:      "Failed runs by stage.",
		}, []string{"stage"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a pipeline run.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
		}),
		LastRunWritten: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_records",
			Help:      "Records written by the most recent run.",
		}),
		LastRunComplete: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_completed",
			Help:      "1 when the most recent run completed, 0 when it failed.",
		}),
	}

	reg.MustRegister(
		p.PostsReceived,
		p.RecordsWritten,
		p.Failures,
		p.RunDuration,
		p.LastRunWritten,
		p.LastRunComplete,
	)
	return p
}

// Registry exposes the underlying registry for gathering.
func (p *Pipeline) Registry() *prometheus.Registry {
	return p.registry
}

// WriteTextfile dumps the current values in the node-exporter textfile format.
func (p *Pipeline) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, p.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
