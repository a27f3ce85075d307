// Package metrics records pipeline activity as Prometheus metrics.
package metrics

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/ravi-parthasarathy/ingest/pkg/pipeline"
)

const defaultNamespace = "ingest"

// Collector implements pipeline.Observer on top of its own Prometheus
// registry.
type Collector struct {
	registry *prometheus.Registry

	ActionRuns         *prometheus.CounterVec
	ActionDuration     *prometheus.HistogramVec
	ActionsInFlight    prometheus.Gauge
	PipelineExecutions *prometheus.CounterVec
}

// NewCollector creates a Collector. An empty namespace uses "ingest".
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = defaultNamespace
	}
	reg := prometheus.NewRegistry()
	c := &Collector{
		registry: reg,
		ActionRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "action_runs_total",
			Help:      "Total number of action runs by kind and status",
		}, []string{"kind", "status"}),
		ActionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "action_duration_seconds",
			Help:      "Duration of action runs in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		ActionsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "actions_in_flight",
			Help:      "Number of actions currently executing",
		}),
		PipelineExecutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_executions_total",
			Help:      "Total number of Execute calls by recipe and terminal state",
		}, []string{"recipe", "state"}),
	}
	reg.MustRegister(c.ActionRuns, c.ActionDuration, c.ActionsInFlight, c.PipelineExecutions)
	return c
}

// Registry returns the registry the collector's metrics live in.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

func (c *Collector) BeforeAction(context.Context, string, string, pipeline.Result) {
	c.ActionsInFlight.Inc()
}

func (c *Collector) AfterAction(_ context.Context, _, kind string, out pipeline.Result, d time.Duration) {
	c.ActionsInFlight.Dec()
	c.ActionRuns.WithLabelValues(kind, out.Status.String()).Inc()
	c.ActionDuration.WithLabelValues(kind).Observe(d.Seconds())
}

func (c *Collector) AfterExecute(_ context.Context, _, recipe string, state pipeline.State, _ error) {
	c.PipelineExecutions.WithLabelValues(recipe, state.String()).Inc()
}

// WriteText writes every gathered metric family in the Prometheus text
// exposition format.
func (c *Collector) WriteText(w io.Writer) error {
	families, err := c.registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("write metric %q: %w", mf.GetName(), err)
		}
	}
	return nil
}
