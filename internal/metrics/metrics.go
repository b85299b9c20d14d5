// ============================================================================
// rowplan Metrics - Prometheus instrumentation
// ============================================================================
//
// Package: internal/metrics
// File: metrics.go
// Function: Collects editor and optimizer round-trip metrics and exposes
//           them for Prometheus.
//
// Metrics:
//
//   1. Round trips (Counter / Histogram, labelled by op):
//      - rowplan_optimizer_requests_total{op,outcome}
//        outcome is ok | service_error | transport_error
//      - rowplan_optimizer_latency_seconds{op}
//      - rowplan_triggers_rejected_total{op}  trigger pressed while pending
//
//   2. Layout (Gauge):
//      - rowplan_holes, rowplan_rows, rowplan_holes_assigned
//      - rowplan_options
//      - rowplan_selected_max_holes_per_8ms
//
//   3. Output (Counter):
//      - rowplan_redraws_total
//      - rowplan_artifacts_written_total{kind}
//
// Example queries:
//
//   # optimize error ratio
//   sum(rate(rowplan_optimizer_requests_total{op="optimize",outcome!="ok"}[5m]))
//     / sum(rate(rowplan_optimizer_requests_total{op="optimize"}[5m]))
//
//   # 95th percentile optimize latency
//   histogram_quantile(0.95, rate(rowplan_optimizer_latency_seconds_bucket{op="optimize"}[5m]))
//
// HTTP endpoint:
//   /metrics on the configured port (default 9090)
//
// ============================================================================

package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels.
const (
	OutcomeOK             = "ok"
	OutcomeServiceError   = "service_error"
	OutcomeTransportError = "transport_error"
)

// Collector holds the rowplan metrics.
type Collector struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	rejected *prometheus.CounterVec

	holes         prometheus.Gauge
	rows          prometheus.Gauge
	holesAssigned prometheus.Gauge
	options       prometheus.Gauge
	selectedMax   prometheus.Gauge

	redraws   prometheus.Counter
	artifacts *prometheus.CounterVec
}

// NewCollector creates the metrics and registers them with the default
// registerer.
func NewCollector() *Collector {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rowplan_optimizer_requests_total",
			Help: "Optimizer round trips by operation and outcome",
		}, []string{"op", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rowplan_optimizer_latency_seconds",
			Help:    "Optimizer round-trip latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rowplan_triggers_rejected_total",
			Help: "Requests rejected because one of the same kind was in flight",
		}, []string{"op"}),
		holes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rowplan_holes",
			Help: "Holes in the current working set",
		}),
		rows: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rowplan_rows",
			Help: "Rows created since the last upload",
		}),
		holesAssigned: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rowplan_holes_assigned",
			Help: "Holes owned by some row",
		}),
		options: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rowplan_options",
			Help: "Optimizer options currently held",
		}),
		selectedMax: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rowplan_selected_max_holes_per_8ms",
			Help: "Max holes per 8ms window of the selected option",
		}),
		redraws: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rowplan_redraws_total",
			Help: "Surface redraws",
		}),
		artifacts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rowplan_artifacts_written_total",
			Help: "Artifacts written by kind",
		}, []string{"kind"}),
	}

	prometheus.MustRegister(c.requests)
	prometheus.MustRegister(c.latency)
	prometheus.MustRegister(c.rejected)
	prometheus.MustRegister(c.holes)
	prometheus.MustRegister(c.rows)
	prometheus.MustRegister(c.holesAssigned)
	prometheus.MustRegister(c.options)
	prometheus.MustRegister(c.selectedMax)
	prometheus.MustRegister(c.redraws)
	prometheus.MustRegister(c.artifacts)

	return c
}

// RecordRequest records one finished round trip.
func (c *Collector) RecordRequest(op, outcome string, d time.Duration) {
	c.requests.WithLabelValues(op, outcome).Inc()
	c.latency.WithLabelValues(op).Observe(d.Seconds())
}

// RecordRejected records a trigger pressed while its request was pending.
func (c *Collector) RecordRejected(op string) {
	c.rejected.WithLabelValues(op).Inc()
}

// UpdateLayout sets the layout gauges.
func (c *Collector) UpdateLayout(holes, rows, assigned int) {
	c.holes.Set(float64(holes))
	c.rows.Set(float64(rows))
	c.holesAssigned.Set(float64(assigned))
}

// UpdateOptions sets the option gauges. maxPer8ms is ignored when nothing is
// selected.
func (c *Collector) UpdateOptions(count int, selected bool, maxPer8ms int) {
	c.options.Set(float64(count))
	if selected {
		c.selectedMax.Set(float64(maxPer8ms))
	} else {
		c.selectedMax.Set(0)
	}
}

// RecordRedraw counts a surface redraw.
func (c *Collector) RecordRedraw() {
	c.redraws.Inc()
}

// RecordArtifact counts a written artifact.
func (c *Collector) RecordArtifact(kind string) {
	c.artifacts.WithLabelValues(kind).Inc()
}

// StartServer serves /metrics on port until ctx is cancelled.
func StartServer(ctx context.Context, port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
