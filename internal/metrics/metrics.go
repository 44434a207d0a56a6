// Package metrics exposes Prometheus collectors for the HTTP API, model
// runs, precompute sweeps and the forecast cache.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "economic_terminal"

// Collector owns a private registry so tests can create as many as they
// like without colliding on the default one.
type Collector struct {
	registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	modelRuns     *prometheus.CounterVec
	modelDuration *prometheus.HistogramVec

	sweeps        *prometheus.CounterVec
	sweepSeries   *prometheus.CounterVec
	sweepDuration prometheus.Histogram

	cacheLookups *prometheus.CounterVec
	cacheEntries prometheus.Gauge
}

// NewCollector registers every collector, plus the Go runtime and process
// collectors when withRuntime is set.
func NewCollector(withRuntime bool) (*Collector, error) {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Latency distribution for inbound HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of inbound HTTP requests.",
		}, []string{"method", "path", "status"}),
		modelRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "forecast",
			Name:      "model_runs_total",
			Help:      "Model runs by kind and outcome.",
		}, []string{"kind", "outcome"}),
		modelDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "forecast",
			Name:      "model_run_duration_seconds",
			Help:      "Time spent fitting and projecting one model.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"kind"}),
		sweeps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "precompute",
			Name:      "sweeps_total",
			Help:      "Precompute sweeps by scope (all or single).",
		}, []string{"scope"}),
		sweepSeries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "precompute",
			Name:      "series_total",
			Help:      "Series processed by sweeps, by result.",
		}, []string{"result"}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "precompute",
			Name:      "sweep_duration_seconds",
			Help:      "Wall time of a precompute sweep.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Forecast cache lookups by category and result.",
		}, []string{"category", "result"}),
		cacheEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "entries",
			Help:      "Series with a cached forecast.",
		}),
	}

	toRegister := []prometheus.Collector{
		c.requestDuration, c.requestTotal,
		c.modelRuns, c.modelDuration,
		c.sweeps, c.sweepSeries, c.sweepDuration,
		c.cacheLookups, c.cacheEntries,
	}
	if withRuntime {
		toRegister = append(toRegister,
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	for _, col := range toRegister {
		if err := registry.Register(col); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns an HTTP handler for exposing Prometheus metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// GinMiddleware records request count and latency. The path label is the
// route template so series ids do not explode cardinality.
func (c *Collector) GinMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()

		path := ctx.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(ctx.Writer.Status())
		c.requestTotal.WithLabelValues(ctx.Request.Method, path, status).Inc()
		c.requestDuration.WithLabelValues(ctx.Request.Method, path, status).Observe(time.Since(start).Seconds())
	}
}

// RecordModelRun counts one model run.
func (c *Collector) RecordModelRun(kind string, duration time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	c.modelRuns.WithLabelValues(kind, outcome).Inc()
	c.modelDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordSweep counts a finished sweep and its per-series results.
func (c *Collector) RecordSweep(scope string, computed, reused, failed int, duration time.Duration) {
	if scope != "all" {
		scope = "single"
	}
	c.sweeps.WithLabelValues(scope).Inc()
	c.sweepSeries.WithLabelValues("computed").Add(float64(computed))
	c.sweepSeries.WithLabelValues("reused").Add(float64(reused))
	c.sweepSeries.WithLabelValues("failed").Add(float64(failed))
	c.sweepDuration.Observe(duration.Seconds())
}

// RecordCacheLookup counts a cache hit or miss.
func (c *Collector) RecordCacheLookup(category string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	c.cacheLookups.WithLabelValues(category, result).Inc()
}

// SetCacheEntries sets the number of cached series.
func (c *Collector) SetCacheEntries(n int) {
	c.cacheEntries.Set(float64(n))
}
