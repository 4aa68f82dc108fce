// Package prometheus exports registry metrics to Prometheus.
//
//	reg := prometheus.NewRegistry()
//	c, err := ivfprom.New(reg, "ivfgo")
//	r, err := ivfgo.NewRegistry(ivfgo.WithMetricsCollector(c))
//	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/ivfgo"
)

// Compile-time check to ensure Collector satisfies ivfgo.MetricsCollector.
var _ ivfgo.MetricsCollector = (*Collector)(nil)

// Operation label values.
const (
	OpTrain   = "train"
	OpAdd     = "add"
	OpSearch  = "search"
	OpPersist = "persist"
	OpLoad    = "load"
)

// Collector records registry operations as Prometheus metrics.
type Collector struct {
	ops           *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	trainVectors  prometheus.Counter
	searchResults prometheus.Histogram
	persistBytes  prometheus.Counter
}

// New creates a collector and registers its metrics with reg.
func New(reg prometheus.Registerer, namespace string) (*Collector, error) {
	if namespace == "" {
		namespace = "ivfgo"
	}

	c := &Collector{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Registry operations by type and outcome",
		}, []string{"op", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Registry operation latency in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"op"}),
		trainVectors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "train_vectors_total",
			Help:      "Training vectors consumed by successful trainings",
		}),
		searchResults: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_results",
			Help:      "Results returned per successful search",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		persistBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_bytes_total",
			Help:      "Bytes written by successful persists",
		}),
	}

	for _, m := range []prometheus.Collector{c.ops, c.latency, c.trainVectors, c.searchResults, c.persistBytes} {
		if err := reg.Register(m); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Collector) observe(op string, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.ops.WithLabelValues(op, status).Inc()
	c.latency.WithLabelValues(op).Observe(d.Seconds())
}

// RecordTrain implements ivfgo.MetricsCollector.
func (c *Collector) RecordTrain(vectors int, d time.Duration, err error) {
	c.observe(OpTrain, d, err)
	if err == nil {
		c.trainVectors.Add(float64(vectors))
	}
}

// RecordAdd implements ivfgo.MetricsCollector.
func (c *Collector) RecordAdd(d time.Duration, err error) {
	c.observe(OpAdd, d, err)
}

// RecordSearch implements ivfgo.MetricsCollector.
func (c *Collector) RecordSearch(_, results int, d time.Duration, err error) {
	c.observe(OpSearch, d, err)
	if err == nil {
		c.searchResults.Observe(float64(results))
	}
}

// RecordPersist implements ivfgo.MetricsCollector.
func (c *Collector) RecordPersist(bytes int, d time.Duration, err error) {
	c.observe(OpPersist, d, err)
	if err == nil {
		c.persistBytes.Add(float64(bytes))
	}
}

// RecordLoad implements ivfgo.MetricsCollector.
func (c *Collector) RecordLoad(d time.Duration, err error) {
	c.observe(OpLoad, d, err)
}
