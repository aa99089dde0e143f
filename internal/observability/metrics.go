// Package observability exposes Prometheus metrics for the logos client.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds every metric the client records. Each Collector owns its
// registry so tests and multiple instances never collide.
type Collector struct {
	registry *prometheus.Registry

	CacheHits          prometheus.Counter
	CacheMisses        prometheus.Counter
	Generations        *prometheus.CounterVec
	GenerationDuration prometheus.Histogram
	ChatSends          *prometheus.CounterVec
	LedgerAppends      prometheus.Counter
}

// NewCollector creates a collector whose metric names carry namespace.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Thought lookups served from the session cache",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Thought lookups that required generation",
		}),
		Generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Generation calls by outcome",
		}, []string{"outcome"}),
		GenerationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Generation call latency in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
		}),
		ChatSends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_sends_total",
			Help:      "Chat messages sent by outcome",
		}, []string{"outcome"}),
		LedgerAppends: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_appends_total",
			Help:      "Successful generations recorded in a history ledger",
		}),
	}

	registry.MustRegister(
		c.CacheHits,
		c.CacheMisses,
		c.Generations,
		c.GenerationDuration,
		c.ChatSends,
		c.LedgerAppends,
	)
	return c
}

// ObserveGeneration records one generation call.
func (c *Collector) ObserveGeneration(outcome string, elapsed time.Duration) {
	c.Generations.WithLabelValues(outcome).Inc()
	c.GenerationDuration.Observe(elapsed.Seconds())
}

// ObserveCache records a cache lookup.
func (c *Collector) ObserveCache(hit bool) {
	if hit {
		c.CacheHits.Inc()
		return
	}
	c.CacheMisses.Inc()
}

// ObserveChatSend records one chat exchange.
func (c *Collector) ObserveChatSend(outcome string) {
	c.ChatSends.WithLabelValues(outcome).Inc()
}

// ObserveLedgerAppend records a ledger write.
func (c *Collector) ObserveLedgerAppend() {
	c.LedgerAppends.Inc()
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
