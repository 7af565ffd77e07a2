// Package metrics exposes cache events over a Prometheus endpoint.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config represents metrics configuration.
type Config struct {
	Enabled   bool   `yaml:"enabled"`
	Port      int    `yaml:"port"`
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`
}

// Collector exposes cache events as Prometheus metrics. It implements the
// cache's Recorder interface, giving operators visibility into the
// failure modes the cache swallows by contract: dropped L3 writes and
// corruption repairs are counters here rather than returned errors.
type Collector struct {
	config   *Config
	registry *prometheus.Registry

	tierHits          *prometheus.CounterVec
	misses            prometheus.Counter
	sets              prometheus.Counter
	invalidations     prometheus.Counter
	evictions         *prometheus.CounterVec
	droppedWrites     prometheus.Counter
	corruptionRepairs prometheus.Counter
	warmedEntries     prometheus.Counter
	tierSize          *prometheus.GaugeVec

	server *http.Server
}

// NewCollector creates a metrics collector. With Enabled false it still
// records (cheaply, into an unserved registry) so callers need no
// conditional wiring.
func NewCollector(config *Config) (*Collector, error) {
	if config == nil {
		config = &Config{
			Enabled:   true,
			Port:      9180,
			Path:      "/metrics",
			Namespace: "tierstore",
		}
	}
	if config.Path == "" {
		config.Path = "/metrics"
	}
	if config.Namespace == "" {
		config.Namespace = "tierstore"
	}

	c := &Collector{
		config:   config,
		registry: prometheus.NewRegistry(),
	}

	c.tierHits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: config.Namespace,
		Name:      "tier_hits_total",
		Help:      "Cache hits by tier",
	}, []string{"tier"})

	c.misses = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: config.Namespace,
		Name:      "misses_total",
		Help:      "Cache misses across all tiers",
	})

	c.sets = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: config.Namespace,
		Name:      "sets_total",
		Help:      "Cache set operations",
	})

	c.invalidations = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: config.Namespace,
		Name:      "invalidations_total",
		Help:      "Keys invalidated explicitly or by TTL expiry",
	})

	c.evictions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: config.Namespace,
		Name:      "evictions_total",
		Help:      "LRU evictions by tier",
	}, []string{"tier"})

	c.droppedWrites = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: config.Namespace,
		Name:      "dropped_writes_total",
		Help:      "Persistent tier writes dropped after exhausting retries",
	})

	c.corruptionRepairs = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: config.Namespace,
		Name:      "corruption_repairs_total",
		Help:      "Corrupt persistent blobs deleted during reads",
	})

	c.warmedEntries = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: config.Namespace,
		Name:      "warmed_entries_total",
		Help:      "Entries pre-populated by the cache warmer",
	})

	c.tierSize = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: config.Namespace,
		Name:      "tier_size",
		Help:      "Current entry count by tier",
	}, []string{"tier"})

	collectors := []prometheus.Collector{
		c.tierHits, c.misses, c.sets, c.invalidations, c.evictions,
		c.droppedWrites, c.corruptionRepairs, c.warmedEntries, c.tierSize,
	}
	for _, collector := range collectors {
		if err := c.registry.Register(collector); err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}

	return c, nil
}

// Start serves the metrics endpoint. It returns immediately; the server
// runs until Stop. With Enabled false it is a no-op.
func (c *Collector) Start(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(c.config.Path, promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("/health", c.healthHandler)

	c.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", c.config.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		// Metrics are best-effort; the cache keeps working without them.
		_ = c.server.ListenAndServe()
	}()

	go func() {
		<-ctx.Done()
		_ = c.Stop(context.Background())
	}()

	return nil
}

// Stop shuts the metrics server down.
func (c *Collector) Stop(ctx context.Context) error {
	if c.server == nil {
		return nil
	}
	return c.server.Shutdown(ctx)
}

// Registry exposes the underlying registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}

// Recorder implementation.

func (c *Collector) RecordHit(tier string) {
	c.tierHits.WithLabelValues(tier).Inc()
}

func (c *Collector) RecordMiss() {
	c.misses.Inc()
}

func (c *Collector) RecordSet() {
	c.sets.Inc()
}

func (c *Collector) RecordInvalidations(n int) {
	c.invalidations.Add(float64(n))
}

func (c *Collector) RecordEviction(tier string) {
	c.evictions.WithLabelValues(tier).Inc()
}

func (c *Collector) RecordDroppedWrite() {
	c.droppedWrites.Inc()
}

func (c *Collector) RecordCorruptionRepair() {
	c.corruptionRepairs.Inc()
}

func (c *Collector) RecordWarmedEntry() {
	c.warmedEntries.Inc()
}

func (c *Collector) SetTierSize(tier string, size int) {
	c.tierSize.WithLabelValues(tier).Set(float64(size))
}
