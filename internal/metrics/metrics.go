// ABOUTME: Prometheus metrics for feed relay cycles
// ABOUTME: Counts items and cycles per feed and serves them over HTTP

package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Item results.
const (
	ResultDelivered = "delivered"
	ResultDuplicate = "duplicate"
	ResultSkipped   = "skipped"
	ResultFailed    = "failed"
)

// Cycle statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

const namespace = "coven_feeds"

// Metrics holds the relay collectors on a private registry. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	registry      *prometheus.Registry
	items         *prometheus.CounterVec
	cycles        *prometheus.CounterVec
	cacheEntries  *prometheus.GaugeVec
	cycleDuration prometheus.Histogram
}

// New creates and registers the relay collectors plus Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_total",
			Help:      "Feed items processed, by result",
		}, []string{"feed", "result"}),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Feed processing cycles, by status",
		}, []string{"feed", "status"}),
		cacheEntries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_entries",
			Help:      "URL cache entries after the last saved cycle, by chat and feed",
		}, []string{"chat", "feed"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Time spent processing one feed",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	m.registry.MustRegister(
		m.items, m.cycles, m.cacheEntries, m.cycleDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ItemProcessed counts one item of feed with the given result.
func (m *Metrics) ItemProcessed(feed, result string) {
	if m == nil {
		return
	}
	m.items.WithLabelValues(feed, result).Inc()
}

// CycleFinished records a finished cycle and its duration.
func (m *Metrics) CycleFinished(feed, status string, took time.Duration) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(feed, status).Inc()
	m.cycleDuration.Observe(took.Seconds())
}

// CacheEntries sets the number of identities retained in the cache of the
// (chat, feed) pair.
func (m *Metrics) CacheEntries(chat, feed string, n int) {
	if m == nil {
		return
	}
	m.cacheEntries.WithLabelValues(chat, feed).Set(float64(n))
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the HTTP handler serving the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Serve exposes the metrics at path on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr, path string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving metrics", "addr", addr, "path", path)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down metrics server: %w", err)
		}
		return nil
	}
}
