package stats

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

	"github.com/roach88/wholesale/internal/engine"
	"github.com/roach88/wholesale/internal/script"
)

const metricsNamespace = "wholesale"

// Metrics exports transaction latencies and conflict counts to
// Prometheus. All methods are safe for concurrent use.
type Metrics struct {
	registry  *prometheus.Registry
	duration  *prometheus.HistogramVec
	conflicts *prometheus.CounterVec
}

var (
	_ engine.Sampler          = (*Metrics)(nil)
	_ engine.ConflictObserver = (*Metrics)(nil)
)

// NewMetrics creates the collectors on a private registry together with
// the Go runtime and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: "txn",
				Name:      "duration_seconds",
				Help:      "Transaction execution time by kind and outcome.",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 16),
			}, []string{"kind", "status"}),
		conflicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "cas",
				Name:      "conflicts_total",
				Help:      "Conditional writes rejected because the guard field changed.",
			}, []string{"table"}),
	}
	m.registry.MustRegister(
		m.duration,
		m.conflicts,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Observe implements engine.Sampler.
func (m *Metrics) Observe(kind script.Kind, elapsed time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "skipped"
	}
	m.duration.WithLabelValues(kind.String(), status).Observe(elapsed.Seconds())
}

// ObserveConflict implements engine.ConflictObserver.
func (m *Metrics) ObserveConflict(table string) {
	m.conflicts.WithLabelValues(table).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("metrics server shutdown", "error", err)
		}
	}()

	slog.Info("serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}
