// Package metrics exposes Prometheus instrumentation for the scanner.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Recorder holds every metric the scanner publishes.
type Recorder struct {
	CycleDuration   prometheus.Histogram
	SymbolsScanned  prometheus.Counter
	SymbolsFailed   prometheus.Counter
	FetchErrors     *prometheus.CounterVec
	AlertsSent      *prometheus.CounterVec
	EventsEmitted   *prometheus.CounterVec
	LastScore       *prometheus.GaugeVec
	ActiveTrades    prometheus.Gauge
	StoreSizeBytes  prometheus.Gauge
	UniverseSymbols prometheus.Gauge
}

// New registers all metrics on a fresh registry and returns the recorder
// together with the registry for serving.
func New() (*Recorder, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	r := &Recorder{
		CycleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "pumpsentinel_scan_cycle_seconds",
			Help:    "Wall time of one full scan cycle.",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 900},
		}),
		SymbolsScanned: f.NewCounter(prometheus.CounterOpts{
			Name: "pumpsentinel_symbols_scanned_total",
			Help: "Symbols scored across all cycles.",
		}),
		SymbolsFailed: f.NewCounter(prometheus.CounterOpts{
			Name: "pumpsentinel_symbols_failed_total",
			Help: "Symbols skipped because of errors or timeouts.",
		}),
		FetchErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pumpsentinel_fetch_errors_total",
			Help: "Upstream fetch failures by exchange and kind.",
		}, []string{"exchange", "kind"}),
		AlertsSent: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pumpsentinel_alerts_sent_total",
			Help: "Alerts delivered by classification.",
		}, []string{"classification"}),
		EventsEmitted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pumpsentinel_events_total",
			Help: "Cross-scan events by type.",
		}, []string{"type"}),
		LastScore: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pumpsentinel_last_score",
			Help: "Most recent final score per symbol.",
		}, []string{"symbol"}),
		ActiveTrades: f.NewGauge(prometheus.GaugeOpts{
			Name: "pumpsentinel_active_trades",
			Help: "Open monitored trades.",
		}),
		StoreSizeBytes: f.NewGauge(prometheus.GaugeOpts{
			Name: "pumpsentinel_store_size_bytes",
			Help: "On-disk size of the sqlite store.",
		}),
		UniverseSymbols: f.NewGauge(prometheus.GaugeOpts{
			Name: "pumpsentinel_universe_symbols",
			Help: "Symbols in the current scan universe.",
		}),
	}
	return r, reg
}

// Serve runs the /metrics endpoint until ctx is cancelled.
func Serve(ctx context.Context, addr string, reg *prometheus.Registry, log zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutCtx)
	}()

	log.Info().Str("addr", addr).Msg("metrics listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("metrics server stopped")
	}
}
