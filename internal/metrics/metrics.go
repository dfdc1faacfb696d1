// Package metrics exposes Prometheus counters for a simulation run.
package metrics

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the run's metrics in a dedicated registry.
type Collector struct {
	registry         *prometheus.Registry
	transactions     *prometheus.CounterVec
	forcedAnomalies  prometheus.Counter
	impliedVelocity  prometheus.Histogram
	amounts          *prometheus.HistogramVec
	sinkPuts         *prometheus.CounterVec
	sinkDuration     *prometheus.HistogramVec
	compromisedCards prometheus.Gauge
	logger           *slog.Logger
	server           *http.Server
}

// NewCollector creates a collector with all metrics registered.
func NewCollector(logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}

	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Collector{
		registry: registry,
		transactions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fraudsim_transactions_generated_total",
			Help: "Total number of generated transactions",
		}, []string{"fraud"}),
		forcedAnomalies: factory.NewCounter(prometheus.CounterOpts{
			Name: "fraudsim_velocity_anomalies_forced_total",
			Help: "Transactions whose timestamp was rewound to force a velocity anomaly",
		}),
		impliedVelocity: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "fraudsim_implied_velocity_kmh",
			Help:    "Implied travel speed between consecutive transactions of a card",
			Buckets: []float64{10, 50, 100, 200, 400, 800, 1600, 5000, 20000},
		}),
		amounts: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fraudsim_transaction_amount",
			Help:    "Distribution of generated transaction amounts",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2000},
		}, []string{"fraud"}),
		sinkPuts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fraudsim_sink_puts_total",
			Help: "Records handed to a sink, by outcome",
		}, []string{"sink", "result"}),
		sinkDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fraudsim_sink_put_duration_seconds",
			Help:    "Time taken by a sink to accept a record",
			Buckets: prometheus.DefBuckets,
		}, []string{"sink"}),
		compromisedCards: factory.NewGauge(prometheus.GaugeOpts{
			Name: "fraudsim_compromised_cards",
			Help: "Number of compromised cards in the population",
		}),
		logger: logger,
	}
}

// RecordTransaction counts one generated transaction.
func (m *Collector) RecordTransaction(amount float64, isFraud, forced bool) {
	label := strconv.FormatBool(isFraud)
	m.transactions.WithLabelValues(label).Inc()
	m.amounts.WithLabelValues(label).Observe(amount)
	if forced {
		m.forcedAnomalies.Inc()
	}
}

// ObserveVelocity records the implied speed of a card between transactions.
func (m *Collector) ObserveVelocity(kmh float64) {
	m.impliedVelocity.Observe(kmh)
}

// RecordSinkPut records the outcome and latency of a sink put.
func (m *Collector) RecordSinkPut(sink string, duration time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.sinkPuts.WithLabelValues(sink, result).Inc()
	m.sinkDuration.WithLabelValues(sink).Observe(duration.Seconds())
}

// SetCompromisedCards sets the compromised card gauge.
func (m *Collector) SetCompromisedCards(n int) {
	m.compromisedCards.Set(float64(n))
}

// Registry returns the collector's registry.
func (m *Collector) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler serving the registry.
func (m *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartServer serves /metrics on addr in the background.
func (m *Collector) StartServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	m.server = server

	go func() {
		m.logger.Info("Starting metrics server", slog.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			m.logger.Error("Metrics server failed", slog.String("error", err.Error()))
		}
	}()

	return server
}

// Shutdown stops the metrics server if one was started.
func (m *Collector) Shutdown(ctx context.Context) error {
	if m.server == nil {
		return nil
	}
	err := m.server.Shutdown(ctx)
	m.server = nil
	return err
}
