// Package metrics exposes wp-motor's Prometheus surface: one counter/gauge
// per pipeline stage (source, parse, transform, sink, rescue, rate limit),
// plus the HTTP server that serves them.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var (
	SourceEventsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wpmotor_source_events_received_total",
			Help: "Total number of source events received, by source name",
		},
		[]string{"source"},
	)

	ParseResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wpmotor_parse_results_total",
			Help: "Total number of parse attempts, by rule and outcome (ok|miss)",
		},
		[]string{"rule", "outcome"},
	)

	TransformResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wpmotor_transform_results_total",
			Help: "Total number of transform attempts, by model and outcome (ok|residue)",
		},
		[]string{"model", "outcome"},
	)

	SinkRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wpmotor_sink_records_total",
			Help: "Total number of records sent to a sink, by sink name and outcome (ok|error)",
		},
		[]string{"sink", "outcome"},
	)

	SinkRescueSwaps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wpmotor_sink_rescue_swaps_total",
			Help: "Total number of times a sink's backend was swapped for a rescue backend",
		},
		[]string{"sink"},
	)

	RateLimiterCurrentRate = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wpmotor_rate_limiter_current_rate",
		Help: "Current target events-per-second rate reported by the configured speed profile",
	})

	SinkQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "wpmotor_sink_queue_depth",
			Help: "Current number of pending records buffered in a sink runtime",
		},
		[]string{"sink"},
	)
)

// MetricsServer serves the `/metrics` Prometheus endpoint and a bare
// `/health` liveness probe.
type MetricsServer struct {
	server *http.Server
	logger *logrus.Logger
}

var registerOnce sync.Once

// NewMetricsServer builds a metrics HTTP server bound to addr. Metric
// collectors are process-global (promauto registers them at package init),
// so construction here only wires the HTTP handler.
func NewMetricsServer(addr string, logger *logrus.Logger) *MetricsServer {
	registerOnce.Do(func() {})

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return &MetricsServer{
		server: &http.Server{Addr: addr, Handler: mux},
		logger: logger,
	}
}

// Start begins serving in the background. A listen error after the server
// is asked to close is expected and not reported.
func (ms *MetricsServer) Start() error {
	ms.logger.WithField("addr", ms.server.Addr).Info("starting metrics server")
	go func() {
		if err := ms.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			ms.logger.WithError(err).Error("metrics server error")
		}
	}()
	return nil
}

// Stop closes the metrics server immediately.
func (ms *MetricsServer) Stop() error {
	ms.logger.Info("stopping metrics server")
	return ms.server.Close()
}
