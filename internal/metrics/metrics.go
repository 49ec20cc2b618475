// Package metrics exposes pipeline and alerting counters to Prometheus.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Metrics holds every instrument the pipeline updates.
type Metrics struct {
	registry *prometheus.Registry

	PacketsProcessed  prometheus.Counter
	PacketsDropped    prometheus.Counter
	PacketsByProtocol *prometheus.CounterVec

	DetectorErrors *prometheus.CounterVec
	AlertsTotal    *prometheus.CounterVec
	SinkDropped    prometheus.Counter
	SinkQueueDepth prometheus.Gauge

	BaselinePacketRate prometheus.Gauge
	TrackedSources     *prometheus.GaugeVec
}

// New builds the metric set on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		PacketsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "netsentry_packets_processed_total",
			Help: "Packets decoded and dispatched to the detectors",
		}),
		PacketsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "netsentry_packets_dropped_total",
			Help: "Frames dropped before dispatch (no IP layer or undecodable)",
		}),
		PacketsByProtocol: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "netsentry_packets_by_protocol_total",
			Help: "Dispatched packets by transport protocol",
		}, []string{"protocol"}),
		DetectorErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "netsentry_detector_errors_total",
			Help: "Detector faults isolated by the dispatcher",
		}, []string{"detector"}),
		AlertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "netsentry_alerts_total",
			Help: "Alerts emitted to the sink",
		}, []string{"category", "severity"}),
		SinkDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "netsentry_sink_dropped_total",
			Help: "Alerts dropped because the sink queue was full",
		}),
		SinkQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "netsentry_sink_queue_depth",
			Help: "Alerts currently queued behind the sink",
		}),
		BaselinePacketRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "netsentry_baseline_packets_per_second",
			Help: "Adaptive packets-per-second baseline of the anomaly detector",
		}),
		TrackedSources: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "netsentry_tracked_sources",
			Help: "Source addresses currently tracked per detector",
		}, []string{"detector"}),
	}

	registry.MustRegister(
		m.PacketsProcessed, m.PacketsDropped, m.PacketsByProtocol,
		m.DetectorErrors, m.AlertsTotal, m.SinkDropped, m.SinkQueueDepth,
		m.BaselinePacketRate, m.TrackedSources,
	)
	return m
}

// Exporter serves the registry over HTTP.
type Exporter struct {
	server *http.Server
	logger *logrus.Logger
	port   string
}

// NewExporter wires the metrics registry to a /metrics endpoint.
func NewExporter(port string, m *Metrics, logger *logrus.Logger) *Exporter {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Exporter{
		server: &http.Server{Addr: ":" + port, Handler: mux},
		logger: logger,
		port:   port,
	}
}

// Start serves until the context is cancelled, then shuts down.
func (e *Exporter) Start(ctx context.Context) error {
	e.logger.Infof("Metrics available at: http://localhost:%s/metrics", e.port)

	go func() {
		if err := e.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			e.logger.Errorf("Metrics exporter error: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return e.server.Shutdown(shutdownCtx)
}
