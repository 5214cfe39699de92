// Package metrics provides Prometheus metrics for the scan collector.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "scan_collector"

	subsystemListener = "listener"
	subsystemMessages = "messages"
	subsystemScanner  = "scanner"
)

// Metrics holds the collector's Prometheus collectors on a private registry.
// All methods are safe to call on a nil *Metrics.
type Metrics struct {
	connectionsTotal  prometheus.Counter
	connectionsActive prometheus.Gauge
	acceptErrors      prometheus.Counter
	readErrors        prometheus.Counter

	received       prometheus.Counter
	classified     *prometheus.CounterVec
	classifyErrors *prometheus.CounterVec
	publishErrors  prometheus.Counter

	reportsSent *prometheus.CounterVec
	hostsFound  prometheus.Counter
	portsFound  prometheus.Counter

	registry *prometheus.Registry
}

// New creates a Metrics instance with all collectors registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		connectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemListener,
			Name:      "connections_total",
			Help:      "Total number of accepted report connections",
		}),
		connectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemListener,
			Name:      "connections_active",
			Help:      "Number of report connections currently being processed",
		}),
		acceptErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemListener,
			Name:      "accept_errors_total",
			Help:      "Total number of failed accept attempts",
		}),
		readErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemListener,
			Name:      "read_errors_total",
			Help:      "Total number of connections ended by a read error",
		}),
		received: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemMessages,
			Name:      "received_total",
			Help:      "Total number of non-empty reads handed to the classifier",
		}),
		classified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemMessages,
			Name:      "classified_total",
			Help:      "Total number of classified messages by kind",
		}, []string{"kind"}),
		classifyErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemMessages,
			Name:      "classification_errors_total",
			Help:      "Total number of messages that failed classification by error code",
		}, []string{"code"}),
		publishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemMessages,
			Name:      "publish_errors_total",
			Help:      "Total number of classified messages that could not be forwarded",
		}),
		reportsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemScanner,
			Name:      "reports_total",
			Help:      "Total number of scan reports sent by the engine by kind and status",
		}, []string{"kind", "status"}),
		hostsFound: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemScanner,
			Name:      "hosts_discovered_total",
			Help:      "Total number of live hosts found by network sweeps",
		}),
		portsFound: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemScanner,
			Name:      "open_ports_total",
			Help:      "Total number of open ports found by host sweeps",
		}),
	}

	registry.MustRegister(
		m.connectionsTotal,
		m.connectionsActive,
		m.acceptErrors,
		m.readErrors,
		m.received,
		m.classified,
		m.classifyErrors,
		m.publishErrors,
		m.reportsSent,
		m.hostsFound,
		m.portsFound,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler returns an HTTP handler serving the registry in exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ConnectionOpened records an accepted connection.
func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.connectionsTotal.Inc()
	m.connectionsActive.Inc()
}

// ConnectionClosed records the end of a connection's processing.
func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.connectionsActive.Dec()
}

// AcceptFailed records a failed accept attempt.
func (m *Metrics) AcceptFailed() {
	if m == nil {
		return
	}
	m.acceptErrors.Inc()
}

// ReadFailed records a connection ended by a transport error.
func (m *Metrics) ReadFailed() {
	if m == nil {
		return
	}
	m.readErrors.Inc()
}

// MessageReceived records one read handed to the classifier.
func (m *Metrics) MessageReceived() {
	if m == nil {
		return
	}
	m.received.Inc()
}

// MessageClassified records a successfully classified message.
func (m *Metrics) MessageClassified(kind string) {
	if m == nil {
		return
	}
	m.classified.WithLabelValues(kind).Inc()
}

// ClassificationFailed records a message rejected with the given error code.
func (m *Metrics) ClassificationFailed(code string) {
	if m == nil {
		return
	}
	m.classifyErrors.WithLabelValues(code).Inc()
}

// PublishFailed records a message the sink refused.
func (m *Metrics) PublishFailed() {
	if m == nil {
		return
	}
	m.publishErrors.Inc()
}

// ReportSent records a scan report delivered, or not, by the engine.
func (m *Metrics) ReportSent(kind string, ok bool) {
	if m == nil {
		return
	}
	status := "success"
	if !ok {
		status = "failure"
	}
	m.reportsSent.WithLabelValues(kind, status).Inc()
}

// HostsDiscovered adds to the live host counter.
func (m *Metrics) HostsDiscovered(count int) {
	if m == nil {
		return
	}
	m.hostsFound.Add(float64(count))
}

// PortsDiscovered adds to the open port counter.
func (m *Metrics) PortsDiscovered(count int) {
	if m == nil {
		return
	}
	m.portsFound.Add(float64(count))
}
