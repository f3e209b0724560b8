// Package metrics exposes heartbeat and alert state as prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "beat"

// Result label values.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Metrics holds the collectors of one process. All methods are safe on a
// nil receiver so components can run without metrics.
type Metrics struct {
	registry *prometheus.Registry

	heartbeatCurrent *prometheus.GaugeVec
	emissions        *prometheus.CounterVec
	networkReachable *prometheus.GaugeVec
	alertActive      prometheus.Gauge
	notifications    *prometheus.CounterVec
}

// New creates the collectors and registers them, together with the Go and
// process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		heartbeatCurrent: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "heartbeat_current",
			Help:      "Whether a component heartbeat was seen within the timeout (1) or not (0).",
		}, []string{"heartbeat"}),
		emissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emissions_total",
			Help:      "Heartbeats forwarded to downstream targets.",
		}, []string{"target", "result"}),
		networkReachable: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "network_reachable",
			Help:      "Debounced reachability of watchdog targets.",
		}, []string{"target"}),
		alertActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "alert_active",
			Help:      "Whether an internet down alert is outstanding.",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Alert notifications sent.",
		}, []string{"kind", "result"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.heartbeatCurrent,
		m.emissions,
		m.networkReachable,
		m.alertActive,
		m.notifications,
	)
	return m
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) SetHeartbeatCurrent(name string, current bool) {
	if m == nil {
		return
	}
	m.heartbeatCurrent.WithLabelValues(name).Set(boolToFloat(current))
}

func (m *Metrics) ObserveEmission(target string, err error) {
	if m == nil {
		return
	}
	m.emissions.WithLabelValues(target, result(err)).Inc()
}

func (m *Metrics) SetNetworkReachable(target string, reachable bool) {
	if m == nil {
		return
	}
	m.networkReachable.WithLabelValues(target).Set(boolToFloat(reachable))
}

func (m *Metrics) SetAlertActive(active bool) {
	if m == nil {
		return
	}
	m.alertActive.Set(boolToFloat(active))
}

func (m *Metrics) ObserveNotification(kind string, err error) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(kind, result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return ResultFailure
	}
	return ResultSuccess
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
