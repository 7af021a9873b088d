package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Load outcomes recorded by PluginMetrics
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// PluginMetrics holds the plugin loader's Prometheus metrics.
// A nil *PluginMetrics records nothing.
type PluginMetrics struct {
	LoadsTotal        *prometheus.CounterVec
	PluginsRegistered prometheus.Gauge
}

// NewPluginMetrics creates the plugin metrics and registers them with registerer
func NewPluginMetrics(registerer prometheus.Registerer) *PluginMetrics {
	m := &PluginMetrics{
		LoadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inspec_plugin_loads_total",
				Help: "Total number of plugin load attempts",
			},
			[]string{"installation_type", "outcome"},
		),
		PluginsRegistered: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "inspec_plugins_registered",
				Help: "Number of plugins in the registry after discovery",
			},
		),
	}

	if registerer != nil {
		registerer.MustRegister(m.LoadsTotal, m.PluginsRegistered)
	}

	return m
}

// RecordLoad counts one load attempt
func (m *PluginMetrics) RecordLoad(installationType, outcome string) {
	if m == nil {
		return
	}
	m.LoadsTotal.WithLabelValues(installationType, outcome).Inc()
}

// SetRegistered records the registry size
func (m *PluginMetrics) SetRegistered(n int) {
	if m == nil {
		return
	}
	m.PluginsRegistered.Set(float64(n))
}

// WriteTextfile writes every metric gathered by gatherer to path in the
// Prometheus text format, for the node exporter textfile collector.
func WriteTextfile(path string, gatherer prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, gatherer)
}
