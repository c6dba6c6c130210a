package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mussel"

// Failure reasons recorded by IngestFailed.
const (
	ReasonDecode  = "decode"
	ReasonPersist = "persist"
)

// Collectors holds every Prometheus series Mussel Core exports.
//
// All methods are safe on a nil *Collectors, so components can treat
// metrics as optional without branching.
type Collectors struct {
	registry *prometheus.Registry

	samplesIngested prometheus.Counter
	ingestFailures  *prometheus.CounterVec
	lastSample      prometheus.Gauge
	readings        *prometheus.GaugeVec

	reconciliations prometheus.Counter
	settingsChanged prometheus.Counter

	commands *prometheus.CounterVec

	wsClients prometheus.Gauge
}

// New builds the collectors on a private registry, together with the Go
// runtime and process collectors.
func New() *Collectors {
	c := &Collectors{
		registry: prometheus.NewRegistry(),

		samplesIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "telemetry",
			Name:      "samples_ingested_total",
			Help:      "Status messages decoded, cached and persisted.",
		}),
		ingestFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "telemetry",
			Name:      "ingest_failures_total",
			Help:      "Status messages dropped, by reason.",
		}, []string{"reason"}),
		lastSample: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "telemetry",
			Name:      "last_sample_timestamp_seconds",
			Help:      "Unix time of the most recent ingested sample.",
		}),
		readings: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "telemetry",
			Name:      "reading",
			Help:      "Latest value of each numeric reading reported by the device.",
		}, []string{"field"}),

		reconciliations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settings",
			Name:      "reconciliations_total",
			Help:      "Settings change requests reconciled.",
		}),
		settingsChanged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settings",
			Name:      "fields_changed_total",
			Help:      "Setting fields that differed from the prior state.",
		}),

		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "command",
			Name:      "dispatched_total",
			Help:      "Command publishes, by result.",
		}, []string{"result"}),

		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "websocket_clients",
			Help:      "Connected live-feed WebSocket clients.",
		}),
	}

	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.samplesIngested,
		c.ingestFailures,
		c.lastSample,
		c.readings,
		c.reconciliations,
		c.settingsChanged,
		c.commands,
		c.wsClients,
	)
	return c
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collectors) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (c *Collectors) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// SampleIngested records a successful ingestion and its numeric readings.
func (c *Collectors) SampleIngested(at time.Time, readings map[string]float64) {
	if c == nil {
		return
	}
	c.samplesIngested.Inc()
	c.lastSample.Set(float64(at.UnixNano()) / float64(time.Second))
	for field, v := range readings {
		c.readings.WithLabelValues(field).Set(v)
	}
}

// IngestFailed counts a dropped status message.
func (c *Collectors) IngestFailed(reason string) {
	if c == nil {
		return
	}
	c.ingestFailures.WithLabelValues(reason).Inc()
}

// SettingsReconciled counts one reconciliation and its changed fields.
func (c *Collectors) SettingsReconciled(changed int) {
	if c == nil {
		return
	}
	c.reconciliations.Inc()
	c.settingsChanged.Add(float64(changed))
}

// CommandDispatched counts a publish attempt.
func (c *Collectors) CommandDispatched(err error) {
	if c == nil {
		return
	}
	result := "published"
	if err != nil {
		result = "failed"
	}
	c.commands.WithLabelValues(result).Inc()
}

// SetWebSocketClients reports the live-feed client count.
func (c *Collectors) SetWebSocketClients(n int) {
	if c == nil {
		return
	}
	c.wsClients.Set(float64(n))
}
