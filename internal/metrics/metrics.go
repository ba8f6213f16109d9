// Package metrics exposes the service's prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Expiry triggers.
const (
	TriggerScheduled = "scheduled"
	TriggerLazy      = "lazy"
	TriggerRecovery  = "recovery"
)

// Collector holds every metric the service records.
type Collector struct {
	MessagesPersisted prometheus.Counter
	Pushes            *prometheus.CounterVec
	StoryExpirations  *prometheus.CounterVec
	ArmedTimers       prometheus.Gauge
	PresentUsers      prometheus.Gauge

	gatherer prometheus.Gatherer
}

// NewCollector registers the collectors on reg. A nil reg uses a private registry.
func NewCollector(reg *prometheus.Registry) *Collector {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	c := &Collector{
		MessagesPersisted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "collegovibe",
			Subsystem: "relay",
			Name:      "messages_persisted_total",
			Help:      "Messages written to history.",
		}),
		Pushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "collegovibe",
			Subsystem: "relay",
			Name:      "pushes_total",
			Help:      "Live pushes by outcome (sent, offline, dropped).",
		}, []string{"result"}),
		StoryExpirations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "collegovibe",
			Subsystem: "stories",
			Name:      "expirations_total",
			Help:      "Story expiry executions by trigger and result.",
		}, []string{"trigger", "result"}),
		ArmedTimers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "collegovibe",
			Subsystem: "stories",
			Name:      "armed_timers",
			Help:      "Story expiry timers currently scheduled.",
		}),
		PresentUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "collegovibe",
			Subsystem: "presence",
			Name:      "present_users",
			Help:      "Identities with a live connection.",
		}),
		gatherer: reg,
	}

	reg.MustRegister(
		c.MessagesPersisted,
		c.Pushes,
		c.StoryExpirations,
		c.ArmedTimers,
		c.PresentUsers,
	)
	return c
}

// Handler serves the registry in the prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}
