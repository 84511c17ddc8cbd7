// Package metrics exposes the broadcast and console instruments through a
// dedicated Prometheus registry.
package metrics

import (
	"net/http"

	kitmetrics "github.com/go-kit/kit/metrics"
	kitprometheus "github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Tyrowin/linecast/internal/broadcast"
)

const namespace = "linecast"

// Set is every instrument of one linecast process.
type Set struct {
	Broadcast broadcast.Metrics
	Observers kitmetrics.Gauge

	registry *stdprometheus.Registry
}

// New registers the instruments, plus the Go runtime and process
// collectors, on a fresh registry.
func New() *Set {
	reg := stdprometheus.NewRegistry()

	conns := stdprometheus.NewGaugeVec(stdprometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "broadcast",
		Name:      "connections",
		Help:      "Number of live client connections.",
	}, nil)
	events := stdprometheus.NewCounterVec(stdprometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "broadcast",
		Name:      "events_total",
		Help:      "Lifecycle and dispatch events by kind.",
	}, []string{"event"})
	lifetime := stdprometheus.NewHistogramVec(stdprometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "broadcast",
		Name:      "connection_lifetime_seconds",
		Help:      "How long client connections stayed registered.",
		Buckets:   []float64{1, 10, 60, 600, 3600, 6 * 3600, 24 * 3600},
	}, nil)
	observers := stdprometheus.NewGaugeVec(stdprometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "console",
		Name:      "observers",
		Help:      "Number of connected console observers.",
	}, nil)

	reg.MustRegister(
		conns, events, lifetime, observers,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Set{
		Broadcast: broadcast.Metrics{
			Connections: kitprometheus.NewGauge(conns),
			Events:      kitprometheus.NewCounter(events),
			Lifetime:    kitprometheus.NewHistogram(lifetime),
		},
		Observers: kitprometheus.NewGauge(observers),
		registry:  reg,
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (s *Set) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}
