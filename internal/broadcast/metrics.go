package broadcast

import (
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
)

// Metrics are the instruments a Manager reports to. Nil fields are replaced
// by discarding implementations.
type Metrics struct {
	// Connections tracks the number of live connections.
	Connections metrics.Gauge
	// Events counts lifecycle and dispatch events, labelled by "event".
	Events metrics.Counter
	// Lifetime observes how long a connection lived, in seconds.
	Lifetime metrics.Histogram
}

func (m Metrics) orDiscard() Metrics {
	if m.Connections == nil {
		m.Connections = discard.NewGauge()
	}
	if m.Events == nil {
		m.Events = discard.NewCounter()
	}
	if m.Lifetime == nil {
		m.Lifetime = discard.NewHistogram()
	}
	return m
}

func (m Metrics) count(event string) {
	m.Events.With("event", event).Add(1)
}
