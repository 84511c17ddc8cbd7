package broadcast

import (
	"context"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
)

// DefaultPollInterval is how long the dispatcher waits for a message before
// it sends a heartbeat instead.
const DefaultPollInterval = time.Second

// heartbeat is the empty frame written when no message is pending. Its only
// purpose is to make writes to dead sockets fail.
var heartbeat = []byte{'\n'}

// dispatcher drains the outbound queue and writes each message to every
// live connection, evicting the ones that fail.
type dispatcher struct {
	queue    *fifo[string]
	registry *Registry
	events   *notifier
	interval time.Duration
	log      log.Logger
	metrics  Metrics
}

// run loops until ctx is cancelled, then closes every remaining connection.
func (d *dispatcher) run(ctx context.Context) {
	defer d.drain()

	for {
		msg, ok, err := d.queue.poll(ctx, d.interval)
		if err != nil {
			return
		}

		frame := heartbeat
		if ok {
			frame = make([]byte, 0, len(msg)+1)
			frame = append(frame, msg...)
			frame = append(frame, '\n')
			d.metrics.count("broadcast")
		} else {
			d.metrics.count("heartbeat")
		}

		d.dispatch(frame)
	}
}

func (d *dispatcher) dispatch(frame []byte) {
	for _, c := range d.registry.Broadcast(frame) {
		if d.registry.RemoveAndClose(c) {
			level.Info(d.log).Log("event", "evicted", "conn", c)
			d.events.disconnected(c)
		}
	}
}

func (d *dispatcher) drain() {
	conns := d.registry.CloseAll()
	for _, c := range conns {
		d.events.disconnected(c)
	}
	if dropped := d.queue.len(); dropped > 0 {
		level.Warn(d.log).Log("event", "dropped pending messages", "count", dropped)
	}
	level.Debug(d.log).Log("event", "dispatch loop finished", "closed", len(conns))
}
