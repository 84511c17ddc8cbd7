package broadcast

import (
	"sync"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
)

// Registry is the set of live connections, kept in admission order. It is the
// single source of truth for whether a connection is alive.
//
// Writes happen outside the lock on a snapshot. Only the dispatcher writes and
// evicts, so a connection is never written concurrently and never removed
// while a write to it is in flight.
type Registry struct {
	mu     sync.Mutex
	conns  []*Connection
	closed bool

	log     log.Logger
	metrics Metrics
}

// NewRegistry returns an empty registry.
func NewRegistry(logger log.Logger, m Metrics) *Registry {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Registry{log: logger, metrics: m.orDiscard()}
}

// Add appends c. It returns false if the registry was closed by CloseAll or
// already holds a connection with the same id.
func (r *Registry) Add(c *Connection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || r.indexOf(c) >= 0 {
		return false
	}
	r.conns = append(r.conns, c)
	r.metrics.Connections.Set(float64(len(r.conns)))
	return true
}

// RemoveAndClose evicts c and closes its socket. Removing a connection that
// is not present is a no-op. Close errors are logged and dropped since the
// connection is gone either way. The result reports whether this call did
// the removal.
func (r *Registry) RemoveAndClose(c *Connection) bool {
	r.mu.Lock()
	i := r.indexOf(c)
	if i >= 0 {
		r.conns = append(r.conns[:i], r.conns[i+1:]...)
		r.metrics.Connections.Set(float64(len(r.conns)))
	}
	r.mu.Unlock()

	if i < 0 {
		return false
	}
	r.close(c)
	return true
}

// Broadcast writes p to every connection registered when it is called and
// returns the ones whose write failed. It does not evict them.
func (r *Registry) Broadcast(p []byte) []*Connection {
	var failed []*Connection
	for _, c := range r.Snapshot() {
		if err := c.Write(p); err != nil {
			level.Debug(r.log).Log("event", "write failed", "conn", c, "err", err)
			failed = append(failed, c)
		}
	}
	return failed
}

// CloseAll closes every connection, empties the registry and refuses any
// later Add. The drained connections are returned in admission order.
func (r *Registry) CloseAll() []*Connection {
	r.mu.Lock()
	drained := r.conns
	r.conns = nil
	r.closed = true
	r.metrics.Connections.Set(0)
	r.mu.Unlock()

	for _, c := range drained {
		r.close(c)
	}
	return drained
}

// Snapshot returns a copy of the live connections in admission order.
func (r *Registry) Snapshot() []*Connection {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Connection, len(r.conns))
	copy(out, r.conns)
	return out
}

// Len returns the number of live connections.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

func (r *Registry) indexOf(c *Connection) int {
	for i, have := range r.conns {
		if have.Equal(c) {
			return i
		}
	}
	return -1
}

func (r *Registry) close(c *Connection) {
	if err := c.Close(); err != nil && !isClosedError(err) {
		level.Debug(r.log).Log("event", "close failed", "conn", c, "err", err)
	}
	r.metrics.Lifetime.Observe(time.Since(c.accepted).Seconds())
}
