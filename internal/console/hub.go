package console

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
)

// Hub fans lifecycle events out to every connected observer. Registration,
// removal and delivery all happen on the Run goroutine; the mutex only guards
// reads from other goroutines.
type Hub struct {
	observers  map[*Observer]bool
	broadcast  chan []byte
	register   chan *Observer
	unregister chan *Observer
	mutex      sync.RWMutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}

	log   log.Logger
	gauge metrics.Gauge
}

// NewHub creates a Hub ready to Run. A nil gauge discards the observer count.
func NewHub(logger log.Logger, observers metrics.Gauge) *Hub {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	if observers == nil {
		observers = discard.NewGauge()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		observers:  make(map[*Observer]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Observer),
		unregister: make(chan *Observer),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		log:        logger,
		gauge:      observers,
	}
}

// Publish queues ev for every observer. It gives up once the hub is shut down.
func (h *Hub) Publish(ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		level.Error(h.log).Log("event", "marshal failed", "err", err)
		return
	}
	select {
	case h.broadcast <- payload:
	case <-h.ctx.Done():
	}
}

// Count returns the number of registered observers.
func (h *Hub) Count() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.observers)
}

// Run processes registrations and deliveries until Shutdown.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownObservers()
			return

		case o := <-h.register:
			h.mutex.Lock()
			h.observers[o] = true
			count := len(h.observers)
			h.mutex.Unlock()
			h.gauge.Set(float64(count))
			level.Info(h.log).Log("event", "observer registered", "observer", o.id, "addr", o.addr, "total", count)

			h.wg.Add(2)
			go func() {
				defer h.wg.Done()
				o.writePump()
			}()
			go func() {
				defer h.wg.Done()
				o.readPump()
			}()

		case o := <-h.unregister:
			h.remove(o, "unregistered")

		case payload := <-h.broadcast:
			for _, o := range h.snapshot() {
				select {
				case o.send <- payload:
				default:
					h.remove(o, "send buffer full")
				}
			}
		}
	}
}

func (h *Hub) snapshot() []*Observer {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	out := make([]*Observer, 0, len(h.observers))
	for o := range h.observers {
		out = append(out, o)
	}
	return out
}

// remove must only be called from Run, which is the only sender on o.send.
func (h *Hub) remove(o *Observer, reason string) {
	h.mutex.Lock()
	if _, ok := h.observers[o]; !ok {
		h.mutex.Unlock()
		return
	}
	delete(h.observers, o)
	count := len(h.observers)
	h.mutex.Unlock()

	close(o.send)
	h.gauge.Set(float64(count))
	level.Info(h.log).Log("event", "observer removed", "observer", o.id, "reason", reason, "total", count)
}

func (h *Hub) shutdownObservers() {
	observers := h.snapshot()
	for _, o := range observers {
		if err := o.conn.Close(); err != nil && !isExpectedCloseError(err) {
			level.Warn(h.log).Log("event", "close failed", "observer", o.id, "err", err)
		}
	}
	level.Info(h.log).Log("event", "observers closed", "count", len(observers))
}

// Shutdown stops Run and waits for the observer goroutines, up to timeout.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.cancel()
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		level.Warn(h.log).Log("event", "shutdown timeout", "timeout", timeout)
		return context.DeadlineExceeded
	}
}
