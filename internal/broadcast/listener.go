package broadcast

import "context"

// Listener receives lifecycle events from a Manager. Callbacks arrive on a
// background goroutine, or wherever the configured Executor runs them, never
// on the accepting or dispatching goroutine. They are delivered one at a time
// in the order the events happened.
type Listener interface {
	OnConnection(c *Connection)
	OnDisconnection(c *Connection)
	OnError(msg string)
}

// ListenerFuncs implements Listener with optional callbacks.
type ListenerFuncs struct {
	Connected    func(c *Connection)
	Disconnected func(c *Connection)
	Error        func(msg string)
}

func (l ListenerFuncs) OnConnection(c *Connection) {
	if l.Connected != nil {
		l.Connected(c)
	}
}

func (l ListenerFuncs) OnDisconnection(c *Connection) {
	if l.Disconnected != nil {
		l.Disconnected(c)
	}
}

func (l ListenerFuncs) OnError(msg string) {
	if l.Error != nil {
		l.Error(msg)
	}
}

// Executor runs a listener callback in the host's execution context, for
// example by posting it to a UI loop. The default runs it inline on the
// relay goroutine.
type Executor func(fn func())

func inline(fn func()) { fn() }

type eventKind int

const (
	connected eventKind = iota
	disconnected
	errored
)

type event struct {
	kind eventKind
	conn *Connection
	msg  string
}

// notifier relays events from the loops to the Listener through its own
// queue, so producing an event never waits on the host.
type notifier struct {
	listener Listener
	exec     Executor
	metrics  Metrics

	events *fifo[event]
	done   chan struct{}
}

func newNotifier(l Listener, exec Executor, m Metrics) *notifier {
	if l == nil {
		l = ListenerFuncs{}
	}
	if exec == nil {
		exec = inline
	}
	return &notifier{
		listener: l,
		exec:     exec,
		metrics:  m,
		events:   newFIFO[event](),
		done:     make(chan struct{}),
	}
}

func (n *notifier) connected(c *Connection) {
	n.metrics.count("connect")
	n.events.push(event{kind: connected, conn: c})
}

func (n *notifier) disconnected(c *Connection) {
	n.metrics.count("disconnect")
	n.events.push(event{kind: disconnected, conn: c})
}

func (n *notifier) reportError(msg string) {
	n.metrics.count("error")
	n.events.push(event{kind: errored, msg: msg})
}

// run delivers events until the queue has been closed and emptied.
func (n *notifier) run() {
	defer close(n.done)

	ctx := context.Background()
	for {
		ev, ok, _ := n.events.poll(ctx, 0)
		if !ok {
			if n.events.drained() {
				return
			}
			continue
		}
		n.exec(func() { n.deliver(ev) })
	}
}

func (n *notifier) deliver(ev event) {
	switch ev.kind {
	case connected:
		n.listener.OnConnection(ev.conn)
	case disconnected:
		n.listener.OnDisconnection(ev.conn)
	case errored:
		n.listener.OnError(ev.msg)
	}
}

// stop lets run finish once the queued events are delivered.
func (n *notifier) stop() {
	n.events.close()
}
