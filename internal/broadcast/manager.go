package broadcast

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
)

const (
	// DefaultWriteTimeout bounds a single write to one client.
	DefaultWriteTimeout = 5 * time.Second
	// DefaultResolveTimeout bounds the reverse lookup of a new peer.
	DefaultResolveTimeout = 2 * time.Second
)

type state int

const (
	stateIdle state = iota
	stateRunning
	stateClosed
)

type options struct {
	logger         log.Logger
	bindHost       string
	pollInterval   time.Duration
	writeTimeout   time.Duration
	resolver       Resolver
	resolveTimeout time.Duration
	executor       Executor
	metrics        Metrics
}

// Option configures a Manager.
type Option func(*options)

// WithLogger sets the logger used by every loop of the Manager.
func WithLogger(l log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithBindHost restricts the listening socket to one interface.
func WithBindHost(host string) Option {
	return func(o *options) { o.bindHost = host }
}

// WithPollInterval sets the heartbeat period.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) { o.pollInterval = d }
}

// WithWriteTimeout bounds each write to a client. Zero disables the deadline.
func WithWriteTimeout(d time.Duration) Option {
	return func(o *options) { o.writeTimeout = d }
}

// WithResolver replaces the reverse DNS lookup used to name new peers.
func WithResolver(r Resolver) Option {
	return func(o *options) { o.resolver = r }
}

// WithResolveTimeout bounds host name resolution of a new peer.
func WithResolveTimeout(d time.Duration) Option {
	return func(o *options) { o.resolveTimeout = d }
}

// WithExecutor sets where listener callbacks run.
func WithExecutor(e Executor) Option {
	return func(o *options) { o.executor = e }
}

// WithMetrics sets the instruments the Manager reports to.
func WithMetrics(m Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// Manager accepts clients on a TCP port and broadcasts messages to all of
// them. It is created bound but idle; Start launches the loops.
type Manager struct {
	mu    sync.Mutex
	state state

	ctx    context.Context
	cancel context.CancelFunc

	ln         net.Listener
	registry   *Registry
	queue      *fifo[string]
	events     *notifier
	accepter   *accepter
	dispatcher *dispatcher

	log  log.Logger
	done chan struct{}
}

// New binds the listening socket on port and returns an idle Manager that
// reports to l. Port 0 picks an ephemeral port. A bind failure is returned
// as a *BindError.
func New(port int, l Listener, opts ...Option) (*Manager, error) {
	o := options{
		logger:         log.NewNopLogger(),
		pollInterval:   DefaultPollInterval,
		writeTimeout:   DefaultWriteTimeout,
		resolveTimeout: DefaultResolveTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.NewNopLogger()
	}
	if o.pollInterval <= 0 {
		o.pollInterval = DefaultPollInterval
	}
	if o.resolver == nil {
		o.resolver = ReverseLookup{}
	}
	m := o.metrics.orDiscard()

	addr := net.JoinHostPort(o.bindHost, strconv.Itoa(port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, &BindError{Addr: addr, Err: err}
	}

	logger := log.With(o.logger, "module", "broadcast")
	ctx, cancel := context.WithCancel(context.Background())

	mgr := &Manager{
		ctx:      ctx,
		cancel:   cancel,
		ln:       ln,
		registry: NewRegistry(logger, m),
		queue:    newFIFO[string](),
		events:   newNotifier(l, o.executor, m),
		log:      logger,
		done:     make(chan struct{}),
	}
	mgr.accepter = &accepter{
		ln:             ln,
		registry:       mgr.registry,
		events:         mgr.events,
		log:            log.With(logger, "loop", "accept"),
		resolver:       o.resolver,
		resolveTimeout: o.resolveTimeout,
		writeTimeout:   o.writeTimeout,
	}
	mgr.dispatcher = &dispatcher{
		queue:    mgr.queue,
		registry: mgr.registry,
		events:   mgr.events,
		interval: o.pollInterval,
		log:      log.With(logger, "loop", "dispatch"),
		metrics:  m,
	}
	return mgr, nil
}

// Addr returns the address the listening socket is bound to.
func (m *Manager) Addr() net.Addr {
	return m.ln.Addr()
}

// Start launches the accept and dispatch loops. Only the first call on an
// idle Manager has any effect.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != stateIdle {
		return
	}
	m.state = stateRunning

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		m.accepter.run(m.ctx)
	}()
	go func() {
		defer wg.Done()
		m.dispatcher.run(m.ctx)
	}()
	go m.events.run()

	go func() {
		wg.Wait()
		m.events.stop()
		<-m.events.done
		level.Info(m.log).Log("event", "stopped")
		close(m.done)
	}()

	level.Info(m.log).Log("event", "started", "addr", m.ln.Addr())
}

// SendMessage queues text for broadcast. It never blocks. Messages sent
// before Start are kept and delivered once the dispatcher runs; messages sent
// after Close are dropped.
func (m *Manager) SendMessage(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == stateClosed {
		level.Debug(m.log).Log("event", "message after close dropped")
		return
	}
	m.queue.push(text)
}

// Close stops accepting and asks the dispatcher to close every connection.
// It does not wait for that to happen; use Done for that.
func (m *Manager) Close() error {
	m.mu.Lock()
	prev := m.state
	m.state = stateClosed
	m.mu.Unlock()

	if prev == stateClosed {
		return nil
	}

	m.cancel()
	err := m.accepter.terminate()

	if prev == stateIdle {
		m.registry.CloseAll()
		m.events.stop()
		close(m.done)
	}
	return err
}

// Done is closed once both loops have exited and every pending event has
// been handed to the Executor. With the default Executor that means the
// listener has seen them all.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Len returns the number of live connections.
func (m *Manager) Len() int {
	return m.registry.Len()
}
