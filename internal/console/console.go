package console

import (
	"net/http"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/go-kit/kit/metrics"
	"github.com/gorilla/websocket"

	"github.com/Tyrowin/linecast/internal/broadcast"
	"github.com/Tyrowin/linecast/internal/config"
)

// Options configure a Console.
type Options struct {
	Backend        Backend
	AllowedOrigins []string
	MaxMessageSize int64
	RateLimit      config.RateLimitConfig

	// Metrics, when set, is served on /metrics.
	Metrics http.Handler
	// Observers tracks the number of connected observers.
	Observers metrics.Gauge

	Logger log.Logger
}

// Console ties the observer hub to the broadcast backend and serves the
// operator HTTP surface.
type Console struct {
	backend        Backend
	hub            *Hub
	origins        *originPolicy
	upgrader       websocket.Upgrader
	maxMessageSize int64
	rateLimit      config.RateLimitConfig
	metrics        http.Handler
	log            log.Logger
}

// New builds a Console. Call Start before serving requests.
func New(opts Options) *Console {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}
	logger = log.With(logger, "module", "console")

	def := config.Default()
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = def.MaxMessageSize
	}
	if opts.RateLimit.Burst <= 0 || opts.RateLimit.RefillInterval <= 0 {
		opts.RateLimit = def.RateLimit
	}

	c := &Console{
		backend:        opts.Backend,
		hub:            NewHub(logger, opts.Observers),
		origins:        newOriginPolicy(opts.AllowedOrigins, logger),
		maxMessageSize: opts.MaxMessageSize,
		rateLimit:      opts.RateLimit,
		metrics:        opts.Metrics,
		log:            logger,
	}
	c.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     c.origins.checkOrigin,
	}
	return c
}

// Start runs the observer hub in its own goroutine.
func (c *Console) Start() {
	go c.hub.Run()
	level.Debug(c.log).Log("event", "hub started")
}

// Shutdown closes every observer session, waiting up to timeout.
func (c *Console) Shutdown(timeout time.Duration) error {
	return c.hub.Shutdown(timeout)
}

// Hub returns the observer hub.
func (c *Console) Hub() *Hub { return c.hub }

// Submit queues text for broadcast and tells the observers about it.
func (c *Console) Submit(text string) {
	c.backend.SendMessage(text)
	c.hub.Publish(Event{Type: EventSent, Message: text, Time: time.Now().UTC()})
	level.Info(c.log).Log("event", "submitted", "len", len(text))
}

// Listener returns a broadcast.Listener that publishes every lifecycle event
// to the observers.
func (c *Console) Listener() broadcast.Listener {
	return broadcast.ListenerFuncs{
		Connected: func(conn *broadcast.Connection) {
			c.hub.Publish(connEvent(EventConnect, conn))
		},
		Disconnected: func(conn *broadcast.Connection) {
			c.hub.Publish(connEvent(EventDisconnect, conn))
		},
		Error: func(msg string) {
			c.hub.Publish(Event{Type: EventError, Message: msg, Time: time.Now().UTC()})
		},
	}
}
