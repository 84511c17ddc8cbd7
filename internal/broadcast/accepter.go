package broadcast

import (
	"context"
	"net"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"
)

const (
	minAcceptBackoff = 5 * time.Millisecond
	maxAcceptBackoff = time.Second
)

// accepter owns the listening socket and admits connections into the
// registry. Closing the listener is the only way to stop it.
type accepter struct {
	ln       net.Listener
	registry *Registry
	events   *notifier
	log      log.Logger

	resolver       Resolver
	resolveTimeout time.Duration
	writeTimeout   time.Duration
}

func (a *accepter) run(ctx context.Context) {
	var backoff time.Duration
	for {
		conn, err := a.ln.Accept()
		if err != nil {
			if isClosedError(err) || ctx.Err() != nil {
				level.Debug(a.log).Log("event", "accept loop finished")
				return
			}

			a.events.reportError(errors.Wrap(err, "broadcast: accept failed").Error())
			level.Warn(a.log).Log("event", "accept failed", "err", err)

			if backoff == 0 {
				backoff = minAcceptBackoff
			} else if backoff *= 2; backoff > maxAcceptBackoff {
				backoff = maxAcceptBackoff
			}
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
			}
			continue
		}
		backoff = 0

		a.admit(ctx, conn)
	}
}

func (a *accepter) admit(ctx context.Context, conn net.Conn) {
	rctx := ctx
	if a.resolveTimeout > 0 {
		var cancel context.CancelFunc
		rctx, cancel = context.WithTimeout(ctx, a.resolveTimeout)
		defer cancel()
	}

	c, err := newConnection(rctx, conn, a.resolver, a.writeTimeout)
	if err != nil {
		a.events.reportError(err.Error())
		level.Warn(a.log).Log("event", "connection rejected", "remote", conn.RemoteAddr(), "err", err)
		if cerr := conn.Close(); cerr != nil {
			level.Debug(a.log).Log("event", "close failed", "remote", conn.RemoteAddr(), "err", cerr)
		}
		return
	}

	// announce before adding so the host never sees a disconnect ahead of
	// the matching connect
	a.events.connected(c)
	if !a.registry.Add(c) {
		// shutdown drained the registry first
		if err := c.Close(); err != nil {
			level.Debug(a.log).Log("event", "close failed", "conn", c, "err", err)
		}
		a.events.disconnected(c)
		return
	}
	level.Info(a.log).Log("event", "connected", "conn", c, "remote", conn.RemoteAddr())
}

// terminate unblocks run by closing the listening socket.
func (a *accepter) terminate() error {
	err := a.ln.Close()
	if err != nil && !isClosedError(err) {
		return errors.Wrap(err, "broadcast: failed to close listener")
	}
	return nil
}
