// Package relay feeds messages published on a NATS subject into the
// broadcast queue, one broadcast per non-empty line.
package relay

import (
	"strings"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/hashicorp/go-multierror"
	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
)

// Sender accepts messages for broadcast. *broadcast.Manager implements it.
type Sender interface {
	SendMessage(text string)
}

// Subscription is an active subject subscription.
type Subscription interface {
	Unsubscribe() error
}

// Subscriber is the part of a NATS connection the relay needs.
type Subscriber interface {
	Subscribe(subject string, handler func(*nats.Msg)) (Subscription, error)
}

type natsConn struct{ nc *nats.Conn }

func (c natsConn) Subscribe(subject string, handler func(*nats.Msg)) (Subscription, error) {
	return c.nc.Subscribe(subject, handler)
}

// Relay forwards subject messages to a Sender until closed.
type Relay struct {
	subject string
	sub     Subscription
	nc      *nats.Conn
	log     log.Logger
}

// Dial connects to the NATS server at url and subscribes to subject.
func Dial(url, subject string, to Sender, logger log.Logger) (*Relay, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	logger = log.With(logger, "module", "relay", "subject", subject)

	nc, err := nats.Connect(url,
		nats.Name("linecast"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			level.Warn(logger).Log("event", "nats disconnected", "err", err)
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			level.Info(logger).Log("event", "nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "relay: failed to connect to %s", url)
	}

	r, err := Subscribe(natsConn{nc}, subject, to, logger)
	if err != nil {
		nc.Close()
		return nil, err
	}
	r.nc = nc
	return r, nil
}

// Subscribe starts relaying subject over an existing connection.
func Subscribe(s Subscriber, subject string, to Sender, logger log.Logger) (*Relay, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	r := &Relay{subject: subject, log: logger}

	sub, err := s.Subscribe(subject, func(m *nats.Msg) {
		n := forward(m.Data, to)
		level.Debug(logger).Log("event", "relayed", "lines", n)
	})
	if err != nil {
		return nil, errors.Wrapf(err, "relay: failed to subscribe to %q", subject)
	}
	r.sub = sub
	level.Info(logger).Log("event", "subscribed")
	return r, nil
}

// forward sends every non-empty line of data and returns how many it sent.
func forward(data []byte, to Sender) int {
	n := 0
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		to.SendMessage(line)
		n++
	}
	return n
}

// Close unsubscribes and, when the relay owns its connection, closes it.
func (r *Relay) Close() error {
	var result *multierror.Error
	if err := r.sub.Unsubscribe(); err != nil {
		result = multierror.Append(result, errors.Wrap(err, "relay: unsubscribe"))
	}
	if r.nc != nil {
		r.nc.Close()
	}
	return result.ErrorOrNil()
}
