package broadcast

import (
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

// connSeq hands out connection ids. Ids are unique for the process lifetime.
var connSeq atomic.Uint64

// Connection is one accepted client socket and the identity derived from it.
// It is immutable after construction; two Connections are the same client iff
// their ids match.
type Connection struct {
	id       uint64
	hostName string
	accepted time.Time

	conn         net.Conn
	w            io.Writer
	writeTimeout time.Duration
}

// newConnection wraps an accepted socket. The peer's host name is resolved
// once, here, and never again.
func newConnection(ctx context.Context, conn net.Conn, r Resolver, writeTimeout time.Duration) (*Connection, error) {
	if conn == nil {
		return nil, errors.New("broadcast: nil socket")
	}
	host, err := r.ResolveHost(ctx, conn.RemoteAddr())
	if err != nil {
		return nil, errors.Wrapf(err, "broadcast: failed to resolve peer %v", conn.RemoteAddr())
	}
	return &Connection{
		id:           connSeq.Add(1),
		hostName:     host,
		accepted:     time.Now(),
		conn:         conn,
		w:            conn,
		writeTimeout: writeTimeout,
	}, nil
}

// ID returns the connection's sequence number.
func (c *Connection) ID() uint64 { return c.id }

// HostName returns the peer host name resolved when the connection was accepted.
func (c *Connection) HostName() string { return c.hostName }

// RemoteAddr returns the peer's network address.
func (c *Connection) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

// Equal reports whether c and other identify the same client.
func (c *Connection) Equal(other *Connection) bool {
	if c == nil || other == nil {
		return c == other
	}
	return c.id == other.id
}

func (c *Connection) String() string {
	return fmt.Sprintf("#%d %s", c.id, c.hostName)
}

// Write sends p to the peer. Any socket-level failure, including the write
// deadline passing, is returned as is; there are no retries.
func (c *Connection) Write(p []byte) error {
	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return errors.Wrap(err, "broadcast: set write deadline")
		}
	}
	if _, err := c.w.Write(p); err != nil {
		return errors.Wrapf(err, "broadcast: write to %s", c)
	}
	return nil
}

// Close releases the socket.
func (c *Connection) Close() error {
	return c.conn.Close()
}

// Resolver derives a display host name from a peer address.
type Resolver interface {
	ResolveHost(ctx context.Context, addr net.Addr) (string, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context, addr net.Addr) (string, error)

func (f ResolverFunc) ResolveHost(ctx context.Context, addr net.Addr) (string, error) {
	return f(ctx, addr)
}

// ReverseLookup resolves the peer IP to a host name through reverse DNS,
// falling back to the IP literal when no name can be found. It only fails
// when the address itself cannot be parsed.
type ReverseLookup struct {
	Resolver *net.Resolver
	Timeout  time.Duration
}

func (rl ReverseLookup) ResolveHost(ctx context.Context, addr net.Addr) (string, error) {
	if addr == nil {
		return "", errors.New("no peer address")
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return "", errors.Wrap(err, "malformed peer address")
	}

	r := rl.Resolver
	if r == nil {
		r = net.DefaultResolver
	}
	if rl.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rl.Timeout)
		defer cancel()
	}

	names, err := r.LookupAddr(ctx, host)
	if err != nil || len(names) == 0 {
		return host, nil
	}
	return strings.TrimSuffix(names[0], "."), nil
}
