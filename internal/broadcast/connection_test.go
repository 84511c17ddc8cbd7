package broadcast

import (
	"context"
	"net"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionIdentity(t *testing.T) {
	a, _ := mkConn(t, 4001)
	b, _ := mkConn(t, 4002)

	assert.Greater(t, b.ID(), a.ID(), "ids must increase")
	assert.False(t, a.Equal(b))
	assert.True(t, a.Equal(a))

	// same id, different socket: still the same client
	clone := *a
	clone.conn = newFakeConn(4003)
	assert.True(t, a.Equal(&clone))

	var nilConn *Connection
	assert.False(t, a.Equal(nilConn))
	assert.True(t, nilConn.Equal(nil))

	assert.Equal(t, "127.0.0.1", a.HostName())
	assert.Contains(t, a.String(), "127.0.0.1")
}

func TestConnectionWriteAndClose(t *testing.T) {
	r := require.New(t)

	c, fc := mkConn(t, 4010)
	r.NoError(c.Write([]byte("hello\n")))
	r.Equal("hello\n", fc.written())

	fc.breakPipe()
	err := c.Write([]byte("again\n"))
	r.Error(err)
	r.True(errors.Is(err, errBrokenPipe))

	r.NoError(c.Close())
	r.Equal(1, fc.closeCount())
}

func TestConnectionResolveFailure(t *testing.T) {
	boom := errors.New("no such host")
	r := ResolverFunc(func(context.Context, net.Addr) (string, error) { return "", boom })

	c, err := newConnection(context.Background(), newFakeConn(4020), r, 0)
	require.Error(t, err)
	assert.Nil(t, c)
	assert.True(t, errors.Is(err, boom))
}

func TestReverseLookupFallsBackToIP(t *testing.T) {
	// an address from the documentation range has no PTR record
	addr := &net.TCPAddr{IP: net.ParseIP("192.0.2.1"), Port: 9}
	host, err := ReverseLookup{Resolver: &net.Resolver{PreferGo: true}, Timeout: 1}.ResolveHost(context.Background(), addr)
	require.NoError(t, err)
	assert.Equal(t, "192.0.2.1", host)

	_, err = ReverseLookup{}.ResolveHost(context.Background(), nil)
	assert.Error(t, err)

	_, err = ReverseLookup{}.ResolveHost(context.Background(), badAddr("nonsense"))
	assert.Error(t, err)
}

type badAddr string

func (a badAddr) Network() string { return "tcp" }
func (a badAddr) String() string  { return string(a) }
