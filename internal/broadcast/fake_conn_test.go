package broadcast

import (
	"bytes"
	"context"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

var errBrokenPipe = errors.New("write: broken pipe")

// fakeConn is an in-memory net.Conn recording what is written to it.
type fakeConn struct {
	mu       sync.Mutex
	buf      bytes.Buffer
	broken   bool
	closed   int
	closeErr error
	remote   net.Addr
}

func newFakeConn(port int) *fakeConn {
	return &fakeConn{remote: &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port}}
}

func (fc *fakeConn) Read([]byte) (int, error) { return 0, io.EOF }

func (fc *fakeConn) Write(p []byte) (int, error) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	if fc.broken || fc.closed > 0 {
		return 0, errBrokenPipe
	}
	return fc.buf.Write(p)
}

func (fc *fakeConn) Close() error {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.closed++
	return fc.closeErr
}

func (fc *fakeConn) breakPipe() {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.broken = true
}

func (fc *fakeConn) written() string {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.buf.String()
}

func (fc *fakeConn) closeCount() int {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.closed
}

func (fc *fakeConn) LocalAddr() net.Addr { return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 7000} }
func (fc *fakeConn) RemoteAddr() net.Addr { return fc.remote }
func (fc *fakeConn) SetDeadline(time.Time) error { return nil }
func (fc *fakeConn) SetReadDeadline(time.Time) error { return nil }
func (fc *fakeConn) SetWriteDeadline(time.Time) error { return nil }

var staticResolver = ResolverFunc(func(_ context.Context, addr net.Addr) (string, error) {
	host, _, err := net.SplitHostPort(addr.String())
	return host, err
})

func mkConn(t *testing.T, port int) (*Connection, *fakeConn) {
	t.Helper()
	fc := newFakeConn(port)
	c, err := newConnection(context.Background(), fc, staticResolver, 0)
	require.NoError(t, err)
	return c, fc
}
