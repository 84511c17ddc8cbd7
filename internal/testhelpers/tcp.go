package testhelpers

import (
	"bufio"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// LineClient is a raw TCP client reading newline-terminated frames.
type LineClient struct {
	Conn net.Conn
	r    *bufio.Reader
}

// DialLine connects to addr and registers cleanup with t.
func DialLine(t *testing.T, addr string) *LineClient {
	t.Helper()

	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	require.NoError(t, err, "dial %s", addr)
	t.Cleanup(func() { _ = conn.Close() })

	return &LineClient{Conn: conn, r: bufio.NewReader(conn)}
}

// ReadFrame reads one frame, terminator included, waiting at most timeout.
func (lc *LineClient) ReadFrame(timeout time.Duration) (string, error) {
	if err := lc.Conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return "", err
	}
	return lc.r.ReadString('\n')
}

// ReadMessage reads frames until a non-heartbeat one arrives and returns it
// with the terminator.
func (lc *LineClient) ReadMessage(t *testing.T, timeout time.Duration) string {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for {
		left := time.Until(deadline)
		if left <= 0 {
			t.Fatalf("no message within %v", timeout)
		}

		frame, err := lc.ReadFrame(left)
		require.NoError(t, err)
		if frame != "\n" {
			return frame
		}
	}
}

// Messages reads frames for the given duration and returns the non-heartbeat
// ones without their terminator.
func (lc *LineClient) Messages(window time.Duration) []string {
	var out []string
	deadline := time.Now().Add(window)
	for {
		left := time.Until(deadline)
		if left <= 0 {
			return out
		}
		frame, err := lc.ReadFrame(left)
		if err != nil {
			return out
		}
		if frame == "\n" {
			continue
		}
		out = append(out, strings.TrimSuffix(frame, "\n"))
	}
}

// Abort closes the socket with a reset instead of an orderly shutdown, so
// the server's next write fails promptly.
func (lc *LineClient) Abort() error {
	if tcp, ok := lc.Conn.(*net.TCPConn); ok {
		_ = tcp.SetLinger(0)
	}
	return lc.Conn.Close()
}
