package testhelpers

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/linecast/internal/broadcast"
)

// Recorder is a broadcast.Listener that keeps every event it receives.
type Recorder struct {
	mu           sync.Mutex
	connected    []*broadcast.Connection
	disconnected []*broadcast.Connection
	errors       []string
}

var _ broadcast.Listener = (*Recorder)(nil)

func (r *Recorder) OnConnection(c *broadcast.Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connected = append(r.connected, c)
}

func (r *Recorder) OnDisconnection(c *broadcast.Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disconnected = append(r.disconnected, c)
}

func (r *Recorder) OnError(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, msg)
}

// Connected returns the connections announced so far.
func (r *Recorder) Connected() []*broadcast.Connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*broadcast.Connection(nil), r.connected...)
}

// Disconnected returns the connections reported gone so far.
func (r *Recorder) Disconnected() []*broadcast.Connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*broadcast.Connection(nil), r.disconnected...)
}

// Errors returns the error messages received so far.
func (r *Recorder) Errors() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.errors...)
}

// WaitConnected waits until n connections have been announced.
func (r *Recorder) WaitConnected(t *testing.T, n int) []*broadcast.Connection {
	t.Helper()
	require.Eventually(t, func() bool { return len(r.Connected()) >= n },
		5*time.Second, 5*time.Millisecond, "waiting for %d connections", n)
	return r.Connected()
}

// WaitDisconnected waits until n disconnections have been reported.
func (r *Recorder) WaitDisconnected(t *testing.T, n int) []*broadcast.Connection {
	t.Helper()
	require.Eventually(t, func() bool { return len(r.Disconnected()) >= n },
		5*time.Second, 5*time.Millisecond, "waiting for %d disconnections", n)
	return r.Disconnected()
}
