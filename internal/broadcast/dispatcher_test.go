package broadcast

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (el *eventLog) listener() Listener {
	add := func(s string) {
		el.mu.Lock()
		defer el.mu.Unlock()
		el.events = append(el.events, s)
	}
	return ListenerFuncs{
		Connected:    func(c *Connection) { add("connect " + c.String()) },
		Disconnected: func(c *Connection) { add("disconnect " + c.String()) },
		Error:        func(msg string) { add("error " + msg) },
	}
}

func (el *eventLog) all() []string {
	el.mu.Lock()
	defer el.mu.Unlock()
	return append([]string(nil), el.events...)
}

type dispatchFixture struct {
	d      *dispatcher
	reg    *Registry
	queue  *fifo[string]
	events *notifier
	log    *eventLog

	cancel context.CancelFunc
	done   chan struct{}
}

func startDispatcher(t *testing.T, interval time.Duration) *dispatchFixture {
	t.Helper()

	el := &eventLog{}
	f := &dispatchFixture{
		reg:   NewRegistry(nil, Metrics{}),
		queue: newFIFO[string](),
		log:   el,
		done:  make(chan struct{}),
	}
	f.events = newNotifier(el.listener(), nil, Metrics{}.orDiscard())
	f.d = &dispatcher{
		queue:    f.queue,
		registry: f.reg,
		events:   f.events,
		interval: interval,
		log:      testLogger(),
		metrics:  Metrics{}.orDiscard(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	go f.events.run()
	go func() {
		f.d.run(ctx)
		f.events.stop()
		<-f.events.done
		close(f.done)
	}()

	t.Cleanup(f.stop)
	return f
}

func (f *dispatchFixture) stop() {
	f.cancel()
	<-f.done
}

func TestDispatcherHeartbeat(t *testing.T) {
	f := startDispatcher(t, 10*time.Millisecond)
	c, fc := mkConn(t, 6001)
	require.True(t, f.reg.Add(c))

	require.Eventually(t, func() bool {
		return strings.Count(fc.written(), "\n") >= 3
	}, 2*time.Second, 5*time.Millisecond)

	assert.Empty(t, strings.Trim(fc.written(), "\n"), "heartbeats are empty lines")
}

func TestDispatcherMessageRestartsHeartbeatTimer(t *testing.T) {
	f := startDispatcher(t, 400*time.Millisecond)
	c, fc := mkConn(t, 6005)
	require.True(t, f.reg.Add(c))

	time.Sleep(200 * time.Millisecond)
	f.queue.push("x")

	// the first heartbeat would have been due at 400ms; the message moved it to 600ms
	time.Sleep(250 * time.Millisecond)
	assert.Equal(t, "x\n", fc.written())
}

func TestDispatcherOrderAndFraming(t *testing.T) {
	// a long interval keeps heartbeats out of the way
	f := startDispatcher(t, time.Hour)
	a, fa := mkConn(t, 6010)
	b, fb := mkConn(t, 6011)
	require.True(t, f.reg.Add(a))
	require.True(t, f.reg.Add(b))

	msgs := []string{"http://example.com", "http://example.org", "", "third"}
	for _, m := range msgs {
		f.queue.push(m)
	}

	want := "http://example.com\nhttp://example.org\n\nthird\n"
	require.Eventually(t, func() bool { return fa.written() == want && fb.written() == want },
		2*time.Second, 5*time.Millisecond)
}

func TestDispatcherNoRetroactiveDelivery(t *testing.T) {
	f := startDispatcher(t, time.Hour)
	early, fe := mkConn(t, 6020)
	require.True(t, f.reg.Add(early))

	f.queue.push("one")
	require.Eventually(t, func() bool { return fe.written() == "one\n" }, 2*time.Second, 5*time.Millisecond)

	late, fl := mkConn(t, 6021)
	require.True(t, f.reg.Add(late))
	f.queue.push("two")

	require.Eventually(t, func() bool { return fl.written() == "two\n" }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "one\ntwo\n", fe.written())
}

func TestDispatcherEvictsFailedConnection(t *testing.T) {
	f := startDispatcher(t, 10*time.Millisecond)
	good, fg := mkConn(t, 6030)
	bad, fb := mkConn(t, 6031)
	require.True(t, f.reg.Add(good))
	require.True(t, f.reg.Add(bad))

	fb.breakPipe()
	require.Eventually(t, func() bool { return f.reg.Len() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, fb.closeCount())

	f.queue.push("after")
	require.Eventually(t, func() bool { return strings.Contains(fg.written(), "after\n") }, 2*time.Second, 5*time.Millisecond)
	assert.Empty(t, fb.written(), "evicted connection must not be written again")

	f.stop()
	evs := f.log.all()
	assert.Equal(t, []string{
		"disconnect " + bad.String(),
		"disconnect " + good.String(),
	}, evs)
}

func TestDispatcherDrainOnCancel(t *testing.T) {
	f := startDispatcher(t, time.Hour)

	var fakes []*fakeConn
	for i := 0; i < 4; i++ {
		c, fc := mkConn(t, 6040+i)
		require.True(t, f.reg.Add(c))
		fakes = append(fakes, fc)
	}

	f.stop()

	assert.Equal(t, 0, f.reg.Len())
	for _, fc := range fakes {
		assert.Equal(t, 1, fc.closeCount())
	}
	assert.Len(t, f.log.all(), 4)

	late, _ := mkConn(t, 6050)
	assert.False(t, f.reg.Add(late))
}
