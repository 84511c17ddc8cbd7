package broadcast

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFIFOOrder(t *testing.T) {
	r := require.New(t)
	q := newFIFO[string]()
	ctx := context.Background()

	for _, s := range []string{"a", "b", "c"} {
		r.True(q.push(s))
	}
	r.Equal(3, q.len())

	for _, want := range []string{"a", "b", "c"} {
		got, ok, err := q.poll(ctx, time.Second)
		r.NoError(err)
		r.True(ok)
		r.Equal(want, got)
	}
}

func TestFIFOPollTimeout(t *testing.T) {
	q := newFIFO[int]()

	start := time.Now()
	_, ok, err := q.poll(context.Background(), 20*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.GreaterOrEqual(t, int64(time.Since(start)), int64(20*time.Millisecond))
}

func TestFIFOPollWakesOnPush(t *testing.T) {
	q := newFIFO[int]()

	go func() {
		time.Sleep(10 * time.Millisecond)
		q.push(42)
	}()

	v, ok, err := q.poll(context.Background(), 5*time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 42, v)
}

func TestFIFOPollCancelled(t *testing.T) {
	q := newFIFO[int]()
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, ok, err := q.poll(ctx, 0)
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.Canceled)

	// a cancelled context wins over queued items
	q.push(1)
	_, _, err = q.poll(ctx, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFIFOCloseDrains(t *testing.T) {
	r := require.New(t)
	q := newFIFO[int]()
	ctx := context.Background()

	q.push(1)
	q.close()
	r.False(q.push(2), "closed queue must refuse items")
	r.False(q.drained())

	v, ok, err := q.poll(ctx, 0)
	r.NoError(err)
	r.True(ok)
	r.Equal(1, v)
	r.True(q.drained())

	_, ok, err = q.poll(ctx, 0)
	r.NoError(err)
	r.False(ok)
}

func TestFIFOConcurrentProducers(t *testing.T) {
	q := newFIFO[int]()
	const producers, each = 8, 100

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < each; i++ {
				q.push(p*each + i)
			}
		}(p)
	}
	wg.Wait()

	// every producer's items come out in its own order
	last := make(map[int]int)
	for n := 0; n < producers*each; n++ {
		v, ok, err := q.poll(context.Background(), time.Second)
		require.NoError(t, err)
		require.True(t, ok)
		p := v / each
		if prev, seen := last[p]; seen {
			require.Greater(t, v, prev)
		}
		last[p] = v
	}
	assert.Equal(t, 0, q.len())
}
