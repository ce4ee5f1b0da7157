package events

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueFIFO(t *testing.T) {
	q := NewQueue(8)
	for i := 0; i < 5; i++ {
		require.True(t, q.Put(Event{Kind: Click, Data: uint8(i)}, false))
	}
	assert.Equal(t, 5, q.Depth())

	for i := 0; i < 5; i++ {
		e, ok := q.Get()
		require.True(t, ok)
		assert.Equal(t, uint8(i), e.Data)
		assert.Equal(t, Click, e.Kind)
	}
	_, ok := q.Get()
	assert.False(t, ok, "queue should be empty")
	assert.Equal(t, 0, q.Depth())
}

func TestQueueRejectWhenFull(t *testing.T) {
	q := NewQueue(3)
	for i := 0; i < 3; i++ {
		require.True(t, q.Put(Event{Data: uint8(i)}, false))
	}
	assert.False(t, q.Put(Event{Data: 99}, false))
	assert.Equal(t, 3, q.Depth())
	assert.Equal(t, uint64(0), q.Dropped())

	e, ok := q.Get()
	require.True(t, ok)
	assert.Equal(t, uint8(0), e.Data, "rejected put must not evict")
}

func TestQueueOverwriteOldest(t *testing.T) {
	q := NewQueue(DefaultCapacity)
	for i := 0; i <= DefaultCapacity; i++ {
		require.True(t, q.Put(Event{Kind: Pressed, Data: uint8(i)}, true))
	}
	assert.Equal(t, DefaultCapacity, q.Depth())
	assert.Equal(t, uint64(1), q.Dropped())

	var got []uint8
	for {
		e, ok := q.Get()
		if !ok {
			break
		}
		got = append(got, e.Data)
	}
	require.Len(t, got, DefaultCapacity)
	assert.Equal(t, uint8(1), got[0], "oldest item should have been evicted")
	assert.Equal(t, uint8(DefaultCapacity), got[len(got)-1])
}

func TestQueueWrapAround(t *testing.T) {
	q := NewQueue(4)
	// Interleave puts and gets so positions wrap the slot array many times.
	next := 0
	for round := 0; round < 50; round++ {
		for i := 0; i < 3; i++ {
			q.Put(Event{Data: uint8(round*3 + i)}, true)
		}
		for i := 0; i < 3; i++ {
			e, ok := q.Get()
			require.True(t, ok)
			assert.Equal(t, uint8(next), e.Data)
			next++
		}
	}
	assert.Equal(t, 0, q.Depth())
}

func TestQueueClear(t *testing.T) {
	q := NewQueue(4)
	q.Put(Event{Kind: Click}, true)
	q.Put(Event{Kind: LongClick}, true)
	q.Clear()

	assert.Equal(t, 0, q.Depth())
	_, ok := q.Get()
	assert.False(t, ok)

	q.Put(Event{Kind: DoubleClick, Data: 7}, true)
	e, ok := q.Get()
	require.True(t, ok)
	assert.Equal(t, Event{Kind: DoubleClick, Data: 7}, e)
}

func TestQueueMinimumCapacity(t *testing.T) {
	q := NewQueue(0)
	assert.Equal(t, 1, q.Capacity())
	q.Put(Event{Data: 1}, true)
	q.Put(Event{Data: 2}, true)
	e, ok := q.Get()
	require.True(t, ok)
	assert.Equal(t, uint8(2), e.Data)
}

// TestQueueConcurrentOrder runs one producer against one consumer and checks
// that the consumer only ever sees increasing sequence numbers (loss allowed,
// reordering not) and never more than capacity are buffered.
func TestQueueConcurrentOrder(t *testing.T) {
	const n = 20000
	q := NewQueue(DefaultCapacity)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			// Data wraps at 256; Kind carries the high bits so the pair is
			// unique within any window the consumer can observe.
			q.Put(Event{Kind: Kind((i >> 8) & 0xff), Data: uint8(i)}, true)
		}
	}()

	last := -1
	received := 0
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	drain := func() {
		for {
			assert.LessOrEqual(t, q.Depth(), DefaultCapacity)
			e, ok := q.Get()
			if !ok {
				return
			}
			v := int(e.Kind)<<8 | int(e.Data)
			if v <= last {
				t.Fatalf("out of order: got %d after %d", v, last)
			}
			last = v
			received++
		}
	}

	for {
		select {
		case <-done:
			drain()
			assert.Equal(t, n-1, last, "final event must always survive")
			assert.Equal(t, uint64(n-received), q.Dropped())
			return
		default:
			drain()
		}
	}
}

func TestKindString(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{Released, "RELEASED"},
		{Pressed, "PRESSED"},
		{Click, "CLICK"},
		{LongClick, "LONG_CLICK"},
		{DoubleClick, "DOUBLE_CLICK"},
		{Kind(42), "UNKNOWN"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.kind.String())
	}
}

func TestKindIsGesture(t *testing.T) {
	assert.False(t, Released.IsGesture())
	assert.False(t, Pressed.IsGesture())
	assert.True(t, Click.IsGesture())
	assert.True(t, LongClick.IsGesture())
	assert.True(t, DoubleClick.IsGesture())
}
