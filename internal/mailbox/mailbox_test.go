package mailbox

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMailbox_FIFO(t *testing.T) {
	m := New[int]()
	for i := 0; i < 5; i++ {
		require.True(t, m.Put(i))
	}
	assert.Equal(t, 5, m.Len())

	for i := 0; i < 5; i++ {
		v, ok := m.TryTake()
		require.True(t, ok)
		assert.Equal(t, i, v)
	}
	_, ok := m.TryTake()
	assert.False(t, ok)
}

func TestMailbox_CloseKeepsQueuedItems(t *testing.T) {
	m := New[string]()
	m.Put("a")
	m.Put("b")

	m.Close()
	m.Close()
	assert.False(t, m.Put("c"), "put after close must be rejected")
	assert.True(t, m.Closed())

	v, ok := m.TryTake()
	require.True(t, ok)
	assert.Equal(t, "a", v)
	assert.Equal(t, []string{"b"}, m.Drain())
	assert.Empty(t, m.Drain())
}

func TestMailbox_PumpDrainsBeforeStopping(t *testing.T) {
	m := New[int]()
	m.Put(1)
	m.Put(2)
	m.Close()

	out := make(chan int)
	go m.Pump(out, nil)

	var got []int
	for v := range out {
		got = append(got, v)
	}
	assert.Equal(t, []int{1, 2}, got)
}

func TestMailbox_PumpDeliversInOrderFromManyProducers(t *testing.T) {
	// --- Arrange ---
	m := New[int]()
	out := make(chan int)
	done := make(chan struct{})
	defer close(done)
	go m.Pump(out, done)

	const producers, perProducer = 4, 100
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				m.Put(p*perProducer + i)
			}
		}(p)
	}

	// --- Act ---
	last := map[int]int{}
	for i := 0; i < producers*perProducer; i++ {
		select {
		case v := <-out:
			p := v / perProducer
			prev, seen := last[p]
			if seen {
				require.Greater(t, v, prev, "items from one producer must stay ordered")
			}
			last[p] = v
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for pumped items")
		}
	}
	wg.Wait()

	// --- Assert ---
	assert.Len(t, last, producers)
}

func TestMailbox_PumpStopsOnClose(t *testing.T) {
	m := New[int]()
	out := make(chan int)
	go m.Pump(out, nil)

	m.Close()
	select {
	case _, ok := <-out:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("pump did not stop after close")
	}
}
