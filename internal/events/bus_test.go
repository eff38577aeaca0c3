package events

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/runnerr0/runtimelog/internal/logstore"
)

func TestBus_SingleSubscriber(t *testing.T) {
	bus := NewBus()
	var first, second int

	assert.True(t, bus.Subscribe(func(Event) { first++ }))
	assert.False(t, bus.Subscribe(func(Event) { second++ }), "second subscribe is a no-op")
	assert.False(t, bus.Subscribe(nil))

	bus.Publish(Event{PageKey: "/a"})
	assert.Equal(t, 1, first)
	assert.Equal(t, 0, second)
}

func TestBus_PublishWithoutSubscriber(t *testing.T) {
	bus := NewBus()
	assert.NotPanics(t, func() { bus.Publish(Event{}) })
	assert.False(t, bus.Subscribed())
}

func TestBus_ReentrantPublishIsQueued(t *testing.T) {
	bus := NewBus()
	var order []string
	bus.Subscribe(func(ev Event) {
		order = append(order, "start "+ev.Entry.Text)
		if ev.Entry.Text == "outer" {
			bus.Publish(Event{Entry: logstore.Entry{Text: "inner"}})
		}
		order = append(order, "end "+ev.Entry.Text)
	})

	bus.Publish(Event{Entry: logstore.Entry{Text: "outer"}})

	assert.Equal(t, []string{"start outer", "end outer", "start inner", "end inner"}, order)
}

func TestBus_HandlerPanicDoesNotWedge(t *testing.T) {
	bus := NewBus()
	calls := 0
	bus.Subscribe(func(Event) {
		calls++
		panic("boom")
	})

	assert.NotPanics(t, func() {
		bus.Publish(Event{})
		bus.Publish(Event{})
	})
	assert.Equal(t, 2, calls)
}

func TestBus_DeliveriesDoNotOverlap(t *testing.T) {
	bus := NewBus()
	var mu sync.Mutex
	active, maxActive, total := 0, 0, 0
	bus.Subscribe(func(Event) {
		mu.Lock()
		active++
		if active > maxActive {
			maxActive = active
		}
		mu.Unlock()

		mu.Lock()
		active--
		total++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Publish(Event{})
		}()
	}
	wg.Wait()

	// Every publish has been drained by the time the last drainer returns.
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return total == 50
	}, time.Second, time.Millisecond)
	assert.Equal(t, 1, maxActive)
}

func TestDefault_IsSingleton(t *testing.T) {
	assert.Same(t, Default(), Default())
}
