package watch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusBroadcastsToAllSubscribers(t *testing.T) {
	b := NewBus[int]("test", 4)
	a, stopA := b.Subscribe()
	defer stopA()
	c, stopC := b.Subscribe()
	defer stopC()

	b.Publish(1)
	b.Publish(2)

	assert.Equal(t, 1, <-a)
	assert.Equal(t, 2, <-a)
	assert.Equal(t, 1, <-c)
	assert.Equal(t, 2, <-c)
}

func TestBusDropsOldestForSlowSubscriber(t *testing.T) {
	b := NewBus[int]("test", 2)
	ch, stop := b.Subscribe()
	defer stop()

	for i := 1; i <= 5; i++ {
		b.Publish(i)
	}

	assert.Equal(t, 4, <-ch)
	assert.Equal(t, 5, <-ch)
	assert.EqualValues(t, 3, b.Dropped())
}

func TestBusSubscribeWithInitial(t *testing.T) {
	b := NewBus[string]("test", 1)
	ch, stop := b.SubscribeWith("now")
	defer stop()
	assert.Equal(t, "now", <-ch)

	b.Publish("next")
	assert.Equal(t, "next", <-ch)
}

func TestBusCancelAndClose(t *testing.T) {
	b := NewBus[int]("test", 1)
	ch, stop := b.Subscribe()
	require.Equal(t, 1, b.Subscribers())

	stop()
	stop()
	_, ok := <-ch
	assert.False(t, ok)
	assert.Zero(t, b.Subscribers())

	live, _ := b.Subscribe()
	b.Close()
	_, ok = <-live
	assert.False(t, ok)

	late, _ := b.Subscribe()
	_, ok = <-late
	assert.False(t, ok)

	b.Publish(1) // no panic after close
}
