package eventbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishFansOut(t *testing.T) {
	t.Parallel()

	b := New()
	a, unsubA := b.Subscribe(4)
	c, unsubC := b.Subscribe(4)
	defer unsubA()
	defer unsubC()

	b.Publish(Event{Type: TickSucceeded, Data: "job"})

	for _, ch := range []<-chan Event{a, c} {
		e := <-ch
		assert.Equal(t, TickSucceeded, e.Type)
		assert.Equal(t, "job", e.Data)
		assert.False(t, e.Time.IsZero())
	}
}

func TestSlowSubscriberDrops(t *testing.T) {
	t.Parallel()

	b := New()
	ch, unsub := b.Subscribe(1)
	defer unsub()

	b.Publish(Event{Type: TickStarted})
	b.Publish(Event{Type: TickFailed})

	require.Len(t, ch, 1)
	assert.Equal(t, TickStarted, (<-ch).Type)
}

func TestUnsubscribeClosesAndStopsDelivery(t *testing.T) {
	t.Parallel()

	b := New()
	ch, unsub := b.Subscribe(1)
	unsub()
	unsub()

	assert.NotPanics(t, func() { b.Publish(Event{Type: TickDropped}) })
	_, ok := <-ch
	assert.False(t, ok)
}
