package events

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_PublishDelivers(t *testing.T) {
	bus := NewBus(10, nil)
	sub := bus.Subscribe("test")

	bus.Publish(Event{Type: TypeRefreshStarted, Data: map[string]any{"run_id": "abc"}})

	event := <-sub.C
	assert.Equal(t, TypeRefreshStarted, event.Type)
	assert.Equal(t, "abc", event.Data["run_id"])
	assert.False(t, event.At.IsZero(), "publish stamps the event time")
}

func TestBus_DropOldestWhenFull(t *testing.T) {
	bus := NewBus(2, nil)
	sub := bus.Subscribe("slow")

	for i := 0; i < 5; i++ {
		bus.Publish(Event{Type: TypeRefreshCompleted, Data: map[string]any{"seq": i}})
	}

	// Capacity 2: the two newest events survive.
	first := <-sub.C
	second := <-sub.C
	assert.Equal(t, 3, first.Data["seq"])
	assert.Equal(t, 4, second.Data["seq"])
	assert.Equal(t, 1, bus.SubscriberCount(), "a draining subscriber is kept")
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus(10, nil)
	sub := bus.Subscribe("test")
	bus.Unsubscribe("test")

	_, open := <-sub.C
	assert.False(t, open, "unsubscribe closes the channel")
	assert.Zero(t, bus.SubscriberCount())
}

func TestBus_ResubscribeReplaces(t *testing.T) {
	bus := NewBus(10, nil)
	old := bus.Subscribe("test")
	replacement := bus.Subscribe("test")

	_, open := <-old.C
	assert.False(t, open, "replaced subscriber channel is closed")

	bus.Publish(Event{Type: TypeSnapshotPromoted})
	event := <-replacement.C
	assert.Equal(t, TypeSnapshotPromoted, event.Type)
}

func TestBus_MultipleSubscribers(t *testing.T) {
	bus := NewBus(10, nil)
	subs := make([]*Subscriber, 3)
	for i := range subs {
		subs[i] = bus.Subscribe(fmt.Sprintf("sub-%d", i))
	}

	bus.Publish(Event{Type: TypeProviderActivated})

	for _, sub := range subs {
		event := <-sub.C
		require.Equal(t, TypeProviderActivated, event.Type)
	}
}
