package components

import (
	"context"
	"testing"
	"time"

	"argus/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := NewBus(4)
	defer bus.Close()

	ch, cancel := bus.Subscribe("camera/front/motion")
	defer cancel()

	bus.Publish("camera/front/motion", "detected")
	bus.Publish("camera/back/motion", "ignored")

	select {
	case got := <-ch:
		assert.Equal(t, "detected", got)
	case <-time.After(time.Second):
		t.Fatal("subscriber never received the event")
	}
	select {
	case got := <-ch:
		t.Fatalf("unexpected event %v", got)
	default:
	}
}

func TestBus_MultipleSubscribers(t *testing.T) {
	bus := NewBus(4)
	defer bus.Close()

	a, cancelA := bus.Subscribe("topic")
	defer cancelA()
	b, cancelB := bus.Subscribe("topic")
	defer cancelB()

	bus.Publish("topic", 1)

	assert.Equal(t, 1, <-a)
	assert.Equal(t, 1, <-b)
}

func TestBus_SlowSubscriberDropsEvents(t *testing.T) {
	bus := NewBus(1)
	defer bus.Close()

	ch, cancel := bus.Subscribe("topic")
	defer cancel()

	bus.Publish("topic", "first")
	bus.Publish("topic", "dropped") // buffer full, must not block

	assert.Equal(t, "first", <-ch)
	select {
	case got := <-ch:
		t.Fatalf("unexpected event %v", got)
	default:
	}
}

func TestBus_CancelClosesChannel(t *testing.T) {
	bus := NewBus(1)
	defer bus.Close()

	ch, cancel := bus.Subscribe("topic")
	cancel()

	_, open := <-ch
	assert.False(t, open)

	// Publishing to the cancelled subscriber is a no-op.
	bus.Publish("topic", "late")
}

func TestBus_CloseClosesAllSubscribers(t *testing.T) {
	bus := NewBus(1)
	ch, _ := bus.Subscribe("topic")

	bus.Close()
	_, open := <-ch
	assert.False(t, open)

	// Close is idempotent.
	bus.Close()
}

func TestBusComponent_Setup(t *testing.T) {
	reg := core.NewRegistry()
	comp := core.NewComponent("bus", "bus", nil)
	rt := core.NewRuntime(reg, comp)

	res := (&busComponent{}).Setup(context.Background(), rt, map[string]interface{}{"buffer_size": 8})
	require.Equal(t, core.StatusReady, res.Status)

	bus := BusFrom(rt)
	require.NotNil(t, bus)
	defer bus.Close()

	ch, cancel := bus.Subscribe("topic")
	defer cancel()
	bus.Publish("topic", "event")
	assert.Equal(t, "event", <-ch)
}
