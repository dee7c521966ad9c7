package components

import (
	"context"
	"sync"

	"argus/core"
)

// Bus is a small in-process pub/sub event bus. It is the data backbone
// components and domains use to exchange events without knowing about
// each other.
type Bus struct {
	mu      sync.RWMutex
	subs    map[string][]chan interface{}
	buffer  int
	closed  bool
}

// NewBus creates a bus whose subscriber channels buffer up to buffer
// events. A slow subscriber drops events rather than blocking publishers.
func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = 16
	}
	return &Bus{
		subs:   make(map[string][]chan interface{}),
		buffer: buffer,
	}
}

// Subscribe returns a channel receiving events published on topic and a
// cancel function that unsubscribes and closes the channel.
func (b *Bus) Subscribe(topic string) (<-chan interface{}, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan interface{}, b.buffer)
	b.subs[topic] = append(b.subs[topic], ch)

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		chans := b.subs[topic]
		for i, c := range chans {
			if c == ch {
				b.subs[topic] = append(chans[:i], chans[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber of topic. Subscribers
// with full buffers miss the event.
func (b *Bus) Publish(topic string, event interface{}) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs[topic] {
		select {
		case ch <- event:
		default:
		}
	}
}

// Close shuts the bus down and closes all subscriber channels.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, chans := range b.subs {
		for _, ch := range chans {
			close(ch)
		}
	}
	b.subs = make(map[string][]chan interface{})
}

// busComponent is the core component publishing the shared event bus.
type busComponent struct{}

var busSchema = []byte(`{
	"type": "object",
	"properties": {
		"buffer_size": {
			"type": "integer",
			"minimum": 1
		}
	},
	"additionalProperties": false
}`)

// ConfigSchema implements core.SchemaProvider.
func (c *busComponent) ConfigSchema() []byte {
	return busSchema
}

// Setup implements core.Module.
func (c *busComponent) Setup(_ context.Context, rt *core.Runtime, config map[string]interface{}) core.Result {
	buffer := 0
	switch v := config["buffer_size"].(type) {
	case int:
		buffer = v
	case float64:
		buffer = int(v)
	}
	rt.SetData(DataKeyBus, NewBus(buffer))
	return core.Ready()
}

// BusFrom returns the shared bus from a runtime, or nil if the bus
// component has not been set up.
func BusFrom(rt *core.Runtime) *Bus {
	bus, _ := rt.Data(DataKeyBus).(*Bus)
	return bus
}
