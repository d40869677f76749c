package transport

import (
	"fmt"
	"log"
	"sync"
)

const busQueueDepth = 256

type busMessage struct {
	topic   string
	payload []byte
}

// Bus is an in-process Transport. Published messages are queued and
// delivered to handlers from a single dispatch goroutine, preserving
// publish order across all topics. When the queue is full, Publish
// drops the message with a warning rather than block the publisher.
type Bus struct {
	mu       sync.Mutex
	handlers map[string][]Handler
	queue    chan busMessage
	done     chan struct{}
	stop     sync.Once
}

// NewBus creates a Bus and starts its dispatch goroutine.
func NewBus() *Bus {
	b := &Bus{
		handlers: make(map[string][]Handler),
		queue:    make(chan busMessage, busQueueDepth),
		done:     make(chan struct{}),
	}
	go b.dispatch()
	return b
}

// Close stops dispatching. Queued but undelivered messages are dropped.
func (b *Bus) Close() {
	b.stop.Do(func() { close(b.done) })
}

func (b *Bus) Publish(topic string, payload []byte) error {
	select {
	case <-b.done:
		return fmt.Errorf("bus is closed")
	default:
	}
	select {
	case b.queue <- busMessage{topic: topic, payload: payload}:
		return nil
	default:
		log.Printf("WARNING: bus queue full, dropping message on topic %s", topic)
		return nil
	}
}

func (b *Bus) Subscribe(topic string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], handler)
}

func (b *Bus) dispatch() {
	for {
		select {
		case msg := <-b.queue:
			b.mu.Lock()
			handlers := append([]Handler(nil), b.handlers[msg.topic]...)
			b.mu.Unlock()
			for _, handler := range handlers {
				handler(msg.payload)
			}
		case <-b.done:
			return
		}
	}
}
