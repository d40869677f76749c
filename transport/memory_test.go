package transport

import (
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

func TestBus_DeliversToSubscribers(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	received := make(chan []byte, 4)
	bus.Subscribe("topic-a", func(payload []byte) { received <- payload })

	assert.NoError(t, bus.Publish("topic-a", []byte("hello")))

	select {
	case payload := <-received:
		check.Equal(t, "hello", string(payload))
	case <-time.After(time.Second):
		t.Fatal("message never delivered")
	}
}

func TestBus_TopicsAreIsolated(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	receivedA := make(chan []byte, 4)
	receivedB := make(chan []byte, 4)
	bus.Subscribe("topic-a", func(payload []byte) { receivedA <- payload })
	bus.Subscribe("topic-b", func(payload []byte) { receivedB <- payload })

	assert.NoError(t, bus.Publish("topic-b", []byte("for-b")))

	select {
	case payload := <-receivedB:
		check.Equal(t, "for-b", string(payload))
	case <-time.After(time.Second):
		t.Fatal("message never delivered")
	}
	select {
	case payload := <-receivedA:
		t.Fatalf("topic-a received stray message %q", payload)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestBus_PreservesPublishOrder(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	received := make(chan string, 16)
	bus.Subscribe("topic-a", func(payload []byte) { received <- string(payload) })

	messages := []string{"one", "two", "three", "four"}
	for _, message := range messages {
		assert.NoError(t, bus.Publish("topic-a", []byte(message)))
	}

	for _, want := range messages {
		select {
		case got := <-received:
			check.Equal(t, want, got)
		case <-time.After(time.Second):
			t.Fatal("delivery stalled")
		}
	}
}

func TestBus_PublishAfterCloseErrors(t *testing.T) {
	bus := NewBus()
	bus.Close()

	check.Error(t, bus.Publish("topic-a", []byte("too late")))
}
