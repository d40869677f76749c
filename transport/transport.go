// Package transport provides the abstract publish/subscribe capability
// the bidding engine is written against, plus two implementations: an
// in-process Bus for tests and single-process deployments, and a
// socket hub/client pair (TCP or vsock) for multi-process ones.
//
// Delivery is best-effort and at-most-once per send; there is no
// acknowledgement and no retry. The bidding protocol is designed to
// tolerate lost messages (a lost response is just a fleet that did not
// bid in time).
package transport

// Handler consumes a message payload. Each Transport implementation
// invokes all handlers from a single goroutine, in publish order, so
// handlers need no locking among themselves but must not block.
type Handler func(payload []byte)

// Transport is the messaging boundary of the bidding engine.
type Transport interface {
	// Publish sends a payload to every current subscriber of the topic.
	// Best-effort: an error means the send was not attempted, while a
	// nil return still carries no delivery guarantee.
	Publish(topic string, payload []byte) error

	// Subscribe registers a handler for a topic. Handlers cannot be
	// unregistered; subscribers live as long as the transport.
	Subscribe(topic string, handler Handler)
}
