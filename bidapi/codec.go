package bidapi

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// encMode encodes times at microsecond precision so finish times and
// deadlines survive a round trip; the default unix-seconds mode would
// truncate them.
var encMode cbor.EncMode

func init() {
	opts := cbor.EncOptions{Time: cbor.TimeUnixMicro}
	var err error
	encMode, err = opts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("bidapi: invalid CBOR encoding options: %v", err))
	}
}

// Encode serializes a protocol message to its CBOR wire form, stamping
// the envelope's type discriminator. Accepts pointers to the message
// structs in this package.
func Encode(message any) ([]byte, error) {
	switch m := message.(type) {
	case *TaskRequest:
		m.Type = MessageTaskRequest
	case *CallForBids:
		m.Type = MessageCallForBids
	case *BidResponse:
		m.Type = MessageBidResponse
	case *Cancellation:
		m.Type = MessageCancellation
	case *Decision:
		m.Type = MessageDecision
	default:
		return nil, fmt.Errorf("not a bidding protocol message: %T", message)
	}
	return encMode.Marshal(message)
}

// Decode parses a CBOR wire message, dispatching on the envelope's type
// discriminator. Returns one of the pointer message types in this
// package.
func Decode(data []byte) (any, error) {
	var envelope struct {
		Type string `cbor:"type"`
	}
	if err := cbor.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decode message envelope: %w", err)
	}

	var message any
	switch envelope.Type {
	case MessageTaskRequest:
		message = &TaskRequest{}
	case MessageCallForBids:
		message = &CallForBids{}
	case MessageBidResponse:
		message = &BidResponse{}
	case MessageCancellation:
		message = &Cancellation{}
	case MessageDecision:
		message = &Decision{}
	default:
		return nil, fmt.Errorf("unknown message type: %q", envelope.Type)
	}
	if err := cbor.Unmarshal(data, message); err != nil {
		return nil, fmt.Errorf("decode %s message: %w", envelope.Type, err)
	}
	return message, nil
}
