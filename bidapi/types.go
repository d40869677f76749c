// Package bidapi defines the wire schema of the task-bidding protocol:
// the messages exchanged between the auctioneer, the task-request
// source, and the fleets, plus the CBOR envelope codec and the topic
// names they travel on. The schema is transport-agnostic; anything that
// can carry opaque byte payloads per topic can carry these.
package bidapi

import (
	"time"

	"github.com/siot-decada-robotics/rmf-ros2/bidding"
)

// Topics the protocol messages travel on.
const (
	TopicTaskRequests  = "task_bidding/task_requests"
	TopicCallForBids   = "task_bidding/call_for_bids"
	TopicBidResponses  = "task_bidding/bid_responses"
	TopicCancellations = "task_bidding/cancellations"
	TopicDecisions     = "task_bidding/decisions"
)

// Message type discriminators, carried in every envelope.
const (
	MessageTaskRequest  = "task_request"
	MessageCallForBids  = "call_for_bids"
	MessageBidResponse  = "bid_response"
	MessageCancellation = "cancellation"
	MessageDecision     = "decision"
)

// TaskRequest asks the auctioneer to open a bidding round. TaskID may be
// empty, in which case the auctioneer mints one. WindowMillis overrides
// the auctioneer's default bidding window when positive.
type TaskRequest struct {
	Type           string   `json:"type" cbor:"type"`
	TaskID         string   `json:"task_id,omitempty" cbor:"task_id,omitempty"`
	TaskPayload    []byte   `json:"task_payload,omitempty" cbor:"task_payload,omitempty"`
	EligibleFleets []string `json:"eligible_fleets,omitempty" cbor:"eligible_fleets,omitempty"`
	WindowMillis   int64    `json:"window_millis,omitempty" cbor:"window_millis,omitempty"`
}

// CallForBids invites fleets to submit cost estimates for a task. The
// task payload is opaque to the bidding engine; only fleets interpret
// it. An empty EligibleFleets list means any fleet may bid.
type CallForBids struct {
	Type           string    `json:"type" cbor:"type"`
	TaskID         string    `json:"task_id" cbor:"task_id"`
	TaskPayload    []byte    `json:"task_payload,omitempty" cbor:"task_payload,omitempty"`
	EligibleFleets []string  `json:"eligible_fleets,omitempty" cbor:"eligible_fleets,omitempty"`
	Deadline       time.Time `json:"deadline" cbor:"deadline"`
}

// BidResponse carries one fleet's proposal for one auction.
type BidResponse struct {
	Type     string           `json:"type" cbor:"type"`
	TaskID   string           `json:"task_id" cbor:"task_id"`
	FleetID  string           `json:"fleet_id" cbor:"fleet_id"`
	Proposal bidding.Proposal `json:"proposal" cbor:"proposal"`
	Caveats  []string         `json:"caveats,omitempty" cbor:"caveats,omitempty"`
}

// Cancellation tells fleets to stop estimating for a task.
type Cancellation struct {
	Type   string `json:"type" cbor:"type"`
	TaskID string `json:"task_id" cbor:"task_id"`
}

// WinnerRef identifies the winning fleet and, when the fleet committed
// to one, the specific robot.
type WinnerRef struct {
	FleetID string `json:"fleet_id" cbor:"fleet_id"`
	RobotID string `json:"robot_id,omitempty" cbor:"robot_id,omitempty"`
}

// Decision announces the terminal outcome of an auction. Winner is set
// only for winner outcomes; Reason only for failed ones. Caveats are the
// winning response's advisory notes, passed through untouched.
// SignatureCOSEBase64, when present, is a base64-encoded COSE_Sign1 over
// the decision record (see the validation package).
type Decision struct {
	Type                string     `json:"type" cbor:"type"`
	TaskID              string     `json:"task_id" cbor:"task_id"`
	Outcome             string     `json:"outcome" cbor:"outcome"`
	Winner              *WinnerRef `json:"winner,omitempty" cbor:"winner,omitempty"`
	Reason              string     `json:"reason,omitempty" cbor:"reason,omitempty"`
	Caveats             []string   `json:"caveats,omitempty" cbor:"caveats,omitempty"`
	SignatureCOSEBase64 string     `json:"signature_cose_b64,omitempty" cbor:"signature_cose_b64,omitempty"`
}
