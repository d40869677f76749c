// Package fleet implements the fleet-adapter side of the bidding
// protocol: receive a call-for-bids, ask the fleet's own estimator for
// a proposal, and publish the response. How a fleet computes its costs
// is entirely its own business; the Estimator interface is the plug
// point.
package fleet

import (
	"log"

	"github.com/siot-decada-robotics/rmf-ros2/bidapi"
	"github.com/siot-decada-robotics/rmf-ros2/bidding"
	"github.com/siot-decada-robotics/rmf-ros2/transport"
)

// Estimator computes a fleet's bid for a task. Returning ok=false
// declines the call-for-bids (the fleet simply does not respond). The
// returned caveats are advisory strings surfaced to the decision
// consumer; they never invalidate the proposal.
type Estimator interface {
	Estimate(callForBids bidapi.CallForBids) (proposal bidding.Proposal, caveats []string, ok bool)
}

// Responder subscribes a fleet to call-for-bids and publishes the
// estimator's proposals. Estimation runs on the transport's delivery
// goroutine; estimators doing real planning work should answer from
// cached state and refine asynchronously, the way fleet adapters
// maintain per-robot schedule estimates.
type Responder struct {
	fleetID   string
	tr        transport.Transport
	estimator Estimator
}

// NewResponder creates a responder and subscribes it to the bidding
// topics.
func NewResponder(tr transport.Transport, fleetID string, estimator Estimator) *Responder {
	r := &Responder{
		fleetID:   fleetID,
		tr:        tr,
		estimator: estimator,
	}
	tr.Subscribe(bidapi.TopicCallForBids, r.onCallForBids)
	tr.Subscribe(bidapi.TopicCancellations, r.onCancellation)
	return r
}

func (r *Responder) onCallForBids(payload []byte) {
	message, err := bidapi.Decode(payload)
	if err != nil {
		log.Printf("WARNING: fleet %s dropping undecodable call-for-bids: %v", r.fleetID, err)
		return
	}
	callForBids, ok := message.(*bidapi.CallForBids)
	if !ok {
		log.Printf("WARNING: fleet %s dropping %T message on call-for-bids topic", r.fleetID, message)
		return
	}

	if len(callForBids.EligibleFleets) > 0 && !contains(callForBids.EligibleFleets, r.fleetID) {
		log.Printf("INFO: fleet %s not eligible for task %s, skipping", r.fleetID, callForBids.TaskID)
		return
	}

	proposal, caveats, ok := r.estimator.Estimate(*callForBids)
	if !ok {
		log.Printf("INFO: fleet %s declined to bid on task %s", r.fleetID, callForBids.TaskID)
		return
	}
	if proposal.FleetID == "" {
		proposal.FleetID = r.fleetID
	}

	response := &bidapi.BidResponse{
		TaskID:   callForBids.TaskID,
		FleetID:  r.fleetID,
		Proposal: proposal,
		Caveats:  caveats,
	}
	encoded, err := bidapi.Encode(response)
	if err != nil {
		log.Printf("ERROR: fleet %s failed to encode bid for task %s: %v", r.fleetID, callForBids.TaskID, err)
		return
	}
	if err := r.tr.Publish(bidapi.TopicBidResponses, encoded); err != nil {
		log.Printf("ERROR: fleet %s failed to publish bid for task %s: %v", r.fleetID, callForBids.TaskID, err)
		return
	}
	log.Printf("INFO: fleet %s bid on task %s (new cost %.4f)", r.fleetID, callForBids.TaskID, proposal.NewCost)
}

func (r *Responder) onCancellation(payload []byte) {
	message, err := bidapi.Decode(payload)
	if err != nil {
		return
	}
	if cancellation, ok := message.(*bidapi.Cancellation); ok {
		log.Printf("INFO: fleet %s observed cancellation of task %s", r.fleetID, cancellation.TaskID)
	}
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
