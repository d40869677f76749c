// Package dispatch binds an Auctioneer to a Transport: it translates
// inbound wire messages (task requests, bid responses, cancellations)
// into auctioneer calls and outbound auctioneer decisions into wire
// messages.
package dispatch

import (
	"crypto/ecdsa"
	"encoding/base64"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/siot-decada-robotics/rmf-ros2/bidapi"
	"github.com/siot-decada-robotics/rmf-ros2/bidding"
	"github.com/siot-decada-robotics/rmf-ros2/transport"
	"github.com/siot-decada-robotics/rmf-ros2/validation"
)

// Config configures an Adapter.
type Config struct {
	Transport transport.Transport

	// DefaultWindow is the bidding window applied to task requests that
	// do not carry their own. Defaults to 2s.
	DefaultWindow time.Duration

	// SigningKey, when set, makes the adapter attach a COSE_Sign1
	// decision record to every decision announcement so fleets can
	// verify outcomes (see the validation package). AuctioneerID labels
	// the signer in the record.
	SigningKey   *ecdsa.PrivateKey
	AuctioneerID string
}

// Adapter is the transport-facing shim of the auction engine. It
// implements bidding.Announcer for the outbound direction; Bind wires
// the inbound one. All inbound handlers run on the transport's delivery
// goroutine and only post work onto the auctioneer's strand, so they
// never block.
type Adapter struct {
	tr            transport.Transport
	defaultWindow time.Duration
	signingKey    *ecdsa.PrivateKey
	auctioneerID  string

	auctioneer *bidding.Auctioneer
}

// NewAdapter creates an adapter. Pass it as the Announcer when
// constructing the auctioneer, then Bind the auctioneer to start
// consuming inbound messages.
func NewAdapter(cfg Config) *Adapter {
	if cfg.DefaultWindow <= 0 {
		cfg.DefaultWindow = 2 * time.Second
	}
	return &Adapter{
		tr:            cfg.Transport,
		defaultWindow: cfg.DefaultWindow,
		signingKey:    cfg.SigningKey,
		auctioneerID:  cfg.AuctioneerID,
	}
}

// Bind subscribes the adapter to the inbound topics and routes their
// messages to the auctioneer.
func (ad *Adapter) Bind(auctioneer *bidding.Auctioneer) {
	ad.auctioneer = auctioneer
	ad.tr.Subscribe(bidapi.TopicBidResponses, ad.onBidResponse)
	ad.tr.Subscribe(bidapi.TopicTaskRequests, ad.onTaskRequest)
}

func (ad *Adapter) onBidResponse(payload []byte) {
	message, err := bidapi.Decode(payload)
	if err != nil {
		log.Printf("WARNING: dropping undecodable bid response: %v", err)
		return
	}
	response, ok := message.(*bidapi.BidResponse)
	if !ok {
		log.Printf("WARNING: dropping %T message on bid response topic", message)
		return
	}
	ad.auctioneer.HandleResponse(response.TaskID, response.FleetID, bidding.Response{
		Proposal: response.Proposal,
		Caveats:  response.Caveats,
	})
}

func (ad *Adapter) onTaskRequest(payload []byte) {
	message, err := bidapi.Decode(payload)
	if err != nil {
		log.Printf("WARNING: dropping undecodable task request: %v", err)
		return
	}
	request, ok := message.(*bidapi.TaskRequest)
	if !ok {
		log.Printf("WARNING: dropping %T message on task request topic", message)
		return
	}

	taskID := request.TaskID
	if taskID == "" {
		taskID = uuid.NewString()
		log.Printf("INFO: minted task id %s for anonymous task request", taskID)
	}
	window := ad.defaultWindow
	if request.WindowMillis > 0 {
		window = time.Duration(request.WindowMillis) * time.Millisecond
	}

	// OpenAuction waits for the strand to process, so hand it off rather
	// than stall the transport's delivery goroutine.
	go func() {
		if err := ad.auctioneer.OpenAuction(taskID, request.TaskPayload, window, request.EligibleFleets); err != nil {
			log.Printf("WARNING: rejected task request %s: %v", taskID, err)
		}
	}()
}

// CallForBids implements bidding.Announcer.
func (ad *Adapter) CallForBids(taskID string, taskPayload []byte, eligibleFleets []string, deadline time.Time) {
	ad.publish(bidapi.TopicCallForBids, &bidapi.CallForBids{
		TaskID:         taskID,
		TaskPayload:    taskPayload,
		EligibleFleets: eligibleFleets,
		Deadline:       deadline,
	})
}

// AuctionCancelled implements bidding.Announcer.
func (ad *Adapter) AuctionCancelled(taskID string) {
	ad.publish(bidapi.TopicCancellations, &bidapi.Cancellation{TaskID: taskID})
}

// Decision implements bidding.Announcer.
func (ad *Adapter) Decision(outcome bidding.Outcome) {
	decision := &bidapi.Decision{
		TaskID:  outcome.TaskID,
		Outcome: string(outcome.Kind),
		Reason:  outcome.Reason,
	}
	if outcome.Winner != nil {
		decision.Winner = &bidapi.WinnerRef{
			FleetID: outcome.Winner.Proposal.FleetID,
			RobotID: outcome.Winner.Proposal.RobotID,
		}
		decision.Caveats = outcome.Winner.Caveats
	}
	if ad.signingKey != nil {
		ad.attachSignature(decision, outcome)
	}
	ad.publish(bidapi.TopicDecisions, decision)
}

func (ad *Adapter) attachSignature(decision *bidapi.Decision, outcome bidding.Outcome) {
	record := validation.DecisionRecord{
		TaskID:     outcome.TaskID,
		Outcome:    string(outcome.Kind),
		Auctioneer: ad.auctioneerID,
		DecidedAt:  time.Now(),
	}
	if outcome.Winner != nil {
		record.WinnerFleet = outcome.Winner.Proposal.FleetID
		record.WinnerRobot = outcome.Winner.Proposal.RobotID
	}
	signed, err := validation.SignDecision(record, ad.signingKey)
	if err != nil {
		// Announce unsigned rather than withhold the decision.
		log.Printf("ERROR: failed to sign decision for task %s: %v", outcome.TaskID, err)
		return
	}
	decision.SignatureCOSEBase64 = base64.StdEncoding.EncodeToString(signed)
}

func (ad *Adapter) publish(topic string, message any) {
	payload, err := bidapi.Encode(message)
	if err != nil {
		log.Printf("ERROR: failed to encode %T for %s: %v", message, topic, err)
		return
	}
	if err := ad.tr.Publish(topic, payload); err != nil {
		log.Printf("ERROR: failed to publish %T to %s: %v", message, topic, err)
	}
}
