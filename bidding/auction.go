package bidding

import "time"

// Status is the lifecycle state of an auction.
type Status string

const (
	StatusOpen       Status = "open"
	StatusEvaluating Status = "evaluating"
	StatusDispatched Status = "dispatched"
	StatusNoBids     Status = "no_bids"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether the status is final. Terminal auctions reject
// further responses.
func (s Status) Terminal() bool {
	switch s {
	case StatusDispatched, StatusNoBids, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Auction is one in-flight bidding round for a single task. It is owned
// exclusively by an Auctioneer and only ever touched on its strand;
// nothing here is safe for concurrent use on its own.
type Auction struct {
	TaskID   string
	OpenedAt time.Time
	Deadline time.Time

	// eligible is the closed set of fleets expected to bid, nil when no
	// such set is known. It only enables the early-close fast path; a
	// fleet outside the set may still bid.
	eligible map[string]struct{}

	// responses holds at most one response per fleet, in first-submission
	// order. A fleet re-submitting overwrites its slot in place, so its
	// tie-break position stays that of its first submission.
	responses []Response
	slot      map[string]int // fleet id -> index into responses

	status Status
	winner *Response
}

func newAuction(taskID string, openedAt, deadline time.Time, eligibleFleets []string) *Auction {
	a := &Auction{
		TaskID:   taskID,
		OpenedAt: openedAt,
		Deadline: deadline,
		slot:     make(map[string]int),
		status:   StatusOpen,
	}
	if len(eligibleFleets) > 0 {
		a.eligible = make(map[string]struct{}, len(eligibleFleets))
		for _, fleet := range eligibleFleets {
			a.eligible[fleet] = struct{}{}
		}
	}
	return a
}

// submit records or overwrites the fleet's response. Returns false when
// the auction is no longer open.
func (a *Auction) submit(fleetID string, response Response) bool {
	if a.status != StatusOpen {
		return false
	}
	if i, seen := a.slot[fleetID]; seen {
		a.responses[i] = response
		return true
	}
	a.slot[fleetID] = len(a.responses)
	a.responses = append(a.responses, response)
	return true
}

// allEligibleResponded reports whether every fleet in a known eligible
// set has a response on record. Always false when no set is known, so
// such auctions wait out their full deadline.
func (a *Auction) allEligibleResponded() bool {
	if a.eligible == nil {
		return false
	}
	for fleet := range a.eligible {
		if _, ok := a.slot[fleet]; !ok {
			return false
		}
	}
	return true
}

// Status returns the auction's current lifecycle state.
func (a *Auction) Status() Status {
	return a.status
}

// Responses returns the recorded responses in first-submission order.
func (a *Auction) Responses() []Response {
	return a.responses
}

// Winner returns the winning response once the auction is dispatched,
// nil otherwise.
func (a *Auction) Winner() *Response {
	return a.winner
}
