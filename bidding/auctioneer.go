package bidding

import (
	"fmt"
	"log"
	"sync"
	"time"

	"code.cloudfoundry.org/clock"
)

// OutcomeKind classifies the terminal result of an auction.
type OutcomeKind string

const (
	OutcomeWinner    OutcomeKind = "winner"
	OutcomeNoBids    OutcomeKind = "no_bids"
	OutcomeFailed    OutcomeKind = "failed"
	OutcomeCancelled OutcomeKind = "cancelled"
)

// Outcome is the single terminal decision delivered for each task id.
// Winner is set only for OutcomeWinner; Reason only for OutcomeFailed.
type Outcome struct {
	TaskID string
	Kind   OutcomeKind
	Winner *Response
	Reason string
}

// Announcer carries auctioneer decisions out to the participating
// fleets. Implementations are invoked on the auctioneer's strand and
// must not block; long-running delivery work has to be handed off
// asynchronously.
type Announcer interface {
	// CallForBids broadcasts a new bidding round.
	CallForBids(taskID string, taskPayload []byte, eligibleFleets []string, deadline time.Time)

	// AuctionCancelled tells fleets to stop estimating for the task.
	AuctionCancelled(taskID string)

	// Decision announces the terminal outcome of an auction.
	Decision(outcome Outcome)
}

// DuplicateTaskError reports an OpenAuction call for a task id that
// already has a non-terminal auction. The pre-existing auction is left
// untouched.
type DuplicateTaskError struct {
	TaskID string
}

func (e *DuplicateTaskError) Error() string {
	return fmt.Sprintf("auction for task %s is still in flight", e.TaskID)
}

// Config configures an Auctioneer.
type Config struct {
	// Evaluator is the winner-selection policy. Defaults to
	// LeastMarginalCostEvaluator. Evaluators are stateless and may be
	// shared across auctioneers.
	Evaluator Evaluator

	// Announcer receives fleet-facing notifications. Optional.
	Announcer Announcer

	// OutcomeFunc receives exactly one terminal outcome per task id,
	// invoked on the auctioneer's strand. It must not block. Optional.
	OutcomeFunc func(Outcome)

	// Clock drives deadlines. Defaults to the wall clock; tests inject
	// a fake clock.
	Clock clock.Clock

	// TickInterval is the granularity at which deadlines are checked.
	// Deadlines fire on the first tick at or after expiry. Defaults to
	// 100ms.
	TickInterval time.Duration

	// ArchiveSize bounds how many terminal auctions are remembered so
	// late responses can be logged against their final status. Defaults
	// to 64.
	ArchiveSize int
}

// Auctioneer manages all concurrently open auctions. Every mutating
// operation executes on a single strand: public methods post closures
// onto an operation channel consumed by one goroutine, so the auction
// table needs no locks and the accepted-response order per task equals
// arrival order. No operation blocks on external I/O.
type Auctioneer struct {
	evaluator    Evaluator
	announcer    Announcer
	outcomeFunc  func(Outcome)
	clk          clock.Clock
	tickInterval time.Duration

	ops  chan func()
	done chan struct{}
	stop sync.Once

	// Strand-owned state. auctions holds only open auctions: terminal
	// rounds are retired into the archive the moment they close.
	auctions    map[string]*Auction
	archive     map[string]Status
	archiveFIFO []string
	archiveSize int
}

// NewAuctioneer creates an auctioneer and starts its strand. Call Close
// to stop it.
func NewAuctioneer(cfg Config) *Auctioneer {
	if cfg.Evaluator == nil {
		cfg.Evaluator = LeastMarginalCostEvaluator{}
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.NewClock()
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 100 * time.Millisecond
	}
	if cfg.ArchiveSize <= 0 {
		cfg.ArchiveSize = 64
	}
	a := &Auctioneer{
		evaluator:    cfg.Evaluator,
		announcer:    cfg.Announcer,
		outcomeFunc:  cfg.OutcomeFunc,
		clk:          cfg.Clock,
		tickInterval: cfg.TickInterval,
		ops:          make(chan func()),
		done:         make(chan struct{}),
		auctions:     make(map[string]*Auction),
		archive:      make(map[string]Status),
		archiveSize:  cfg.ArchiveSize,
	}
	go a.run()
	return a
}

// Close stops the strand. Auctions still open are abandoned without an
// outcome; callers wanting Cancelled outcomes must cancel first.
func (a *Auctioneer) Close() {
	a.stop.Do(func() { close(a.done) })
}

func (a *Auctioneer) run() {
	ticker := a.clk.NewTicker(a.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case op := <-a.ops:
			op()
		case now := <-ticker.C():
			a.closeExpired(now)
		case <-a.done:
			return
		}
	}
}

// post schedules op on the strand. Returns false once the auctioneer is
// closed.
func (a *Auctioneer) post(op func()) bool {
	select {
	case a.ops <- op:
		return true
	case <-a.done:
		return false
	}
}

// OpenAuction creates a new bidding round for the task and broadcasts
// the call-for-bids. The bidding window runs from now until now+window.
// eligibleFleets, when non-empty, is the closed set of fleets expected
// to bid; the auction then closes early once all of them have responded.
// Returns *DuplicateTaskError if the task already has an open auction.
func (a *Auctioneer) OpenAuction(taskID string, taskPayload []byte, window time.Duration, eligibleFleets []string) error {
	reply := make(chan error, 1)
	ok := a.post(func() {
		if _, open := a.auctions[taskID]; open {
			reply <- &DuplicateTaskError{TaskID: taskID}
			return
		}
		now := a.clk.Now()
		auction := newAuction(taskID, now, now.Add(window), eligibleFleets)
		a.auctions[taskID] = auction
		a.forget(taskID)
		log.Printf("INFO: opened auction for task %s (window %s, %d eligible fleets)",
			taskID, window, len(eligibleFleets))
		if a.announcer != nil {
			a.announcer.CallForBids(taskID, taskPayload, eligibleFleets, auction.Deadline)
		}
		reply <- nil
	})
	if !ok {
		return fmt.Errorf("auctioneer is closed")
	}
	return <-reply
}

// HandleResponse routes a fleet's response to its auction. Responses for
// unknown or already-finished auctions are dropped with an advisory log;
// they are a fleet's message racing the deadline, not a protocol
// violation.
func (a *Auctioneer) HandleResponse(taskID, fleetID string, response Response) {
	a.post(func() {
		auction, open := a.auctions[taskID]
		if !open {
			if status, finished := a.archive[taskID]; finished {
				log.Printf("INFO: dropping late response from fleet %s for task %s (auction already %s)",
					fleetID, taskID, status)
			} else {
				log.Printf("WARNING: dropping response from fleet %s for unknown task %s", fleetID, taskID)
			}
			return
		}
		auction.submit(fleetID, response)
		log.Printf("INFO: recorded response from fleet %s for task %s (%d on record)",
			fleetID, taskID, len(auction.responses))
		if auction.allEligibleResponded() {
			log.Printf("INFO: all eligible fleets responded for task %s, closing early", taskID)
			a.finishBidding(auction)
		}
	})
}

// CancelAuction cancels the task's auction immediately and announces the
// cancellation to fleets. A no-op on unknown or already-terminal task
// ids, so it is safe to call repeatedly.
func (a *Auctioneer) CancelAuction(taskID string) {
	a.post(func() {
		auction, open := a.auctions[taskID]
		if !open {
			log.Printf("INFO: ignoring cancel for task %s (no open auction)", taskID)
			return
		}
		auction.status = StatusCancelled
		log.Printf("INFO: cancelled auction for task %s with %d responses on record",
			taskID, len(auction.responses))
		if a.announcer != nil {
			a.announcer.AuctionCancelled(taskID)
		}
		a.retire(auction, Outcome{TaskID: taskID, Kind: OutcomeCancelled})
	})
}

// closeExpired closes every auction whose deadline has passed,
// triggering evaluation. Runs on the strand on every clock tick.
func (a *Auctioneer) closeExpired(now time.Time) {
	var expired []*Auction
	for _, auction := range a.auctions {
		if !now.Before(auction.Deadline) {
			expired = append(expired, auction)
		}
	}
	for _, auction := range expired {
		log.Printf("INFO: bidding window for task %s expired with %d responses",
			auction.TaskID, len(auction.responses))
		a.finishBidding(auction)
	}
}

// finishBidding runs the evaluator over a closed response set and
// retires the auction with its terminal outcome. Exactly one outcome is
// emitted per auction: callers only reach here while the auction is
// still open, and retire removes it from the table.
func (a *Auctioneer) finishBidding(auction *Auction) {
	auction.status = StatusEvaluating

	if len(auction.responses) == 0 {
		auction.status = StatusNoBids
		a.retire(auction, Outcome{TaskID: auction.TaskID, Kind: OutcomeNoBids})
		return
	}

	winner, ok, err := a.choose(auction.responses)
	switch {
	case err != nil:
		auction.status = StatusFailed
		log.Printf("ERROR: evaluation failed for task %s: %v", auction.TaskID, err)
		a.retire(auction, Outcome{TaskID: auction.TaskID, Kind: OutcomeFailed, Reason: err.Error()})
	case !ok:
		// Evaluators only decline non-empty sets by contract violation;
		// treat it like NoBids rather than inventing a winner.
		auction.status = StatusNoBids
		log.Printf("WARNING: evaluator declined %d responses for task %s",
			len(auction.responses), auction.TaskID)
		a.retire(auction, Outcome{TaskID: auction.TaskID, Kind: OutcomeNoBids})
	default:
		auction.status = StatusDispatched
		auction.winner = &auction.responses[winner]
		log.Printf("INFO: task %s won by fleet %s (robot %q)", auction.TaskID,
			auction.winner.Proposal.FleetID, auction.winner.Proposal.RobotID)
		a.retire(auction, Outcome{TaskID: auction.TaskID, Kind: OutcomeWinner, Winner: auction.winner})
	}
}

// choose invokes the evaluator, converting a panic or an out-of-range
// index into an error so one bad policy cannot take down the strand.
func (a *Auctioneer) choose(responses []Response) (winner int, ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			winner, ok = 0, false
			err = fmt.Errorf("evaluator panic: %v", r)
		}
	}()
	winner, ok = a.evaluator.Choose(responses)
	if ok && (winner < 0 || winner >= len(responses)) {
		return 0, false, fmt.Errorf("evaluator chose out-of-range index %d of %d responses",
			winner, len(responses))
	}
	return winner, ok, nil
}

// retire moves a terminal auction out of the table into the bounded
// archive and delivers its outcome.
func (a *Auctioneer) retire(auction *Auction, outcome Outcome) {
	delete(a.auctions, auction.TaskID)
	a.archive[auction.TaskID] = auction.status
	a.archiveFIFO = append(a.archiveFIFO, auction.TaskID)
	for len(a.archiveFIFO) > a.archiveSize {
		delete(a.archive, a.archiveFIFO[0])
		a.archiveFIFO = a.archiveFIFO[1:]
	}
	if a.announcer != nil {
		a.announcer.Decision(outcome)
	}
	if a.outcomeFunc != nil {
		a.outcomeFunc(outcome)
	}
}

// forget drops a task id from the archive, for when its id is reused by
// a new auction.
func (a *Auctioneer) forget(taskID string) {
	if _, archived := a.archive[taskID]; !archived {
		return
	}
	delete(a.archive, taskID)
	for i, id := range a.archiveFIFO {
		if id == taskID {
			a.archiveFIFO = append(a.archiveFIFO[:i], a.archiveFIFO[i+1:]...)
			break
		}
	}
}
