package bidding

import (
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

func openTestAuction(eligible []string) *Auction {
	opened := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	return newAuction("task-1", opened, opened.Add(2*time.Second), eligible)
}

func TestAuction_SubmitKeepsFirstSeenOrder(t *testing.T) {
	auction := openTestAuction(nil)

	check.True(t, auction.submit("fleetA", Response{Proposal: Proposal{FleetID: "fleetA", NewCost: 1}}))
	check.True(t, auction.submit("fleetB", Response{Proposal: Proposal{FleetID: "fleetB", NewCost: 2}}))
	check.True(t, auction.submit("fleetC", Response{Proposal: Proposal{FleetID: "fleetC", NewCost: 3}}))

	responses := auction.Responses()
	assert.Equal(t, 3, len(responses))
	check.Equal(t, "fleetA", responses[0].Proposal.FleetID)
	check.Equal(t, "fleetB", responses[1].Proposal.FleetID)
	check.Equal(t, "fleetC", responses[2].Proposal.FleetID)
}

func TestAuction_ResubmitOverwritesInPlace(t *testing.T) {
	auction := openTestAuction(nil)

	auction.submit("fleetA", Response{Proposal: Proposal{FleetID: "fleetA", NewCost: 1.0}})
	auction.submit("fleetB", Response{Proposal: Proposal{FleetID: "fleetB", NewCost: 2.0}})

	// fleetA revises its bid: last write wins, but its tie-break
	// position stays that of the first submission.
	auction.submit("fleetA", Response{
		Proposal: Proposal{FleetID: "fleetA", NewCost: 9.0},
		Caveats:  []string{"revised"},
	})

	responses := auction.Responses()
	assert.Equal(t, 2, len(responses))
	check.Equal(t, "fleetA", responses[0].Proposal.FleetID)
	check.Equal(t, 9.0, responses[0].Proposal.NewCost)
	check.Equal(t, []string{"revised"}, responses[0].Caveats)
	check.Equal(t, "fleetB", responses[1].Proposal.FleetID)
}

func TestAuction_TerminalRejectsSubmissions(t *testing.T) {
	auction := openTestAuction(nil)
	auction.submit("fleetA", Response{Proposal: Proposal{FleetID: "fleetA"}})
	auction.status = StatusCancelled

	check.False(t, auction.submit("fleetB", Response{Proposal: Proposal{FleetID: "fleetB"}}))
	check.False(t, auction.submit("fleetA", Response{Proposal: Proposal{FleetID: "fleetA", NewCost: 7}}))

	responses := auction.Responses()
	assert.Equal(t, 1, len(responses))
	check.Equal(t, 0.0, responses[0].Proposal.NewCost)
}

func TestAuction_AllEligibleResponded(t *testing.T) {
	auction := openTestAuction([]string{"fleetA", "fleetB"})

	check.False(t, auction.allEligibleResponded())

	auction.submit("fleetA", Response{Proposal: Proposal{FleetID: "fleetA"}})
	check.False(t, auction.allEligibleResponded())

	// A fleet outside the eligible set may bid, but does not complete
	// the set.
	auction.submit("fleetX", Response{Proposal: Proposal{FleetID: "fleetX"}})
	check.False(t, auction.allEligibleResponded())

	auction.submit("fleetB", Response{Proposal: Proposal{FleetID: "fleetB"}})
	check.True(t, auction.allEligibleResponded())
}

func TestAuction_NoEligibleSetNeverClosesEarly(t *testing.T) {
	auction := openTestAuction(nil)
	auction.submit("fleetA", Response{Proposal: Proposal{FleetID: "fleetA"}})
	auction.submit("fleetB", Response{Proposal: Proposal{FleetID: "fleetB"}})

	check.False(t, auction.allEligibleResponded())
}

func TestStatus_Terminal(t *testing.T) {
	check.False(t, StatusOpen.Terminal())
	check.False(t, StatusEvaluating.Terminal())
	check.True(t, StatusDispatched.Terminal())
	check.True(t, StatusNoBids.Terminal())
	check.True(t, StatusFailed.Terminal())
	check.True(t, StatusCancelled.Terminal())
}
