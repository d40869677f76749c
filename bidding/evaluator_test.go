package bidding

import (
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

var evaluatorRef = time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)

// offset builds a finish time at a fractional-second offset from the
// reference instant.
func offset(seconds float64) time.Time {
	return evaluatorRef.Add(time.Duration(seconds * float64(time.Second)))
}

func fiveFleetResponses() []Response {
	return []Response{
		{Proposal: Proposal{FleetID: "fleet1", PriorCost: 2.3, NewCost: 3.4, FinishTime: offset(5)}},
		{Proposal: Proposal{FleetID: "fleet2", PriorCost: 3.5, NewCost: 3.6, FinishTime: offset(5.5)}},
		{Proposal: Proposal{FleetID: "fleet3", PriorCost: 0.0, NewCost: 1.4, FinishTime: offset(3)}},
		{Proposal: Proposal{FleetID: "fleet4", PriorCost: 5.0, NewCost: 5.4, FinishTime: offset(4)}},
		{Proposal: Proposal{FleetID: "fleet5", PriorCost: 0.5, NewCost: 0.8, FinishTime: offset(3.5)}},
	}
}

func TestLeastMarginalCost_FiveFleets(t *testing.T) {
	responses := fiveFleetResponses()

	// Marginal costs are {1.1, 0.1, 1.4, 0.4, 0.3}.
	winner, ok := LeastMarginalCostEvaluator{}.Choose(responses)

	assert.True(t, ok)
	check.Equal(t, "fleet2", responses[winner].Proposal.FleetID)
}

func TestLeastTotalCost_FiveFleets(t *testing.T) {
	responses := fiveFleetResponses()

	// Total costs are {3.4, 3.6, 1.4, 5.4, 0.8}.
	winner, ok := LeastTotalCostEvaluator{}.Choose(responses)

	assert.True(t, ok)
	check.Equal(t, "fleet5", responses[winner].Proposal.FleetID)
}

func TestQuickestFinish_FiveFleets(t *testing.T) {
	responses := fiveFleetResponses()

	winner, ok := QuickestFinishEvaluator{}.Choose(responses)

	assert.True(t, ok)
	check.Equal(t, "fleet3", responses[winner].Proposal.FleetID)
}

func TestEvaluators_EmptySet(t *testing.T) {
	for _, evaluator := range []Evaluator{
		LeastMarginalCostEvaluator{},
		LeastTotalCostEvaluator{},
		QuickestFinishEvaluator{},
	} {
		_, ok := evaluator.Choose(nil)
		check.False(t, ok)
	}
}

func TestEvaluators_SingleResponseAlwaysWins(t *testing.T) {
	// Degenerate values, including a negative marginal cost; the
	// evaluator never rejects a proposal on value grounds.
	responses := []Response{
		{Proposal: Proposal{FleetID: "only", PriorCost: 5.0, NewCost: 2.0, FinishTime: offset(-1)}},
	}

	for _, evaluator := range []Evaluator{
		LeastMarginalCostEvaluator{},
		LeastTotalCostEvaluator{},
		QuickestFinishEvaluator{},
	} {
		winner, ok := evaluator.Choose(responses)
		assert.True(t, ok)
		check.Equal(t, 0, winner)
	}
}

func TestLeastMarginalCost_TieKeepsEarliestSubmission(t *testing.T) {
	responses := []Response{
		{Proposal: Proposal{FleetID: "first", PriorCost: 1.0, NewCost: 2.0}},
		{Proposal: Proposal{FleetID: "second", PriorCost: 0.0, NewCost: 1.0}},
	}

	winner, ok := LeastMarginalCostEvaluator{}.Choose(responses)

	assert.True(t, ok)
	check.Equal(t, "first", responses[winner].Proposal.FleetID)
}

func TestLeastTotalCost_TieKeepsEarliestSubmission(t *testing.T) {
	responses := []Response{
		{Proposal: Proposal{FleetID: "first", PriorCost: 0.5, NewCost: 3.0}},
		{Proposal: Proposal{FleetID: "second", PriorCost: 2.0, NewCost: 3.0}},
		{Proposal: Proposal{FleetID: "third", PriorCost: 0.0, NewCost: 3.0}},
	}

	winner, ok := LeastTotalCostEvaluator{}.Choose(responses)

	assert.True(t, ok)
	check.Equal(t, "first", responses[winner].Proposal.FleetID)
}

func TestQuickestFinish_TieKeepsEarliestSubmission(t *testing.T) {
	responses := []Response{
		{Proposal: Proposal{FleetID: "first", FinishTime: offset(3)}},
		{Proposal: Proposal{FleetID: "second", FinishTime: offset(3)}},
	}

	winner, ok := QuickestFinishEvaluator{}.Choose(responses)

	assert.True(t, ok)
	check.Equal(t, "first", responses[winner].Proposal.FleetID)
}

func TestLeastMarginalCost_ExactFloatSubtraction(t *testing.T) {
	// 3.6-3.5 and 1.5-1.4 are both 0.1 in decimal but differ in raw
	// float64 subtraction; the decimal comparison must treat them as a
	// tie and keep the earlier submission.
	responses := []Response{
		{Proposal: Proposal{FleetID: "first", PriorCost: 3.5, NewCost: 3.6}},
		{Proposal: Proposal{FleetID: "second", PriorCost: 1.4, NewCost: 1.5}},
	}

	winner, ok := LeastMarginalCostEvaluator{}.Choose(responses)

	assert.True(t, ok)
	check.Equal(t, "first", responses[winner].Proposal.FleetID)
}

func TestEvaluatorForName(t *testing.T) {
	evaluator, err := EvaluatorForName(PolicyLeastMarginalCost)
	assert.NoError(t, err)
	_, ok := evaluator.(LeastMarginalCostEvaluator)
	check.True(t, ok)

	evaluator, err = EvaluatorForName(PolicyLeastTotalCost)
	assert.NoError(t, err)
	_, ok = evaluator.(LeastTotalCostEvaluator)
	check.True(t, ok)

	evaluator, err = EvaluatorForName(PolicyQuickestFinish)
	assert.NoError(t, err)
	_, ok = evaluator.(QuickestFinishEvaluator)
	check.True(t, ok)

	_, err = EvaluatorForName("highest-bribe")
	check.Error(t, err)
}
