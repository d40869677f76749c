package bidding

import (
	"fmt"

	"github.com/shopspring/decimal"
)

const costPrecision int32 = 4 // 4 decimal places for cost comparison (0.0001 precision)

// Evaluator ranks the responses of a closed auction and picks a winner.
// Choose returns the index of the winning response, or ok=false when the
// set is empty. Implementations must be deterministic for a fixed input
// and must break ties in favor of the earlier index (responses are
// passed in first-submission order). Evaluators never reject a proposal
// on value grounds; a single response always wins.
type Evaluator interface {
	Choose(responses []Response) (winner int, ok bool)
}

// LeastMarginalCostEvaluator picks the response whose proposal adds the
// least cost to its fleet's existing workload (new_cost - prior_cost).
type LeastMarginalCostEvaluator struct{}

func (LeastMarginalCostEvaluator) Choose(responses []Response) (int, bool) {
	return chooseByCost(responses, func(p Proposal) decimal.Decimal {
		return decimal.NewFromFloat(p.NewCost).Sub(decimal.NewFromFloat(p.PriorCost))
	})
}

// LeastTotalCostEvaluator picks the response whose fleet ends up with
// the lowest total workload cost (new_cost).
type LeastTotalCostEvaluator struct{}

func (LeastTotalCostEvaluator) Choose(responses []Response) (int, bool) {
	return chooseByCost(responses, func(p Proposal) decimal.Decimal {
		return decimal.NewFromFloat(p.NewCost)
	})
}

// QuickestFinishEvaluator picks the response predicting the earliest
// task completion time.
type QuickestFinishEvaluator struct{}

func (QuickestFinishEvaluator) Choose(responses []Response) (int, bool) {
	if len(responses) == 0 {
		return 0, false
	}
	winner := 0
	for i := 1; i < len(responses); i++ {
		// Strictly-before keeps the earlier submission on ties.
		if responses[i].Proposal.FinishTime.Before(responses[winner].Proposal.FinishTime) {
			winner = i
		}
	}
	return winner, true
}

// chooseByCost minimizes a decimal cost key over the responses. Uses
// decimal arithmetic rounded to costPrecision to avoid floating-point
// errors, and strict less-than so equal keys keep the earlier submission.
func chooseByCost(responses []Response, key func(Proposal) decimal.Decimal) (int, bool) {
	if len(responses) == 0 {
		return 0, false
	}
	winner := 0
	best := key(responses[0].Proposal).Round(costPrecision)
	for i := 1; i < len(responses); i++ {
		cost := key(responses[i].Proposal).Round(costPrecision)
		if cost.LessThan(best) {
			winner = i
			best = cost
		}
	}
	return winner, true
}

// Evaluator policy names accepted by EvaluatorForName.
const (
	PolicyLeastMarginalCost = "least-marginal-cost"
	PolicyLeastTotalCost    = "least-total-cost"
	PolicyQuickestFinish    = "quickest-finish"
)

// EvaluatorForName returns the evaluator for a configuration policy name.
func EvaluatorForName(name string) (Evaluator, error) {
	switch name {
	case PolicyLeastMarginalCost:
		return LeastMarginalCostEvaluator{}, nil
	case PolicyLeastTotalCost:
		return LeastTotalCostEvaluator{}, nil
	case PolicyQuickestFinish:
		return QuickestFinishEvaluator{}, nil
	default:
		return nil, fmt.Errorf("unknown evaluator policy: %s", name)
	}
}
