package bidding

import "time"

// Proposal is a fleet's cost estimate for performing a single task.
// PriorCost is the cost of the fleet's existing committed workload and
// NewCost is the cost after adding the task. NewCost >= PriorCost is
// expected but not enforced; evaluators must not rely on it.
type Proposal struct {
	FleetID    string    `json:"fleet_id" cbor:"fleet_id"`
	RobotID    string    `json:"robot_id,omitempty" cbor:"robot_id,omitempty"`
	PriorCost  float64   `json:"prior_cost" cbor:"prior_cost"`
	NewCost    float64   `json:"new_cost" cbor:"new_cost"`
	FinishTime time.Time `json:"finish_time" cbor:"finish_time"`
}

// MarginalCost returns NewCost - PriorCost, the cost the task adds to
// the fleet's workload.
func (p Proposal) MarginalCost() float64 {
	return p.NewCost - p.PriorCost
}

// Response is one fleet's answer to a call-for-bids: a proposal plus
// advisory caveats (predicted conflicts and the like). Caveats never
// invalidate a proposal; they ride through to the outcome consumer
// untouched.
type Response struct {
	Proposal Proposal `json:"proposal" cbor:"proposal"`
	Caveats  []string `json:"caveats,omitempty" cbor:"caveats,omitempty"`
}
