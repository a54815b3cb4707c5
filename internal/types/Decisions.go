/*

This file contains the decision types produced by the rebalance planner.
Decision is a closed set: only the three types below implement it.

*/

package types

// DecisionKind identifies the variant of a Decision.
type DecisionKind string

const (
	DecisionNoAction     DecisionKind = "NO_ACTION"
	DecisionRebalance    DecisionKind = "REBALANCE"
	DecisionStopLossExit DecisionKind = "STOP_LOSS_EXIT"
)

// Decision is the planner's output for one position evaluation.
type Decision interface {
	Kind() DecisionKind
	Why() string
	isDecision()
}

// NoAction means the position is left untouched.
type NoAction struct {
	Reason          string  `json:"reason"`
	VolatilityRatio float64 `json:"volatility_ratio"` // Observed ratio, for telemetry
}

// Rebalance re-centers the position on a new bin band.
type Rebalance struct {
	Reason          string   `json:"reason"`
	OldRange        BinRange `json:"old_range"`
	NewRange        BinRange `json:"new_range"`
	VolatilityRatio float64  `json:"volatility_ratio"`
}

// StopLossExit closes the position and converts it into TargetToken.
type StopLossExit struct {
	Reason      string      `json:"reason"`
	OldRange    BinRange    `json:"old_range"`
	TargetToken TargetToken `json:"target_token"`
}

func (NoAction) Kind() DecisionKind     { return DecisionNoAction }
func (Rebalance) Kind() DecisionKind    { return DecisionRebalance }
func (StopLossExit) Kind() DecisionKind { return DecisionStopLossExit }

func (d NoAction) Why() string     { return d.Reason }
func (d Rebalance) Why() string    { return d.Reason }
func (d StopLossExit) Why() string { return d.Reason }

func (NoAction) isDecision()     {}
func (Rebalance) isDecision()    {}
func (StopLossExit) isDecision() {}
