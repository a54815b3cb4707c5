package planner

import (
	"fmt"

	"github.com/rainman456/Dllm-Demo-Saros/internal/analyzer"
	"github.com/rainman456/Dllm-Demo-Saros/internal/rangemath"
	"github.com/rainman456/Dllm-Demo-Saros/internal/stoploss"
	"github.com/rainman456/Dllm-Demo-Saros/internal/types"
)

const (
	ReasonOutOfRange       = "out of range"
	ReasonHighVolatility   = "high volatility"
	ReasonHealthy          = "healthy"
	ReasonInsufficientData = "insufficient data"
)

// Engine turns a position snapshot into a single decision. It holds no state between
// evaluations and is safe for concurrent use.
type Engine struct {
	params types.RebalanceParameters
}

// NewEngine validates params and returns an engine using them.
func NewEngine(params types.RebalanceParameters) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rebalance parameters: %w", err)
	}
	tiers := make([]types.BinWidthTier, len(params.BinWidthTiers))
	copy(tiers, params.BinWidthTiers)
	params.BinWidthTiers = tiers
	return &Engine{params: params}, nil
}

// Parameters returns the parameters the engine was built with.
func (e *Engine) Parameters() types.RebalanceParameters {
	return e.params
}

// Evaluate decides what to do with position given freshly fetched bin samples and its
// stop-loss config (nil when none is registered). Identical inputs always yield identical decisions.
func (e *Engine) Evaluate(position types.Position, samples []types.BinSample, stopLoss *types.StopLossConfig) types.Decision {
	decision, _ := e.EvaluateWithMetrics(position, samples, stopLoss)
	return decision
}

// EvaluateWithMetrics is Evaluate that also returns the volatility metrics it computed.
func (e *Engine) EvaluateWithMetrics(position types.Position, samples []types.BinSample, stopLoss *types.StopLossConfig) (types.Decision, types.VolatilityMetrics) {
	metrics := analyzer.CalculateVolatility(samples)

	// Stop-loss pre-empts everything: a position about to be closed is never re-ranged.
	if stoploss.ShouldTrigger(position, stopLoss) {
		pct, _ := stoploss.PriceChangePercent(position)
		return types.StopLossExit{
			Reason:      fmt.Sprintf("stop-loss triggered: %.2f%% move from entry bin", pct),
			OldRange:    position.Range(),
			TargetToken: stopLoss.TargetToken,
		}, metrics
	}

	if !position.InRange() {
		return e.rebalance(position, metrics, ReasonOutOfRange), metrics
	}

	if metrics.SampleCount < 2 {
		return types.NoAction{Reason: ReasonInsufficientData}, metrics
	}

	if metrics.VolatilityRatio > e.params.VolatilityThreshold {
		return e.rebalance(position, metrics, ReasonHighVolatility), metrics
	}

	return types.NoAction{Reason: ReasonHealthy, VolatilityRatio: metrics.VolatilityRatio}, metrics
}

func (e *Engine) rebalance(position types.Position, metrics types.VolatilityMetrics, reason string) types.Rebalance {
	half := e.HalfWidth(metrics.VolatilityRatio)
	return types.Rebalance{
		Reason:          reason,
		OldRange:        position.Range(),
		NewRange:        types.BinRange{Lower: position.CurrentBin - half, Upper: position.CurrentBin + half},
		VolatilityRatio: metrics.VolatilityRatio,
	}
}

// HalfWidth returns the number of bins placed on each side of the active bin for a volatility ratio.
func (e *Engine) HalfWidth(ratio float64) int {
	pct := ratio * 100
	for _, tier := range e.params.BinWidthTiers {
		if pct < tier.MaxRatioPercent {
			return tier.HalfWidth
		}
	}
	return e.params.MaxHalfWidth
}

// PriceBand converts the metrics' recommended fractional width into a bin band around the active bin.
// It is informational: notifications show it next to the tiered range.
func (e *Engine) PriceBand(position types.Position, metrics types.VolatilityMetrics) (types.BinRange, error) {
	price, err := rangemath.PriceFromBinID(position.CurrentBin, position.BinStep)
	if err != nil {
		return types.BinRange{}, err
	}
	return rangemath.ComputeRange(price, metrics.RecommendedRangeWidth, position.BinStep)
}
