package analyzer

import (
	"math"

	"github.com/rainman456/Dllm-Demo-Saros/internal/types"
)

const (
	DEFAULT_RANGE_WIDTH = 0.10 // Used when there is no volatility signal
	MIN_RANGE_WIDTH     = 0.05
	MAX_RANGE_WIDTH     = 0.50

	calmRatio     = 0.02 // Below this the tightest band is recommended
	moderateRatio = 0.05
)

// CalculateVolatility computes dispersion statistics over the prices of a bin sample window.
// Samples with a non-finite price are ignored. With fewer than two usable samples it returns
// zero metrics carrying the default range width; it never fails.
func CalculateVolatility(samples []types.BinSample) types.VolatilityMetrics {
	prices := make([]float64, 0, len(samples))
	var totalLiquidity, maxLiquidity float64
	for _, s := range samples {
		if math.IsNaN(s.Price) || math.IsInf(s.Price, 0) {
			continue
		}
		prices = append(prices, s.Price)
		if s.Liquidity > 0 {
			totalLiquidity += s.Liquidity
			maxLiquidity = math.Max(maxLiquidity, s.Liquidity)
		}
	}

	n := len(prices)
	if n < 2 {
		return types.VolatilityMetrics{SampleCount: n, RecommendedRangeWidth: DEFAULT_RANGE_WIDTH}
	}

	// --- Mean ---
	var sum float64
	for _, p := range prices {
		sum += p
	}
	mean := sum / float64(n)

	// --- Population variance (N, not N-1) ---
	var sumSqDiff, sumSpread float64
	flat := true
	for i, p := range prices {
		sumSqDiff += (p - mean) * (p - mean)
		if i > 0 {
			sumSpread += math.Abs(p - prices[i-1])
			flat = flat && p == prices[0]
		}
	}
	stdDev := math.Sqrt(sumSqDiff / float64(n))
	if flat {
		// The running mean of identical values can drift by an ulp.
		stdDev = 0
	}

	var ratio float64
	if mean != 0 {
		ratio = stdDev / mean
	}

	metrics := types.VolatilityMetrics{
		SampleCount:           n,
		Mean:                  mean,
		StdDev:                stdDev,
		VolatilityRatio:       ratio,
		RecommendedRangeWidth: RecommendedRangeWidth(ratio),
		AverageSpread:         sumSpread / float64(n-1),
	}
	if totalLiquidity > 0 {
		metrics.LiquidityConcentration = maxLiquidity / totalLiquidity
	}
	return metrics
}

// RecommendedRangeWidth maps a volatility ratio to a fractional range width.
// The mapping is a monotone non-decreasing step function clamped to [MIN_RANGE_WIDTH, MAX_RANGE_WIDTH].
func RecommendedRangeWidth(ratio float64) float64 {
	switch {
	case math.IsNaN(ratio) || ratio < calmRatio:
		return MIN_RANGE_WIDTH
	case ratio < moderateRatio:
		return DEFAULT_RANGE_WIDTH
	}
	width := DEFAULT_RANGE_WIDTH * (1 + 5*math.Max(0, ratio-calmRatio))
	return math.Min(MAX_RANGE_WIDTH, math.Max(MIN_RANGE_WIDTH, width))
}
