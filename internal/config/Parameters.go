/*

This file contains the default parameters for the rebalancer.

The values mirror the behaviour operators expect from the dashboard: a position is only moved
when it leaves its range or when the pool turns clearly volatile, and the new range widens as
volatility grows.

*/

package config

import (
	"time"

	"github.com/rainman456/Dllm-Demo-Saros/internal/types"
)

// DefaultRebalanceParameters provides the planner and scheduler defaults.
// Environment variables may override the threshold and the intervals (see LoadConfig).
var DefaultRebalanceParameters = types.RebalanceParameters{
	VolatilityThreshold: 0.15, // Rebalance an in-range position once stdDev/mean exceeds 15%.
	// Rationale: below this, re-ranging costs more in fees and slippage than the position loses
	// to drift. Out-of-range positions are rebalanced regardless of this threshold.

	// --- Bin width tiers (half-width on each side of the active bin) ---
	BinWidthTiers: []types.BinWidthTier{
		{MaxRatioPercent: 5, HalfWidth: 50},   // Calm market, keep liquidity concentrated.
		{MaxRatioPercent: 10, HalfWidth: 75},  // Moderate.
		{MaxRatioPercent: 15, HalfWidth: 100}, // Elevated.
	},
	MaxHalfWidth: 150, // Anything above 15%.
	// Rationale: wider bands earn less per unit of liquidity but stay in range longer,
	// which avoids rebalancing into every swing of a volatile pool.

	SampleMarginBins: 50, // Bins sampled on each side of a position's range for volatility.

	DashboardInterval:  15 * time.Second, // Live dashboard subscriptions.
	BackgroundInterval: 15 * time.Minute, // Unattended background rebalancer.
}
