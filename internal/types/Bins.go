/*

This file contains the types used for bin sampling and volatility analysis.

*/

package types

import "time"

// BinSample is one observed (binId, price) pair from a pool's price curve.
type BinSample struct {
	BinID     int     `json:"bin_id"`
	Price     float64 `json:"price"`
	Liquidity float64 `json:"liquidity,omitempty"` // Bin liquidity in quote units, 0 when unknown
}

// VolatilityMetrics is computed from a window of bin sample prices.
type VolatilityMetrics struct {
	SampleCount            int     `json:"sample_count"`
	Mean                   float64 `json:"mean"`
	StdDev                 float64 `json:"std_dev"`                 // Population standard deviation
	VolatilityRatio        float64 `json:"volatility_ratio"`        // StdDev / Mean
	RecommendedRangeWidth  float64 `json:"recommended_range_width"` // Fraction of price, e.g. 0.10 = +/-5%
	AverageSpread          float64 `json:"average_spread"`          // Mean absolute price change between consecutive samples
	LiquidityConcentration float64 `json:"liquidity_concentration"` // Share of liquidity in the heaviest bin
}

// VolatilityTrend is the direction of a pool's recent volatility.
type VolatilityTrend string

const (
	TrendIncreasing VolatilityTrend = "increasing"
	TrendDecreasing VolatilityTrend = "decreasing"
	TrendStable     VolatilityTrend = "stable"
)

// RiskLevel buckets a volatility ratio.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// VolatilityPoint is one recorded observation for a pool.
type VolatilityPoint struct {
	Timestamp       time.Time `json:"timestamp"`
	VolatilityRatio float64   `json:"volatility_ratio"`
	Price           float64   `json:"price"`
}

// VolatilityReport summarizes a pool's tracked volatility history.
type VolatilityReport struct {
	PoolAddress    string            `json:"pool_address"`
	Current        float64           `json:"current"`
	Average        float64           `json:"average"`
	Trend          VolatilityTrend   `json:"trend"`
	Risk           RiskLevel         `json:"risk"`
	Recommendation string            `json:"recommendation"`
	History        []VolatilityPoint `json:"history"`
}
