/*

This file contains the tunable parameters for the rebalance planner and the monitoring loop.

*/

package types

import (
	"errors"
	"fmt"
	"time"
)

// BinWidthTier maps a volatility band to a half-width in bins.
type BinWidthTier struct {
	MaxRatioPercent float64 `json:"max_ratio_percent"` // Tier applies while ratio*100 < MaxRatioPercent
	HalfWidth       int     `json:"half_width"`        // Bins on each side of the active bin
}

// RebalanceParameters holds all thresholds used by the planner and scheduler.
type RebalanceParameters struct {
	VolatilityThreshold float64        `json:"volatility_threshold"` // Ratio above which an in-range position is rebalanced
	BinWidthTiers       []BinWidthTier `json:"bin_width_tiers"`      // Sorted by MaxRatioPercent ascending
	MaxHalfWidth        int            `json:"max_half_width"`       // Half-width once every tier is exceeded
	SampleMarginBins    int            `json:"sample_margin_bins"`   // Bins sampled on each side of a position's range
	DashboardInterval   time.Duration  `json:"dashboard_interval"`
	BackgroundInterval  time.Duration  `json:"background_interval"`
}

// Validate rejects parameter sets the planner cannot work with.
func (p RebalanceParameters) Validate() error {
	if p.VolatilityThreshold <= 0 {
		return errors.Join(ErrInvalidInput, fmt.Errorf("volatility threshold must be positive, got %v", p.VolatilityThreshold))
	}
	if p.MaxHalfWidth <= 0 {
		return errors.Join(ErrInvalidInput, errors.New("max half width must be positive"))
	}
	prev := 0.0
	for i, t := range p.BinWidthTiers {
		if t.HalfWidth <= 0 || t.MaxRatioPercent <= prev {
			return errors.Join(ErrInvalidInput, fmt.Errorf("bin width tier %d is not ascending or has a non-positive width", i))
		}
		prev = t.MaxRatioPercent
	}
	if p.SampleMarginBins < 0 {
		return errors.Join(ErrInvalidInput, errors.New("sample margin cannot be negative"))
	}
	return nil
}
