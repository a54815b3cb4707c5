/*

This file contains the per-position stop-loss and staking configuration types.

*/

package types

import (
	"errors"
	"fmt"
	"math"
	"strings"

	sdkmath "cosmossdk.io/math"
)

// TargetToken is what a stop-loss exit converts the position into.
type TargetToken string

const (
	TargetTokenX      TargetToken = "X"
	TargetTokenY      TargetToken = "Y"
	TargetTokenStable TargetToken = "STABLE"
)

// ParseTargetToken accepts X, Y or STABLE in any case.
func ParseTargetToken(s string) (TargetToken, error) {
	switch TargetToken(strings.ToUpper(strings.TrimSpace(s))) {
	case TargetTokenX:
		return TargetTokenX, nil
	case TargetTokenY:
		return TargetTokenY, nil
	case TargetTokenStable:
		return TargetTokenStable, nil
	}
	return "", errors.Join(ErrInvalidInput, fmt.Errorf("unknown target token %q", s))
}

// StopLossConfig is owned by the stop-loss registry, keyed by position id.
type StopLossConfig struct {
	Enabled     bool        `json:"enabled"`
	Percentage  float64     `json:"percentage"` // Trigger threshold, e.g. 15 means a 15% adverse move
	TargetToken TargetToken `json:"target_token"`
}

// Validate checks the threshold and target token.
func (c StopLossConfig) Validate() error {
	if math.IsNaN(c.Percentage) || c.Percentage <= 0 || c.Percentage > 100 {
		return errors.Join(ErrInvalidInput, fmt.Errorf("stop-loss percentage must be in (0, 100], got %v", c.Percentage))
	}
	if _, err := ParseTargetToken(string(c.TargetToken)); err != nil {
		return err
	}
	return nil
}

// StakingConfig controls the post-rebalance staking hook for one position.
type StakingConfig struct {
	Enabled      bool        `json:"enabled"`
	AutoStake    bool        `json:"auto_stake"`
	MinLiquidity sdkmath.Int `json:"min_liquidity"` // Raw units of X+Y required before staking
}
