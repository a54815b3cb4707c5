/*

This file contains the types for DLMM liquidity positions as reported by the data provider.
Positions are read-only snapshots: the authoritative state lives on chain.

*/

package types

import (
	"fmt"

	sdkmath "cosmossdk.io/math"
)

// BinRange is an inclusive [Lower, Upper] band of bin ids.
type BinRange struct {
	Lower int `json:"lower"`
	Upper int `json:"upper"`
}

// Contains reports whether binID lies inside the range, bounds included.
func (r BinRange) Contains(binID int) bool {
	return r.Lower <= binID && binID <= r.Upper
}

// Width is the number of bins covered by the range.
func (r BinRange) Width() int {
	return r.Upper - r.Lower + 1
}

func (r BinRange) String() string {
	return fmt.Sprintf("[%d, %d]", r.Lower, r.Upper)
}

// Position is a liquidity position held by a wallet in one pool.
type Position struct {
	PositionID  string      `json:"position_id"`  // Opaque handle (position account address)
	Owner       string      `json:"owner"`        // Wallet holding the position
	PoolAddress string      `json:"pool_address"` // DLMM pool (lb pair) address
	PoolPair    string      `json:"pool_pair"`    // Display label, e.g. "SOL/USDC"
	LowerBin    int         `json:"lower_bin_id"`
	UpperBin    int         `json:"upper_bin_id"`
	CurrentBin  int         `json:"current_bin_id"` // The pool's active bin at observation time
	BinStep     int         `json:"bin_step"`       // Basis points between adjacent bins
	LiquidityX  sdkmath.Int `json:"liquidity_x"`
	LiquidityY  sdkmath.Int `json:"liquidity_y"`
	FeesEarnedX sdkmath.Int `json:"fees_earned_x"`
	FeesEarnedY sdkmath.Int `json:"fees_earned_y"`
	TokenX      TokenInfo   `json:"token_x"`
	TokenY      TokenInfo   `json:"token_y"`
}

// Range returns the configured bin band of the position.
func (p Position) Range() BinRange {
	return BinRange{Lower: p.LowerBin, Upper: p.UpperBin}
}

// InRange reports whether the active bin lies inside the position's band.
func (p Position) InRange() bool {
	return p.Range().Contains(p.CurrentBin)
}

// TotalLiquidity sums both token amounts in raw units. Nil amounts count as zero.
func (p Position) TotalLiquidity() sdkmath.Int {
	total := sdkmath.ZeroInt()
	if !p.LiquidityX.IsNil() {
		total = total.Add(p.LiquidityX)
	}
	if !p.LiquidityY.IsNil() {
		total = total.Add(p.LiquidityY)
	}
	return total
}

// TransactionResult contains the outcome of a submitted on-chain action
type TransactionResult struct {
	TxRef        string `json:"tx_ref"`
	Success      bool   `json:"success"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// ExitResult is returned by a stop-loss exit.
type ExitResult struct {
	Success     bool        `json:"success"`
	TargetToken TargetToken `json:"target_token"`
	TxRef       string      `json:"tx_ref,omitempty"`
}
