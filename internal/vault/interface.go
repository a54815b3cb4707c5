package vault

import (
	"context"

	"github.com/rainman456/Dllm-Demo-Saros/internal/types"
)

// Executor moves liquidity on chain. Transaction construction and signing live behind it;
// the rebalancer only asks for outcomes.
type Executor interface {
	// SubmitRebalance closes the position's current range and re-opens it on newRange.
	SubmitRebalance(ctx context.Context, position types.Position, newRange types.BinRange) (*types.TransactionResult, error)

	// SubmitStopLossExit removes all liquidity and converts it into target.
	SubmitStopLossExit(ctx context.Context, position types.Position, target types.TargetToken) (*types.TransactionResult, error)
}

// Staker stakes a position's liquidity after a successful rebalance.
type Staker interface {
	StakePosition(ctx context.Context, position types.Position) (*types.TransactionResult, error)
}
