package vault

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rainman456/Dllm-Demo-Saros/internal/logger"
	"github.com/rainman456/Dllm-Demo-Saros/internal/types"
)

// ActionType names a recorded paper action.
type ActionType string

const (
	ActionRebalance    ActionType = "REBALANCE"
	ActionStopLossExit ActionType = "STOP_LOSS_EXIT"
	ActionStake        ActionType = "STAKE"
)

// PaperAction is one action accepted by the PaperExecutor.
type PaperAction struct {
	TxRef       string            `json:"tx_ref"`
	Type        ActionType        `json:"type"`
	PositionID  string            `json:"position_id"`
	PoolAddress string            `json:"pool_address"`
	NewRange    *types.BinRange   `json:"new_range,omitempty"`
	TargetToken types.TargetToken `json:"target_token,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
}

// PaperExecutor records actions instead of submitting them. It is the executor used in mock mode.
type PaperExecutor struct {
	logger  zerolog.Logger
	mu      sync.Mutex
	actions []PaperAction
	failFor map[string]error // position id -> forced failure
}

// NewPaperExecutor creates an executor with an empty ledger.
func NewPaperExecutor() *PaperExecutor {
	return &PaperExecutor{
		logger:  logger.GetForComponent("paper_executor"),
		failFor: make(map[string]error),
	}
}

// FailPosition makes every later submission for positionID fail with err. A nil err clears it.
func (p *PaperExecutor) FailPosition(positionID string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		delete(p.failFor, positionID)
		return
	}
	p.failFor[positionID] = err
}

// SubmitRebalance implements Executor.
func (p *PaperExecutor) SubmitRebalance(ctx context.Context, position types.Position, newRange types.BinRange) (*types.TransactionResult, error) {
	if newRange.Lower > newRange.Upper {
		return nil, errors.Join(types.ErrInvalidInput, fmt.Errorf("range %s is inverted", newRange))
	}
	r := newRange
	return p.record(ctx, PaperAction{Type: ActionRebalance, PositionID: position.PositionID, PoolAddress: position.PoolAddress, NewRange: &r})
}

// SubmitStopLossExit implements Executor.
func (p *PaperExecutor) SubmitStopLossExit(ctx context.Context, position types.Position, target types.TargetToken) (*types.TransactionResult, error) {
	return p.record(ctx, PaperAction{Type: ActionStopLossExit, PositionID: position.PositionID, PoolAddress: position.PoolAddress, TargetToken: target})
}

// StakePosition implements Staker.
func (p *PaperExecutor) StakePosition(ctx context.Context, position types.Position) (*types.TransactionResult, error) {
	return p.record(ctx, PaperAction{Type: ActionStake, PositionID: position.PositionID, PoolAddress: position.PoolAddress})
}

// Actions returns a copy of the ledger in submission order.
func (p *PaperExecutor) Actions() []PaperAction {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]PaperAction(nil), p.actions...)
}

func (p *PaperExecutor) record(ctx context.Context, action PaperAction) (*types.TransactionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err, ok := p.failFor[action.PositionID]; ok {
		return &types.TransactionResult{Success: false, ErrorMessage: err.Error()}, nil
	}

	action.TxRef = "paper-" + uuid.New().String()
	action.Timestamp = time.Now().UTC()
	p.actions = append(p.actions, action)

	p.logger.Info().
		Str("tx_ref", action.TxRef).
		Str("type", string(action.Type)).
		Str("position_id", action.PositionID).
		Msg("Paper action recorded")

	return &types.TransactionResult{TxRef: action.TxRef, Success: true}, nil
}
