/*

This file holds the optional post-rebalance staking hook. After a successful rebalance the
new position can be staked for extra yield when its config allows it.

*/

package staking

import (
	"context"
	"errors"
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/rainman456/Dllm-Demo-Saros/internal/logger"
	"github.com/rainman456/Dllm-Demo-Saros/internal/types"
	"github.com/rainman456/Dllm-Demo-Saros/internal/vault"
)

var ErrStakeRejected = errors.New("stake transaction was rejected")

// Manager keeps per-position staking configs and stakes after rebalances.
type Manager struct {
	logger  zerolog.Logger
	staker  vault.Staker
	mu      sync.RWMutex
	configs map[string]types.StakingConfig
}

// NewManager creates a manager that stakes through staker.
func NewManager(staker vault.Staker) *Manager {
	return &Manager{
		logger:  logger.GetForComponent("staking"),
		staker:  staker,
		configs: make(map[string]types.StakingConfig),
	}
}

// SetConfig stores the staking config for a position. A nil MinLiquidity means no minimum.
func (m *Manager) SetConfig(positionID string, cfg types.StakingConfig) error {
	if positionID == "" {
		return errors.Join(types.ErrInvalidInput, errors.New("position id is empty"))
	}
	if cfg.MinLiquidity.IsNil() {
		cfg.MinLiquidity = sdkmath.ZeroInt()
	}
	if cfg.MinLiquidity.IsNegative() {
		return errors.Join(types.ErrInvalidInput, fmt.Errorf("min liquidity %s is negative", cfg.MinLiquidity))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.configs[positionID] = cfg
	return nil
}

// Config returns the staking config for a position.
func (m *Manager) Config(positionID string) (types.StakingConfig, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg, ok := m.configs[positionID]
	return cfg, ok
}

// ShouldStake reports whether the position qualifies under cfg.
func ShouldStake(position types.Position, cfg types.StakingConfig) bool {
	if !cfg.Enabled || !cfg.AutoStake {
		return false
	}
	if cfg.MinLiquidity.IsNil() {
		return true
	}
	return position.TotalLiquidity().GTE(cfg.MinLiquidity)
}

// AfterRebalance stakes the rebalanced position when its config qualifies. Positions without
// a config are left alone.
func (m *Manager) AfterRebalance(ctx context.Context, position types.Position, newRange types.BinRange) error {
	cfg, ok := m.Config(position.PositionID)
	if !ok || !ShouldStake(position, cfg) {
		return nil
	}
	if m.staker == nil {
		return errors.Join(types.ErrConfigurationMissing, errors.New("no staker configured"))
	}

	moved := position
	moved.LowerBin, moved.UpperBin = newRange.Lower, newRange.Upper

	res, err := m.staker.StakePosition(ctx, moved)
	if err != nil {
		return fmt.Errorf("%w: stake %s: %w", types.ErrExecutionFailed, position.PositionID, err)
	}
	if res == nil {
		return fmt.Errorf("%w: %w: staker returned no result", types.ErrExecutionFailed, ErrStakeRejected)
	}
	if !res.Success {
		return fmt.Errorf("%w: %w: %s", types.ErrExecutionFailed, ErrStakeRejected, res.ErrorMessage)
	}

	m.logger.Info().
		Str("position_id", position.PositionID).
		Str("range", newRange.String()).
		Str("tx_ref", res.TxRef).
		Msg("Staked rebalanced position")
	return nil
}
