// Package stoploss holds per-position stop-loss configuration and the drawdown check.
package stoploss

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/rainman456/Dllm-Demo-Saros/internal/logger"
	"github.com/rainman456/Dllm-Demo-Saros/internal/types"
)

var ErrEmptyPositionID = errors.New("position id is empty")

// ExitSubmitter submits the on-chain exit. The monitor only decides; it never signs.
type ExitSubmitter interface {
	SubmitStopLossExit(ctx context.Context, position types.Position, target types.TargetToken) (*types.TransactionResult, error)
}

// ConfigStore persists the registry across restarts.
type ConfigStore interface {
	SaveStopLossConfig(ctx context.Context, positionID string, cfg types.StopLossConfig) error
	DeleteStopLossConfig(ctx context.Context, positionID string) error
	LoadStopLossConfigs(ctx context.Context) (map[string]types.StopLossConfig, error)
}

// Monitor is the stop-loss registry keyed by position id. It is safe for concurrent use.
type Monitor struct {
	logger   zerolog.Logger
	mu       sync.RWMutex
	configs  map[string]types.StopLossConfig
	executor ExitSubmitter
	store    ConfigStore // optional
}

// NewMonitor creates an empty registry. store may be nil for an in-memory registry.
func NewMonitor(executor ExitSubmitter, store ConfigStore) *Monitor {
	return &Monitor{
		logger:   logger.GetForComponent("stop_loss"),
		configs:  make(map[string]types.StopLossConfig),
		executor: executor,
		store:    store,
	}
}

// Load replaces the registry with the persisted configurations.
func (m *Monitor) Load(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	configs, err := m.store.LoadStopLossConfigs(ctx)
	if err != nil {
		return fmt.Errorf("failed to load stop-loss configs: %w", err)
	}

	m.mu.Lock()
	m.configs = make(map[string]types.StopLossConfig, len(configs))
	for id, cfg := range configs {
		m.configs[id] = cfg
	}
	m.mu.Unlock()

	m.logger.Info().Int("count", len(configs)).Msg("Stop-loss registry loaded")
	return nil
}

// SetStopLoss validates and stores cfg for positionID, replacing any previous config.
func (m *Monitor) SetStopLoss(ctx context.Context, positionID string, cfg types.StopLossConfig) error {
	if positionID == "" {
		return errors.Join(types.ErrInvalidInput, ErrEmptyPositionID)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if m.store != nil {
		if err := m.store.SaveStopLossConfig(ctx, positionID, cfg); err != nil {
			return fmt.Errorf("failed to persist stop-loss for %s: %w", positionID, err)
		}
	}

	m.mu.Lock()
	m.configs[positionID] = cfg
	m.mu.Unlock()

	m.logger.Info().
		Str("position_id", positionID).
		Bool("enabled", cfg.Enabled).
		Float64("percentage", cfg.Percentage).
		Str("target_token", string(cfg.TargetToken)).
		Msg("Stop-loss configured")
	return nil
}

// GetStopLoss returns the config for positionID, if any.
func (m *Monitor) GetStopLoss(positionID string) (types.StopLossConfig, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg, ok := m.configs[positionID]
	return cfg, ok
}

// Lookup returns a pointer to a copy of the config, or nil. Convenient for planner calls.
func (m *Monitor) Lookup(positionID string) *types.StopLossConfig {
	cfg, ok := m.GetStopLoss(positionID)
	if !ok {
		return nil
	}
	return &cfg
}

// ClearStopLoss removes the config for positionID.
func (m *Monitor) ClearStopLoss(ctx context.Context, positionID string) error {
	if m.store != nil {
		if err := m.store.DeleteStopLossConfig(ctx, positionID); err != nil {
			return fmt.Errorf("failed to delete stop-loss for %s: %w", positionID, err)
		}
	}
	m.mu.Lock()
	delete(m.configs, positionID)
	m.mu.Unlock()
	return nil
}

// Snapshot returns the registered position ids, sorted.
func (m *Monitor) Snapshot() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.configs))
	for id := range m.configs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ExecuteExit submits the exit through the executor. A successful exit clears the config,
// since the position no longer exists.
func (m *Monitor) ExecuteExit(ctx context.Context, position types.Position, cfg types.StopLossConfig) (types.ExitResult, error) {
	result := types.ExitResult{TargetToken: cfg.TargetToken}
	if m.executor == nil {
		return result, errors.Join(types.ErrConfigurationMissing, errors.New("no executor configured for stop-loss exits"))
	}

	tx, err := m.executor.SubmitStopLossExit(ctx, position, cfg.TargetToken)
	if err != nil {
		return result, fmt.Errorf("%w: stop-loss exit for %s: %w", types.ErrExecutionFailed, position.PositionID, err)
	}
	if tx == nil || !tx.Success {
		msg := "executor reported failure"
		if tx != nil && tx.ErrorMessage != "" {
			msg = tx.ErrorMessage
		}
		return result, fmt.Errorf("%w: stop-loss exit for %s: %s", types.ErrExecutionFailed, position.PositionID, msg)
	}

	result.Success = true
	result.TxRef = tx.TxRef
	if err := m.ClearStopLoss(ctx, position.PositionID); err != nil {
		m.logger.Warn().Err(err).Str("position_id", position.PositionID).Msg("Exit succeeded but stop-loss config could not be cleared")
	}

	m.logger.Warn().
		Str("position_id", position.PositionID).
		Str("pool_pair", position.PoolPair).
		Str("target_token", string(cfg.TargetToken)).
		Str("tx_ref", tx.TxRef).
		Msg("Stop-loss exit executed")
	return result, nil
}

// EntryBin is the midpoint of the position's range, used as the entry price proxy.
func EntryBin(position types.Position) float64 {
	return float64(position.LowerBin+position.UpperBin) / 2
}

// PriceChangePercent is the distance of the active bin from the entry bin, in percent of the entry bin.
// The boolean is false when the entry bin is zero and no percentage can be formed.
func PriceChangePercent(position types.Position) (float64, bool) {
	entry := EntryBin(position)
	if entry == 0 {
		return 0, false
	}
	return math.Abs(float64(position.CurrentBin)-entry) / math.Abs(entry) * 100, true
}

// ShouldTrigger reports whether the position breached its stop-loss. A nil or disabled config never triggers.
func ShouldTrigger(position types.Position, cfg *types.StopLossConfig) bool {
	if cfg == nil || !cfg.Enabled {
		return false
	}
	pct, ok := PriceChangePercent(position)
	return ok && pct >= cfg.Percentage
}
