package staking

import (
	"context"
	"errors"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rainman456/Dllm-Demo-Saros/internal/types"
	"github.com/rainman456/Dllm-Demo-Saros/internal/vault"
)

func position(x, y int64) types.Position {
	return types.Position{
		PositionID: "pos-1",
		LowerBin:   100,
		UpperBin:   200,
		CurrentBin: 250,
		LiquidityX: sdkmath.NewInt(x),
		LiquidityY: sdkmath.NewInt(y),
	}
}

func TestShouldStake(t *testing.T) {
	tests := []struct {
		name string
		cfg  types.StakingConfig
		pos  types.Position
		want bool
	}{
		{"disabled", types.StakingConfig{AutoStake: true}, position(10, 10), false},
		{"manual only", types.StakingConfig{Enabled: true}, position(10, 10), false},
		{"no minimum", types.StakingConfig{Enabled: true, AutoStake: true}, position(0, 0), true},
		{"below minimum", types.StakingConfig{Enabled: true, AutoStake: true, MinLiquidity: sdkmath.NewInt(100)}, position(40, 59), false},
		{"at minimum", types.StakingConfig{Enabled: true, AutoStake: true, MinLiquidity: sdkmath.NewInt(100)}, position(40, 60), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldStake(tt.pos, tt.cfg))
		})
	}
}

func TestAfterRebalanceStakesNewRange(t *testing.T) {
	paper := vault.NewPaperExecutor()
	m := NewManager(paper)
	require.NoError(t, m.SetConfig("pos-1", types.StakingConfig{Enabled: true, AutoStake: true}))

	err := m.AfterRebalance(context.Background(), position(1, 1), types.BinRange{Lower: 200, Upper: 300})
	require.NoError(t, err)

	actions := paper.Actions()
	require.Len(t, actions, 1)
	assert.Equal(t, vault.ActionStake, actions[0].Type)
}

func TestAfterRebalanceWithoutConfigIsNoop(t *testing.T) {
	paper := vault.NewPaperExecutor()
	m := NewManager(paper)

	require.NoError(t, m.AfterRebalance(context.Background(), position(1, 1), types.BinRange{Lower: 200, Upper: 300}))
	assert.Empty(t, paper.Actions())
}

func TestAfterRebalanceRejected(t *testing.T) {
	paper := vault.NewPaperExecutor()
	paper.FailPosition("pos-1", errors.New("stake pool closed"))
	m := NewManager(paper)
	require.NoError(t, m.SetConfig("pos-1", types.StakingConfig{Enabled: true, AutoStake: true}))

	err := m.AfterRebalance(context.Background(), position(1, 1), types.BinRange{Lower: 200, Upper: 300})
	assert.ErrorIs(t, err, types.ErrExecutionFailed)
	assert.ErrorIs(t, err, ErrStakeRejected)
}

type emptyResultStaker struct{}

func (emptyResultStaker) StakePosition(context.Context, types.Position) (*types.TransactionResult, error) {
	return nil, nil
}

func TestAfterRebalanceWithoutResultIsRejected(t *testing.T) {
	m := NewManager(emptyResultStaker{})
	require.NoError(t, m.SetConfig("pos-1", types.StakingConfig{Enabled: true, AutoStake: true}))

	var err error
	require.NotPanics(t, func() {
		err = m.AfterRebalance(context.Background(), position(1, 1), types.BinRange{Lower: 200, Upper: 300})
	})
	assert.ErrorIs(t, err, types.ErrExecutionFailed)
	assert.ErrorIs(t, err, ErrStakeRejected)
}

func TestSetConfigValidation(t *testing.T) {
	m := NewManager(nil)
	assert.ErrorIs(t, m.SetConfig("", types.StakingConfig{}), types.ErrInvalidInput)
	assert.ErrorIs(t, m.SetConfig("pos-1", types.StakingConfig{MinLiquidity: sdkmath.NewInt(-1)}), types.ErrInvalidInput)

	require.NoError(t, m.SetConfig("pos-1", types.StakingConfig{Enabled: true}))
	cfg, ok := m.Config("pos-1")
	require.True(t, ok)
	assert.True(t, cfg.MinLiquidity.IsZero())
}
