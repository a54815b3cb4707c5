package datafetcher

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rainman456/Dllm-Demo-Saros/internal/types"
)

func TestMockProviderDeterministic(t *testing.T) {
	ctx := context.Background()
	a, b := NewMockProvider(7), NewMockProvider(7)

	for i := 0; i < 5; i++ {
		pa, err := a.FetchPositions(ctx, "walletA", "")
		require.NoError(t, err)
		pb, err := b.FetchPositions(ctx, "walletA", "")
		require.NoError(t, err)
		assert.Equal(t, pa, pb)
	}
}

func TestMockProviderPositions(t *testing.T) {
	ctx := context.Background()
	p := NewMockProvider(1)

	positions, err := p.FetchPositions(ctx, "walletA", "")
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(positions), 2)

	for _, pos := range positions {
		assert.Equal(t, "walletA", pos.Owner)
		assert.LessOrEqual(t, pos.LowerBin, pos.UpperBin)
		assert.True(t, pos.LiquidityX.IsPositive())
		assert.NotEmpty(t, pos.PoolPair)
	}

	pool := positions[0].PoolAddress
	filtered, err := p.FetchPositions(ctx, "walletA", pool)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, pool, filtered[0].PoolAddress)

	_, err = p.FetchPositions(ctx, "", "")
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestMockProviderBins(t *testing.T) {
	ctx := context.Background()
	p := NewMockProvider(1)
	pool := p.Pools()[0]

	samples, err := p.FetchBinSamples(ctx, pool, 2000, 2010)
	require.NoError(t, err)
	require.Len(t, samples, 11)
	for i := 1; i < len(samples); i++ {
		assert.Greater(t, samples[i].Price, samples[i-1].Price, "price must increase with bin id")
	}

	_, err = p.FetchBinSamples(ctx, "unknown", 0, 1)
	assert.ErrorIs(t, err, types.ErrDataUnavailable)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = p.FetchBinSamples(cancelled, pool, 0, 1)
	assert.ErrorIs(t, err, types.ErrDataUnavailable)
}
