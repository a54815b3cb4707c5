/*
This file contains a simulated Provider used in mock mode and in local development.

Every wallet deterministically owns a few positions; each call to FetchPositions moves the
pools' active bins with a seeded random walk, so positions drift in and out of range over time.
*/

package datafetcher

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"sync"

	sdkmath "cosmossdk.io/math"

	"github.com/rainman456/Dllm-Demo-Saros/internal/rangemath"
	"github.com/rainman456/Dllm-Demo-Saros/internal/types"
	"github.com/rainman456/Dllm-Demo-Saros/internal/utils"
)

type mockPool struct {
	address   string
	pair      string
	binStep   int
	activeBin int
	tokenX    types.TokenInfo
	tokenY    types.TokenInfo
	maxStep   int // Largest active bin move per refresh
}

// MockProvider is a deterministic, in-memory Provider.
type MockProvider struct {
	mu        sync.Mutex
	rng       *rand.Rand
	pools     map[string]*mockPool
	poolOrder []string
	positions map[string][]types.Position // keyed by wallet
}

// NewMockProvider creates a simulator whose random walk is driven by seed.
func NewMockProvider(seed int64) *MockProvider {
	usdc := types.TokenInfo{Symbol: "USDC", Mint: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", Decimals: 6}
	pools := []*mockPool{
		{
			address: "7si1kd5LaS4Nxk4fLyka5mHZaiUgCzSiWGCsdVKzDNCc", pair: "SOL/USDC", binStep: 25, activeBin: 2100, maxStep: 6,
			tokenX: types.TokenInfo{Symbol: "SOL", Mint: "So11111111111111111111111111111111111111112", Decimals: 9}, tokenY: usdc,
		},
		{
			address: "2dsxetM1uGB8USzppju7LorLnEQdBXzU7Yx41ev5G1ko", pair: "JUP/USDC", binStep: 80, activeBin: -150, maxStep: 3,
			tokenX: types.TokenInfo{Symbol: "JUP", Mint: "JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN", Decimals: 6}, tokenY: usdc,
		},
		{
			address: "FfMkKQiFcpZfCsVoxQ55m2WqqE4V4RzkZfU2qMu4sJKF", pair: "USDT/USDC", binStep: 1, activeBin: 0, maxStep: 1,
			tokenX: types.TokenInfo{Symbol: "USDT", Mint: "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB", Decimals: 6}, tokenY: usdc,
		},
	}

	p := &MockProvider{
		rng:       rand.New(rand.NewSource(seed)),
		pools:     make(map[string]*mockPool, len(pools)),
		positions: make(map[string][]types.Position),
	}
	for _, pool := range pools {
		p.pools[pool.address] = pool
		p.poolOrder = append(p.poolOrder, pool.address)
	}
	return p
}

// FetchPositions implements Provider. Each call advances the simulation by one step.
func (p *MockProvider) FetchPositions(ctx context.Context, wallet, poolFilter string) ([]types.Position, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrDataUnavailable, err)
	}
	if wallet == "" {
		return nil, errors.Join(types.ErrInvalidInput, errors.New("wallet is empty"))
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for _, addr := range p.poolOrder {
		pool := p.pools[addr]
		pool.activeBin += p.rng.Intn(2*pool.maxStep+1) - pool.maxStep
	}

	held, ok := p.positions[wallet]
	if !ok {
		held = p.seedPositions(wallet)
		p.positions[wallet] = held
	}

	out := make([]types.Position, 0, len(held))
	for _, pos := range held {
		if poolFilter != "" && pos.PoolAddress != poolFilter {
			continue
		}
		pos.CurrentBin = p.pools[pos.PoolAddress].activeBin
		out = append(out, pos)
	}
	return out, nil
}

// FetchBinSamples implements Provider. Prices follow the geometric bin curve; liquidity is
// concentrated around the active bin.
func (p *MockProvider) FetchBinSamples(ctx context.Context, poolAddress string, fromBin, toBin int) ([]types.BinSample, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrDataUnavailable, err)
	}
	if fromBin > toBin || toBin-fromBin > MAX_BIN_SPAN {
		return nil, errors.Join(types.ErrInvalidInput, fmt.Errorf("bin window [%d, %d] is invalid", fromBin, toBin))
	}

	p.mu.Lock()
	pool, ok := p.pools[poolAddress]
	var binStep, active int
	if ok {
		binStep, active = pool.binStep, pool.activeBin
	}
	p.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: unknown pool %s", types.ErrDataUnavailable, poolAddress)
	}

	samples := make([]types.BinSample, 0, toBin-fromBin+1)
	for bin := fromBin; bin <= toBin; bin++ {
		price, err := rangemath.PriceFromBinID(bin, binStep)
		if err != nil {
			return nil, err
		}
		distance := bin - active
		if distance < 0 {
			distance = -distance
		}
		samples = append(samples, types.BinSample{
			BinID:     bin,
			Price:     price,
			Liquidity: 1000 / float64(1+distance),
		})
	}
	return samples, nil
}

// seedPositions gives a wallet one position in two or three pools, derived from its address.
func (p *MockProvider) seedPositions(wallet string) []types.Position {
	h := fnv.New64a()
	h.Write([]byte(wallet))
	local := rand.New(rand.NewSource(int64(h.Sum64())))

	count := 2 + local.Intn(len(p.poolOrder)-1)
	out := make([]types.Position, 0, count)
	for i := 0; i < count; i++ {
		pool := p.pools[p.poolOrder[i]]
		half := 10 + local.Intn(30)
		center := pool.activeBin + local.Intn(11) - 5
		out = append(out, types.Position{
			PositionID:  fmt.Sprintf("%s-%s-%d", shortKey(wallet), shortKey(pool.address), i),
			Owner:       wallet,
			PoolAddress: pool.address,
			PoolPair:    pool.pair,
			LowerBin:    center - half,
			UpperBin:    center + half,
			BinStep:     pool.binStep,
			LiquidityX:  mockAmount(0.5+local.Float64()*50, pool.tokenX.Decimals),
			LiquidityY:  mockAmount(100+local.Float64()*5000, pool.tokenY.Decimals),
			FeesEarnedX: sdkmath.NewInt(int64(local.Intn(1_000_000))),
			FeesEarnedY: sdkmath.NewInt(int64(local.Intn(1_000_000))),
			TokenX:      pool.tokenX,
			TokenY:      pool.tokenY,
		})
	}
	return out
}

// mockAmount converts a whole-token amount to raw units, rounded down to four decimals.
func mockAmount(tokens float64, decimals int) sdkmath.Int {
	amount, err := utils.Float64ToAmount(math.Floor(tokens*1e4)/1e4, decimals)
	if err != nil {
		return sdkmath.ZeroInt()
	}
	return amount
}

func shortKey(s string) string {
	if len(s) <= 8 {
		return s
	}
	return s[:8]
}

// Pools returns the simulated pool addresses.
func (p *MockProvider) Pools() []string {
	return append([]string(nil), p.poolOrder...)
}
