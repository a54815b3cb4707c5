package datafetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rainman456/Dllm-Demo-Saros/internal/rangemath"
	"github.com/rainman456/Dllm-Demo-Saros/internal/types"
)

const positionsJSON = `{"positions":[
	{"position_id":"pos-1","pool_address":"pool-a","lower_bin_id":8820,"upper_bin_id":8924,"active_bin_id":8875,"bin_step":25,
	 "liquidity_x":"1500000000","liquidity_y":"250000000","fees_x":"12","fees_y":"",
	 "token_x":{"symbol":"SOL","decimals":9},"token_y":{"symbol":"USDC","decimals":6}},
	{"position_id":"pos-2","pool_address":"pool-b","pool_pair":"JUP/USDC","lower_bin_id":-10,"upper_bin_id":10,"active_bin_id":40,"bin_step":80,
	 "liquidity_x":"1","liquidity_y":"2","fees_x":"0","fees_y":"0"}
]}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *IndexerClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewIndexerClient(IndexerConfig{BaseURL: srv.URL, APIKey: "secret", RetryDelay: time.Millisecond})
	require.NoError(t, err)
	return c
}

func TestNewIndexerClientValidation(t *testing.T) {
	_, err := NewIndexerClient(IndexerConfig{})
	assert.ErrorIs(t, err, types.ErrConfigurationMissing)

	_, err = NewIndexerClient(IndexerConfig{BaseURL: "not a url"})
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestFetchPositions(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/wallets/walletA/positions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Write([]byte(positionsJSON))
	})

	positions, err := c.FetchPositions(context.Background(), "walletA", "")
	require.NoError(t, err)
	require.Len(t, positions, 2)

	p := positions[0]
	assert.Equal(t, "pos-1", p.PositionID)
	assert.Equal(t, "walletA", p.Owner)
	assert.Equal(t, "SOL/USDC", p.PoolPair)
	assert.Equal(t, 8875, p.CurrentBin)
	assert.True(t, p.InRange())
	assert.Equal(t, "1500000000", p.LiquidityX.String())
	assert.True(t, p.FeesEarnedY.IsZero())
	assert.Equal(t, 9, p.TokenX.Decimals)

	assert.False(t, positions[1].InRange())
	assert.Equal(t, "JUP/USDC", positions[1].PoolPair)
}

func TestFetchPositionsPoolFilter(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "pool-b", r.URL.Query().Get("pool"))
		w.Write([]byte(positionsJSON))
	})

	positions, err := c.FetchPositions(context.Background(), "walletA", "pool-b")
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, "pos-2", positions[0].PositionID)
}

func TestFetchPositionsRejectsBadData(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"positions":[{"position_id":"x","pool_address":"p","lower_bin_id":5,"upper_bin_id":1,"bin_step":10}]}`))
	})

	_, err := c.FetchPositions(context.Background(), "walletA", "")
	assert.ErrorIs(t, err, types.ErrDataUnavailable)
	assert.ErrorIs(t, err, ErrInvalidPositionData)
}

func TestRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"positions":[]}`))
	})

	positions, err := c.FetchPositions(context.Background(), "walletA", "")
	require.NoError(t, err)
	assert.Empty(t, positions)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "no such wallet", http.StatusNotFound)
	})

	_, err := c.FetchPositions(context.Background(), "walletA", "")
	assert.ErrorIs(t, err, types.ErrDataUnavailable)
	assert.Contains(t, err.Error(), "404")
	assert.Equal(t, int32(1), calls.Load())
}

func TestBreakerOpensAfterRepeatedFailures(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusInternalServerError)
	})

	for i := 0; i < 3; i++ {
		_, _ = c.FetchPositions(context.Background(), "walletA", "")
	}
	// 5 consecutive failures trip the breaker; later calls fail fast.
	assert.LessOrEqual(t, calls.Load(), int32(5))
}

func TestFetchBinSamples(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/pools/pool-a/bins", r.URL.Path)
		assert.Equal(t, "100", r.URL.Query().Get("from"))
		assert.Equal(t, "103", r.URL.Query().Get("to"))
		w.Write([]byte(`{"bin_step":25,"bins":[
			{"bin_id":102,"price":1.3,"liquidity":5},
			{"bin_id":100,"price":0},
			{"bin_id":999,"price":7},
			{"bin_id":101,"price":1.29}
		]}`))
	})

	samples, err := c.FetchBinSamples(context.Background(), "pool-a", 100, 103)
	require.NoError(t, err)
	require.Len(t, samples, 3)
	assert.Equal(t, []int{100, 101, 102}, []int{samples[0].BinID, samples[1].BinID, samples[2].BinID})

	want, err := rangemath.PriceFromBinID(100, 25)
	require.NoError(t, err)
	assert.InDelta(t, want, samples[0].Price, 1e-12)
	assert.Equal(t, 5.0, samples[2].Liquidity)
}

func TestFetchBinSamplesValidatesWindow(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})

	_, err := c.FetchBinSamples(context.Background(), "pool-a", 10, 5)
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	_, err = c.FetchBinSamples(context.Background(), "", 1, 5)
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}
