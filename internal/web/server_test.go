package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rainman456/Dllm-Demo-Saros/internal/analyzer"
	"github.com/rainman456/Dllm-Demo-Saros/internal/scheduler"
	"github.com/rainman456/Dllm-Demo-Saros/internal/staking"
	"github.com/rainman456/Dllm-Demo-Saros/internal/state"
	"github.com/rainman456/Dllm-Demo-Saros/internal/stoploss"
	"github.com/rainman456/Dllm-Demo-Saros/internal/types"
)

const walletA = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"

type fakeSubscriptions struct {
	handles  map[scheduler.Handle]scheduler.Key
	interval time.Duration
}

func (f *fakeSubscriptions) SubscribeWithInterval(wallet, pool string, interval time.Duration) (scheduler.Handle, error) {
	if err := types.ValidateAddress(wallet); err != nil {
		return "", err
	}
	f.interval = interval
	h := scheduler.Handle(fmt.Sprintf("h-%d", len(f.handles)+1))
	f.handles[h] = scheduler.Key{Wallet: wallet, Pool: pool}
	return h, nil
}

func (f *fakeSubscriptions) Unsubscribe(h scheduler.Handle) error {
	if _, ok := f.handles[h]; !ok {
		return scheduler.ErrUnknownSubscription
	}
	delete(f.handles, h)
	return nil
}

func (f *fakeSubscriptions) Subscriptions() []scheduler.SubscriptionStatus {
	out := make([]scheduler.SubscriptionStatus, 0, len(f.handles))
	for _, k := range f.handles {
		out = append(out, scheduler.SubscriptionStatus{Key: k, RefCount: 1})
	}
	return out
}

type testServer struct {
	handler http.Handler
	store   *state.MemoryStore
	subs    *fakeSubscriptions
	tracker *analyzer.Tracker
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		store:   state.NewMemoryStore(0),
		subs:    &fakeSubscriptions{handles: map[scheduler.Handle]scheduler.Key{}},
		tracker: analyzer.NewTracker(0),
	}
	ws := NewWebServer(Config{
		Events:            ts.store,
		Subscriptions:     ts.subs,
		StopLoss:          stoploss.NewMonitor(nil, ts.store),
		Staking:           staking.NewManager(nil),
		Volatility:        ts.tracker,
		DashboardInterval: 15 * time.Second,
	})
	ts.handler = ws.Handler()
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, "GET", "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "OK", body["status"])
}

func TestEventsAndSummary(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, ts.store.SaveEvent(ctx, types.RebalanceEvent{Type: types.EventRebalance, Message: "out of range"}))
	require.NoError(t, ts.store.SaveEvent(ctx, types.RebalanceEvent{Type: types.EventAlert, Message: "indexer down"}))

	rec := ts.do(t, "GET", "/api/events?limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var events struct {
		Events []types.RebalanceEvent `json:"events"`
		Count  int                    `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	assert.Equal(t, 1, events.Count)

	assert.Equal(t, http.StatusBadRequest, ts.do(t, "GET", "/api/events?limit=abc", "").Code)

	rec = ts.do(t, "GET", "/api/summary", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var summary types.EventSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 1, summary.Counts[types.EventAlert])
}

func TestSubscriptionLifecycle(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, "POST", "/api/subscriptions", fmt.Sprintf(`{"wallet":%q}`, walletA))
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, 15*time.Second, ts.subs.interval)

	rec = ts.do(t, "GET", "/api/subscriptions", "")
	assert.Contains(t, rec.Body.String(), walletA)

	assert.Equal(t, http.StatusNoContent, ts.do(t, "DELETE", "/api/subscriptions/"+created.ID, "").Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, "DELETE", "/api/subscriptions/"+created.ID, "").Code)

	assert.Equal(t, http.StatusBadRequest, ts.do(t, "POST", "/api/subscriptions", `{"wallet":"nope!"}`).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, "POST", "/api/subscriptions", `{`).Code)
}

func TestStopLossEndpoints(t *testing.T) {
	ts := newTestServer(t)
	path := "/api/positions/pos-1/stop-loss"

	assert.Equal(t, http.StatusNotFound, ts.do(t, "GET", path, "").Code)

	rec := ts.do(t, "PUT", path, `{"enabled":true,"percentage":15,"target_token":"stable"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, "GET", path, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var cfg types.StopLossConfig
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cfg))
	assert.Equal(t, types.StopLossConfig{Enabled: true, Percentage: 15, TargetToken: types.TargetTokenStable}, cfg)

	stored, err := ts.store.LoadStopLossConfigs(context.Background())
	require.NoError(t, err)
	assert.Contains(t, stored, "pos-1")

	assert.Equal(t, http.StatusBadRequest, ts.do(t, "PUT", path, `{"enabled":true,"percentage":150,"target_token":"X"}`).Code)

	assert.Equal(t, http.StatusNoContent, ts.do(t, "DELETE", path, "").Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, "GET", path, "").Code)
}

func TestVolatilityEndpoints(t *testing.T) {
	ts := newTestServer(t)
	assert.Equal(t, http.StatusNotFound, ts.do(t, "GET", "/api/volatility/pool-a", "").Code)

	ts.tracker.Record("pool-a", types.VolatilityMetrics{SampleCount: 10, Mean: 100, StdDev: 3, VolatilityRatio: 0.03})

	rec := ts.do(t, "GET", "/api/volatility/pool-a", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var report types.VolatilityReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, types.RiskMedium, report.Risk)

	rec = ts.do(t, "GET", "/api/volatility", "")
	assert.Contains(t, rec.Body.String(), "pool-a")
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, "GET", "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestStakingEndpoints(t *testing.T) {
	ts := newTestServer(t)
	path := "/api/positions/pos-1/staking"

	assert.Equal(t, http.StatusNotFound, ts.do(t, "GET", path, "").Code)

	rec := ts.do(t, "PUT", path, `{"enabled":true,"auto_stake":true,"min_liquidity":"5000"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, "GET", path, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var cfg types.StakingConfig
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cfg))
	assert.True(t, cfg.AutoStake)
	assert.Equal(t, "5000", cfg.MinLiquidity.String())

	assert.Equal(t, http.StatusBadRequest, ts.do(t, "PUT", path, `{"enabled":true,"min_liquidity":"-1"}`).Code)
}

func TestStartAndShutdown(t *testing.T) {
	ws := NewWebServer(Config{Port: "0", Events: state.NewMemoryStore(0)})

	errs := make(chan error, 1)
	go func() { errs <- ws.Start() }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, ws.Shutdown(ctx))

	select {
	case err := <-errs:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after Shutdown")
	}
}
