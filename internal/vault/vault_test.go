package vault

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rainman456/Dllm-Demo-Saros/internal/types"
)

var testPosition = types.Position{
	PositionID:  "pos-1",
	Owner:       "walletA",
	PoolAddress: "pool-a",
	LowerBin:    8820,
	UpperBin:    8924,
	CurrentBin:  9000,
}

func TestPaperExecutorRecordsActions(t *testing.T) {
	ctx := context.Background()
	p := NewPaperExecutor()

	res, err := p.SubmitRebalance(ctx, testPosition, types.BinRange{Lower: 8950, Upper: 9050})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Contains(t, res.TxRef, "paper-")

	_, err = p.SubmitStopLossExit(ctx, testPosition, types.TargetTokenStable)
	require.NoError(t, err)
	_, err = p.StakePosition(ctx, testPosition)
	require.NoError(t, err)

	actions := p.Actions()
	require.Len(t, actions, 3)
	assert.Equal(t, ActionRebalance, actions[0].Type)
	assert.Equal(t, types.BinRange{Lower: 8950, Upper: 9050}, *actions[0].NewRange)
	assert.Equal(t, types.TargetTokenStable, actions[1].TargetToken)
	assert.Equal(t, ActionStake, actions[2].Type)
}

func TestPaperExecutorForcedFailure(t *testing.T) {
	ctx := context.Background()
	p := NewPaperExecutor()
	p.FailPosition("pos-1", errors.New("insufficient SOL for fees"))

	res, err := p.SubmitRebalance(ctx, testPosition, types.BinRange{Lower: 1, Upper: 2})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "insufficient SOL for fees", res.ErrorMessage)
	assert.Empty(t, p.Actions())

	p.FailPosition("pos-1", nil)
	res, err = p.SubmitRebalance(ctx, testPosition, types.BinRange{Lower: 1, Upper: 2})
	require.NoError(t, err)
	assert.True(t, res.Success)

	_, err = p.SubmitRebalance(ctx, testPosition, types.BinRange{Lower: 3, Upper: 2})
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestRemoteExecutor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req submitRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		switch r.URL.Path {
		case "/rebalance":
			assert.Equal(t, ActionRebalance, req.Action)
			assert.Equal(t, types.BinRange{Lower: 8950, Upper: 9050}, *req.NewRange)
			json.NewEncoder(w).Encode(submitResponse{TxRef: "sig-1", Success: true})
		case "/stop-loss-exit":
			assert.Equal(t, types.TargetTokenY, req.TargetToken)
			json.NewEncoder(w).Encode(submitResponse{Success: false, Error: "slippage exceeded"})
		case "/stake":
			http.Error(w, "boom", http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	e, err := NewRemoteExecutor(srv.URL, nil)
	require.NoError(t, err)
	ctx := context.Background()

	res, err := e.SubmitRebalance(ctx, testPosition, types.BinRange{Lower: 8950, Upper: 9050})
	require.NoError(t, err)
	assert.Equal(t, &types.TransactionResult{TxRef: "sig-1", Success: true}, res)

	res, err = e.SubmitStopLossExit(ctx, testPosition, types.TargetTokenY)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "slippage exceeded", res.ErrorMessage)

	_, err = e.StakePosition(ctx, testPosition)
	assert.ErrorIs(t, err, ErrTransactionFailed)
	assert.Contains(t, err.Error(), "500")
}

func TestNewRemoteExecutorValidation(t *testing.T) {
	_, err := NewRemoteExecutor("", nil)
	assert.ErrorIs(t, err, types.ErrConfigurationMissing)
}
