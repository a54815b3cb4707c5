package vault

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/rainman456/Dllm-Demo-Saros/internal/logger"
	"github.com/rainman456/Dllm-Demo-Saros/internal/types"
)

var (
	ErrInvalidResponse   = errors.New("signer response is invalid")
	ErrTransactionFailed = errors.New("transaction execution failed")
)

// RemoteExecutor forwards actions to an external signing service over HTTP.
// Submissions are never retried here: a timed out request may still land on chain,
// and the next scheduler tick re-evaluates the position anyway.
type RemoteExecutor struct {
	logger     zerolog.Logger
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

type submitRequest struct {
	Action      ActionType        `json:"action"`
	PositionID  string            `json:"position_id"`
	Owner       string            `json:"owner"`
	PoolAddress string            `json:"pool_address"`
	OldRange    types.BinRange    `json:"old_range"`
	NewRange    *types.BinRange   `json:"new_range,omitempty"`
	TargetToken types.TargetToken `json:"target_token,omitempty"`
}

type submitResponse struct {
	TxRef   string `json:"tx_ref"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// NewRemoteExecutor creates an executor for the signer at baseURL. httpClient may be nil.
func NewRemoteExecutor(baseURL string, httpClient *http.Client) (*RemoteExecutor, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.Join(types.ErrConfigurationMissing, errors.New("executor base URL is empty"))
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, errors.Join(types.ErrInvalidInput, fmt.Errorf("executor base URL: %w", err))
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}

	e := &RemoteExecutor{
		logger:     logger.GetForComponent("remote_executor"),
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
	e.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "executor",
		Timeout: time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			e.logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state changed")
		},
	})
	return e, nil
}

// SubmitRebalance implements Executor.
func (e *RemoteExecutor) SubmitRebalance(ctx context.Context, position types.Position, newRange types.BinRange) (*types.TransactionResult, error) {
	r := newRange
	return e.submit(ctx, "/rebalance", submitRequest{
		Action: ActionRebalance, PositionID: position.PositionID, Owner: position.Owner,
		PoolAddress: position.PoolAddress, OldRange: position.Range(), NewRange: &r,
	})
}

// SubmitStopLossExit implements Executor.
func (e *RemoteExecutor) SubmitStopLossExit(ctx context.Context, position types.Position, target types.TargetToken) (*types.TransactionResult, error) {
	return e.submit(ctx, "/stop-loss-exit", submitRequest{
		Action: ActionStopLossExit, PositionID: position.PositionID, Owner: position.Owner,
		PoolAddress: position.PoolAddress, OldRange: position.Range(), TargetToken: target,
	})
}

// StakePosition implements Staker.
func (e *RemoteExecutor) StakePosition(ctx context.Context, position types.Position) (*types.TransactionResult, error) {
	return e.submit(ctx, "/stake", submitRequest{
		Action: ActionStake, PositionID: position.PositionID, Owner: position.Owner,
		PoolAddress: position.PoolAddress, OldRange: position.Range(),
	})
}

func (e *RemoteExecutor) submit(ctx context.Context, path string, body submitRequest) (*types.TransactionResult, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s request: %w", body.Action, err)
	}

	out, err := e.breaker.Execute(func() (interface{}, error) {
		return e.post(ctx, path, payload)
	})
	if err != nil {
		e.logger.Error().Err(err).Str("action", string(body.Action)).Str("position_id", body.PositionID).Msg("Submission failed")
		return nil, fmt.Errorf("%w: %w", ErrTransactionFailed, err)
	}

	resp := out.(*submitResponse)
	result := &types.TransactionResult{TxRef: resp.TxRef, Success: resp.Success, ErrorMessage: resp.Error}
	e.logger.Info().
		Str("action", string(body.Action)).
		Str("position_id", body.PositionID).
		Str("tx_ref", result.TxRef).
		Bool("success", result.Success).
		Msg("Submission completed")
	return result, nil
}

func (e *RemoteExecutor) post(ctx context.Context, path string, payload []byte) (*submitResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read signer response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("signer returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out submitResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}
	if out.Success && out.TxRef == "" {
		return nil, fmt.Errorf("%w: success without a transaction reference", ErrInvalidResponse)
	}
	return &out, nil
}
