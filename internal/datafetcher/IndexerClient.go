/*
This file fetches DLMM positions and bin arrays from a JSON indexer API.

Requests are rate limited, retried with a linear backoff and guarded by a circuit breaker so
that an unhealthy indexer fails fast instead of stalling every scheduler tick.
*/

package datafetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/rainman456/Dllm-Demo-Saros/internal/logger"
	"github.com/rainman456/Dllm-Demo-Saros/internal/rangemath"
	"github.com/rainman456/Dllm-Demo-Saros/internal/types"
)

var ErrInvalidPositionData = errors.New("invalid position data received")
var ErrInvalidBinData = errors.New("invalid bin data received")

const (
	MAX_RETRIES     = 3
	TIMEOUT_SECONDS = 15
	MAX_BIN_SPAN    = 2000 // Largest bin window requested in one call
)

// IndexerConfig configures an IndexerClient.
type IndexerConfig struct {
	BaseURL    string
	APIKey     string
	RPS        float64 // Requests per second, <= 0 disables limiting
	HTTPClient *http.Client
	RetryDelay time.Duration // Base backoff, multiplied by the attempt number
}

// IndexerClient is the live Provider.
type IndexerClient struct {
	logger     zerolog.Logger
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	retryDelay time.Duration
}

// statusError carries a non-200 status so the retry loop can skip client errors.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("indexer returned status %d: %s", e.code, e.body)
}

// NewIndexerClient validates cfg and creates the client.
func NewIndexerClient(cfg IndexerConfig) (*IndexerClient, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.Join(types.ErrConfigurationMissing, errors.New("indexer base URL is empty"))
	}
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, errors.Join(types.ErrInvalidInput, fmt.Errorf("indexer base URL: %w", err))
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: TIMEOUT_SECONDS * time.Second}
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RPS), max(1, int(math.Ceil(cfg.RPS))))
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = time.Second
	}

	c := &IndexerClient{
		logger:     logger.GetForComponent("indexer_client"),
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		limiter:    limiter,
		retryDelay: retryDelay,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "indexer",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			// Cancelled callers and 4xx responses say nothing about indexer health.
			var se *statusError
			return err == nil || errors.Is(err, context.Canceled) || (errors.As(err, &se) && se.code < 500 && se.code != http.StatusTooManyRequests)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state changed")
		},
	})
	return c, nil
}

type indexerToken struct {
	Symbol   string `json:"symbol"`
	Mint     string `json:"mint"`
	Decimals int    `json:"decimals"`
}

type indexerPosition struct {
	PositionID  string       `json:"position_id"`
	Owner       string       `json:"owner"`
	PoolAddress string       `json:"pool_address"`
	PoolPair    string       `json:"pool_pair"`
	LowerBinID  int          `json:"lower_bin_id"`
	UpperBinID  int          `json:"upper_bin_id"`
	ActiveBinID int          `json:"active_bin_id"`
	BinStep     int          `json:"bin_step"`
	LiquidityX  string       `json:"liquidity_x"`
	LiquidityY  string       `json:"liquidity_y"`
	FeesX       string       `json:"fees_x"`
	FeesY       string       `json:"fees_y"`
	TokenX      indexerToken `json:"token_x"`
	TokenY      indexerToken `json:"token_y"`
}

type positionsResponse struct {
	Positions []indexerPosition `json:"positions"`
}

type binsResponse struct {
	BinStep int `json:"bin_step"`
	Bins    []struct {
		BinID     int     `json:"bin_id"`
		Price     float64 `json:"price"`
		Liquidity float64 `json:"liquidity"`
	} `json:"bins"`
}

// FetchPositions implements Provider.
func (c *IndexerClient) FetchPositions(ctx context.Context, wallet, poolFilter string) ([]types.Position, error) {
	if wallet == "" {
		return nil, errors.Join(types.ErrInvalidInput, errors.New("wallet is empty"))
	}
	query := url.Values{}
	if poolFilter != "" {
		query.Set("pool", poolFilter)
	}

	var resp positionsResponse
	if err := c.getJSON(ctx, "/wallets/"+url.PathEscape(wallet)+"/positions", query, &resp); err != nil {
		return nil, fmt.Errorf("%w: positions for %s: %w", types.ErrDataUnavailable, wallet, err)
	}

	positions := make([]types.Position, 0, len(resp.Positions))
	for i, raw := range resp.Positions {
		pos, err := convertPosition(raw)
		if err != nil {
			c.logger.Error().Err(err).Str("wallet", wallet).Int("index", i).Msg("Invalid position in indexer response")
			return nil, fmt.Errorf("%w: position %d for %s: %w", types.ErrDataUnavailable, i, wallet, err)
		}
		if poolFilter != "" && pos.PoolAddress != poolFilter {
			continue
		}
		if pos.Owner == "" {
			pos.Owner = wallet
		}
		positions = append(positions, pos)
	}

	c.logger.Debug().Str("wallet", wallet).Str("pool", poolFilter).Int("positions", len(positions)).Msg("Fetched positions")
	return positions, nil
}

// FetchBinSamples implements Provider. Bins without a price are priced from the pool's bin step.
func (c *IndexerClient) FetchBinSamples(ctx context.Context, poolAddress string, fromBin, toBin int) ([]types.BinSample, error) {
	if poolAddress == "" {
		return nil, errors.Join(types.ErrInvalidInput, errors.New("pool address is empty"))
	}
	if fromBin > toBin || toBin-fromBin > MAX_BIN_SPAN {
		return nil, errors.Join(types.ErrInvalidInput, fmt.Errorf("bin window [%d, %d] is invalid", fromBin, toBin))
	}

	query := url.Values{}
	query.Set("from", strconv.Itoa(fromBin))
	query.Set("to", strconv.Itoa(toBin))

	var resp binsResponse
	if err := c.getJSON(ctx, "/pools/"+url.PathEscape(poolAddress)+"/bins", query, &resp); err != nil {
		return nil, fmt.Errorf("%w: bins for %s: %w", types.ErrDataUnavailable, poolAddress, err)
	}

	samples := make([]types.BinSample, 0, len(resp.Bins))
	for _, b := range resp.Bins {
		if b.BinID < fromBin || b.BinID > toBin {
			continue
		}
		price := b.Price
		if price == 0 {
			p, err := rangemath.PriceFromBinID(b.BinID, resp.BinStep)
			if err != nil {
				return nil, fmt.Errorf("%w: %w: bin %d has no price: %w", types.ErrDataUnavailable, ErrInvalidBinData, b.BinID, err)
			}
			price = p
		}
		if math.IsNaN(price) || math.IsInf(price, 0) || price < 0 {
			return nil, fmt.Errorf("%w: %w: bin %d price %v", types.ErrDataUnavailable, ErrInvalidBinData, b.BinID, price)
		}
		samples = append(samples, types.BinSample{BinID: b.BinID, Price: price, Liquidity: b.Liquidity})
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i].BinID < samples[j].BinID })
	return samples, nil
}

func (c *IndexerClient) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var lastErr error
	for attempt := 1; attempt <= MAX_RETRIES; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		_, err := c.breaker.Execute(func() (interface{}, error) {
			return nil, c.doRequest(ctx, endpoint, out)
		})
		if err == nil {
			return nil
		}
		lastErr = err

		var se *statusError
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) ||
			ctx.Err() != nil || (errors.As(err, &se) && se.code < 500 && se.code != http.StatusTooManyRequests) {
			break
		}

		c.logger.Warn().
			Err(err).
			Str("path", path).
			Int("attempt", attempt).
			Int("maxRetries", MAX_RETRIES).
			Msg("Indexer request failed, will retry if attempts remain")

		if attempt < MAX_RETRIES {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * c.retryDelay):
			}
		}
	}
	return lastErr
}

func (c *IndexerClient) doRequest(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(body))}
	}
	if len(body) == 0 {
		return errors.New("empty response body")
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse JSON response: %w", err)
	}
	return nil
}

func convertPosition(raw indexerPosition) (types.Position, error) {
	if raw.PositionID == "" || raw.PoolAddress == "" {
		return types.Position{}, fmt.Errorf("%w: missing position id or pool address", ErrInvalidPositionData)
	}
	if raw.LowerBinID > raw.UpperBinID {
		return types.Position{}, fmt.Errorf("%w: lower bin %d above upper bin %d", ErrInvalidPositionData, raw.LowerBinID, raw.UpperBinID)
	}
	if raw.BinStep <= 0 {
		return types.Position{}, fmt.Errorf("%w: bin step %d", ErrInvalidPositionData, raw.BinStep)
	}

	amounts := make([]sdkmath.Int, 4)
	for i, s := range []string{raw.LiquidityX, raw.LiquidityY, raw.FeesX, raw.FeesY} {
		amount, err := parseAmount(s)
		if err != nil {
			return types.Position{}, err
		}
		amounts[i] = amount
	}

	pair := raw.PoolPair
	if pair == "" && raw.TokenX.Symbol != "" && raw.TokenY.Symbol != "" {
		pair = raw.TokenX.Symbol + "/" + raw.TokenY.Symbol
	}

	return types.Position{
		PositionID:  raw.PositionID,
		Owner:       raw.Owner,
		PoolAddress: raw.PoolAddress,
		PoolPair:    pair,
		LowerBin:    raw.LowerBinID,
		UpperBin:    raw.UpperBinID,
		CurrentBin:  raw.ActiveBinID,
		BinStep:     raw.BinStep,
		LiquidityX:  amounts[0],
		LiquidityY:  amounts[1],
		FeesEarnedX: amounts[2],
		FeesEarnedY: amounts[3],
		TokenX:      types.TokenInfo{Symbol: raw.TokenX.Symbol, Mint: raw.TokenX.Mint, Decimals: raw.TokenX.Decimals},
		TokenY:      types.TokenInfo{Symbol: raw.TokenY.Symbol, Mint: raw.TokenY.Mint, Decimals: raw.TokenY.Decimals},
	}, nil
}

func parseAmount(s string) (sdkmath.Int, error) {
	if s == "" {
		return sdkmath.ZeroInt(), nil
	}
	amount, ok := sdkmath.NewIntFromString(s)
	if !ok || amount.IsNegative() {
		return sdkmath.Int{}, fmt.Errorf("%w: amount %q", ErrInvalidPositionData, s)
	}
	return amount, nil
}
