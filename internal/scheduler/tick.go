package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rainman456/Dllm-Demo-Saros/internal/metrics"
	"github.com/rainman456/Dllm-Demo-Saros/internal/types"
	"github.com/rainman456/Dllm-Demo-Saros/internal/utils"
	"github.com/rainman456/Dllm-Demo-Saros/internal/vault"
)

// PositionDecision is the engine output for one position in a tick.
type PositionDecision struct {
	Position types.Position          `json:"position"`
	Decision types.Decision          `json:"decision"`
	Metrics  types.VolatilityMetrics `json:"metrics"`
}

// TickReport summarises one tick.
type TickReport struct {
	TickID    string                 `json:"tick_id"`
	Key       Key                    `json:"key"`
	Started   time.Time              `json:"started"`
	Duration  time.Duration          `json:"duration"`
	Decisions []PositionDecision     `json:"decisions"`
	Events    []types.RebalanceEvent `json:"events"`
	Err       error                  `json:"-"`
}

// RunTick fetches the positions for key once, evaluates them concurrently and dispatches the
// resulting decisions one at a time. Every event is saved before RunTick returns.
func (s *Scheduler) RunTick(ctx context.Context, key Key) TickReport {
	report := TickReport{
		TickID:  uuid.New().String(),
		Key:     key,
		Started: s.now().UTC(),
	}
	tickLogger := s.logger.With().
		Str("tick_id", report.TickID).
		Str("wallet", key.Wallet).
		Str("pool", key.Pool).
		Logger()

	defer func() {
		report.Duration = time.Since(report.Started)
		metrics.Ticks.Inc()
		metrics.TickDuration.Observe(report.Duration.Seconds())
		if s.cfg.OnTick != nil {
			s.cfg.OnTick(report)
		}
	}()

	tickLogger.Debug().Msg("--- Starting tick ---")

	positions, err := s.cfg.Provider.FetchPositions(ctx, key.Wallet, key.Pool)
	if err != nil {
		metrics.ProviderErrors.WithLabelValues("fetch_positions").Inc()
		tickLogger.Error().Err(err).Msg("Tick aborted: failed to fetch positions")
		report.Err = fmt.Errorf("fetch positions for %s: %w", key, err)
		s.emit(ctx, tickLogger, &report, types.RebalanceEvent{
			Type:    types.EventAlert,
			Message: fmt.Sprintf("failed to fetch positions for wallet %s: %v", key.Wallet, err),
		})
		return report
	}

	report.Decisions = s.evaluate(ctx, tickLogger, positions)
	s.recordVolatility(report.Decisions)

	for _, pd := range report.Decisions {
		metrics.Decisions.WithLabelValues(string(pd.Decision.Kind())).Inc()
		s.dispatch(ctx, tickLogger, &report, pd)
	}

	tickLogger.Info().
		Int("positions", len(positions)).
		Int("events", len(report.Events)).
		Dur("elapsed", time.Since(report.Started)).
		Msg("--- Tick completed ---")
	return report
}

// evaluate runs the engine for every position with bounded concurrency. A failed sample fetch
// degrades to an empty sample set for that position only.
func (s *Scheduler) evaluate(ctx context.Context, tickLogger zerolog.Logger, positions []types.Position) []PositionDecision {
	results := make([]PositionDecision, len(positions))

	var g errgroup.Group
	g.SetLimit(s.cfg.MaxConcurrency)
	for i, pos := range positions {
		i, pos := i, pos
		g.Go(func() error {
			from := pos.LowerBin - s.cfg.SampleMarginBins
			to := pos.UpperBin + s.cfg.SampleMarginBins
			samples, err := s.cfg.Provider.FetchBinSamples(ctx, pos.PoolAddress, from, to)
			if err != nil {
				metrics.ProviderErrors.WithLabelValues("fetch_bin_samples").Inc()
				tickLogger.Warn().Err(err).Str("position_id", pos.PositionID).Msg("Bin samples unavailable, evaluating without volatility signal")
				samples = nil
			}

			decision, vm := s.cfg.Engine.EvaluateWithMetrics(pos, samples, s.cfg.StopLoss.Lookup(pos.PositionID))
			results[i] = PositionDecision{Position: pos, Decision: decision, Metrics: vm}
			metrics.PositionsEvaluated.Inc()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// recordVolatility feeds one measurement per pool to the tracker.
func (s *Scheduler) recordVolatility(decisions []PositionDecision) {
	seen := make(map[string]bool)
	for _, pd := range decisions {
		pool := pd.Position.PoolAddress
		if seen[pool] || pd.Metrics.SampleCount < 2 {
			continue
		}
		seen[pool] = true
		metrics.VolatilityRatio.WithLabelValues(pool).Set(pd.Metrics.VolatilityRatio)
		if s.cfg.Tracker != nil {
			s.cfg.Tracker.Record(pool, pd.Metrics)
		}
	}
}

func (s *Scheduler) dispatch(ctx context.Context, tickLogger zerolog.Logger, report *TickReport, pd PositionDecision) {
	pos := pd.Position
	posLogger := tickLogger.With().Str("position_id", pos.PositionID).Str("pool_pair", pos.PoolPair).Logger()

	switch d := pd.Decision.(type) {
	case types.NoAction:
		posLogger.Debug().Str("reason", d.Reason).Float64("volatility", d.VolatilityRatio).Msg("No action")

	case types.Rebalance:
		posLogger.Info().
			Str("reason", d.Reason).
			Str("oldRange", d.OldRange.String()).
			Str("newRange", d.NewRange.String()).
			Float64("volatility", d.VolatilityRatio).
			Msg("Rebalance recommended")
		msg := fmt.Sprintf("%s: %s -> %s (volatility %.4f)", d.Reason, d.OldRange, d.NewRange, d.VolatilityRatio)
		if band, err := s.cfg.Engine.PriceBand(pos, pd.Metrics); err == nil {
			msg += fmt.Sprintf(", price band %s at width %.2f", band, pd.Metrics.RecommendedRangeWidth)
		}
		s.emit(ctx, posLogger, report, positionEvent(types.EventRebalance, pos, msg))
		if s.cfg.AutoExecute {
			s.executeRebalance(ctx, posLogger, report, pos, d)
		}

	case types.StopLossExit:
		posLogger.Warn().Str("reason", d.Reason).Str("targetToken", string(d.TargetToken)).Msg("Stop-loss exit recommended")
		s.emit(ctx, posLogger, report, positionEvent(types.EventAlert, pos,
			fmt.Sprintf("%s; exiting %s holding %s + %s to %s", d.Reason, d.OldRange,
				utils.FormatAmount(pos.LiquidityX, pos.TokenX.Decimals, pos.TokenX.Symbol),
				utils.FormatAmount(pos.LiquidityY, pos.TokenY.Decimals, pos.TokenY.Symbol),
				d.TargetToken)))
		if s.cfg.AutoExecute {
			s.executeExit(ctx, posLogger, report, pos, d)
		}
	}
}

func (s *Scheduler) executeRebalance(ctx context.Context, posLogger zerolog.Logger, report *TickReport, pos types.Position, d types.Rebalance) {
	res, err := s.cfg.Executor.SubmitRebalance(ctx, pos, d.NewRange)
	ok := err == nil && res != nil && res.Success
	metrics.Executions.WithLabelValues(string(vault.ActionRebalance), metrics.Result(ok)).Inc()
	if !ok {
		msg := failureMessage(res, err)
		posLogger.Error().Str("error", msg).Msg("Rebalance execution failed")
		s.emit(ctx, posLogger, report, positionEvent(types.EventAlert, pos, "rebalance failed: "+msg))
		return
	}

	s.emit(ctx, posLogger, report, positionEvent(types.EventSuccess, pos,
		fmt.Sprintf("rebalanced to %s (tx %s)", d.NewRange, res.TxRef)))

	if s.cfg.Staking == nil {
		return
	}
	if err := s.cfg.Staking.AfterRebalance(ctx, pos, d.NewRange); err != nil {
		posLogger.Error().Err(err).Msg("Post-rebalance staking failed")
		s.emit(ctx, posLogger, report, positionEvent(types.EventAlert, pos, "staking after rebalance failed: "+err.Error()))
	}
}

func (s *Scheduler) executeExit(ctx context.Context, posLogger zerolog.Logger, report *TickReport, pos types.Position, d types.StopLossExit) {
	cfg, found := s.cfg.StopLoss.GetStopLoss(pos.PositionID)
	if !found {
		cfg = types.StopLossConfig{Enabled: true, TargetToken: d.TargetToken}
	}
	cfg.TargetToken = d.TargetToken

	result, err := s.cfg.StopLoss.ExecuteExit(ctx, pos, cfg)
	metrics.Executions.WithLabelValues(string(vault.ActionStopLossExit), metrics.Result(err == nil)).Inc()
	if err != nil {
		posLogger.Error().Err(err).Msg("Stop-loss exit failed")
		s.emit(ctx, posLogger, report, positionEvent(types.EventAlert, pos, "stop-loss exit failed: "+err.Error()))
		return
	}
	s.emit(ctx, posLogger, report, positionEvent(types.EventSuccess, pos,
		fmt.Sprintf("exited to %s (tx %s)", result.TargetToken, result.TxRef)))
}

// emit saves the event, then notifies. Store and notifier failures are logged only.
// The save ignores cancellation so an action already submitted during shutdown is
// still recorded.
func (s *Scheduler) emit(ctx context.Context, l zerolog.Logger, report *TickReport, event types.RebalanceEvent) {
	event.ID = uuid.New().String()
	event.Timestamp = s.now().UTC()

	if err := s.cfg.Events.SaveEvent(context.WithoutCancel(ctx), event); err != nil {
		l.Error().Err(err).Str("event_id", event.ID).Msg("Failed to save event")
	}
	if s.cfg.Notifier != nil {
		if err := s.cfg.Notifier.Notify(ctx, event); err != nil {
			l.Warn().Err(err).Str("event_id", event.ID).Msg("Failed to notify")
		}
	}
	report.Events = append(report.Events, event)
}

func positionEvent(t types.EventType, pos types.Position, msg string) types.RebalanceEvent {
	return types.RebalanceEvent{
		PositionID: pos.PositionID,
		Type:       t,
		PoolPair:   pos.PoolPair,
		Message:    msg,
	}
}

func failureMessage(res *types.TransactionResult, err error) string {
	switch {
	case err != nil:
		return err.Error()
	case res == nil:
		return "executor returned no result"
	case res.ErrorMessage != "":
		return res.ErrorMessage
	}
	return "executor reported failure"
}
