package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rainman456/Dllm-Demo-Saros/internal/datafetcher"
	"github.com/rainman456/Dllm-Demo-Saros/internal/logger"
	"github.com/rainman456/Dllm-Demo-Saros/internal/metrics"
	"github.com/rainman456/Dllm-Demo-Saros/internal/planner"
	"github.com/rainman456/Dllm-Demo-Saros/internal/stoploss"
	"github.com/rainman456/Dllm-Demo-Saros/internal/types"
	"github.com/rainman456/Dllm-Demo-Saros/internal/vault"
)

const (
	DEFAULT_INTERVAL        = 15 * time.Minute
	DEFAULT_MAX_CONCURRENCY = 8
)

var (
	ErrUnknownSubscription = errors.New("unknown subscription handle")
	ErrClosed              = errors.New("scheduler is closed")
)

// EventStore persists emitted events.
type EventStore interface {
	SaveEvent(ctx context.Context, event types.RebalanceEvent) error
}

// Notifier delivers emitted events to operators.
type Notifier interface {
	Notify(ctx context.Context, event types.RebalanceEvent) error
}

// StakingHook runs after a successful rebalance.
type StakingHook interface {
	AfterRebalance(ctx context.Context, position types.Position, newRange types.BinRange) error
}

// VolatilityRecorder receives the metrics computed for each pool on every tick.
type VolatilityRecorder interface {
	Record(pool string, metrics types.VolatilityMetrics)
}

// Key identifies one polling loop. An empty Pool means every pool of the wallet.
type Key struct {
	Wallet string `json:"wallet"`
	Pool   string `json:"pool,omitempty"`
}

func (k Key) String() string {
	if k.Pool == "" {
		return k.Wallet + "/*"
	}
	return k.Wallet + "/" + k.Pool
}

// Handle is returned by Subscribe and released by Unsubscribe. Every call gets a distinct handle.
type Handle string

// Config holds the collaborators and settings for a Scheduler.
type Config struct {
	Provider datafetcher.Provider
	Executor vault.Executor
	Events   EventStore
	Engine   *planner.Engine

	// Optional collaborators.
	Notifier Notifier
	StopLoss *stoploss.Monitor
	Staking  StakingHook
	Tracker  VolatilityRecorder
	OnTick   func(TickReport)

	Interval         time.Duration
	AutoExecute      bool
	SampleMarginBins int
	MaxConcurrency   int
}

// SubscriptionStatus describes one running loop.
type SubscriptionStatus struct {
	Key       Key           `json:"key"`
	RefCount  int           `json:"ref_count"`
	Interval  time.Duration `json:"interval"`
	Since     time.Time     `json:"since"`
	LastTick  time.Time     `json:"last_tick,omitempty"`
	Ticks     int           `json:"ticks"`
	LastError string        `json:"last_error,omitempty"`
}

type subscription struct {
	key      Key
	interval time.Duration
	refs     map[Handle]struct{}
	stop     chan struct{}
	done     chan struct{} // closed once the loop and its last tick have returned
	prev     <-chan struct{}
	since    time.Time
	lastTick time.Time
	ticks    int
	lastErr  error
}

// Scheduler runs one polling loop per distinct (wallet, pool) key and dispatches the
// engine's decisions to the event store, the notifier and the executor.
type Scheduler struct {
	logger zerolog.Logger
	cfg    Config
	now    func() time.Time

	baseCtx    context.Context
	baseCancel context.CancelFunc
	wg         sync.WaitGroup
	closeOnce  sync.Once

	mu      sync.Mutex
	closed  bool
	subs    map[Key]*subscription
	handles map[Handle]Key
	// draining holds stopped loops whose last tick may still be running.
	draining map[Key]*subscription
}

// New creates a Scheduler with dependency injection.
func New(cfg Config) (*Scheduler, error) {
	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("scheduler configuration validation failed: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		logger:     logger.GetForComponent("scheduler"),
		cfg:        cfg,
		now:        time.Now,
		baseCtx:    ctx,
		baseCancel: cancel,
		subs:       make(map[Key]*subscription),
		handles:    make(map[Handle]Key),
		draining:   make(map[Key]*subscription),
	}

	s.logger.Info().
		Dur("interval", cfg.Interval).
		Bool("autoExecute", cfg.AutoExecute).
		Int("sampleMarginBins", cfg.SampleMarginBins).
		Int("maxConcurrency", cfg.MaxConcurrency).
		Msg("Scheduler created")
	return s, nil
}

func validateConfig(cfg *Config) error {
	if cfg.Provider == nil {
		return errors.Join(types.ErrConfigurationMissing, errors.New("data provider cannot be nil"))
	}
	if cfg.Events == nil {
		return errors.Join(types.ErrConfigurationMissing, errors.New("event store cannot be nil"))
	}
	if cfg.Engine == nil {
		return errors.Join(types.ErrConfigurationMissing, errors.New("decision engine cannot be nil"))
	}
	if cfg.AutoExecute && cfg.Executor == nil {
		return errors.Join(types.ErrConfigurationMissing, errors.New("auto-execute requires an executor"))
	}
	if cfg.SampleMarginBins < 0 {
		return errors.Join(types.ErrInvalidInput, errors.New("sample margin cannot be negative"))
	}
	if cfg.StopLoss == nil {
		cfg.StopLoss = stoploss.NewMonitor(cfg.Executor, nil)
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DEFAULT_INTERVAL
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = DEFAULT_MAX_CONCURRENCY
	}
	return nil
}

// Subscribe starts monitoring (wallet, poolFilter) at the default interval, or adds a reference
// to the loop already running for it.
func (s *Scheduler) Subscribe(wallet, poolFilter string) (Handle, error) {
	return s.SubscribeWithInterval(wallet, poolFilter, s.cfg.Interval)
}

// SubscribeWithInterval is Subscribe with an explicit polling interval. An existing loop keeps
// the interval it was started with.
func (s *Scheduler) SubscribeWithInterval(wallet, poolFilter string, interval time.Duration) (Handle, error) {
	if err := types.ValidateAddress(wallet); err != nil {
		return "", fmt.Errorf("wallet: %w", err)
	}
	if poolFilter != "" {
		if err := types.ValidateAddress(poolFilter); err != nil {
			return "", fmt.Errorf("pool: %w", err)
		}
	}
	if interval <= 0 {
		interval = s.cfg.Interval
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrClosed
	}

	key := Key{Wallet: wallet, Pool: poolFilter}
	handle := Handle(uuid.New().String())
	s.handles[handle] = key

	if sub, ok := s.subs[key]; ok {
		sub.refs[handle] = struct{}{}
		s.logger.Debug().Str("key", key.String()).Int("refCount", len(sub.refs)).Msg("Joined existing subscription")
		return handle, nil
	}

	sub := &subscription{
		key:      key,
		interval: interval,
		refs:     map[Handle]struct{}{handle: {}},
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		since:    s.now().UTC(),
	}
	if old, ok := s.draining[key]; ok {
		sub.prev = old.done
	}
	s.subs[key] = sub
	metrics.ActiveSubscriptions.Inc()

	s.wg.Add(1)
	go s.runLoop(sub)

	s.logger.Info().Str("key", key.String()).Dur("interval", interval).Msg("Started monitoring loop")
	return handle, nil
}

// Unsubscribe releases a handle. When the last handle of a key is released its loop stops;
// a tick already in flight still completes.
func (s *Scheduler) Unsubscribe(handle Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.handles[handle]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSubscription, handle)
	}
	delete(s.handles, handle)

	sub := s.subs[key]
	delete(sub.refs, handle)
	if len(sub.refs) > 0 {
		return nil
	}

	close(sub.stop)
	delete(s.subs, key)
	s.draining[key] = sub
	metrics.ActiveSubscriptions.Dec()
	s.logger.Info().Str("key", key.String()).Msg("Stopped monitoring loop")
	return nil
}

// RefCount returns the number of live handles for key.
func (s *Scheduler) RefCount(key Key) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub, ok := s.subs[key]; ok {
		return len(sub.refs)
	}
	return 0
}

// Subscriptions lists the running loops ordered by key.
func (s *Scheduler) Subscriptions() []SubscriptionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]SubscriptionStatus, 0, len(s.subs))
	for _, sub := range s.subs {
		st := SubscriptionStatus{
			Key:      sub.key,
			RefCount: len(sub.refs),
			Interval: sub.interval,
			Since:    sub.since,
			LastTick: sub.lastTick,
			Ticks:    sub.ticks,
		}
		if sub.lastErr != nil {
			st.LastError = sub.lastErr.Error()
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.String() < out[j].Key.String() })
	return out
}

// Close stops every loop and waits for in-flight ticks to return. Ticks still running see
// their context cancelled, but events for actions they already submitted are still saved.
func (s *Scheduler) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		for key, sub := range s.subs {
			close(sub.stop)
			delete(s.subs, key)
			metrics.ActiveSubscriptions.Dec()
		}
		s.handles = make(map[Handle]Key)
		s.mu.Unlock()

		s.baseCancel()
		s.wg.Wait()
		s.logger.Info().Msg("Scheduler closed")
	})
}

// runLoop ticks once immediately, then on every interval until the subscription stops.
// A loop restarted for a key waits for the previous loop's tick so a key never has two
// ticks in flight.
func (s *Scheduler) runLoop(sub *subscription) {
	defer s.wg.Done()
	defer s.finishLoop(sub)

	if sub.prev != nil {
		select {
		case <-sub.prev:
		case <-sub.stop:
			return
		case <-s.baseCtx.Done():
			return
		}
	}

	s.tickSubscription(sub)

	ticker := time.NewTicker(sub.interval)
	defer ticker.Stop()

	for {
		select {
		case <-sub.stop:
			return
		case <-s.baseCtx.Done():
			return
		case <-ticker.C:
			select {
			case <-sub.stop:
				return
			default:
			}
			s.tickSubscription(sub)
		}
	}
}

func (s *Scheduler) finishLoop(sub *subscription) {
	if sub.prev != nil {
		<-sub.prev
	}
	s.mu.Lock()
	if s.draining[sub.key] == sub {
		delete(s.draining, sub.key)
	}
	s.mu.Unlock()
	close(sub.done)
}

func (s *Scheduler) tickSubscription(sub *subscription) {
	report := s.RunTick(s.baseCtx, sub.key)

	s.mu.Lock()
	sub.lastTick = report.Started
	sub.ticks++
	sub.lastErr = report.Err
	s.mu.Unlock()
}
