package state

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rainman456/Dllm-Demo-Saros/internal/types"
)

// DefaultMemoryCapacity bounds the in-memory event log.
const DefaultMemoryCapacity = 1000

// MemoryStore keeps events and stop-loss configs in process. It is used when no database is configured.
type MemoryStore struct {
	mu       sync.RWMutex
	events   []types.RebalanceEvent // oldest first
	capacity int
	stopLoss map[string]types.StopLossConfig
	now      func() time.Time
}

// NewMemoryStore creates a store holding at most capacity events; capacity <= 0 uses DefaultMemoryCapacity.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &MemoryStore{
		capacity: capacity,
		stopLoss: make(map[string]types.StopLossConfig),
		now:      time.Now,
	}
}

// SaveEvent appends an event, evicting the oldest beyond capacity.
func (m *MemoryStore) SaveEvent(ctx context.Context, event types.RebalanceEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fillEvent(&event, m.now)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	if over := len(m.events) - m.capacity; over > 0 {
		m.events = append([]types.RebalanceEvent(nil), m.events[over:]...)
	}
	return nil
}

// RecentEvents returns the newest events first.
func (m *MemoryStore) RecentEvents(_ context.Context, limit int) ([]types.RebalanceEvent, error) {
	limit = ClampLimit(limit)

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]types.RebalanceEvent, 0, min(limit, len(m.events)))
	for i := len(m.events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.events[i])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

// Summary counts events by type created at or after since.
func (m *MemoryStore) Summary(_ context.Context, since time.Time) (types.EventSummary, error) {
	summary := types.EventSummary{Since: since.UTC(), Counts: make(map[types.EventType]int)}

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.events {
		if e.Timestamp.Before(since) {
			continue
		}
		summary.Counts[e.Type]++
		summary.Total++
	}
	return summary, nil
}

// DailySummary is Summary over the last SummaryWindow.
func (m *MemoryStore) DailySummary(ctx context.Context) (types.EventSummary, error) {
	return m.Summary(ctx, m.now().Add(-SummaryWindow))
}

func (m *MemoryStore) SaveStopLossConfig(_ context.Context, positionID string, cfg types.StopLossConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLoss[positionID] = cfg
	return nil
}

func (m *MemoryStore) DeleteStopLossConfig(_ context.Context, positionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.stopLoss, positionID)
	return nil
}

func (m *MemoryStore) LoadStopLossConfigs(_ context.Context) (map[string]types.StopLossConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]types.StopLossConfig, len(m.stopLoss))
	for k, v := range m.stopLoss {
		out[k] = v
	}
	return out, nil
}

// Ping always succeeds.
func (m *MemoryStore) Ping(context.Context) error { return nil }
