package analyzer

import (
	"sort"
	"sync"
	"time"

	"github.com/rainman456/Dllm-Demo-Saros/internal/types"
)

const (
	MAX_HISTORY_POINTS = 288 // One day at a 5 minute cadence
	TREND_WINDOW       = 10
	TREND_CHANGE       = 0.10

	lowRiskRatio    = 0.02
	mediumRiskRatio = 0.05
)

// Tracker keeps a bounded volatility history per pool. It is safe for concurrent use.
type Tracker struct {
	mu        sync.RWMutex
	history   map[string][]types.VolatilityPoint
	maxPoints int
	now       func() time.Time
}

// NewTracker creates a tracker that keeps at most maxPoints observations per pool.
// A non-positive maxPoints selects MAX_HISTORY_POINTS.
func NewTracker(maxPoints int) *Tracker {
	if maxPoints <= 0 {
		maxPoints = MAX_HISTORY_POINTS
	}
	return &Tracker{
		history:   make(map[string][]types.VolatilityPoint),
		maxPoints: maxPoints,
		now:       time.Now,
	}
}

// Record appends an observation for pool, evicting the oldest once the history is full.
func (t *Tracker) Record(pool string, metrics types.VolatilityMetrics) {
	t.mu.Lock()
	defer t.mu.Unlock()

	points := append(t.history[pool], types.VolatilityPoint{
		Timestamp:       t.now(),
		VolatilityRatio: metrics.VolatilityRatio,
		Price:           metrics.Mean,
	})
	if len(points) > t.maxPoints {
		points = append([]types.VolatilityPoint(nil), points[len(points)-t.maxPoints:]...)
	}
	t.history[pool] = points
}

// Report summarizes the tracked history of pool. The boolean is false when nothing was recorded.
func (t *Tracker) Report(pool string) (types.VolatilityReport, bool) {
	t.mu.RLock()
	points := append([]types.VolatilityPoint(nil), t.history[pool]...)
	t.mu.RUnlock()

	if len(points) == 0 {
		return types.VolatilityReport{
			PoolAddress:    pool,
			Trend:          types.TrendStable,
			Risk:           types.RiskLow,
			Recommendation: "Unable to calculate risk - insufficient data",
		}, false
	}

	var sum float64
	for _, p := range points {
		sum += p.VolatilityRatio
	}
	current := points[len(points)-1].VolatilityRatio
	trend := DetectTrend(points)
	risk := ClassifyRisk(current)

	return types.VolatilityReport{
		PoolAddress:    pool,
		Current:        current,
		Average:        sum / float64(len(points)),
		Trend:          trend,
		Risk:           risk,
		Recommendation: Recommendation(risk, trend),
		History:        points,
	}, true
}

// Pools lists every pool with recorded history, sorted.
func (t *Tracker) Pools() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	pools := make([]string, 0, len(t.history))
	for pool := range t.history {
		pools = append(pools, pool)
	}
	sort.Strings(pools)
	return pools
}

// DetectTrend compares the mean of the latest TREND_WINDOW points with the window before it.
func DetectTrend(points []types.VolatilityPoint) types.VolatilityTrend {
	n := len(points)
	if n <= TREND_WINDOW {
		return types.TrendStable
	}

	recent := points[n-TREND_WINDOW:]
	older := points[max(0, n-2*TREND_WINDOW) : n-TREND_WINDOW]

	olderAvg := averageRatio(older)
	if olderAvg == 0 {
		return types.TrendStable
	}
	change := (averageRatio(recent) - olderAvg) / olderAvg

	switch {
	case change > TREND_CHANGE:
		return types.TrendIncreasing
	case change < -TREND_CHANGE:
		return types.TrendDecreasing
	}
	return types.TrendStable
}

// ClassifyRisk buckets a volatility ratio.
func ClassifyRisk(ratio float64) types.RiskLevel {
	switch {
	case ratio < lowRiskRatio:
		return types.RiskLow
	case ratio < mediumRiskRatio:
		return types.RiskMedium
	}
	return types.RiskHigh
}

// Recommendation is the operator facing advice for a risk/trend pair.
func Recommendation(risk types.RiskLevel, trend types.VolatilityTrend) string {
	switch {
	case risk == types.RiskHigh && trend == types.TrendIncreasing:
		return "High risk detected with increasing volatility. Consider widening range or reducing position size."
	case risk == types.RiskHigh:
		return "High volatility detected. Monitor position closely and consider stop-loss protection."
	case risk == types.RiskMedium && trend == types.TrendIncreasing:
		return "Moderate risk with increasing volatility. Consider adjusting range parameters."
	case risk == types.RiskLow && trend == types.TrendStable:
		return "Low risk environment. Position is stable with current parameters."
	}
	return "Normal market conditions. Continue monitoring position."
}

func averageRatio(points []types.VolatilityPoint) float64 {
	if len(points) == 0 {
		return 0
	}
	var sum float64
	for _, p := range points {
		sum += p.VolatilityRatio
	}
	return sum / float64(len(points))
}
