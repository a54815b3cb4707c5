package state

import (
	"context"
	"fmt"
	"time"

	"github.com/rainman456/Dllm-Demo-Saros/internal/types"
)

// SummaryWindow is the look-back of the daily summary.
const SummaryWindow = 24 * time.Hour

// Summary counts events by type created at or after since.
func (s *Store) Summary(ctx context.Context, since time.Time) (types.EventSummary, error) {
	summary := types.EventSummary{Since: since.UTC(), Counts: make(map[types.EventType]int)}
	if s.db == nil {
		return summary, ErrNotInitialized
	}

	query := `
		SELECT event_type, COUNT(*)
		FROM rebalancing_events
		WHERE created_at >= $1
		GROUP BY event_type`

	rows, err := s.db.QueryContext(ctx, query, since)
	if err != nil {
		return summary, fmt.Errorf("failed to query event summary: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			eventType string
			count     int
		)
		if err := rows.Scan(&eventType, &count); err != nil {
			return summary, fmt.Errorf("failed to scan summary row: %w", err)
		}
		summary.Counts[types.EventType(eventType)] = count
		summary.Total += count
	}
	if err := rows.Err(); err != nil {
		return summary, fmt.Errorf("error iterating summary rows: %w", err)
	}
	return summary, nil
}

// DailySummary is Summary over the last SummaryWindow.
func (s *Store) DailySummary(ctx context.Context) (types.EventSummary, error) {
	return s.Summary(ctx, s.now().Add(-SummaryWindow))
}
