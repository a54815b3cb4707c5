package state

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rainman456/Dllm-Demo-Saros/internal/types"
)

const (
	DefaultEventLimit = 50
	MaxEventLimit     = 500
)

// ClampLimit maps a requested page size onto [1, MaxEventLimit], using DefaultEventLimit for <= 0.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultEventLimit
	}
	if limit > MaxEventLimit {
		return MaxEventLimit
	}
	return limit
}

// fillEvent assigns an id and timestamp when the caller left them empty.
func fillEvent(event *types.RebalanceEvent, now func() time.Time) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = now().UTC()
	}
}

// SaveEvent persists one event.
func (s *Store) SaveEvent(ctx context.Context, event types.RebalanceEvent) error {
	if s.db == nil {
		return ErrNotInitialized
	}
	fillEvent(&event, s.now)

	query := `
		INSERT INTO rebalancing_events (event_id, position_id, event_type, pool_pair, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6);`
	if _, err := s.db.ExecContext(ctx, query,
		event.ID, event.PositionID, string(event.Type), event.PoolPair, event.Message, event.Timestamp,
	); err != nil {
		return fmt.Errorf("failed to save event %s: %w", event.ID, err)
	}

	s.logger.Debug().
		Str("event_id", event.ID).
		Str("type", string(event.Type)).
		Str("position_id", event.PositionID).
		Msg("Event saved to database")
	return nil
}

// RecentEvents returns the newest events first.
func (s *Store) RecentEvents(ctx context.Context, limit int) ([]types.RebalanceEvent, error) {
	if s.db == nil {
		return nil, ErrNotInitialized
	}

	query := `
		SELECT event_id, position_id, event_type, pool_pair, message, created_at
		FROM rebalancing_events
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := s.db.QueryContext(ctx, query, ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query recent events: %w", err)
	}
	defer rows.Close()

	events := make([]types.RebalanceEvent, 0)
	for rows.Next() {
		var (
			e         types.RebalanceEvent
			eventType string
		)
		if err := rows.Scan(&e.ID, &e.PositionID, &eventType, &e.PoolPair, &e.Message, &e.Timestamp); err != nil {
			s.logger.Error().Err(err).Msg("Failed to scan event row")
			continue
		}
		e.Type = types.EventType(eventType)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating event rows: %w", err)
	}
	return events, nil
}
