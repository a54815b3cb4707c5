/*

This file contains the event types emitted to the event store and notification sinks.

*/

package types

import "time"

// EventType classifies an emitted event.
type EventType string

const (
	EventRebalance EventType = "rebalance"
	EventAlert     EventType = "alert"
	EventSuccess   EventType = "success"
)

// RebalanceEvent is a single emitted decision, alert or execution outcome.
type RebalanceEvent struct {
	ID         string    `json:"id"`
	PositionID string    `json:"position_id"` // Empty for wallet-level alerts
	Type       EventType `json:"type"`
	PoolPair   string    `json:"pool_pair"`
	Message    string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
}

// EventSummary counts events by type over a window.
type EventSummary struct {
	Since  time.Time         `json:"since"`
	Total  int               `json:"total"`
	Counts map[EventType]int `json:"counts"`
}
