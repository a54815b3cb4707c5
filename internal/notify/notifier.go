// Package notify fans rebalance events out to operator channels (Telegram, Redis pub/sub).
// One failing sender never blocks delivery to the others.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/rainman456/Dllm-Demo-Saros/internal/logger"
	"github.com/rainman456/Dllm-Demo-Saros/internal/types"
)

// Sender is one notification channel.
type Sender interface {
	Send(ctx context.Context, event types.RebalanceEvent) error
	Name() string
}

// Notifier dispatches events to every registered Sender. When a type filter is set, events of
// other types are dropped.
type Notifier struct {
	logger  zerolog.Logger
	senders []Sender
	allowed map[types.EventType]bool
}

// NewNotifier creates a Notifier. An empty allowed list lets every event type through.
func NewNotifier(senders []Sender, allowed ...types.EventType) *Notifier {
	n := &Notifier{
		logger:  logger.GetForComponent("notifier"),
		senders: senders,
		allowed: make(map[types.EventType]bool, len(allowed)),
	}
	for _, t := range allowed {
		n.allowed[t] = true
	}
	return n
}

// Senders returns the names of the registered senders.
func (n *Notifier) Senders() []string {
	names := make([]string, 0, len(n.senders))
	for _, s := range n.senders {
		names = append(names, s.Name())
	}
	return names
}

// Notify delivers event to every sender and joins their errors.
func (n *Notifier) Notify(ctx context.Context, event types.RebalanceEvent) error {
	if len(n.allowed) > 0 && !n.allowed[event.Type] {
		n.logger.Debug().Str("type", string(event.Type)).Msg("Event filtered out")
		return nil
	}

	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, event); err != nil {
			n.logger.Error().Err(err).Str("sender", s.Name()).Str("event_id", event.ID).Msg("Sender failed")
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		n.logger.Debug().Str("sender", s.Name()).Str("event_id", event.ID).Msg("Notification sent")
	}
	return errors.Join(errs...)
}

// Title renders the headline used by text channels.
func Title(event types.RebalanceEvent) string {
	switch event.Type {
	case types.EventRebalance:
		return fmt.Sprintf("Rebalance: %s", event.PoolPair)
	case types.EventSuccess:
		return fmt.Sprintf("Executed: %s", event.PoolPair)
	case types.EventAlert:
		if event.PoolPair == "" {
			return "Alert"
		}
		return fmt.Sprintf("Alert: %s", event.PoolPair)
	}
	return string(event.Type)
}
