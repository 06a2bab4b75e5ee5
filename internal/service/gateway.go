package service

import (
	"context"

	"github.com/alanyoungcy/mentionleague/internal/domain"
)

// MarketGateway fetches the current markets of several event groups. The
// result is keyed like events. Failures satisfy errors.Is(err,
// domain.ErrGatewayFault).
type MarketGateway interface {
	FetchObservations(ctx context.Context, events map[string]string) (map[string][]domain.MarketObservation, error)
}

// EventGroups maps each option category to its venue event group id.
type EventGroups map[domain.Category]string

func (e EventGroups) keyed() map[string]string {
	out := make(map[string]string, len(e))
	for cat, id := range e {
		if id != "" {
			out[string(cat)] = id
		}
	}
	return out
}

// Notifier delivers operator notifications.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}
