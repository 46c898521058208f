package queue

import (
	"context"

	"go.uber.org/zap"

	"github.com/iliyamo/soundrent-backoffice/internal/events"
)

// Invalidator evicts cached responses after a write.
type Invalidator func(ctx context.Context) error

// SubscribeInvalidation runs invalidate synchronously on every bus event,
// independent of the broker. It must be subscribed before any streaming
// consumer of the bus so a client reacting to an event reads fresh lists.
func SubscribeInvalidation(bus *events.Bus, invalidate Invalidator, log *zap.Logger) (unsubscribe func()) {
	if log == nil {
		log = zap.NewNop()
	}
	return bus.Subscribe(func(ctx context.Context, ev events.Event) {
		if err := invalidate(ctx); err != nil {
			log.Warn("invalidate cache", zap.String("event", string(ev.Name)), zap.Error(err))
		}
	})
}
