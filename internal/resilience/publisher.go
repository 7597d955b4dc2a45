package resilience

import (
	"context"

	"github.com/noah-isme/resto-pricing/internal/events"
)

// GuardedPublisher wraps a broker publisher with a breaker so that a broker
// outage fails fast instead of stalling every order submission.
type GuardedPublisher struct {
	Breaker *Breaker
	Next    events.Publisher
}

// Publish forwards the event unless the breaker is open.
func (g GuardedPublisher) Publish(ctx context.Context, event events.Event) error {
	if g.Breaker == nil {
		return g.Next.Publish(ctx, event)
	}
	return g.Breaker.Do(ctx, func(ctx context.Context) error {
		return g.Next.Publish(ctx, event)
	})
}
