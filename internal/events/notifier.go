package events

import (
	"context"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/noah-isme/resto-pricing/internal/obs"
)

// LogNotifier writes every event to the structured log.
type LogNotifier struct {
	Logger zerolog.Logger
}

// Notify logs the event envelope.
func (n LogNotifier) Notify(ctx context.Context, event Event) error {
	logger := n.Logger
	if reqID := middleware.GetReqID(ctx); reqID != "" {
		logger = logger.With().Str("request_id", reqID).Logger()
	}
	logger.Info().
		Str("event_id", event.ID.String()).
		Str("topic", event.Topic).
		Str("aggregate_id", event.AggregateID.String()).
		RawJSON("payload", event.Payload).
		Msg("domain event emitted")
	return nil
}

// MetricsNotifier counts emitted events per topic.
type MetricsNotifier struct{}

// Notify increments the event counter.
func (MetricsNotifier) Notify(_ context.Context, event Event) error {
	if obs.OrderEventsTotal != nil {
		obs.OrderEventsTotal.WithLabelValues(event.Topic, "emitted").Inc()
	}
	return nil
}
