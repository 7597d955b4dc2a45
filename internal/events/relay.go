package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RelayStore lists and settles undelivered outbox rows.
type RelayStore interface {
	Unpublished(ctx context.Context, olderThan time.Time, maxAttempts, limit int) ([]Event, error)
	MarkPublished(ctx context.Context, ids ...uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID) error
}

// Locker serialises relay passes across worker replicas.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Relay re-publishes outbox events the broker did not accept at emit time.
type Relay struct {
	Store       RelayStore
	Publisher   Publisher
	Locker      Locker
	Logger      zerolog.Logger
	Batch       int
	Grace       time.Duration
	MaxAttempts int
	Now         func() time.Time
}

const relayLockKey = "events:relay"

// RunOnce relays a single batch and reports how many events were delivered.
func (r Relay) RunOnce(ctx context.Context) (int, error) {
	if r.Store == nil || r.Publisher == nil {
		return 0, errors.New("events: relay store and publisher are required")
	}
	if r.Locker == nil {
		return r.relay(ctx)
	}
	var delivered int
	err := r.Locker.WithLock(ctx, relayLockKey, r.grace()+time.Minute, func(ctx context.Context) error {
		var err error
		delivered, err = r.relay(ctx)
		return err
	})
	return delivered, err
}

// Run relays every interval until ctx is done.
func (r Relay) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		n, err := r.RunOnce(ctx)
		switch {
		case err != nil && !errors.Is(err, context.Canceled):
			r.Logger.Warn().Err(err).Msg("event relay pass failed")
		case n > 0:
			r.Logger.Info().Int("delivered", n).Msg("event relay pass")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (r Relay) relay(ctx context.Context) (int, error) {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	batch := r.Batch
	if batch <= 0 {
		batch = 100
	}
	maxAttempts := r.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	pending, err := r.Store.Unpublished(ctx, now().Add(-r.grace()), maxAttempts, batch)
	if err != nil {
		return 0, err
	}
	delivered := make([]uuid.UUID, 0, len(pending))
	var errs []error
	for _, ev := range pending {
		if err := r.Publisher.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
			if markErr := r.Store.MarkFailed(ctx, ev.ID); markErr != nil {
				errs = append(errs, markErr)
			}
			continue
		}
		delivered = append(delivered, ev.ID)
	}
	if err := r.Store.MarkPublished(ctx, delivered...); err != nil {
		errs = append(errs, err)
	}
	return len(delivered), errors.Join(errs...)
}

// grace keeps the relay away from events whose emit is still in flight.
func (r Relay) grace() time.Duration {
	if r.Grace <= 0 {
		return 30 * time.Second
	}
	return r.Grace
}
