package settings

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/resto-pricing/internal/events"
)

type loader interface {
	Get(ctx context.Context, restaurantID string) (Snapshot, error)
}

// Emitter announces settings changes to other instances and consumers.
type Emitter interface {
	Emit(ctx context.Context, topic string, aggregateID uuid.UUID, payload any) (events.Event, error)
}

// Service resolves restaurant settings with a Redis read-through cache.
type Service struct {
	store   loader
	cache   *Cache
	emitter Emitter
	logger  zerolog.Logger
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store   loader
	Cache   *Cache
	Emitter Emitter
	Logger  zerolog.Logger
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("settings: store is required")
	}
	return &Service{store: cfg.Store, cache: cfg.Cache, emitter: cfg.Emitter, logger: cfg.Logger}, nil
}

// Load returns the validated settings for a restaurant. Cache failures fall
// back to the database.
func (s *Service) Load(ctx context.Context, restaurantID string) (Snapshot, error) {
	if restaurantID == "" {
		return Snapshot{}, ErrNotFound
	}
	if snap, ok, err := s.cache.Get(ctx, restaurantID); err != nil {
		s.logger.Warn().Err(err).Str("restaurant_id", restaurantID).Msg("settings cache read failed")
	} else if ok {
		return snap, nil
	}

	snap, err := s.store.Get(ctx, restaurantID)
	if err != nil {
		return Snapshot{}, err
	}
	snap = snap.withDefaults()
	if err := snap.Validate(); err != nil {
		return Snapshot{}, fmt.Errorf("restaurant %s: %w", restaurantID, err)
	}
	if err := s.cache.Set(ctx, snap); err != nil {
		s.logger.Warn().Err(err).Str("restaurant_id", restaurantID).Msg("settings cache write failed")
	}
	return snap, nil
}

// Invalidate drops the cached snapshot so the next Load reads Postgres.
// Sessions already open keep the schedule they were created with.
func (s *Service) Invalidate(ctx context.Context, restaurantID string) error {
	if restaurantID == "" {
		return ErrNotFound
	}
	if err := s.cache.Delete(ctx, restaurantID); err != nil {
		return fmt.Errorf("invalidate settings: %w", err)
	}
	if s.emitter != nil {
		payload := map[string]string{"restaurantId": restaurantID}
		if _, err := s.emitter.Emit(ctx, events.TopicSettingsChanged, AggregateID(restaurantID), payload); err != nil {
			s.logger.Warn().Err(err).Str("restaurant_id", restaurantID).Msg("settings event emit failed")
		}
	}
	return nil
}

// AggregateID derives a stable event aggregate id from a restaurant id.
func AggregateID(restaurantID string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("restaurant:"+restaurantID))
}
