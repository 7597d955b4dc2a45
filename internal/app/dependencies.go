package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/resto-pricing/internal/common"
	"github.com/noah-isme/resto-pricing/internal/config"
	"github.com/noah-isme/resto-pricing/internal/db"
	"github.com/noah-isme/resto-pricing/internal/events"
	"github.com/noah-isme/resto-pricing/internal/health"
	"github.com/noah-isme/resto-pricing/internal/kafka"
	"github.com/noah-isme/resto-pricing/internal/lock"
	"github.com/noah-isme/resto-pricing/internal/loyalty"
	"github.com/noah-isme/resto-pricing/internal/obs"
	"github.com/noah-isme/resto-pricing/internal/order"
	"github.com/noah-isme/resto-pricing/internal/ratelimit"
	"github.com/noah-isme/resto-pricing/internal/resilience"
	"github.com/noah-isme/resto-pricing/internal/session"
	"github.com/noah-isme/resto-pricing/internal/settings"
)

// Dependencies holds the infrastructure clients and services shared by the
// HTTP layer.
type Dependencies struct {
	Config    *config.Config
	Logger    zerolog.Logger
	DB        *pgxpool.Pool
	Redis     *redis.Client
	Producer  *kafka.Producer
	Validator *validator.Validate

	HTTPMetrics   *obs.HTTPMetrics
	SubmitLimiter ratelimit.Backend
	Idem          common.Idem

	Settings *settings.Service
	Loyalty  loyalty.Store
	Bus      *events.Bus
	Orders   *order.Service
	Sessions *session.Service

	closers []func() error
}

// New opens Postgres, Redis and (optionally) Kafka, runs migrations and
// builds every service. Close releases whatever was opened, also on error.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Dependencies, error) {
	d := &Dependencies{
		Config:    cfg,
		Logger:    logger,
		Validator: validator.New(validator.WithRequiredStructEnabled()),
	}
	if err := d.open(ctx); err != nil {
		_ = d.Close()
		return nil, err
	}
	if err := d.build(); err != nil {
		_ = d.Close()
		return nil, err
	}
	return d, nil
}

func (d *Dependencies) open(ctx context.Context) error {
	cfg := d.Config

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("parse database config: %w", err)
	}
	if cfg.Obs.TracingEnabled {
		poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "resto-pricing"

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	d.DB = pool
	d.closers = append(d.closers, func() error { pool.Close(); return nil })
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	if cfg.RunMigrations {
		if err := db.Up(cfg.DatabaseURL); err != nil {
			return err
		}
		d.Logger.Info().Msg("migrations applied")
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(redisOpts)
	d.Redis = client
	d.closers = append(d.closers, client.Close)
	if cfg.Obs.TracingEnabled {
		if err := redisotel.InstrumentTracing(client); err != nil {
			d.Logger.Error().Err(err).Msg("instrument redis tracing")
		}
	}
	if cfg.Obs.MetricsEnabled {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			d.Logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}

	if cfg.KafkaEnabled() {
		d.Producer = kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaOrderTopic)
		d.closers = append(d.closers, d.Producer.Close)
	}
	return nil
}

func (d *Dependencies) build() error {
	cfg := d.Config

	if cfg.Obs.MetricsEnabled {
		obs.MustRegisterDomainMetrics(cfg.Obs.MetricsNamespace, nil)
		resilience.MustRegisterMetrics(cfg.Obs.MetricsNamespace, nil)
		d.HTTPMetrics = obs.NewHTTPMetrics(cfg.Obs.MetricsNamespace, obs.ParseBucketsCSV(cfg.Obs.MetricsBucketsMS), nil)
	}

	d.Bus = &events.Bus{
		Store:     events.PGStore{DB: d.DB},
		Notifiers: []events.Notifier{events.LogNotifier{Logger: d.Logger}, events.MetricsNotifier{}},
	}
	if d.Producer != nil {
		d.Bus.Publisher = resilience.GuardedPublisher{
			Breaker: resilience.NewBreaker(5, 0.5, 30*time.Second).WithTarget("kafka").WithLogger(d.Logger),
			Next:    d.Producer,
		}
	}

	var err error
	d.Settings, err = settings.NewService(settings.ServiceConfig{
		Store:   settings.Store{DB: d.DB},
		Cache:   settings.NewCache(d.Redis, cfg.SettingsCacheTTL),
		Emitter: d.Bus,
		Logger:  d.Logger,
	})
	if err != nil {
		return err
	}

	d.Loyalty = loyalty.Store{DB: d.DB}

	d.Orders, err = order.NewService(order.ServiceConfig{
		Repo:      order.PGStore{DB: d.DB},
		Emitter:   d.Bus,
		Validator: d.Validator,
		Logger:    d.Logger,
	})
	if err != nil {
		return err
	}

	d.Sessions, err = session.NewService(session.ServiceConfig{
		Store:         session.NewStore(d.Redis, cfg.SessionTTL),
		Locker:        lock.Locker{R: d.Redis, Wait: cfg.SessionLockTTL},
		Settings:      d.Settings,
		Balances:      d.Loyalty,
		Orders:        d.Orders,
		Logger:        d.Logger,
		LockTTL:       cfg.SessionLockTTL,
		SubmitTimeout: cfg.SessionSubmitTimeout,
	})
	if err != nil {
		return err
	}

	switch cfg.SubmitRateLimitBackend {
	case "ulule":
		d.SubmitLimiter, err = ratelimit.NewRedisFixedWindow(d.Redis, "ratelimit:submit")
		if err != nil {
			return err
		}
	default:
		d.SubmitLimiter = ratelimit.Limiter{Client: d.Redis, Prefix: "ratelimit:"}
	}
	d.Idem = common.Idem{R: d.Redis, TTL: cfg.IdempotencyTTL}
	return nil
}

// Probes returns the readiness checks for the opened dependencies.
func (d *Dependencies) Probes() []health.Probe {
	obsCfg := d.Config.Obs
	probes := []health.Probe{
		{Name: "db", Timeout: obsCfg.ReadyDBTimeout, Check: func(ctx context.Context) error {
			if d.DB == nil {
				return errors.New("db not configured")
			}
			return d.DB.Ping(ctx)
		}},
		{Name: "redis", Timeout: obsCfg.ReadyRedisTimeout, Check: func(ctx context.Context) error {
			if d.Redis == nil {
				return errors.New("redis not configured")
			}
			return d.Redis.Ping(ctx).Err()
		}},
	}
	if d.Config.KafkaEnabled() {
		brokers := d.Config.KafkaBrokers
		probes = append(probes, health.Probe{Name: "kafka", Timeout: obsCfg.ReadyKafkaTimeout, Check: func(ctx context.Context) error {
			return kafka.Ping(ctx, brokers)
		}})
	}
	return probes
}

// Close releases resources in reverse order of acquisition.
func (d *Dependencies) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}
