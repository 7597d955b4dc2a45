package resilience_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/resto-pricing/internal/events"
	"github.com/noah-isme/resto-pricing/internal/resilience"
)

func TestBreakerTransitions(t *testing.T) {
	breaker := resilience.NewBreaker(2, 0.5, 50*time.Millisecond)
	ctx := context.Background()

	require.True(t, breaker.Allow(ctx))
	breaker.Report(ctx, false)
	require.True(t, breaker.Allow(ctx))
	breaker.Report(ctx, false)

	require.False(t, breaker.Allow(ctx), "breaker should open after threshold exceeded")
	require.Equal(t, resilience.Open, breaker.State())

	time.Sleep(60 * time.Millisecond)
	require.True(t, breaker.Allow(ctx), "first caller after cooldown probes")
	require.False(t, breaker.Allow(ctx), "only one probe while half-open")
	breaker.Report(ctx, true)
	require.Equal(t, resilience.Closed, breaker.State())
	require.True(t, breaker.Allow(ctx))
}

func TestBreakerFailedProbeReopens(t *testing.T) {
	breaker := resilience.NewBreaker(1, 0.5, 10*time.Millisecond)
	ctx := context.Background()

	breaker.Report(ctx, false)
	require.Eventually(t, func() bool { return breaker.Allow(ctx) }, time.Second, 5*time.Millisecond)
	breaker.Report(ctx, false)
	require.Equal(t, resilience.Open, breaker.State())
}

func TestBreakerMetrics(t *testing.T) {
	resilience.MustRegisterMetrics("test", prometheus.NewRegistry())
	breaker := resilience.NewBreaker(1, 0.5, time.Hour).WithTarget("kafka")
	ctx := context.Background()

	require.Equal(t, 0.0, testutil.ToFloat64(resilience.BreakerState.WithLabelValues("kafka")))
	breaker.Report(ctx, false)
	require.Equal(t, 1.0, testutil.ToFloat64(resilience.BreakerState.WithLabelValues("kafka")))
	require.Equal(t, 1.0, testutil.ToFloat64(resilience.BreakerTransitions.WithLabelValues("kafka", "closed", "open")))
}

type flakyPublisher struct {
	calls int
	err   error
}

func (f *flakyPublisher) Publish(context.Context, events.Event) error {
	f.calls++
	return f.err
}

func TestGuardedPublisherFailsFastWhenOpen(t *testing.T) {
	next := &flakyPublisher{err: errors.New("broker down")}
	pub := resilience.GuardedPublisher{
		Breaker: resilience.NewBreaker(2, 0.5, time.Hour).WithTarget("kafka"),
		Next:    next,
	}
	ctx := context.Background()

	require.Error(t, pub.Publish(ctx, events.Event{}))
	require.Error(t, pub.Publish(ctx, events.Event{}))
	err := pub.Publish(ctx, events.Event{})
	require.ErrorIs(t, err, resilience.ErrOpenCircuit)
	require.Equal(t, 2, next.calls)
}

func TestBackoffWithJitter(t *testing.T) {
	base := 100 * time.Millisecond
	require.Equal(t, base, resilience.Backoff(base, 1, 0))
	require.Equal(t, base*4, resilience.Backoff(base, 3, 0))

	d := resilience.Backoff(base, 2, 0.2)
	require.GreaterOrEqual(t, d, base*2-(base*2/5))
	require.LessOrEqual(t, d, base*2+(base*2/5))
}
