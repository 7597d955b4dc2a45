package settings

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/resto-pricing/internal/loyalty"
	"github.com/noah-isme/resto-pricing/internal/pricing"
)

type countingLoader struct {
	snap  Snapshot
	err   error
	calls int
}

func (c *countingLoader) Get(_ context.Context, restaurantID string) (Snapshot, error) {
	c.calls++
	if c.err != nil {
		return Snapshot{}, c.err
	}
	out := c.snap
	out.RestaurantID = restaurantID
	return out, nil
}

func sampleSnapshot() Snapshot {
	return Snapshot{
		Tax: TaxSettings{
			GST: TaxToggle{Enabled: true, TaxRate: decimal.NewFromInt(5)},
			PST: TaxToggle{Enabled: false, TaxRate: decimal.NewFromInt(7)},
		},
		Loyalty: LoyaltySettings{
			Enabled:         true,
			MinRedeemPoints: 100,
			RedeemRate:      decimal.NewFromInt(200),
			RedeemValue:     decimal.NewFromInt(5),
			EarnRate:        decimal.NewFromInt(1),
		},
	}
}

func newTestService(t *testing.T, loader *countingLoader) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	svc, err := NewService(ServiceConfig{Store: loader, Cache: NewCache(client, time.Minute), Logger: zerolog.Nop()})
	require.NoError(t, err)
	return svc, mr
}

func TestLoadCachesSnapshot(t *testing.T) {
	loader := &countingLoader{snap: sampleSnapshot()}
	svc, mr := newTestService(t, loader)
	ctx := context.Background()

	first, err := svc.Load(ctx, "r-1")
	require.NoError(t, err)
	require.Equal(t, "$", first.Currency.Symbol)
	require.True(t, mr.Exists("settings:r-1"))

	second, err := svc.Load(ctx, "r-1")
	require.NoError(t, err)
	require.Equal(t, 1, loader.calls)
	require.True(t, first.Loyalty.RedeemValue.Equal(second.Loyalty.RedeemValue))

	require.NoError(t, svc.Invalidate(ctx, "r-1"))
	require.False(t, mr.Exists("settings:r-1"))
	_, err = svc.Load(ctx, "r-1")
	require.NoError(t, err)
	require.Equal(t, 2, loader.calls)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	snap := sampleSnapshot()
	snap.Tax.HST = TaxToggle{Enabled: true, TaxRate: decimal.NewFromInt(130)}
	svc, _ := newTestService(t, &countingLoader{snap: snap})
	_, err := svc.Load(context.Background(), "r-1")
	require.ErrorIs(t, err, pricing.ErrInvalidTaxRate)

	snap = sampleSnapshot()
	snap.Loyalty.RedeemRate = decimal.Zero
	svc, _ = newTestService(t, &countingLoader{snap: snap})
	_, err = svc.Load(context.Background(), "r-1")
	require.ErrorIs(t, err, loyalty.ErrInvalidSettings)
}

func TestLoadPropagatesNotFound(t *testing.T) {
	svc, _ := newTestService(t, &countingLoader{err: ErrNotFound})
	_, err := svc.Load(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = svc.Load(context.Background(), "")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestScheduleKeepsComponentOrder(t *testing.T) {
	sched := sampleSnapshot().Tax.Schedule()
	require.Len(t, sched.Components, 3)
	require.Equal(t, "GST", sched.Components[0].Name)
	require.Equal(t, "PST", sched.Components[1].Name)
	require.Equal(t, "HST", sched.Components[2].Name)
	require.False(t, sched.Components[1].Enabled)

	rules := sampleSnapshot().Loyalty.Rules()
	require.Equal(t, "5.00", rules.RedeemValue.String())
}

func TestLoyaltySettingsAcceptFractionalRate(t *testing.T) {
	var l LoyaltySettings
	raw := `{"enabled":true,"minRedeemPoints":0,"redeemRate":12.5,"redeemValue":1,"earnRate":0.5}`
	require.NoError(t, json.Unmarshal([]byte(raw), &l))
	rules := l.Rules()
	require.NoError(t, rules.Validate())
	require.Equal(t, "12.5", rules.RedeemRate.String())
}
