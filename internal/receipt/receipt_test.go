package receipt

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/resto-pricing/internal/money"
	"github.com/noah-isme/resto-pricing/internal/pricing"
)

func TestRenderFlatDiscount(t *testing.T) {
	items := []pricing.LineItem{{ID: "b1", Name: "Burger", UnitPrice: money.MustParse("12.00"), Quantity: 2}}
	taxes := pricing.TaxSchedule{Components: []pricing.TaxComponent{{Name: "GST", Rate: decimal.NewFromInt(5), Enabled: true}}}
	d, err := pricing.FlatPercent(decimal.NewFromInt(10))
	require.NoError(t, err)
	b := pricing.Compute(items, taxes, d, nil)

	buf := &bytes.Buffer{}
	require.NoError(t, Render(buf, Receipt{Title: "Main St", Reference: "abc", Symbol: "$", Items: items, Breakdown: b}))
	out := buf.String()
	require.Contains(t, out, "2 x Burger")
	require.Contains(t, out, "$24.00")
	require.Contains(t, out, "GST (5%)")
	require.Contains(t, out, "Discount (10%)")
	require.Contains(t, out, "-$2.40")
	require.Contains(t, out, "$22.80")
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		require.LessOrEqual(t, len(line), defaultWidth)
	}
}

func TestRenderCompedItems(t *testing.T) {
	items := []pricing.LineItem{
		{ID: "A", Name: "Steak", UnitPrice: money.MustParse("10.00"), Quantity: 1, Comped: true, AddOns: []pricing.AddOn{{Name: "Pepper sauce", UnitPrice: money.MustParse("1.00")}}},
		{ID: "B", Name: "Salad", UnitPrice: money.MustParse("5.00"), Quantity: 1},
	}
	b := pricing.Compute(items, pricing.TaxSchedule{}, pricing.NoDiscount(), nil)
	buf := &bytes.Buffer{}
	require.NoError(t, Render(buf, Receipt{Items: items, Breakdown: b}))
	out := buf.String()
	require.Contains(t, out, "FREE")
	require.Contains(t, out, "+ Pepper sauce")
	require.Contains(t, out, "Comped items")
	require.Contains(t, out, "(11.00)")
	require.Contains(t, out, "TOTAL")
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed") }

func TestRenderReportsWriteError(t *testing.T) {
	require.EqualError(t, Render(failingWriter{}, Receipt{}), "closed")
}
