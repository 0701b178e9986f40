package fx

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rateKey struct {
	currency string
	date     string
	rateType RateType
}

// mapStore is a minimal in-memory rate store for service tests.
type mapStore struct {
	rates map[rateKey]*Rate
}

func newMapStore() *mapStore {
	return &mapStore{rates: make(map[rateKey]*Rate)}
}

func (s *mapStore) PutRate(ctx context.Context, rate *Rate) error {
	s.rates[rateKey{rate.Currency, rate.Date.Format("2006-01-02"), rate.Type}] = rate
	return nil
}

func (s *mapStore) LatestRate(ctx context.Context, currency string, onOrBefore time.Time, rateType RateType) (*Rate, error) {
	var best *Rate
	for _, r := range s.rates {
		if r.Currency != currency || r.Type != rateType || r.Date.After(onOrBefore) {
			continue
		}
		if best == nil || r.Date.After(best.Date) {
			best = r
		}
	}
	return best, nil
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestGetRatePresentationIsAlwaysOne(t *testing.T) {
	svc := NewService(newMapStore(), "USD")

	rate, err := svc.GetRate(context.Background(), "USD", day("2026-01-15"), RateClosing, false)
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.NewFromInt(1)))
}

func TestGetRatePicksLatestOnOrBefore(t *testing.T) {
	store := newMapStore()
	svc := NewService(store, "USD")
	ctx := context.Background()

	require.NoError(t, store.PutRate(ctx, &Rate{Currency: "EUR", Date: day("2026-01-01"), Type: RateClosing, Rate: decimal.RequireFromString("1.05")}))
	require.NoError(t, store.PutRate(ctx, &Rate{Currency: "EUR", Date: day("2026-01-10"), Type: RateClosing, Rate: decimal.RequireFromString("1.08")}))
	require.NoError(t, store.PutRate(ctx, &Rate{Currency: "EUR", Date: day("2026-01-20"), Type: RateClosing, Rate: decimal.RequireFromString("1.12")}))

	rate, err := svc.GetRate(ctx, "EUR", day("2026-01-15"), RateClosing, false)
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.RequireFromString("1.08")))
}

func TestGetRateFallbackToOtherType(t *testing.T) {
	store := newMapStore()
	svc := NewService(store, "USD")
	ctx := context.Background()

	require.NoError(t, store.PutRate(ctx, &Rate{Currency: "EGP", Date: day("2026-01-01"), Type: RateAverage, Rate: decimal.RequireFromString("0.021")}))

	_, err := svc.GetRate(ctx, "EGP", day("2026-01-15"), RateClosing, false)
	var notFound *RateNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "EGP", notFound.Currency)

	rate, err := svc.GetRate(ctx, "EGP", day("2026-01-15"), RateClosing, true)
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.RequireFromString("0.021")))
}

func TestConvertPivotsThroughPresentation(t *testing.T) {
	store := newMapStore()
	svc := NewService(store, "USD")
	ctx := context.Background()

	require.NoError(t, store.PutRate(ctx, &Rate{Currency: "EUR", Date: day("2026-01-10"), Type: RateClosing, Rate: decimal.RequireFromString("1.10")}))
	require.NoError(t, store.PutRate(ctx, &Rate{Currency: "GBP", Date: day("2026-01-10"), Type: RateClosing, Rate: decimal.RequireFromString("1.25")}))

	// 100 EUR -> 110 USD -> 88 GBP.
	got, err := svc.Convert(ctx, decimal.NewFromInt(100), "EUR", "GBP", day("2026-01-15"), RateClosing)
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.NewFromInt(88)), "got %s", got)

	// Identity conversion needs no rates.
	got, err = svc.Convert(ctx, decimal.NewFromInt(42), "JPY", "JPY", day("2026-01-15"), RateClosing)
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.NewFromInt(42)))
}

func TestConvertMissingLegFails(t *testing.T) {
	store := newMapStore()
	svc := NewService(store, "USD")
	ctx := context.Background()

	require.NoError(t, store.PutRate(ctx, &Rate{Currency: "EUR", Date: day("2026-01-10"), Type: RateClosing, Rate: decimal.RequireFromString("1.10")}))

	_, err := svc.Convert(ctx, decimal.NewFromInt(100), "EUR", "GBP", day("2026-01-15"), RateClosing)
	var notFound *RateNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "GBP", notFound.Currency)
}

func TestDiagnoseCoverage(t *testing.T) {
	store := newMapStore()
	svc := NewService(store, "USD")
	ctx := context.Background()

	require.NoError(t, store.PutRate(ctx, &Rate{Currency: "EUR", Date: day("2026-01-10"), Type: RateClosing, Rate: decimal.RequireFromString("1.10")}))

	cov, err := svc.DiagnoseCoverage(ctx, []string{"EUR", "GBP", "USD", ""}, day("2026-01-15"), RateClosing)
	require.NoError(t, err)

	assert.Equal(t, []string{"EUR", "GBP"}, cov.Used)
	assert.Equal(t, []string{"EUR"}, cov.Available)
	assert.Equal(t, []string{"GBP"}, cov.Missing)
}
