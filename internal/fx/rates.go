package fx

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RateType distinguishes the two stored rate series.
type RateType string

const (
	RateClosing RateType = "closing"
	RateAverage RateType = "average"
)

// Rate is one stored exchange rate: the amount of presentation currency
// equivalent to one unit of Currency, as of Date. Rates are inserted by an
// external feed and read-only to the engine.
type Rate struct {
	Currency string          `json:"currency"`
	Date     time.Time       `json:"date"`
	Type     RateType        `json:"type"`
	Rate     decimal.Decimal `json:"rate"`
	Source   string          `json:"source,omitempty"`
}

// RateNotFoundError reports a conversion that could not be carried out
// because no rate exists at or before the requested date. The engine never
// approximates a missing rate.
type RateNotFoundError struct {
	Currency string
	Date     time.Time
	Type     RateType
}

func (e *RateNotFoundError) Error() string {
	return fmt.Sprintf("no %s rate for %s at or before %s", e.Type, e.Currency, e.Date.Format("2006-01-02"))
}

// Store is the persistence contract for exchange rates.
type Store interface {
	// PutRate inserts or replaces the rate for its (currency, date, type) key.
	PutRate(ctx context.Context, rate *Rate) error
	// LatestRate returns the most recent rate at or before the date for the
	// exact type, or nil when none exists.
	LatestRate(ctx context.Context, currency string, onOrBefore time.Time, rateType RateType) (*Rate, error)
}

// Service answers rate lookups and conversions against a single presentation
// currency. Conversion between two foreign currencies always pivots through
// the presentation currency: two rate lookups, never direct pair rates.
type Service struct {
	store        Store
	presentation string
}

// NewService creates a rate service. presentation is the ISO code used as the
// pivot for all conversions.
func NewService(store Store, presentation string) *Service {
	return &Service{store: store, presentation: strings.ToUpper(presentation)}
}

// Presentation returns the configured presentation currency.
func (s *Service) Presentation() string {
	return s.presentation
}

// GetRate returns the rate of currency against the presentation currency at
// or before the date. The presentation currency itself is always 1 without a
// lookup. When allowFallback is set and the requested type has no rate, the
// other type is tried before giving up.
func (s *Service) GetRate(ctx context.Context, currency string, onOrBefore time.Time, rateType RateType, allowFallback bool) (decimal.Decimal, error) {
	currency = strings.ToUpper(currency)
	if currency == "" {
		return decimal.Zero, &RateNotFoundError{Currency: currency, Date: onOrBefore, Type: rateType}
	}
	if currency == s.presentation {
		return decimal.NewFromInt(1), nil
	}

	rate, err := s.store.LatestRate(ctx, currency, onOrBefore, rateType)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to look up rate: %w", err)
	}
	if rate == nil && allowFallback {
		alt := RateAverage
		if rateType == RateAverage {
			alt = RateClosing
		}
		rate, err = s.store.LatestRate(ctx, currency, onOrBefore, alt)
		if err != nil {
			return decimal.Zero, fmt.Errorf("failed to look up fallback rate: %w", err)
		}
	}
	if rate == nil {
		return decimal.Zero, &RateNotFoundError{Currency: currency, Date: onOrBefore, Type: rateType}
	}
	return rate.Rate, nil
}

// Convert converts amount from one currency to another using rates recorded
// against the presentation currency: amount * rate(from) / rate(to). Identity
// when the currencies match. A missing rate on either leg returns
// RateNotFoundError, never a guessed value.
func (s *Service) Convert(ctx context.Context, amount decimal.Decimal, from, to string, onOrBefore time.Time, rateType RateType) (decimal.Decimal, error) {
	from = strings.ToUpper(from)
	to = strings.ToUpper(to)

	if from == to {
		return amount, nil
	}

	fromRate, err := s.GetRate(ctx, from, onOrBefore, rateType, true)
	if err != nil {
		return decimal.Zero, err
	}
	toRate, err := s.GetRate(ctx, to, onOrBefore, rateType, true)
	if err != nil {
		return decimal.Zero, err
	}

	return amount.Mul(fromRate).Div(toRate), nil
}

// Coverage reports which of a set of currencies have a usable rate as of a
// date. Reporters consult this before claiming a converted total is complete.
type Coverage struct {
	AsOf      time.Time `json:"as_of"`
	RateType  RateType  `json:"rate_type"`
	Used      []string  `json:"used"`
	Available []string  `json:"available"`
	Missing   []string  `json:"missing"`
}

// DiagnoseCoverage checks each used currency for a rate at or before the
// date. The presentation currency never needs a rate and is excluded.
func (s *Service) DiagnoseCoverage(ctx context.Context, used []string, asOf time.Time, rateType RateType) (*Coverage, error) {
	cov := &Coverage{AsOf: asOf, RateType: rateType}
	for _, cur := range used {
		cur = strings.ToUpper(cur)
		if cur == "" || cur == s.presentation {
			continue
		}
		cov.Used = append(cov.Used, cur)
		rate, err := s.store.LatestRate(ctx, cur, asOf, rateType)
		if err != nil {
			return nil, fmt.Errorf("failed to check rate coverage for %s: %w", cur, err)
		}
		if rate != nil {
			cov.Available = append(cov.Available, cur)
		} else {
			cov.Missing = append(cov.Missing, cur)
		}
	}
	return cov, nil
}
