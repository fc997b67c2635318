package entity

import (
	"context"
	"errors"
	"time"
)

var ErrQuoteNotFound = errors.New("quote not found")

// QuoteBounds is the admissible envelope for a quote, in atomic pricing
// units (one unit is a quarter trailer load). MinHighUnits == 0 means the
// high-end floor is absent.
type QuoteBounds struct {
	MinUnits     int `json:"min_units"`
	MaxUnits     int `json:"max_units"`
	MinHighUnits int `json:"min_high_units,omitempty"`
}

// HasMinHigh reports whether the bounds force the high end upward.
func (b QuoteBounds) HasMinHigh() bool {
	return b.MinHighUnits > 0
}

// Merge combines two bounds component-wise by max. It is commutative,
// associative and idempotent, so folding rule contributions in any order
// yields the same result.
func (b QuoteBounds) Merge(o QuoteBounds) QuoteBounds {
	return QuoteBounds{
		MinUnits:     max(b.MinUnits, o.MinUnits),
		MaxUnits:     max(b.MaxUnits, o.MaxUnits),
		MinHighUnits: max(b.MinHighUnits, o.MinHighUnits),
	}
}

// Contains reports whether every component of o is at least that of b.
func (b QuoteBounds) Contains(o QuoteBounds) bool {
	return o.MinUnits >= b.MinUnits && o.MaxUnits >= b.MaxUnits && o.MinHighUnits >= b.MinHighUnits
}

// CandidateQuote is an untrusted quote proposal from a generator. Prices are
// floats so malformed values (NaN, Inf, negatives) survive until validation.
type CandidateQuote struct {
	LoadFractionEstimate  float64 `json:"load_fraction_estimate"`
	PriceLow              float64 `json:"price_low"`
	PriceHigh             float64 `json:"price_high"`
	DisplayTierLabel      string  `json:"display_tier_label"`
	ReasonSummary         string  `json:"reason_summary"`
	NeedsInPersonEstimate bool    `json:"needs_in_person_estimate"`
}

// Quote is a validated quote. PriceLow and PriceHigh are whole currency
// amounts and integer multiples of the unit price.
type Quote struct {
	LoadFractionEstimate  float64 `json:"load_fraction_estimate"`
	PriceLow              int     `json:"price_low"`
	PriceHigh             int     `json:"price_high"`
	DisplayTierLabel      string  `json:"display_tier_label"`
	ReasonSummary         string  `json:"reason_summary"`
	NeedsInPersonEstimate bool    `json:"needs_in_person_estimate"`
}

// QuoteSource records whether a quote came from the generator or the
// deterministic fallback.
type QuoteSource string

const (
	QuoteSourceLLM      QuoteSource = "llm"
	QuoteSourceFallback QuoteSource = "fallback"
)

// InstantQuote is the persisted quote record. It is written before and
// independently of the CRM commit.
type InstantQuote struct {
	ID              string      `json:"id"`
	IntakeID        string      `json:"intake_id"`
	Quote           Quote       `json:"quote"`
	Bounds          QuoteBounds `json:"bounds"`
	Source          QuoteSource `json:"source"`
	DiscountPercent int         `json:"discount_percent"`
	DiscountedLow   int         `json:"discounted_low"`
	DiscountedHigh  int         `json:"discounted_high"`
	Intake          JobIntake   `json:"intake"`
	CreatedAt       time.Time   `json:"created_at"`
}

// ApplyDiscount fills the discounted prices from a whole-percent discount,
// rounding to the nearest currency unit. Out-of-range percents are clamped.
func (q *InstantQuote) ApplyDiscount(percent int) {
	percent = min(max(percent, 0), 100)
	q.DiscountPercent = percent
	q.DiscountedLow = discounted(q.Quote.PriceLow, percent)
	q.DiscountedHigh = discounted(q.Quote.PriceHigh, percent)
}

func discounted(price, percent int) int {
	return (price*(100-percent) + 50) / 100
}

type InstantQuoteRepositoryInterface interface {
	Create(ctx context.Context, q *InstantQuote) error
	FindByID(ctx context.Context, id string) (*InstantQuote, error)
}
