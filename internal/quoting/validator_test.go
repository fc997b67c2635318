package quoting

import (
	"math"
	"testing"

	"github.com/hauldesk/hauldesk-api/internal/entity"
	"github.com/stretchr/testify/assert"
)

func assertQuoteInvariants(t *testing.T, v *Validator, q entity.Quote, b entity.QuoteBounds) {
	t.Helper()
	unit := v.UnitPrice

	assert.LessOrEqual(t, q.PriceLow, q.PriceHigh)
	assert.GreaterOrEqual(t, q.PriceLow, 0)
	assert.Zero(t, q.PriceLow%unit, "low must be a unit multiple")
	assert.Zero(t, q.PriceHigh%unit, "high must be a unit multiple")
	assert.GreaterOrEqual(t, q.PriceLow, unit*b.MinUnits)
	assert.LessOrEqual(t, q.PriceLow, unit*b.MaxUnits)
	assert.GreaterOrEqual(t, q.PriceHigh, unit*b.MinUnits)
	if b.HasMinHigh() {
		assert.GreaterOrEqual(t, q.PriceHigh, unit*b.MinHighUnits)
		assert.LessOrEqual(t, q.PriceHigh, unit*max(b.MaxUnits, b.MinHighUnits))
	} else {
		assert.LessOrEqual(t, q.PriceHigh, unit*b.MaxUnits)
	}

	multi := q.PriceHigh > v.SingleLoadCeiling()
	assert.Equal(t, multi, ClaimsMultiLoad(q.ReasonSummary), "reason %q vs high %d", q.ReasonSummary, q.PriceHigh)
	assert.InDelta(t, float64(q.PriceLow+q.PriceHigh)/2/float64(unit)/float64(v.UnitsPerLoad), q.LoadFractionEstimate, 1e-9)
	assert.NotEmpty(t, q.DisplayTierLabel)
}

func TestValidatorExamples(t *testing.T) {
	v := NewValidator()
	engine := NewEngine()

	t.Run("Half garage clamps to unit multiples", func(t *testing.T) {
		b := engine.Bounds(entity.JobIntake{Size: entity.SizeOneRoomHalfGarage, PostalCode: "78704"})
		assert.Equal(t, entity.QuoteBounds{MinUnits: 2, MaxUnits: 3}, b)

		q := v.Validate(entity.CandidateQuote{PriceLow: 350, PriceHigh: 900}, b, entity.SizeOneRoomHalfGarage)

		assert.Equal(t, 400, q.PriceLow)
		assert.Equal(t, 600, q.PriceHigh)
		assert.False(t, q.NeedsInPersonEstimate)
		assert.Equal(t, SingleLoadReason, q.ReasonSummary)
		assert.Equal(t, "3/4 trailer", q.DisplayTierLabel)
		assertQuoteInvariants(t, v, q, b)
	})

	t.Run("Commercial cleanout forces multi-load", func(t *testing.T) {
		b := engine.Bounds(entity.JobIntake{
			Size:     entity.SizeBigCleanout,
			Services: []entity.ServiceTag{entity.TagBusinessCommercial},
		})
		assert.Equal(t, entity.QuoteBounds{MinUnits: 4, MaxUnits: 8, MinHighUnits: 6}, b)

		q := v.Validate(entity.CandidateQuote{
			PriceLow:      200,
			PriceHigh:     400,
			ReasonSummary: "Looks like a small single load.",
		}, b, entity.SizeBigCleanout)

		assert.Equal(t, 800, q.PriceLow)
		assert.GreaterOrEqual(t, q.PriceHigh, 1200)
		assert.True(t, q.NeedsInPersonEstimate)
		assert.Equal(t, MultiLoadReason, q.ReasonSummary)
		assert.True(t, ClaimsMultiLoad(q.ReasonSummary))
		assert.Equal(t, "Multiple trailers", q.DisplayTierLabel)
		assertQuoteInvariants(t, v, q, b)
	})
}

func TestValidatorSteps(t *testing.T) {
	v := NewValidator()
	b := entity.QuoteBounds{MinUnits: 2, MaxUnits: 4}

	t.Run("Non-finite prices take the envelope edges", func(t *testing.T) {
		q := v.Validate(entity.CandidateQuote{PriceLow: math.NaN(), PriceHigh: math.Inf(1)}, b, entity.SizeFullGarage)
		assert.Equal(t, 400, q.PriceLow)
		assert.Equal(t, 800, q.PriceHigh)
	})

	t.Run("Rounds half up", func(t *testing.T) {
		q := v.Validate(entity.CandidateQuote{PriceLow: 500, PriceHigh: 699.99}, b, entity.SizeFullGarage)
		assert.Equal(t, 600, q.PriceLow)
		assert.Equal(t, 600, q.PriceHigh)
	})

	t.Run("Reversed prices collapse low", func(t *testing.T) {
		q := v.Validate(entity.CandidateQuote{PriceLow: 800, PriceHigh: 400}, b, entity.SizeFullGarage)
		assert.Equal(t, 400, q.PriceHigh)
		assert.Equal(t, 400, q.PriceLow)
	})

	t.Run("Candidate load fraction is ignored", func(t *testing.T) {
		q := v.Validate(entity.CandidateQuote{PriceLow: 400, PriceHigh: 800, LoadFractionEstimate: 9}, b, entity.SizeFullGarage)
		assert.InDelta(t, 0.75, q.LoadFractionEstimate, 1e-9)
	})

	t.Run("In-person flag only strengthens", func(t *testing.T) {
		q := v.Validate(entity.CandidateQuote{NeedsInPersonEstimate: true}, b, entity.SizeFewItems)
		assert.True(t, q.NeedsInPersonEstimate)

		q = v.Validate(entity.CandidateQuote{}, b, entity.SizeUnsure)
		assert.True(t, q.NeedsInPersonEstimate)

		q = v.Validate(entity.CandidateQuote{}, b, entity.SizeSmallLoad)
		assert.False(t, q.NeedsInPersonEstimate)
	})

	t.Run("Consistent reason text is kept", func(t *testing.T) {
		reason := "A couple of appliances and some boxes, easily one load."
		q := v.Validate(entity.CandidateQuote{PriceLow: 400, PriceHigh: 600, ReasonSummary: reason}, b, entity.SizeFullGarage)
		assert.Equal(t, reason, q.ReasonSummary)
	})

	t.Run("Multi-load claim on a single load is replaced", func(t *testing.T) {
		q := v.Validate(entity.CandidateQuote{PriceLow: 400, PriceHigh: 600, ReasonSummary: "This will take 2 loads."}, b, entity.SizeFullGarage)
		assert.Equal(t, SingleLoadReason, q.ReasonSummary)
	})
}

func TestValidatorTotality(t *testing.T) {
	v := NewValidator()
	engine := NewEngine()

	prices := []float64{
		math.NaN(), math.Inf(1), math.Inf(-1), -1, -5000, 0, 1, 99.5, 100,
		199, 350, 401, 999.99, 1200, 5000, 1e12,
	}
	reasons := []string{
		"",
		"Fits in one trailer.",
		"You will need multiple loads.",
		"Expect a second trailer.",
		"Roughly 3 trailers of material.",
	}

	var bounds []entity.QuoteBounds
	for _, size := range allSizes {
		for mask := 0; mask < 1<<len(allTags); mask += 37 {
			bounds = append(bounds, engine.Bounds(entity.JobIntake{Size: size, Services: tagSubset(mask)}))
		}
	}
	bounds = append(bounds,
		entity.QuoteBounds{MinUnits: 1, MaxUnits: 50},
		entity.QuoteBounds{MinUnits: 4, MaxUnits: 8, MinHighUnits: 8},
		entity.QuoteBounds{MinUnits: 5, MaxUnits: 5, MinHighUnits: 5},
	)

	for _, b := range bounds {
		for _, low := range prices {
			for _, high := range prices {
				for _, reason := range reasons {
					q := v.Validate(entity.CandidateQuote{
						PriceLow:      low,
						PriceHigh:     high,
						ReasonSummary: reason,
					}, b, entity.SizeFullGarage)
					assertQuoteInvariants(t, v, q, b)
				}
			}
		}
	}
}

func TestValidatorOversizedBounds(t *testing.T) {
	v := NewValidator()
	capped := entity.QuoteBounds{MinUnits: 1, MaxUnits: DefaultMaxUnits}
	ceiling := v.UnitPrice * DefaultMaxUnits

	bounds := []entity.QuoteBounds{
		{MinUnits: 1, MaxUnits: 1 << 60},
		{MinUnits: 1 << 60, MaxUnits: 1 << 61},
		{MinUnits: 1, MaxUnits: 8, MinHighUnits: 1 << 60},
		{MinUnits: -5, MaxUnits: -10},
	}
	prices := []float64{0, 400, 1e30, math.Inf(1), math.NaN()}

	for _, b := range bounds {
		for _, p := range prices {
			q := v.Validate(entity.CandidateQuote{PriceLow: p, PriceHigh: p}, b, entity.SizeSmallLoad)
			assert.GreaterOrEqual(t, q.PriceLow, v.UnitPrice, "bounds %+v price %v", b, p)
			assert.LessOrEqual(t, q.PriceLow, q.PriceHigh, "bounds %+v price %v", b, p)
			assert.LessOrEqual(t, q.PriceHigh, ceiling, "bounds %+v price %v", b, p)
			assert.Equal(t, q.PriceHigh > v.SingleLoadCeiling(), ClaimsMultiLoad(q.ReasonSummary))
		}

		f := v.Fallback(b, entity.SizeSmallLoad)
		assert.LessOrEqual(t, f.PriceLow, f.PriceHigh)
		assert.LessOrEqual(t, f.PriceHigh, ceiling)
	}

	q := v.Validate(entity.CandidateQuote{PriceLow: 1e30, PriceHigh: 1e30}, entity.QuoteBounds{MinUnits: 1, MaxUnits: 1 << 60}, entity.SizeSmallLoad)
	assert.Equal(t, ceiling, q.PriceHigh)
	assertQuoteInvariants(t, v, q, capped)
}

func TestValidatorFallback(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name      string
		bounds    entity.QuoteBounds
		size      entity.PerceivedSize
		low, high int
		reason    string
	}{
		{"midpoint rounds half up", entity.QuoteBounds{MinUnits: 2, MaxUnits: 3}, entity.SizeOneRoomHalfGarage, 600, 600, SingleLoadReason},
		{"even span", entity.QuoteBounds{MinUnits: 2, MaxUnits: 4}, entity.SizeUnsure, 600, 600, SingleLoadReason},
		{"single unit", entity.QuoteBounds{MinUnits: 1, MaxUnits: 1}, entity.SizeFewItems, 200, 200, SingleLoadReason},
		{"commercial cleanout", entity.QuoteBounds{MinUnits: 4, MaxUnits: 8, MinHighUnits: 6}, entity.SizeBigCleanout, 1200, 1200, MultiLoadReason},
		{"high floor above midpoint", entity.QuoteBounds{MinUnits: 2, MaxUnits: 6, MinHighUnits: 6}, entity.SizeBigCleanout, 800, 1200, MultiLoadReason},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := v.Fallback(tt.bounds, tt.size)
			assert.Equal(t, tt.low, q.PriceLow)
			assert.Equal(t, tt.high, q.PriceHigh)
			assert.Equal(t, tt.reason, q.ReasonSummary)
			assertQuoteInvariants(t, v, q, tt.bounds)
		})
	}

	q := v.Fallback(entity.QuoteBounds{MinUnits: 4, MaxUnits: 8, MinHighUnits: 6}, entity.SizeBigCleanout)
	assert.True(t, q.NeedsInPersonEstimate)
	assert.InDelta(t, 1.5, q.LoadFractionEstimate, 1e-9)
}

func TestClaimsMultiLoad(t *testing.T) {
	claims := []string{
		"This will need multiple loads.",
		"Probably two loads of debris.",
		"More than one trailer is required.",
		"A multi-load job.",
		"We'd bring a second trailer.",
		"About 3 trailers worth.",
		MultiLoadReason,
	}
	for _, s := range claims {
		assert.True(t, ClaimsMultiLoad(s), s)
	}

	plain := []string{
		"",
		"Fits in one load.",
		"About 1 trailer worth.",
		"Half a trailer of furniture.",
		SingleLoadReason,
	}
	for _, s := range plain {
		assert.False(t, ClaimsMultiLoad(s), s)
	}
}
