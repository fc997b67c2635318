package quoting

import (
	"math"
	"strings"

	"github.com/hauldesk/hauldesk-api/internal/entity"
)

const (
	DefaultUnitPrice    = 200
	DefaultUnitsPerLoad = 4
)

const (
	MultiLoadReason  = "Based on what you described, this job will likely take more than one trailer load, so the range covers multiple loads."
	SingleLoadReason = "Based on what you described, this job should fit in a single trailer load."
)

// Validator forces untrusted candidate quotes into the bounds envelope.
// Validate never fails.
type Validator struct {
	UnitPrice    int
	UnitsPerLoad int
	MaxUnits     int
}

func NewValidator() *Validator {
	return &Validator{UnitPrice: DefaultUnitPrice, UnitsPerLoad: DefaultUnitsPerLoad, MaxUnits: DefaultMaxUnits}
}

func (v *Validator) unit() float64 {
	if v.UnitPrice <= 0 {
		return DefaultUnitPrice
	}
	return float64(v.UnitPrice)
}

func (v *Validator) maxUnits() int {
	if v.MaxUnits <= 0 {
		return DefaultMaxUnits
	}
	return v.MaxUnits
}

func (v *Validator) perLoad() int {
	if v.UnitsPerLoad <= 0 {
		return DefaultUnitsPerLoad
	}
	return v.UnitsPerLoad
}

// SingleLoadCeiling is the highest price that still fits one trailer.
func (v *Validator) SingleLoadCeiling() int {
	return int(v.unit()) * v.perLoad()
}

// Validate applies, in order: non-finite replacement, clamping to the
// envelope, half-up rounding to the unit price, the high-end floor, low
// collapse, load fraction recomputation, in-person strengthening and reason
// reconciliation.
func (v *Validator) Validate(c entity.CandidateQuote, b entity.QuoteBounds, size entity.PerceivedSize) entity.Quote {
	b = v.wellFormed(b)
	unit := v.unit()
	floor := unit * float64(b.MinUnits)
	ceil := unit * float64(b.MaxUnits)

	low, high := c.PriceLow, c.PriceHigh
	if !isFinite(low) {
		low = floor
	}
	if !isFinite(high) {
		high = ceil
	}

	low = clampFloat(low, floor, ceil)
	high = clampFloat(high, floor, ceil)

	lowUnits := roundHalfUp(low / unit)
	highUnits := roundHalfUp(high / unit)

	if b.HasMinHigh() && highUnits < b.MinHighUnits {
		highUnits = b.MinHighUnits
	}
	if lowUnits > highUnits {
		lowUnits = highUnits
	}

	perLoad := v.perLoad()
	q := entity.Quote{
		PriceLow:              lowUnits * int(unit),
		PriceHigh:             highUnits * int(unit),
		LoadFractionEstimate:  (float64(lowUnits+highUnits) / 2) / float64(perLoad),
		DisplayTierLabel:      TierLabel(highUnits, perLoad),
		NeedsInPersonEstimate: c.NeedsInPersonEstimate || needsSiteVisit(size),
	}

	mustMention := q.PriceHigh > v.SingleLoadCeiling()
	reason := strings.TrimSpace(c.ReasonSummary)
	if reason == "" || ClaimsMultiLoad(reason) != mustMention {
		reason = SingleLoadReason
		if mustMention {
			reason = MultiLoadReason
		}
	}
	q.ReasonSummary = reason

	return q
}

// Fallback builds a deterministic point quote at the envelope midpoint and
// passes it through Validate, which lifts the high end to any MinHighUnits
// floor.
func (v *Validator) Fallback(b entity.QuoteBounds, size entity.PerceivedSize) entity.Quote {
	b = v.wellFormed(b)
	mid := float64(roundHalfUp(float64(b.MinUnits+b.MaxUnits)/2)) * v.unit()
	return v.Validate(entity.CandidateQuote{PriceLow: mid, PriceHigh: mid}, b, size)
}

// TierLabel names the trailer fraction covered by a number of units.
func TierLabel(units, perLoad int) string {
	switch {
	case units > perLoad:
		return "Multiple trailers"
	case units == perLoad:
		return "Full trailer"
	case units*4 <= perLoad:
		return "1/4 trailer"
	case units*2 <= perLoad:
		return "1/2 trailer"
	default:
		return "3/4 trailer"
	}
}

// wellFormed repairs hand-built bounds into 1 <= MinUnits <= MaxUnits <= cap
// with MinHighUnits <= cap, so unit arithmetic in Validate cannot overflow.
func (v *Validator) wellFormed(b entity.QuoteBounds) entity.QuoteBounds {
	limit := v.maxUnits()
	b.MinUnits = clampInt(b.MinUnits, 1, limit)
	b.MaxUnits = clampInt(b.MaxUnits, b.MinUnits, limit)
	b.MinHighUnits = min(b.MinHighUnits, limit)
	return b
}

func needsSiteVisit(size entity.PerceivedSize) bool {
	if _, known := sizeTable[size]; !known {
		return true
	}
	return size == entity.SizeUnsure || size.IsLargestTier()
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func clampFloat(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

func roundHalfUp(f float64) int {
	return int(math.Floor(f + 0.5))
}
