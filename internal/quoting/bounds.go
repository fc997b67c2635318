package quoting

import "github.com/hauldesk/hauldesk-api/internal/entity"

// DefaultMaxUnits caps any quote at this many pricing units.
const DefaultMaxUnits = 50

type tier struct{ min, max int }

var sizeTable = map[entity.PerceivedSize]tier{
	entity.SizeFewItems:          {1, 1},
	entity.SizeSmallLoad:         {1, 2},
	entity.SizeOneRoomHalfGarage: {2, 3},
	entity.SizeFullGarage:        {3, 4},
	entity.SizeBigCleanout:       {4, 6},
	entity.SizeUnsure:            {2, 4},
}

func tierFor(size entity.PerceivedSize) tier {
	if t, ok := sizeTable[size]; ok {
		return t
	}
	return sizeTable[entity.SizeUnsure]
}

// Rule derives a bounds contribution from the intake alone. Rules never see
// each other's output; the engine folds contributions with Merge.
type Rule func(entity.JobIntake) (entity.QuoteBounds, bool)

// BaseTierRule maps the perceived size to its tier range.
func BaseTierRule(in entity.JobIntake) (entity.QuoteBounds, bool) {
	t := tierFor(in.Size)
	return entity.QuoteBounds{MinUnits: t.min, MaxUnits: t.max}, true
}

// BulkyRule shifts the tier up one unit when any bulky or heavy tag is present.
func BulkyRule(in entity.JobIntake) (entity.QuoteBounds, bool) {
	for _, tag := range in.Services {
		if tag.IsBulky() {
			t := tierFor(in.Size)
			return entity.QuoteBounds{MinUnits: t.min + 1, MaxUnits: t.max + 1}, true
		}
	}
	return entity.QuoteBounds{}, false
}

// CommercialCleanoutRule covers commercial jobs at the largest tier, which
// routinely need more than one trailer.
func CommercialCleanoutRule(in entity.JobIntake) (entity.QuoteBounds, bool) {
	if in.Size.IsLargestTier() && in.HasTag(entity.TagBusinessCommercial) {
		return entity.QuoteBounds{MinUnits: 4, MaxUnits: 8, MinHighUnits: 6}, true
	}
	return entity.QuoteBounds{}, false
}

// DefaultRules is the production rule set.
var DefaultRules = []Rule{BaseTierRule, BulkyRule, CommercialCleanoutRule}

// Engine computes the admissible quote envelope for an intake.
type Engine struct {
	Rules    []Rule
	MaxUnits int
}

func NewEngine() *Engine {
	return &Engine{Rules: DefaultRules, MaxUnits: DefaultMaxUnits}
}

// Bounds is total: every intake yields bounds with
// 1 <= MinUnits <= MaxUnits <= cap and MinHighUnits, when set, inside
// [MinUnits, MaxUnits].
func (e *Engine) Bounds(in entity.JobIntake) entity.QuoteBounds {
	var b entity.QuoteBounds
	for _, rule := range e.Rules {
		if c, ok := rule(in); ok {
			b = b.Merge(c)
		}
	}
	return e.normalize(b)
}

func (e *Engine) normalize(b entity.QuoteBounds) entity.QuoteBounds {
	limit := e.MaxUnits
	if limit < 1 {
		limit = DefaultMaxUnits
	}

	b.MinUnits = clampInt(b.MinUnits, 1, limit)
	b.MaxUnits = clampInt(b.MaxUnits, b.MinUnits, limit)
	if b.HasMinHigh() {
		b.MinHighUnits = clampInt(b.MinHighUnits, b.MinUnits, b.MaxUnits)
	}
	return b
}

func clampInt(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
