package quoting

import (
	"fmt"
	"testing"

	"github.com/hauldesk/hauldesk-api/internal/entity"
	"github.com/stretchr/testify/assert"
)

var allSizes = []entity.PerceivedSize{
	entity.SizeFewItems,
	entity.SizeSmallLoad,
	entity.SizeOneRoomHalfGarage,
	entity.SizeFullGarage,
	entity.SizeBigCleanout,
	entity.SizeUnsure,
}

var allTags = []entity.ServiceTag{
	entity.TagBulkyHeavy,
	entity.TagAppliances,
	entity.TagConstructionDebris,
	entity.TagHotTub,
	entity.TagPiano,
	entity.TagBusinessCommercial,
	entity.TagEstateCleanout,
	entity.TagYardWaste,
	entity.TagFurniture,
	entity.ServiceTag("made_up_tag"),
}

func tagSubset(mask int) []entity.ServiceTag {
	var tags []entity.ServiceTag
	for i, tag := range allTags {
		if mask&(1<<i) != 0 {
			tags = append(tags, tag)
		}
	}
	return tags
}

func assertWellFormed(t *testing.T, b entity.QuoteBounds) {
	t.Helper()
	assert.GreaterOrEqual(t, b.MinUnits, 1)
	assert.LessOrEqual(t, b.MinUnits, b.MaxUnits)
	assert.LessOrEqual(t, b.MaxUnits, DefaultMaxUnits)
	if b.HasMinHigh() {
		assert.GreaterOrEqual(t, b.MinHighUnits, b.MinUnits)
		assert.LessOrEqual(t, b.MinHighUnits, b.MaxUnits)
	}
}

func TestEngineBounds(t *testing.T) {
	engine := NewEngine()

	t.Run("Size table", func(t *testing.T) {
		cases := map[entity.PerceivedSize]entity.QuoteBounds{
			entity.SizeFewItems:          {MinUnits: 1, MaxUnits: 1},
			entity.SizeSmallLoad:         {MinUnits: 1, MaxUnits: 2},
			entity.SizeOneRoomHalfGarage: {MinUnits: 2, MaxUnits: 3},
			entity.SizeFullGarage:        {MinUnits: 3, MaxUnits: 4},
			entity.SizeBigCleanout:       {MinUnits: 4, MaxUnits: 6},
			entity.SizeUnsure:            {MinUnits: 2, MaxUnits: 4},
		}
		for size, want := range cases {
			assert.Equal(t, want, engine.Bounds(entity.JobIntake{Size: size}), string(size))
		}
	})

	t.Run("Unknown size defaults to unsure", func(t *testing.T) {
		got := engine.Bounds(entity.JobIntake{Size: entity.PerceivedSize("warehouse")})
		assert.Equal(t, entity.QuoteBounds{MinUnits: 2, MaxUnits: 4}, got)

		got = engine.Bounds(entity.JobIntake{})
		assert.Equal(t, entity.QuoteBounds{MinUnits: 2, MaxUnits: 4}, got)
	})

	t.Run("Bulky tag shifts the tier", func(t *testing.T) {
		got := engine.Bounds(entity.JobIntake{
			Size:     entity.SizeSmallLoad,
			Services: []entity.ServiceTag{entity.TagPiano},
		})
		assert.Equal(t, entity.QuoteBounds{MinUnits: 2, MaxUnits: 3}, got)
	})

	t.Run("Commercial big cleanout", func(t *testing.T) {
		got := engine.Bounds(entity.JobIntake{
			Size:     entity.SizeBigCleanout,
			Services: []entity.ServiceTag{entity.TagBusinessCommercial},
		})
		assert.Equal(t, entity.QuoteBounds{MinUnits: 4, MaxUnits: 8, MinHighUnits: 6}, got)
	})

	t.Run("Commercial alone does not widen", func(t *testing.T) {
		got := engine.Bounds(entity.JobIntake{
			Size:     entity.SizeFullGarage,
			Services: []entity.ServiceTag{entity.TagBusinessCommercial},
		})
		assert.Equal(t, entity.QuoteBounds{MinUnits: 3, MaxUnits: 4}, got)
	})

	t.Run("Global cap", func(t *testing.T) {
		capped := &Engine{Rules: DefaultRules, MaxUnits: 5}
		got := capped.Bounds(entity.JobIntake{
			Size:     entity.SizeBigCleanout,
			Services: []entity.ServiceTag{entity.TagBusinessCommercial, entity.TagHotTub},
		})
		assert.Equal(t, entity.QuoteBounds{MinUnits: 5, MaxUnits: 5, MinHighUnits: 5}, got)
	})
}

func TestEngineBoundsMonotonic(t *testing.T) {
	engine := NewEngine()
	subsets := 1 << len(allTags)

	for _, size := range allSizes {
		for mask := 0; mask < subsets; mask++ {
			base := engine.Bounds(entity.JobIntake{Size: size, Services: tagSubset(mask)})
			assertWellFormed(t, base)

			for i := range allTags {
				if mask&(1<<i) != 0 {
					continue
				}
				wider := engine.Bounds(entity.JobIntake{Size: size, Services: tagSubset(mask | 1<<i)})
				if !base.Contains(wider) {
					t.Fatalf("adding %s to %v at %s narrowed %+v to %+v", allTags[i], tagSubset(mask), size, base, wider)
				}
			}
		}
	}
}

func TestEngineRuleOrderIrrelevant(t *testing.T) {
	intake := entity.JobIntake{
		Size:     entity.SizeBigCleanout,
		Services: []entity.ServiceTag{entity.TagBusinessCommercial, entity.TagAppliances},
	}
	rules := DefaultRules
	perms := [][]Rule{
		{rules[0], rules[1], rules[2]},
		{rules[0], rules[2], rules[1]},
		{rules[1], rules[0], rules[2]},
		{rules[1], rules[2], rules[0]},
		{rules[2], rules[0], rules[1]},
		{rules[2], rules[1], rules[0]},
	}

	want := NewEngine().Bounds(intake)
	for i, p := range perms {
		got := (&Engine{Rules: p, MaxUnits: DefaultMaxUnits}).Bounds(intake)
		assert.Equal(t, want, got, fmt.Sprintf("permutation %d", i))
	}
}

func TestQuoteBoundsMerge(t *testing.T) {
	samples := []entity.QuoteBounds{
		{},
		{MinUnits: 1, MaxUnits: 1},
		{MinUnits: 2, MaxUnits: 4},
		{MinUnits: 4, MaxUnits: 8, MinHighUnits: 6},
		{MinUnits: 5, MaxUnits: 7},
	}

	for _, a := range samples {
		assert.Equal(t, a, a.Merge(a), "idempotent")
		for _, b := range samples {
			assert.Equal(t, a.Merge(b), b.Merge(a), "commutative")
			assert.True(t, a.Contains(a.Merge(b)))
			for _, c := range samples {
				assert.Equal(t, a.Merge(b).Merge(c), a.Merge(b.Merge(c)), "associative")
			}
		}
	}
}
