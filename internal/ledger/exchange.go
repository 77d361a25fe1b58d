package ledger

import (
	"fmt"
	"math"
)

// Conversion is the result of routing a value through the pivot region.
type Conversion struct {
	// Converted is the value in target-region smallest units, floor-truncated.
	Converted int
	// Modifier is the combined multiplier applied to the source value.
	Modifier float64
}

// Exchange converts value from the source region's currency into the target
// region's currency, always routed through the pivot region's rate table.
//
// The conversion chains at most two lookups: divide out the pivot→source rate,
// then multiply in the pivot→target rate. The result is floor-truncated, never
// rounded: conversions systematically favor the bank. Converting between two
// non-pivot regions is only as consistent as the pivot's own table; apparent
// asymmetries there are a data-quality issue, not something to correct here.
//
// Precondition: value >= 0; pivot, target, and source must be non-nil.
// Postcondition: source == target implies Converted == value and Modifier == 1.
// Returns ErrMissingRate when a required rate is absent from the pivot table.
func Exchange(value int, pivot, target, source *Region) (Conversion, error) {
	if source.Key == target.Key {
		return Conversion{Converted: value, Modifier: 1}, nil
	}

	modifier := 1.0
	if pivot.Key != source.Key {
		rate, ok := pivot.Rate(source.Key)
		if !ok {
			return Conversion{}, fmt.Errorf("%w: pivot %q has no rate for source %q",
				ErrMissingRate, pivot.Key, source.Key)
		}
		modifier /= rate
	}
	if pivot.Key != target.Key {
		rate, ok := pivot.Rate(target.Key)
		if !ok {
			return Conversion{}, fmt.Errorf("%w: pivot %q has no rate for target %q",
				ErrMissingRate, pivot.Key, target.Key)
		}
		modifier *= rate
	}

	return Conversion{
		Converted: int(math.Floor(float64(value) * modifier)),
		Modifier:  modifier,
	}, nil
}
