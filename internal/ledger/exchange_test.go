package ledger

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func exchangeRegions() (pivot, east, west *Region) {
	pivot = &Region{
		Key:  "aldmark",
		Name: "Aldmark",
		ExchangeRates: map[string]float64{
			"vessary": 1.2,
			"norvik":  0.8,
		},
	}
	east = &Region{Key: "vessary", Name: "Vessary"}
	west = &Region{Key: "norvik", Name: "Norvik"}
	return pivot, east, west
}

func TestExchangeIdentity(t *testing.T) {
	pivot, east, _ := exchangeRegions()
	conv, err := Exchange(500, pivot, east, east)
	require.NoError(t, err)
	assert.Equal(t, 500, conv.Converted)
	assert.Equal(t, 1.0, conv.Modifier)
}

func TestExchangePivotToTarget(t *testing.T) {
	pivot, east, _ := exchangeRegions()
	// Source is the pivot itself: only the pivot→target rate applies.
	conv, err := Exchange(100, pivot, east, pivot)
	require.NoError(t, err)
	assert.Equal(t, 120, conv.Converted)
	assert.InDelta(t, 1.2, conv.Modifier, 1e-12)
}

func TestExchangeSourceToPivot(t *testing.T) {
	pivot, east, _ := exchangeRegions()
	// Target is the pivot: divide out the pivot→source rate.
	conv, err := Exchange(120, pivot, pivot, east)
	require.NoError(t, err)
	assert.Equal(t, 100, conv.Converted)
	assert.InDelta(t, 1/1.2, conv.Modifier, 1e-12)
}

func TestExchangeTwoStepRouting(t *testing.T) {
	pivot, east, west := exchangeRegions()
	// norvik → vessary routes through aldmark: (1/0.8) * 1.2 = 1.5.
	conv, err := Exchange(100, pivot, east, west)
	require.NoError(t, err)
	assert.Equal(t, 150, conv.Converted)
	assert.InDelta(t, 1.5, conv.Modifier, 1e-12)
}

func TestExchangeFloorsInBankFavor(t *testing.T) {
	pivot, east, _ := exchangeRegions()
	// 7 * 1.2 = 8.4 → 8, never 9.
	conv, err := Exchange(7, pivot, east, pivot)
	require.NoError(t, err)
	assert.Equal(t, 8, conv.Converted)
}

func TestExchangeMissingRate(t *testing.T) {
	pivot, east, _ := exchangeRegions()
	delete(pivot.ExchangeRates, "vessary")

	_, err := Exchange(100, pivot, east, pivot)
	assert.ErrorIs(t, err, ErrMissingRate)

	_, err = Exchange(100, pivot, pivot, east)
	assert.ErrorIs(t, err, ErrMissingRate)
}

func TestExchangeZeroValue(t *testing.T) {
	pivot, east, _ := exchangeRegions()
	conv, err := Exchange(0, pivot, east, pivot)
	require.NoError(t, err)
	assert.Equal(t, 0, conv.Converted)
}

// Property: the floored conversion never exceeds the exact product and never
// undershoots it by a full unit.
func TestPropertyExchangeFloorBounds(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		value := rapid.IntRange(0, 100_000).Draw(t, "value")
		rate := rapid.Float64Range(0.01, 10).Draw(t, "rate")

		pivot := &Region{
			Key:           "pivot",
			Name:          "Pivot",
			ExchangeRates: map[string]float64{"other": rate},
		}
		other := &Region{Key: "other", Name: "Other"}

		conv, err := Exchange(value, pivot, other, pivot)
		if err != nil {
			t.Fatalf("Exchange failed: %v", err)
		}
		exact := float64(value) * rate
		if float64(conv.Converted) > exact {
			t.Fatalf("converted %d exceeds exact %f", conv.Converted, exact)
		}
		if exact-float64(conv.Converted) >= 1 {
			t.Fatalf("converted %d undershoots exact %f by a full unit", conv.Converted, exact)
		}
		if conv.Converted != int(math.Floor(exact)) {
			t.Fatalf("converted %d is not floor(%f)", conv.Converted, exact)
		}
	})
}
