package ledger

import (
	"fmt"
	"strings"
)

const (
	// BrassPerSilver is the number of base-unit brass pennies in one silver shilling.
	BrassPerSilver = 12
	// BrassPerGold is the number of base-unit brass pennies in one gold crown (20 shillings).
	BrassPerGold = 240
)

// Canonical tier abbreviations used by the command grammar and Format.
const (
	AbbrevGold   = "gc"
	AbbrevSilver = "ss"
	AbbrevBrass  = "bp"
)

// Amount is a quantity of money in the canonical three-denomination form.
// It is ephemeral: created per operation, never persisted.
type Amount struct {
	Gold   int
	Silver int
	Brass  int
}

// Normalize converts a total in smallest units into the canonical breakdown.
//
// Precondition: total >= 0.
// Postcondition: result.Total() == total; 0 <= Silver < 20; 0 <= Brass < 12.
func Normalize(total int) Amount {
	gold := total / BrassPerGold
	remainder := total % BrassPerGold
	return Amount{
		Gold:   gold,
		Silver: remainder / BrassPerSilver,
		Brass:  remainder % BrassPerSilver,
	}
}

// Total returns the amount's value in smallest units.
//
// Postcondition: Total() == Gold*240 + Silver*12 + Brass.
func (a Amount) Total() int {
	return a.Gold*BrassPerGold + a.Silver*BrassPerSilver + a.Brass
}

// IsZero reports whether all tiers are zero.
func (a Amount) IsZero() bool {
	return a.Gold == 0 && a.Silver == 0 && a.Brass == 0
}

// Add returns the tier-wise sum of a and b.
func (a Amount) Add(b Amount) Amount {
	return Amount{
		Gold:   a.Gold + b.Gold,
		Silver: a.Silver + b.Silver,
		Brass:  a.Brass + b.Brass,
	}
}

// Format returns a compact human-readable form such as "1gc 2ss 3bp".
// Zero-valued tiers are omitted; a zero amount renders as the single token "0".
//
// Precondition: all tiers >= 0.
func (a Amount) Format() string {
	if a.IsZero() {
		return "0"
	}
	var parts []string
	if a.Gold > 0 {
		parts = append(parts, fmt.Sprintf("%d%s", a.Gold, AbbrevGold))
	}
	if a.Silver > 0 {
		parts = append(parts, fmt.Sprintf("%d%s", a.Silver, AbbrevSilver))
	}
	if a.Brass > 0 {
		parts = append(parts, fmt.Sprintf("%d%s", a.Brass, AbbrevBrass))
	}
	return strings.Join(parts, " ")
}

// Decompose converts a total in smallest units into per-coin counts for an
// arbitrary denomination scheme. coins must be ordered highest UnitValue first.
//
// Precondition: total >= 0; coins non-empty; coins[len-1].UnitValue == 1.
// Postcondition: sum(result[i] * coins[i].UnitValue) == total.
func Decompose(total int, coins []*Coin) []int {
	counts := make([]int, len(coins))
	remaining := total
	for i, c := range coins {
		counts[i] = remaining / c.UnitValue
		remaining %= c.UnitValue
	}
	return counts
}
