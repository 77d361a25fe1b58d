// Package purse defines the money-holding model and an in-memory holding
// store with snapshot reads and atomic batch mutation.
package purse

import (
	"github.com/google/uuid"
)

// Holding is an owned quantity of one coin, tied to a character.
// Holdings are mutated only through batched quantity updates.
type Holding struct {
	// ID is the unique holding instance identifier.
	ID string
	// CharacterID is the owning character.
	CharacterID int64
	// RegionKey is the owning region. May be empty on legacy holdings; the
	// scanner back-fills it from the coin index.
	RegionKey string
	// CoinKey identifies the denomination.
	CoinKey string
	// Quantity is the owned count. Invariant: Quantity >= 0.
	Quantity int
	// UnitValue is the coin's value in the region's smallest unit. May be
	// zero on legacy holdings; back-filled like RegionKey.
	UnitValue int
}

// NewHolding creates a Holding with a fresh instance ID.
//
// Precondition: quantity >= 0 and unitValue >= 0.
func NewHolding(characterID int64, regionKey, coinKey string, quantity, unitValue int) Holding {
	return Holding{
		ID:          uuid.New().String(),
		CharacterID: characterID,
		RegionKey:   regionKey,
		CoinKey:     coinKey,
		Quantity:    quantity,
		UnitValue:   unitValue,
	}
}

// Value returns the holding's total value in its region's smallest unit.
func (h Holding) Value() int {
	return h.Quantity * h.UnitValue
}

// QuantityUpdate is one entry of a batched holding mutation.
type QuantityUpdate struct {
	HoldingID string
	Quantity  int
}
