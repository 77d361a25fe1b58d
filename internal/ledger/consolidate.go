package ledger

import (
	"sort"

	"github.com/tmarsden/coffers/internal/purse"
)

// Consolidate re-expresses one region's holdings in the minimal number of
// higher-denomination coins for the same total value: holdings are sorted by
// unit value descending, the grand total is computed, then quantities are
// greedily redistributed (quantity = floor(remaining / unit value)).
//
// When a region has several holdings of the same coin, the first (by current
// order) receives the redistributed quantity and the rest drop to zero.
//
// Precondition: all holdings belong to the same region and have UnitValue > 0.
// Postcondition: the returned updates preserve total value, contain only
// holdings whose quantity changes, and applying Consolidate to the result
// yields no further updates (idempotence).
func Consolidate(holdings []purse.Holding) []purse.QuantityUpdate {
	if len(holdings) == 0 {
		return nil
	}

	sorted := make([]purse.Holding, len(holdings))
	copy(sorted, holdings)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].UnitValue > sorted[j].UnitValue
	})

	total := 0
	for _, h := range sorted {
		total += h.Quantity * h.UnitValue
	}

	remaining := total
	seen := make(map[string]bool, len(sorted))
	wants := make([]int, len(sorted))
	for i, h := range sorted {
		if seen[h.CoinKey] {
			continue
		}
		seen[h.CoinKey] = true
		wants[i] = remaining / h.UnitValue
		remaining %= h.UnitValue
	}
	if remaining != 0 {
		// No base denomination among the holdings; redistributing would lose
		// value, so leave everything as-is.
		return nil
	}

	var updates []purse.QuantityUpdate
	for i, h := range sorted {
		if wants[i] != h.Quantity {
			updates = append(updates, purse.QuantityUpdate{HoldingID: h.ID, Quantity: wants[i]})
		}
	}
	return updates
}
