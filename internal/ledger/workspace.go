package ledger

import (
	"fmt"
	"sort"

	"github.com/tmarsden/coffers/internal/purse"
)

// tier groups one denomination's holding IDs within a region.
type tier struct {
	coin *Coin
	ids  []string
}

// regionTiers returns a group's tiers in ascending unit-value order, one per
// denomination of the region, each listing the matching holding IDs.
func regionTiers(group *RegionGroup) []*tier {
	coins := group.Region.Coins // descending
	tiers := make([]*tier, 0, len(coins))
	for i := len(coins) - 1; i >= 0; i-- {
		t := &tier{coin: coins[i]}
		for _, h := range group.Holdings {
			if h.CoinKey == t.coin.Key {
				t.ids = append(t.ids, h.ID)
			}
		}
		tiers = append(tiers, t)
	}
	return tiers
}

// workspace accumulates an operation's pending quantity changes so the store
// sees them only at commit time, as one batch.
type workspace struct {
	characterID int64
	qty         map[string]int // holding ID → working quantity
	original    map[string]int // holding ID → quantity at scan time
	created     []purse.Holding
	tiers       map[string][]*tier         // region key → tiers (asc)
	touched     map[string]map[string]bool // region key → coin keys changed
}

func newWorkspace(characterID int64) *workspace {
	return &workspace{
		characterID: characterID,
		qty:         make(map[string]int),
		original:    make(map[string]int),
		tiers:       make(map[string][]*tier),
		touched:     make(map[string]map[string]bool),
	}
}

// ensureTiers registers a group's holdings in the workspace. With backfill
// set (cross-region draws), every denomination the character lacks in the
// region receives a zero-quantity placeholder holding up front so the
// deduction math has a uniform substrate; otherwise placeholders appear only
// if change ends up credited to an empty tier.
func (w *workspace) ensureTiers(group *RegionGroup, backfill bool) []*tier {
	tiers, ok := w.tiers[group.Region.Key]
	if !ok {
		for _, h := range group.Holdings {
			w.qty[h.ID] = h.Quantity
			w.original[h.ID] = h.Quantity
		}
		tiers = regionTiers(group)
		w.tiers[group.Region.Key] = tiers
	}
	if backfill {
		for _, t := range tiers {
			if len(t.ids) == 0 {
				w.addPlaceholder(group.Region.Key, t)
			}
		}
	}
	return tiers
}

// addPlaceholder creates a zero-quantity holding backing an empty tier.
func (w *workspace) addPlaceholder(regionKey string, t *tier) {
	placeholder := purse.NewHolding(w.characterID, regionKey, t.coin.Key, 0, t.coin.UnitValue)
	w.created = append(w.created, placeholder)
	w.qty[placeholder.ID] = 0
	w.original[placeholder.ID] = 0
	t.ids = []string{placeholder.ID}
}

// tierQty returns the tier's working quantity across all its holdings.
func (w *workspace) tierQty(t *tier) int {
	total := 0
	for _, id := range t.ids {
		total += w.qty[id]
	}
	return total
}

// takeFromTier removes n coins from the tier, draining holdings in order.
//
// Precondition: n <= tierQty(t).
func (w *workspace) takeFromTier(regionKey string, t *tier, n int) {
	for _, id := range t.ids {
		if n <= 0 {
			return
		}
		take := w.qty[id]
		if take > n {
			take = n
		}
		if take > 0 {
			w.qty[id] -= take
			n -= take
			w.markTouched(regionKey, t.coin.Key)
		}
	}
}

// addToTier credits n coins into the tier's first holding, creating a
// placeholder when the character holds none of the denomination yet.
func (w *workspace) addToTier(regionKey string, t *tier, n int) {
	if n <= 0 {
		return
	}
	if len(t.ids) == 0 {
		w.addPlaceholder(regionKey, t)
	}
	w.qty[t.ids[0]] += n
	w.markTouched(regionKey, t.coin.Key)
}

// distributeChange credits a value in smallest units back into the given
// tiers, filling higher denominations first.
//
// Precondition: tiers are ascending and the lowest is the base denomination.
func (w *workspace) distributeChange(regionKey string, tiers []*tier, change int) {
	for i := len(tiers) - 1; i >= 0 && change > 0; i-- {
		n := change / tiers[i].coin.UnitValue
		if n > 0 {
			w.addToTier(regionKey, tiers[i], n)
			change %= tiers[i].coin.UnitValue
		}
	}
}

// deductValue removes value smallest units from the region, taking low
// denominations first and breaking at most one larger coin for change.
//
// Precondition: the region's working total covers value.
func (w *workspace) deductValue(regionKey string, tiers []*tier, value int) error {
	for _, t := range tiers {
		if value <= 0 {
			return nil
		}
		use := value / t.coin.UnitValue
		if avail := w.tierQty(t); use > avail {
			use = avail
		}
		if use > 0 {
			w.takeFromTier(regionKey, t, use)
			value -= use * t.coin.UnitValue
		}
	}
	if value <= 0 {
		return nil
	}
	// The remainder is smaller than every coin still held: break the smallest
	// such coin and credit the difference back down.
	for j, t := range tiers {
		if w.tierQty(t) == 0 {
			continue
		}
		w.takeFromTier(regionKey, t, 1)
		w.distributeChange(regionKey, tiers[:j], t.coin.UnitValue-value)
		return nil
	}
	return fmt.Errorf("ledger: deducting %d from %q: holdings exhausted", value, regionKey)
}

// markTouched records that a denomination's quantity changed.
func (w *workspace) markTouched(regionKey, coinKey string) {
	set, ok := w.touched[regionKey]
	if !ok {
		set = make(map[string]bool)
		w.touched[regionKey] = set
	}
	set[coinKey] = true
}

// consolidateTouched re-expresses every region where the payout touched more
// than one denomination in its minimal canonical form.
func (w *workspace) consolidateTouched() {
	for regionKey, coins := range w.touched {
		if len(coins) < 2 {
			continue
		}
		tiers, ok := w.tiers[regionKey]
		if !ok {
			continue
		}
		var hs []purse.Holding
		for _, t := range tiers {
			for _, id := range t.ids {
				hs = append(hs, purse.Holding{
					ID:        id,
					RegionKey: regionKey,
					CoinKey:   t.coin.Key,
					Quantity:  w.qty[id],
					UnitValue: t.coin.UnitValue,
				})
			}
		}
		for _, u := range Consolidate(hs) {
			w.qty[u.HoldingID] = u.Quantity
		}
	}
}

// changedQuantities returns the batch of quantity updates for every holding
// whose working quantity differs from its scanned quantity, in deterministic
// order.
func (w *workspace) changedQuantities() []purse.QuantityUpdate {
	ids := make([]string, 0, len(w.qty))
	for id := range w.qty {
		if w.qty[id] != w.original[id] {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	updates := make([]purse.QuantityUpdate, 0, len(ids))
	for _, id := range ids {
		updates = append(updates, purse.QuantityUpdate{HoldingID: id, Quantity: w.qty[id]})
	}
	return updates
}
