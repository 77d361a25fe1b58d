package ledger

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/tmarsden/coffers/internal/dice"
	"github.com/tmarsden/coffers/internal/purse"
)

// HoldingStore is the engine's view of a character's currency inventory.
// Implementations must apply ApplyQuantities as one all-or-nothing batch so
// other handlers on the event loop never observe a partial deduction.
type HoldingStore interface {
	// Holdings returns a snapshot of the character's holdings.
	Holdings(ctx context.Context, characterID int64) ([]purse.Holding, error)
	// CreateHoldings adds new (placeholder) holdings.
	CreateHoldings(ctx context.Context, characterID int64, hs []purse.Holding) error
	// ApplyQuantities applies a batch of quantity updates atomically.
	ApplyQuantities(ctx context.Context, characterID int64, updates []purse.QuantityUpdate) error
}

// RegionDraw records how much one region contributed to an operation.
type RegionDraw struct {
	// RegionKey is the region drawn from (or credited to).
	RegionKey string
	// Value is the amount in that region's smallest units.
	Value int
	// Converted is Value expressed in target-region smallest units.
	Converted int
	// Modifier is the exchange multiplier applied (1 for the target region).
	Modifier float64
}

// Outcome is the structured result of a successful pay or credit operation,
// suitable for rendering into a notification or chat message by the host UI.
type Outcome struct {
	// Command is the raw command string that was executed.
	Command string
	// Amount is the parsed request amount.
	Amount Amount
	// RegionKey is the target region.
	RegionKey string
	// Draws lists per-region contributions, target region first.
	Draws []RegionDraw
	// PlaceholdersCreated counts zero-quantity holdings back-filled on the
	// pay path so deduction math had a uniform substrate.
	PlaceholdersCreated int
}

// Summary renders a human-readable ledger breakdown.
func (o *Outcome) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s in %s", o.Amount.Format(), o.RegionKey)
	for _, d := range o.Draws {
		if d.RegionKey == o.RegionKey {
			fmt.Fprintf(&b, "; %s: %s", d.RegionKey, Normalize(d.Converted).Format())
			continue
		}
		fmt.Fprintf(&b, "; %s: %s (x%.4g)", d.RegionKey, Normalize(d.Converted).Format(), d.Modifier)
	}
	return b.String()
}

// Engine executes pay and credit operations against a HoldingStore.
// Each invocation runs to completion before the next is dispatched; all
// holding mutations are committed as a single batch, so a failure anywhere
// before commit leaves holdings untouched.
type Engine struct {
	registry *Registry
	store    HoldingStore
	scanner  *Scanner
	logger   *zap.Logger
	roller   *dice.Roller
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithFlourish attaches a roller for the decorative coin-toss roll fired
// after a successful payment. Purely cosmetic.
func WithFlourish(r *dice.Roller) EngineOption {
	return func(e *Engine) { e.roller = r }
}

// NewEngine creates an Engine.
//
// Precondition: registry, store, and logger must be non-nil.
func NewEngine(registry *Registry, store HoldingStore, logger *zap.Logger, opts ...EngineOption) *Engine {
	e := &Engine{
		registry: registry,
		store:    store,
		scanner:  NewScanner(registry, logger),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Pay deducts the commanded amount from the character's holdings, preferring
// same-region coins and falling back to cross-region conversion unless the
// command carries the strict flag.
//
// Postcondition: on any error no holding is mutated. On success all quantity
// changes are committed in one batch and the Outcome reports every region
// drawn from.
func (e *Engine) Pay(ctx context.Context, characterID int64, command string) (*Outcome, error) {
	req, err := ParseRequest(command)
	if err != nil {
		return nil, err
	}
	target, pivot, err := e.resolveRegions(req)
	if err != nil {
		return nil, err
	}

	holdings, err := e.store.Holdings(ctx, characterID)
	if err != nil {
		return nil, fmt.Errorf("ledger: Engine.Pay: loading holdings: %w", err)
	}
	grouped, err := e.scanner.Group(holdings, target, pivot)
	if err != nil {
		return nil, fmt.Errorf("ledger: Engine.Pay: scanning holdings: %w", err)
	}

	requested := req.Amount.Total()
	w := newWorkspace(characterID)
	sameGroup := grouped.Groups[target.Key]

	var draws []RegionDraw
	switch {
	case e.sameRegionFeasible(sameGroup, req.Amount):
		draws, err = e.deductSameRegion(w, sameGroup, req.Amount)
	case !req.Strict && grouped.TotalConverted >= requested:
		draws, err = e.deductMixed(w, grouped, requested)
	default:
		return nil, e.insufficient(grouped, requested, req.Strict)
	}
	if err != nil {
		return nil, err
	}

	w.consolidateTouched()

	if err := e.commit(ctx, w); err != nil {
		return nil, err
	}

	if e.roller != nil {
		e.roller.Flourish()
	}

	outcome := &Outcome{
		Command:             command,
		Amount:              req.Amount,
		RegionKey:           target.Key,
		Draws:               draws,
		PlaceholdersCreated: len(w.created),
	}
	e.logger.Info("payment executed",
		zap.Int64("character", characterID),
		zap.String("region", target.Key),
		zap.Int("amount", requested),
		zap.Int("regions_drawn", len(draws)),
	)
	return outcome, nil
}

// Credit adds the commanded amount to the character's holdings in the target
// region. Unlike Pay it is not cross-region-aware and does not auto-provision
// holdings: a character missing one of the region's denominations fails with
// ErrMissingDenominations, since minting holdings on credit would hide data
// defects.
//
// Postcondition: on error no holding is mutated; on success all increments
// are committed in one batch.
func (e *Engine) Credit(ctx context.Context, characterID int64, command string) (*Outcome, error) {
	req, err := ParseRequest(command)
	if err != nil {
		return nil, err
	}
	target, _, err := e.resolveRegions(req)
	if err != nil {
		return nil, err
	}

	holdings, err := e.store.Holdings(ctx, characterID)
	if err != nil {
		return nil, fmt.Errorf("ledger: Engine.Credit: loading holdings: %w", err)
	}

	// Locate one holding per denomination of the target region.
	slots := make([]*purse.Holding, len(target.Coins))
	for i := range holdings {
		h := &holdings[i]
		for ci, coin := range target.Coins {
			if slots[ci] == nil && h.CoinKey == coin.Key {
				slots[ci] = h
			}
		}
	}
	for ci, coin := range target.Coins {
		if slots[ci] == nil {
			return nil, fmt.Errorf("%w: no holding for coin %q in region %q",
				ErrMissingDenominations, coin.Key, target.Key)
		}
	}

	counts := e.creditCounts(req.Amount, target)
	updates := make([]purse.QuantityUpdate, 0, len(slots))
	for ci, h := range slots {
		if counts[ci] == 0 {
			continue
		}
		updates = append(updates, purse.QuantityUpdate{
			HoldingID: h.ID,
			Quantity:  h.Quantity + counts[ci],
		})
	}
	if err := e.store.ApplyQuantities(ctx, characterID, updates); err != nil {
		return nil, fmt.Errorf("ledger: Engine.Credit: committing: %w", err)
	}

	total := req.Amount.Total()
	e.logger.Info("credit executed",
		zap.Int64("character", characterID),
		zap.String("region", target.Key),
		zap.Int("amount", total),
	)
	return &Outcome{
		Command:   command,
		Amount:    req.Amount,
		RegionKey: target.Key,
		Draws: []RegionDraw{
			{RegionKey: target.Key, Value: total, Converted: total, Modifier: 1},
		},
	}, nil
}

// Balance scans the character's holdings against the current region.
func (e *Engine) Balance(ctx context.Context, characterID int64) (*GroupedHoldings, error) {
	pivot, ok := e.registry.Current()
	if !ok {
		return nil, ErrNoCurrentRegion
	}
	holdings, err := e.store.Holdings(ctx, characterID)
	if err != nil {
		return nil, fmt.Errorf("ledger: Engine.Balance: loading holdings: %w", err)
	}
	return e.scanner.Group(holdings, pivot, pivot)
}

// ConsolidateRegion re-expresses the character's holdings of one region in
// the minimal canonical denomination counts and commits the result as one
// batch.
func (e *Engine) ConsolidateRegion(ctx context.Context, characterID int64, regionKey string) error {
	region, ok := e.registry.Region(regionKey)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownRegion, regionKey)
	}
	holdings, err := e.store.Holdings(ctx, characterID)
	if err != nil {
		return fmt.Errorf("ledger: Engine.ConsolidateRegion: loading holdings: %w", err)
	}
	grouped, err := e.scanner.Group(holdings, region, region)
	if err != nil {
		return err
	}
	grp, ok := grouped.Groups[regionKey]
	if !ok {
		return nil
	}
	updates := Consolidate(grp.Holdings)
	if len(updates) == 0 {
		return nil
	}
	if err := e.store.ApplyQuantities(ctx, characterID, updates); err != nil {
		return fmt.Errorf("ledger: Engine.ConsolidateRegion: committing: %w", err)
	}
	return nil
}

// resolveRegions returns the target and pivot regions for a request.
// The pivot is always the current region; the target defaults to it.
func (e *Engine) resolveRegions(req Request) (target, pivot *Region, err error) {
	pivot, ok := e.registry.Current()
	if !ok {
		return nil, nil, ErrNoCurrentRegion
	}
	if req.RegionKey == "" {
		return pivot, pivot, nil
	}
	target, ok = e.registry.Region(req.RegionKey)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownRegion, req.RegionKey)
	}
	return target, pivot, nil
}

// sameRegionFeasible reports whether the request can be satisfied from the
// target region's holdings alone using the tier descent: each tier is paid
// from its own holdings first, with any shortfall borrowed from the next
// higher denomination. Lower denominations never aggregate upward, so twenty
// shillings cannot cover a one-crown request.
func (e *Engine) sameRegionFeasible(group *RegionGroup, amount Amount) bool {
	if group == nil {
		return amount.IsZero()
	}
	needed := tierNeeds(amount, group.Region)
	if needed == nil {
		// Non-canonical denomination scheme: feasible only by total value.
		return group.Total >= amount.Total()
	}

	qtyByID := make(map[string]int, len(group.Holdings))
	for _, h := range group.Holdings {
		qtyByID[h.ID] = h.Quantity
	}
	tiers := regionTiers(group)

	carry := 0
	for i, t := range tiers {
		need := needed[i] + carry
		carry = 0
		avail := 0
		for _, id := range t.ids {
			avail += qtyByID[id]
		}
		if avail >= need {
			continue
		}
		if i == len(tiers)-1 {
			return false
		}
		shortfall := need - avail
		ratio := tiers[i+1].coin.UnitValue / t.coin.UnitValue
		carry = ceilDiv(shortfall, ratio)
	}
	return carry == 0
}

// deductSameRegion performs the greedy denomination descent on the target
// region's holdings: lowest tier first, borrowing upward with
// ceil(shortfall/ratio) and crediting the overpayment back down as change.
func (e *Engine) deductSameRegion(w *workspace, group *RegionGroup, amount Amount) ([]RegionDraw, error) {
	tiers := w.ensureTiers(group, false)
	needed := tierNeeds(amount, group.Region)
	if needed == nil {
		if err := w.deductValue(group.Region.Key, tiers, amount.Total()); err != nil {
			return nil, err
		}
	} else {
		carry := 0
		for i, t := range tiers {
			need := needed[i] + carry
			carry = 0
			avail := w.tierQty(t)
			if avail >= need {
				w.takeFromTier(group.Region.Key, t, need)
				continue
			}
			w.takeFromTier(group.Region.Key, t, avail)
			shortfall := need - avail
			if i == len(tiers)-1 {
				return nil, fmt.Errorf("ledger: Engine.Pay: descent exhausted top denomination in %q", group.Region.Key)
			}
			ratio := tiers[i+1].coin.UnitValue / t.coin.UnitValue
			carry = ceilDiv(shortfall, ratio)
			change := carry*tiers[i+1].coin.UnitValue - shortfall*t.coin.UnitValue
			w.distributeChange(group.Region.Key, tiers[:i+1], change)
		}
	}

	total := amount.Total()
	return []RegionDraw{
		{RegionKey: group.Region.Key, Value: total, Converted: total, Modifier: 1},
	}, nil
}

// deductMixed satisfies the request by value: the target region contributes
// first, then other regions in descending converted-value order. Each foreign
// draw takes the fewest units whose floor-converted value covers the
// remainder; the floor bias means a region may contribute fractionally more
// than strictly owed, bounded by one smallest unit per region touched.
func (e *Engine) deductMixed(w *workspace, grouped *GroupedHoldings, requested int) ([]RegionDraw, error) {
	remaining := requested
	var draws []RegionDraw

	if grp, ok := grouped.Groups[grouped.Target.Key]; ok && grp.Total > 0 {
		draw := grp.Total
		if draw > remaining {
			draw = remaining
		}
		tiers := w.ensureTiers(grp, false)
		if err := w.deductValue(grp.Region.Key, tiers, draw); err != nil {
			return nil, err
		}
		remaining -= draw
		draws = append(draws, RegionDraw{
			RegionKey: grp.Region.Key, Value: draw, Converted: draw, Modifier: 1,
		})
	}

	for _, grp := range foreignByConverted(grouped) {
		if remaining <= 0 {
			break
		}
		if grp.Modifier <= 0 || grp.Total <= 0 {
			continue
		}
		contrib := grp.Converted
		if contrib > remaining {
			contrib = remaining
		}
		value := int(math.Ceil(float64(contrib) / grp.Modifier))
		for int(math.Floor(float64(value)*grp.Modifier)) < contrib {
			value++
		}
		if value > grp.Total {
			value = grp.Total
		}
		converted := int(math.Floor(float64(value) * grp.Modifier))

		tiers := w.ensureTiers(grp, true)
		if err := w.deductValue(grp.Region.Key, tiers, value); err != nil {
			return nil, err
		}
		remaining -= converted
		if remaining < 0 {
			remaining = 0
		}
		draws = append(draws, RegionDraw{
			RegionKey: grp.Region.Key, Value: value, Converted: converted, Modifier: grp.Modifier,
		})
	}

	if remaining > 0 {
		return nil, fmt.Errorf("ledger: Engine.Pay: %d units uncovered after mixed draw", remaining)
	}
	return draws, nil
}

// insufficient builds the per-region availability breakdown for a payment
// that cannot be covered.
func (e *Engine) insufficient(grouped *GroupedHoldings, requested int, strict bool) error {
	var regions []RegionAvailability
	available := 0
	for _, grp := range grouped.Groups {
		if strict && grp.Region.Key != grouped.Target.Key {
			continue
		}
		regions = append(regions, RegionAvailability{
			RegionKey: grp.Region.Key,
			Total:     grp.Total,
			Converted: grp.Converted,
			Modifier:  grp.Modifier,
		})
		available += grp.Converted
	}
	sort.Slice(regions, func(i, j int) bool {
		if regions[i].RegionKey == grouped.Target.Key {
			return true
		}
		if regions[j].RegionKey == grouped.Target.Key {
			return false
		}
		return regions[i].Converted > regions[j].Converted
	})
	return &InsufficientFundsError{
		Requested: requested,
		Available: available,
		Regions:   regions,
	}
}

// commit persists created placeholders and applies every changed quantity as
// a single batch.
func (e *Engine) commit(ctx context.Context, w *workspace) error {
	if len(w.created) > 0 {
		if err := e.store.CreateHoldings(ctx, w.characterID, w.created); err != nil {
			return fmt.Errorf("ledger: Engine.Pay: creating placeholder holdings: %w", err)
		}
	}
	updates := w.changedQuantities()
	if len(updates) == 0 {
		return nil
	}
	if err := e.store.ApplyQuantities(ctx, w.characterID, updates); err != nil {
		return fmt.Errorf("ledger: Engine.Pay: committing: %w", err)
	}
	return nil
}

// creditCounts maps the request amount onto the target region's coins.
// Canonical three-tier regions take the parsed tier counts verbatim; other
// schemes receive the greedy decomposition of the total.
func (e *Engine) creditCounts(amount Amount, target *Region) []int {
	if canonicalTiers(target) {
		return []int{amount.Gold, amount.Silver, amount.Brass}
	}
	return Decompose(amount.Total(), target.Coins)
}

// tierNeeds maps the parsed amount onto a region's tiers in ascending value
// order, or nil for regions without the canonical three-tier scheme.
func tierNeeds(amount Amount, region *Region) []int {
	if !canonicalTiers(region) {
		return nil
	}
	// region.Coins is ordered descending; tiers run ascending.
	return []int{amount.Brass, amount.Silver, amount.Gold}
}

// canonicalTiers reports whether the region's coins carry the canonical
// gold/silver/brass unit values. Three coins at other values are a different
// scheme and must go through value-based decomposition.
func canonicalTiers(region *Region) bool {
	return len(region.Coins) == 3 &&
		region.Coins[0].UnitValue == BrassPerGold &&
		region.Coins[1].UnitValue == BrassPerSilver &&
		region.Coins[2].UnitValue == 1
}

// foreignByConverted returns non-target groups ordered by converted value
// descending, ties broken by region key for determinism.
func foreignByConverted(grouped *GroupedHoldings) []*RegionGroup {
	var out []*RegionGroup
	for key, grp := range grouped.Groups {
		if key == grouped.Target.Key {
			continue
		}
		out = append(out, grp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Converted != out[j].Converted {
			return out[i].Converted > out[j].Converted
		}
		return out[i].Region.Key < out[j].Region.Key
	})
	return out
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
