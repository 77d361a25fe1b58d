package ledger

import (
	"errors"
	"sort"

	"go.uber.org/zap"

	"github.com/tmarsden/coffers/internal/purse"
)

// RegionGroup collects one region's share of a character's holdings.
type RegionGroup struct {
	// Region is the owning region.
	Region *Region
	// Holdings are the region's holdings, highest UnitValue first.
	Holdings []purse.Holding
	// Total is the group's value in the region's smallest unit.
	Total int
	// Converted is Total expressed in target-region smallest units.
	// Zero when the pivot lacks the needed rate.
	Converted int
	// Modifier is the exchange multiplier used for Converted; zero when the
	// needed rate was missing.
	Modifier float64
}

// GroupedHoldings is the result of scanning a character's currency.
type GroupedHoldings struct {
	// Target is the region payments are expressed in.
	Target *Region
	// Groups maps region key to that region's group.
	Groups map[string]*RegionGroup
	// TotalConverted sums every group's Converted value.
	TotalConverted int
}

// TargetGroup returns the target region's group, or an empty group when the
// character holds nothing there.
func (g *GroupedHoldings) TargetGroup() *RegionGroup {
	if grp, ok := g.Groups[g.Target.Key]; ok {
		return grp
	}
	return &RegionGroup{Region: g.Target, Modifier: 1}
}

// Scanner partitions a character's holdings by owning region and computes
// per-region and converted totals. Scans are read-only.
type Scanner struct {
	registry *Registry
	logger   *zap.Logger
}

// NewScanner creates a Scanner.
//
// Precondition: registry and logger must be non-nil.
func NewScanner(registry *Registry, logger *zap.Logger) *Scanner {
	return &Scanner{registry: registry, logger: logger}
}

// Group buckets holdings by owning region and computes, for each region, the
// total value in that region's smallest unit plus the value converted into
// the target region via the pivot.
//
// Holdings whose coin matches no registered region are skipped and logged,
// never erased. Holdings with missing region or unit-value metadata are
// back-filled from the registry on the returned copies (idempotent). A region
// whose conversion rate is missing from the pivot table contributes zero to
// TotalConverted and is logged rather than failing the scan.
//
// Precondition: target and pivot must be registered regions.
// Postcondition: holdings are not mutated; each group's Holdings are sorted
// highest UnitValue first.
func (s *Scanner) Group(holdings []purse.Holding, target, pivot *Region) (*GroupedHoldings, error) {
	grouped := &GroupedHoldings{
		Target: target,
		Groups: make(map[string]*RegionGroup),
	}

	for _, h := range holdings {
		regionKey := h.RegionKey
		if regionKey == "" {
			key, ok := s.registry.RegionForCoin(h.CoinKey)
			if !ok {
				s.logger.Debug("skipping holding with unrecognized coin",
					zap.String("coin", h.CoinKey), zap.String("holding", h.ID))
				continue
			}
			regionKey = key
		}
		region, ok := s.registry.Region(regionKey)
		if !ok {
			s.logger.Debug("skipping holding with unrecognized region",
				zap.String("region", regionKey), zap.String("holding", h.ID))
			continue
		}
		coin, ok := region.CoinByKey(h.CoinKey)
		if !ok {
			s.logger.Debug("skipping holding whose coin is not defined in its region",
				zap.String("coin", h.CoinKey), zap.String("region", regionKey))
			continue
		}

		h.RegionKey = regionKey
		if h.UnitValue == 0 {
			h.UnitValue = coin.UnitValue
		}

		grp, ok := grouped.Groups[regionKey]
		if !ok {
			grp = &RegionGroup{Region: region}
			grouped.Groups[regionKey] = grp
		}
		grp.Holdings = append(grp.Holdings, h)
		grp.Total += h.Quantity * h.UnitValue
	}

	for _, grp := range grouped.Groups {
		sort.SliceStable(grp.Holdings, func(i, j int) bool {
			return grp.Holdings[i].UnitValue > grp.Holdings[j].UnitValue
		})

		conv, err := Exchange(grp.Total, pivot, target, grp.Region)
		if err != nil {
			if errors.Is(err, ErrMissingRate) {
				s.logger.Warn("region excluded from conversion, rate missing from pivot table",
					zap.String("region", grp.Region.Key),
					zap.String("pivot", pivot.Key),
					zap.Error(err))
				continue
			}
			return nil, err
		}
		grp.Converted = conv.Converted
		grp.Modifier = conv.Modifier
		grouped.TotalConverted += conv.Converted
	}

	return grouped, nil
}
