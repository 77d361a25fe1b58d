package ledger

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Region defines a named economy: its denominations and its exchange-rate
// table toward other regions, expressed with this region as the pivot.
//
// Regions are loaded once at startup and immutable thereafter.
type Region struct {
	// Key is the globally unique machine identifier.
	Key string `yaml:"key"`
	// Name is the human-readable region name.
	Name string `yaml:"name"`
	// Coins are the region's denominations, ordered highest UnitValue first
	// after loading. At least one coin must define the base unit (value 1).
	Coins []*Coin `yaml:"coins"`
	// ExchangeRates maps another region's key to a positive multiplier:
	// 1 unit of this region's base currency equals X units of the target's.
	// Valid only when this region is the pivot; not symmetric or transitive.
	ExchangeRates map[string]float64 `yaml:"exchange_rates"`
}

// Validate checks that the Region satisfies its invariants. Exchange-rate
// target keys are validated later by NewRegistry, when all regions are known.
//
// Postcondition: returns nil iff the region's own fields are valid.
func (r *Region) Validate() error {
	var errs []error
	if r.Key == "" {
		errs = append(errs, errors.New("Key must not be empty"))
	}
	if r.Name == "" {
		errs = append(errs, errors.New("Name must not be empty"))
	}
	if len(r.Coins) == 0 {
		errs = append(errs, errors.New("Coins must not be empty"))
	}
	seen := make(map[string]bool, len(r.Coins))
	hasBase := false
	for _, c := range r.Coins {
		if err := c.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if seen[c.Key] {
			errs = append(errs, fmt.Errorf("duplicate coin key %q", c.Key))
		}
		seen[c.Key] = true
		if c.UnitValue == 1 {
			hasBase = true
		}
	}
	if len(r.Coins) > 0 && !hasBase {
		errs = append(errs, errors.New("at least one coin must have UnitValue 1"))
	}
	for key, rate := range r.ExchangeRates {
		if rate <= 0 {
			errs = append(errs, fmt.Errorf("exchange rate for %q must be > 0, got %v", key, rate))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("region validation failed: %v", errs)
	}
	return nil
}

// CoinByKey returns the coin with the given key and whether it was found.
func (r *Region) CoinByKey(key string) (*Coin, bool) {
	for _, c := range r.Coins {
		if c.Key == key {
			return c, true
		}
	}
	return nil, false
}

// Rate returns the pivot-relative multiplier toward the target region.
//
// Postcondition: ok is true iff the rate is present in the table.
func (r *Region) Rate(targetKey string) (float64, bool) {
	rate, ok := r.ExchangeRates[targetKey]
	return rate, ok
}

// LoadRegions reads all *.yaml and *.yml files from dir, parses each as a
// Region, validates it, and sorts its coins highest UnitValue first.
//
// Precondition: dir is a readable directory path.
// Postcondition: returns all valid Regions or the first encountered error.
func LoadRegions(dir string) ([]*Region, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("LoadRegions: cannot read directory %q: %w", dir, err)
	}

	var regions []*Region
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || (!strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml")) {
			continue
		}
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("LoadRegions: cannot read file %q: %w", path, err)
		}
		var r Region
		if err := yaml.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("LoadRegions: cannot parse file %q: %w", path, err)
		}
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("LoadRegions: invalid region in %q: %w", path, err)
		}
		sort.SliceStable(r.Coins, func(i, j int) bool {
			return r.Coins[i].UnitValue > r.Coins[j].UnitValue
		})
		regions = append(regions, &r)
	}
	return regions, nil
}
