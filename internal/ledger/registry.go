package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// SettingStore persists process-wide ledger settings such as the current
// region. Implementations must tolerate an unset value (return "").
type SettingStore interface {
	// CurrentRegion returns the persisted current region key, or "" when unset.
	CurrentRegion(ctx context.Context) (string, error)
	// SetCurrentRegion persists the current region key.
	SetCurrentRegion(ctx context.Context, key string) error
}

// Registry is the read-mostly store of all Region definitions plus the
// currently selected pivot region. Region data is immutable after
// construction; only the current-region pointer mutates, guarded by mu.
type Registry struct {
	mu          sync.RWMutex
	regions     map[string]*Region
	coinRegions map[string]string // coin key → owning region key
	current     string
	store       SettingStore // nil = in-memory only
	logger      *zap.Logger
}

// NewRegistry builds a Registry from loaded regions, indexing coins by their
// stable keys and cross-validating every exchange-rate target.
//
// Precondition: every region passed Validate(); logger must be non-nil.
// Postcondition: returns a Registry, or an error on duplicate region keys,
// duplicate coin keys across regions, or an exchange rate referencing an
// unknown region (a configuration defect, fatal at load time).
func NewRegistry(regions []*Region, logger *zap.Logger) (*Registry, error) {
	r := &Registry{
		regions:     make(map[string]*Region, len(regions)),
		coinRegions: make(map[string]string),
		logger:      logger,
	}
	for _, region := range regions {
		if _, exists := r.regions[region.Key]; exists {
			return nil, fmt.Errorf("ledger: NewRegistry: region key %q already registered", region.Key)
		}
		r.regions[region.Key] = region
		for _, c := range region.Coins {
			if owner, exists := r.coinRegions[c.Key]; exists {
				return nil, fmt.Errorf("ledger: NewRegistry: coin key %q in region %q already owned by %q",
					c.Key, region.Key, owner)
			}
			r.coinRegions[c.Key] = region.Key
		}
	}
	for _, region := range regions {
		for target := range region.ExchangeRates {
			if _, ok := r.regions[target]; !ok {
				return nil, fmt.Errorf("ledger: NewRegistry: region %q has exchange rate for unknown region %q",
					region.Key, target)
			}
		}
	}
	return r, nil
}

// NewRegistryFromDir loads region definitions from dir and builds a Registry.
//
// Precondition: dir is a readable directory of region YAML files.
func NewRegistryFromDir(dir string, logger *zap.Logger) (*Registry, error) {
	regions, err := LoadRegions(dir)
	if err != nil {
		return nil, err
	}
	return NewRegistry(regions, logger)
}

// WithSettingStore attaches a persistence backend for the current region and
// restores any previously persisted selection.
//
// Precondition: store must be non-nil.
// Postcondition: a persisted key that is no longer registered is logged and
// ignored rather than failing startup.
func (r *Registry) WithSettingStore(ctx context.Context, store SettingStore) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.store = store

	key, err := store.CurrentRegion(ctx)
	if err != nil {
		return fmt.Errorf("ledger: restoring current region: %w", err)
	}
	if key == "" {
		return nil
	}
	if _, ok := r.regions[key]; !ok {
		r.logger.Warn("persisted current region no longer registered, ignoring",
			zap.String("region", key))
		return nil
	}
	r.current = key
	return nil
}

// Region returns the region for the given key and whether it was found.
func (r *Registry) Region(key string) (*Region, bool) {
	region, ok := r.regions[key]
	return region, ok
}

// Regions returns all registered regions sorted by key.
//
// Postcondition: len(result) == number of registered regions.
func (r *Registry) Regions() []*Region {
	out := make([]*Region, 0, len(r.regions))
	for _, region := range r.regions {
		out = append(out, region)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// RegionForCoin resolves a coin key to its owning region key.
// The index is built from stable machine keys, never localized names, so it
// stays valid regardless of the active locale.
//
// Postcondition: ok is true iff the coin key is registered.
func (r *Registry) RegionForCoin(coinKey string) (string, bool) {
	key, ok := r.coinRegions[coinKey]
	return key, ok
}

// Current returns the selected pivot region, or (nil, false) when none is set.
func (r *Registry) Current() (*Region, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.current == "" {
		return nil, false
	}
	region, ok := r.regions[r.current]
	return region, ok
}

// SetCurrent selects the pivot region and persists the choice when a
// SettingStore is attached.
//
// Postcondition: returns ErrUnknownRegion if key is not registered; on
// persistence failure the in-memory selection is left unchanged.
func (r *Registry) SetCurrent(ctx context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.regions[key]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownRegion, key)
	}
	if r.store != nil {
		if err := r.store.SetCurrentRegion(ctx, key); err != nil {
			return fmt.Errorf("ledger: persisting current region: %w", err)
		}
	}
	r.current = key
	r.logger.Info("current region selected", zap.String("region", key))
	return nil
}
