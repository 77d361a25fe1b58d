// Package ledger implements the regional currency ledger: coin and region
// definitions, money normalization, pivot-routed exchange, inventory scanning,
// and the pay/credit engine.
package ledger

import (
	"errors"
	"fmt"
)

// Coin defines one denomination within a region.
//
// Precondition: Key and Name must be non-empty after loading; UnitValue > 0.
type Coin struct {
	// Key is the stable machine identifier. Keys must be unique across all
	// regions so holdings can be resolved without consulting display names.
	Key string `yaml:"key"`
	// Name is the human-readable label, used only for presentation.
	Name string `yaml:"name"`
	// Img is the icon path shown by the host platform.
	Img string `yaml:"img"`
	// UnitValue is the coin's value in the region's smallest unit.
	UnitValue int `yaml:"value"`
}

// Validate checks that the Coin satisfies its invariants.
//
// Postcondition: returns nil iff all fields are valid.
func (c *Coin) Validate() error {
	var errs []error
	if c.Key == "" {
		errs = append(errs, errors.New("Key must not be empty"))
	}
	if c.Name == "" {
		errs = append(errs, errors.New("Name must not be empty"))
	}
	if c.UnitValue <= 0 {
		errs = append(errs, fmt.Errorf("UnitValue must be > 0, got %d", c.UnitValue))
	}
	if len(errs) > 0 {
		return fmt.Errorf("coin validation failed: %v", errs)
	}
	return nil
}
