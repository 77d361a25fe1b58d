package ledger

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidCommand is returned when a pay/credit command string cannot be
// parsed. Surfaced to the invoking user together with Usage.
var ErrInvalidCommand = errors.New("ledger: invalid command")

// ErrUnknownRegion is returned when a region key is not registered.
var ErrUnknownRegion = errors.New("ledger: unknown region")

// ErrMissingRate is returned when the pivot region's exchange table lacks a
// rate needed for a conversion.
var ErrMissingRate = errors.New("ledger: missing exchange rate")

// ErrMissingDenominations is returned by the credit path when the character
// lacks a holding for one of the target region's denominations. The pay path
// auto-creates zero-quantity placeholders instead; credit must not mint
// holdings out of nothing.
var ErrMissingDenominations = errors.New("ledger: missing denomination holdings")

// ErrNoCurrentRegion is returned when an operation needs the pivot region but
// none has been selected.
var ErrNoCurrentRegion = errors.New("ledger: no current region selected")

// Usage is the human-readable command syntax shown on ErrInvalidCommand.
const Usage = `usage: <amount>[@<region>][@strict] e.g. "5gc 3ss 12bp" or "1gc@vessary@strict"`

// RegionAvailability describes how much a single region could contribute to a
// payment, both in its own smallest units and converted into the target region.
type RegionAvailability struct {
	RegionKey string
	Total     int
	Converted int
	Modifier  float64
}

// InsufficientFundsError reports a payment that could not be covered.
// Holdings are guaranteed untouched when this error is returned.
type InsufficientFundsError struct {
	// Requested is the payment amount in target-region smallest units.
	Requested int
	// Available is the total coverable amount in target-region smallest units.
	Available int
	// Regions lists the per-region availability breakdown.
	Regions []RegionAvailability
}

// Shortfall returns how much the payer is short, in target-region smallest
// units. A strict payment can fail with enough total value but the wrong
// denominations; the shortfall is zero then, never negative.
func (e *InsufficientFundsError) Shortfall() int {
	if e.Available >= e.Requested {
		return 0
	}
	return e.Requested - e.Available
}

func (e *InsufficientFundsError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "ledger: insufficient funds: requested %s, available %s",
		Normalize(e.Requested).Format(), Normalize(e.Available).Format())
	if short := e.Shortfall(); short > 0 {
		fmt.Fprintf(&b, ", short %s", Normalize(short).Format())
	} else {
		b.WriteString(", wrong denominations for a strict payment")
	}
	for _, r := range e.Regions {
		fmt.Fprintf(&b, "; %s: %s", r.RegionKey, Normalize(r.Converted).Format())
	}
	return b.String()
}
