package ledger

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Request is a parsed pay or credit command.
type Request struct {
	// Amount is the requested quantity in canonical tiers.
	Amount Amount
	// RegionKey is the target region; empty means the current region.
	RegionKey string
	// Strict forbids satisfying the request with cross-region currency.
	Strict bool
}

var tokenPattern = regexp.MustCompile(`^(\d+)(gc|ss|bp)$`)

// ParseRequest parses a command string of the form
// "<amount>[@<region>][@strict]" where <amount> is one or more
// whitespace-separated "<integer><abbrev>" tokens (abbrev: gc, ss, bp),
// case-insensitive. Repeated tokens of the same tier sum.
//
// Postcondition: returns ErrInvalidCommand (wrapped with detail) on malformed
// input or a zero-sum amount; otherwise Request.Amount.Total() > 0.
func ParseRequest(input string) (Request, error) {
	trimmed := strings.TrimSpace(strings.ToLower(input))
	if trimmed == "" {
		return Request{}, fmt.Errorf("%w: empty command", ErrInvalidCommand)
	}

	parts := strings.Split(trimmed, "@")
	if len(parts) > 3 {
		return Request{}, fmt.Errorf("%w: too many %q separators in %q", ErrInvalidCommand, "@", input)
	}

	var req Request
	if len(parts) > 1 {
		req.RegionKey = strings.TrimSpace(parts[1])
	}
	if len(parts) > 2 {
		flag := strings.TrimSpace(parts[2])
		if flag != "strict" {
			return Request{}, fmt.Errorf("%w: unknown flag %q in %q", ErrInvalidCommand, flag, input)
		}
		req.Strict = true
	}

	fields := strings.Fields(parts[0])
	if len(fields) == 0 {
		return Request{}, fmt.Errorf("%w: no amount in %q", ErrInvalidCommand, input)
	}
	for _, field := range fields {
		m := tokenPattern.FindStringSubmatch(field)
		if m == nil {
			return Request{}, fmt.Errorf("%w: unrecognized token %q in %q", ErrInvalidCommand, field, input)
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return Request{}, fmt.Errorf("%w: bad quantity in token %q: %v", ErrInvalidCommand, field, err)
		}
		switch m[2] {
		case AbbrevGold:
			req.Amount.Gold += n
		case AbbrevSilver:
			req.Amount.Silver += n
		case AbbrevBrass:
			req.Amount.Brass += n
		}
	}

	if req.Amount.IsZero() {
		return Request{}, fmt.Errorf("%w: amount must be greater than zero in %q", ErrInvalidCommand, input)
	}
	return req, nil
}
