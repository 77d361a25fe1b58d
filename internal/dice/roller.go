package dice

import "go.uber.org/zap"

// Roller wraps a Source and logger. Rolls are logged at debug level; callers
// treat results as pure flavor, never as part of a ledger contract.
type Roller struct {
	src    Source
	logger *zap.Logger
}

// NewRoller creates a Roller.
//
// Precondition: src and logger must be non-nil.
func NewRoller(src Source, logger *zap.Logger) *Roller {
	return &Roller{src: src, logger: logger}
}

// Roll returns a random value in [1, sides] and logs it.
//
// Precondition: sides > 0.
func (r *Roller) Roll(sides int) int {
	result := r.src.Intn(sides) + 1
	r.logger.Debug("dice roll",
		zap.Int("sides", sides),
		zap.Int("result", result),
	)
	return result
}

// Flourish rolls the decorative d100 coin toss fired after a payment.
func (r *Roller) Flourish() int {
	return r.Roll(100)
}
