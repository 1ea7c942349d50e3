package domain

import "errors"

// Error kinds shared across generation and enrichment. Callers match them
// with errors.Is; wrapped messages name the offending parameter and value.
var (
	// ErrInvalidParameter reports a caller-supplied value outside its
	// documented range (counts, probabilities, fractions, dates, effect
	// parameters).
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrUnknownEffect reports a lookup of an effect name that was never
	// registered.
	ErrUnknownEffect = errors.New("unknown effect")

	// ErrEffectContractViolation reports an effect function that broke the
	// structure-preserving contract: record count, (product, date) keys, or
	// fields it is not allowed to touch.
	ErrEffectContractViolation = errors.New("effect contract violation")

	// ErrDuplicateRegistration reports a strict registration under a name
	// that is already taken.
	ErrDuplicateRegistration = errors.New("duplicate registration")
)
