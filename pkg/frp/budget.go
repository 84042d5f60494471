package frp

// Budget bounds the work a single push may cause. It protects against
// amplification bugs where one emission fans out without bound, and against
// feedback loops built from Defer that never settle.
//
// A zero field disables that limit.
type Budget struct {
	// MaxEmissions is the maximum number of notifications delivered within
	// one propagation step.
	MaxEmissions int

	// MaxDeferredRounds is the maximum number of rounds the deferred queue
	// may run after a top-level push. Each round processes everything that
	// was scheduled during the previous one.
	MaxDeferredRounds int
}

// Budget defaults.
const (
	DefaultMaxEmissions      = 1 << 20
	DefaultMaxDeferredRounds = 1024
)

// DefaultBudget returns the budget used by NewRuntime.
func DefaultBudget() Budget {
	return Budget{
		MaxEmissions:      DefaultMaxEmissions,
		MaxDeferredRounds: DefaultMaxDeferredRounds,
	}
}

// Budget returns the runtime's current budget.
func (rt *Runtime) Budget() Budget {
	return rt.budget
}
