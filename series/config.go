package series

// Config holds the reconciler's horizon policy, in whole months ahead of
// the reconciliation moment.
type Config struct {
	// InitialHorizonMonths caps the first materialization batch after a
	// template is created. Also the floor for regeneration.
	InitialHorizonMonths int

	// ExtendHorizonMonths is how far ahead a horizon extension reaches.
	ExtendHorizonMonths int
}

// DefaultConfig materializes three months up front and extends six months
// out.
var DefaultConfig = Config{
	InitialHorizonMonths: 3,
	ExtendHorizonMonths:  6,
}
