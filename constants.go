package simsched

import "github.com/ehrlich-b/go-simsched/internal/constants"

// Re-export constants for public API
const (
	ContextSwitchIn    = constants.ContextSwitchIn
	ContextSwitchMoves = constants.ContextSwitchMoves
	BusAcquireDelay    = constants.BusAcquireDelay
	DefaultTimeQuantum = constants.DefaultTimeQuantum
)
