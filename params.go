package simsched

import "github.com/ehrlich-b/go-simsched/internal/constants"

// Params describes the machine and workload a System simulates.
type Params struct {
	// Devices lists the machine's I/O devices in sysconfig order. The order
	// matters: it is the final tiebreak when the bus arbiter chooses between
	// devices with equal read speeds and equally old requests.
	Devices []DeviceSpec

	// Commands is the program catalog.
	Commands *Catalog

	// TimeQuantum is the round-robin slice in microseconds. Zero or negative
	// selects DefaultTimeQuantum.
	TimeQuantum int64

	// EntryCommand overrides the command the simulation starts with. When
	// empty, the entry is "shell" if the catalog has it, else the first
	// command in file order.
	EntryCommand string
}

// DefaultParams returns parameters for the given catalog with the default
// time quantum and no devices.
func DefaultParams(commands *Catalog) Params {
	return Params{
		Commands:    commands,
		TimeQuantum: constants.DefaultTimeQuantum,
	}
}

// Logger is the logging interface a System writes its trace through.
// internal/logging.Logger satisfies it.
type Logger interface {
	Printf(format string, args ...interface{})
	Tracef(format string, args ...interface{})
}

// Options contains additional options for constructing a System
type Options struct {
	// Logger receives warnings and, through TraceObserver, the event trace
	// (if nil, no logging)
	Logger Logger

	// Observer receives simulation hooks (if nil, a MetricsObserver feeding
	// the System's own Metrics is used)
	Observer Observer

	// CheckInvariants re-verifies the engine invariants after every handled
	// event. Meant for tests; the checks walk the whole process table.
	CheckInvariants bool
}
