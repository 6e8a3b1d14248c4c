package simsched

import (
	"sync"

	hdrhistogram "github.com/HdrHistogram/hdrhistogram-go"
)

// Histogram bounds: 1us to one hour of virtual time, three significant
// figures.
const (
	histMinMicros = 1
	histMaxMicros = 3_600_000_000
	histSigFigs   = 3
)

// Metrics tracks per-run statistics for a System. The engine itself is
// single-threaded; the mutex exists so a snapshot can be taken from another
// goroutine while a simulation runs.
type Metrics struct {
	mu sync.Mutex

	// Event and scheduling counters
	events      uint64
	dispatches  uint64
	preemptions uint64

	// Syscall counters
	spawns uint64
	reads  uint64
	writes uint64
	sleeps uint64
	waits  uint64
	exits  uint64

	// Byte counters
	readBytes  uint64
	writeBytes uint64

	// Bus statistics
	busGrants uint64

	// CPU accounting, virtual microseconds
	switchMicros uint64
	sliceMicros  uint64

	// Latency distributions, virtual microseconds
	transferLatency *hdrhistogram.Histogram // bus-acquire delay + transfer
	turnaround      *hdrhistogram.Histogram // blocked -> ready
}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		transferLatency: hdrhistogram.New(histMinMicros, histMaxMicros, histSigFigs),
		turnaround:      hdrhistogram.New(histMinMicros, histMaxMicros, histSigFigs),
	}
}

// RecordEvent counts one handled event
func (m *Metrics) RecordEvent() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events++
}

// RecordDispatch records a context switch-in and its CPU charge
func (m *Metrics) RecordDispatch(switchMicros int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dispatches++
	m.switchMicros += uint64(switchMicros)
}

// RecordSlice records a scheduled run slice
func (m *Metrics) RecordSlice(ranFor int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sliceMicros += uint64(ranFor)
}

// RecordPreemption records a quantum expiry
func (m *Metrics) RecordPreemption() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.preemptions++
}

// RecordSyscall counts one invoked syscall by name
func (m *Metrics) RecordSyscall(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch name {
	case "spawn":
		m.spawns++
	case "read":
		m.reads++
	case "write":
		m.writes++
	case "sleep":
		m.sleeps++
	case "wait":
		m.waits++
	case "exit":
		m.exits++
	}
}

// RecordBusGrant records a granted transfer: its direction, size, and
// duration on the bus including the acquire delay.
func (m *Metrics) RecordBusGrant(op string, size, transferMicros int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.busGrants++
	if op == "read" {
		m.readBytes += uint64(size)
	} else {
		m.writeBytes += uint64(size)
	}
	m.recordLatency(m.transferLatency, BusAcquireDelay+transferMicros)
}

// RecordTurnaround records how long a process spent blocked before
// re-entering the ready queue.
func (m *Metrics) RecordTurnaround(blockedFor int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordLatency(m.turnaround, blockedFor)
}

// recordLatency clamps into histogram range; zero-length transfers still
// count as the minimum trackable value.
func (m *Metrics) recordLatency(h *hdrhistogram.Histogram, micros int64) {
	if micros < histMinMicros {
		micros = histMinMicros
	}
	if micros > histMaxMicros {
		micros = histMaxMicros
	}
	// Error impossible after clamping
	_ = h.RecordValue(micros)
}

// MetricsSnapshot is a point-in-time copy of a System's metrics
type MetricsSnapshot struct {
	Events      uint64
	Dispatches  uint64
	Preemptions uint64

	Spawns uint64
	Reads  uint64
	Writes uint64
	Sleeps uint64
	Waits  uint64
	Exits  uint64

	ReadBytes  uint64
	WriteBytes uint64
	BusGrants  uint64

	SwitchMicros uint64
	SliceMicros  uint64

	// CPUBusyMicros is the total CPU charge: context switch-ins plus every
	// scheduled slice.
	CPUBusyMicros uint64

	// Latency percentiles, virtual microseconds
	TransferP50  int64
	TransferP99  int64
	TransferMax  int64
	TurnaroundP50 int64
	TurnaroundP99 int64
	TurnaroundMax int64
}

// Snapshot creates a point-in-time snapshot of metrics
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := MetricsSnapshot{
		Events:       m.events,
		Dispatches:   m.dispatches,
		Preemptions:  m.preemptions,
		Spawns:       m.spawns,
		Reads:        m.reads,
		Writes:       m.writes,
		Sleeps:       m.sleeps,
		Waits:        m.waits,
		Exits:        m.exits,
		ReadBytes:    m.readBytes,
		WriteBytes:   m.writeBytes,
		BusGrants:    m.busGrants,
		SwitchMicros: m.switchMicros,
		SliceMicros:  m.sliceMicros,
	}
	snap.CPUBusyMicros = snap.SwitchMicros + snap.SliceMicros

	if m.transferLatency.TotalCount() > 0 {
		snap.TransferP50 = m.transferLatency.ValueAtQuantile(50)
		snap.TransferP99 = m.transferLatency.ValueAtQuantile(99)
		snap.TransferMax = m.transferLatency.Max()
	}
	if m.turnaround.TotalCount() > 0 {
		snap.TurnaroundP50 = m.turnaround.ValueAtQuantile(50)
		snap.TurnaroundP99 = m.turnaround.ValueAtQuantile(99)
		snap.TurnaroundMax = m.turnaround.Max()
	}

	return snap
}

// Reset resets all metrics counters (useful for testing)
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = 0
	m.dispatches = 0
	m.preemptions = 0
	m.spawns = 0
	m.reads = 0
	m.writes = 0
	m.sleeps = 0
	m.waits = 0
	m.exits = 0
	m.readBytes = 0
	m.writeBytes = 0
	m.busGrants = 0
	m.switchMicros = 0
	m.sliceMicros = 0
	m.transferLatency.Reset()
	m.turnaround.Reset()
}
