package simsched

// Observer interface allows pluggable trace and metrics collection. All
// hooks run synchronously inside the event loop; times are virtual
// microseconds.
type Observer interface {
	// ObserveEnqueue is called when an event is pushed: now is the current
	// virtual time, fireAt the event's timestamp.
	ObserveEnqueue(now, fireAt int64, kind string, pid int)

	// ObserveEvent is called as each popped event is handled.
	ObserveEvent(time int64, kind string, pid int)

	// ObserveDispatch is called when a process is reserved for the CPU;
	// switchMicros is the context-switch-in charge.
	ObserveDispatch(time int64, pid int, switchMicros int64)

	// ObserveSlice is called when a run slice is scheduled; ranFor is its
	// length (possibly zero at a syscall boundary).
	ObserveSlice(time int64, pid int, ranFor int64)

	// ObservePreemption is called when a quantum expires.
	ObservePreemption(time int64, pid int)

	// ObserveSyscall is called for each invoked syscall.
	ObserveSyscall(time int64, pid int, name string)

	// ObserveBusGrant is called when the arbiter starts a transfer;
	// transferMicros excludes the bus-acquire delay.
	ObserveBusGrant(time int64, device, op string, pid int, size, transferMicros int64)

	// ObserveUnblock is called when a blocked process becomes READY;
	// blockedFor is the virtual time spent away from the ready queue.
	ObserveUnblock(time int64, pid int, blockedFor int64)

	// ObserveMeasurements is called once, after the event queue drains.
	ObserveMeasurements(totalTime int64, cpuUtil int)
}

// NoOpObserver is a no-op implementation of Observer
type NoOpObserver struct{}

func (NoOpObserver) ObserveEnqueue(int64, int64, string, int)                  {}
func (NoOpObserver) ObserveEvent(int64, string, int)                           {}
func (NoOpObserver) ObserveDispatch(int64, int, int64)                         {}
func (NoOpObserver) ObserveSlice(int64, int, int64)                            {}
func (NoOpObserver) ObservePreemption(int64, int)                              {}
func (NoOpObserver) ObserveSyscall(int64, int, string)                         {}
func (NoOpObserver) ObserveBusGrant(int64, string, string, int, int64, int64)  {}
func (NoOpObserver) ObserveUnblock(int64, int, int64)                          {}
func (NoOpObserver) ObserveMeasurements(int64, int)                            {}

// MetricsObserver implements Observer using the built-in Metrics
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver creates an observer that records to the given metrics
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveEnqueue(int64, int64, string, int) {}

func (o *MetricsObserver) ObserveEvent(time int64, kind string, pid int) {
	o.metrics.RecordEvent()
}

func (o *MetricsObserver) ObserveDispatch(time int64, pid int, switchMicros int64) {
	o.metrics.RecordDispatch(switchMicros)
}

func (o *MetricsObserver) ObserveSlice(time int64, pid int, ranFor int64) {
	o.metrics.RecordSlice(ranFor)
}

func (o *MetricsObserver) ObservePreemption(time int64, pid int) {
	o.metrics.RecordPreemption()
}

func (o *MetricsObserver) ObserveSyscall(time int64, pid int, name string) {
	o.metrics.RecordSyscall(name)
}

func (o *MetricsObserver) ObserveBusGrant(time int64, device, op string, pid int, size, transferMicros int64) {
	o.metrics.RecordBusGrant(op, size, transferMicros)
}

func (o *MetricsObserver) ObserveUnblock(time int64, pid int, blockedFor int64) {
	o.metrics.RecordTurnaround(blockedFor)
}

func (o *MetricsObserver) ObserveMeasurements(int64, int) {}

// TraceObserver writes a per-event trace through a Logger. It backs the
// CLI's verbose mode; lines are keyed on virtual time only, so the trace is
// identical across runs.
type TraceObserver struct {
	log Logger
}

// NewTraceObserver creates an observer that traces to the given logger.
func NewTraceObserver(log Logger) *TraceObserver {
	return &TraceObserver{log: log}
}

func (t *TraceObserver) ObserveEnqueue(now, fireAt int64, kind string, pid int) {
	t.log.Tracef("[t=%d] enqueue %s pid=%d fire=%d", now, kind, pid, fireAt)
}

func (t *TraceObserver) ObserveEvent(time int64, kind string, pid int) {
	t.log.Tracef("[t=%d] handle %s pid=%d", time, kind, pid)
}

func (t *TraceObserver) ObserveDispatch(time int64, pid int, switchMicros int64) {
	t.log.Tracef("[t=%d] dispatch pid=%d ctx-in=%dus", time, pid, switchMicros)
}

func (t *TraceObserver) ObserveSlice(time int64, pid int, ranFor int64) {
	t.log.Tracef("[t=%d] slice pid=%d run=%dus", time, pid, ranFor)
}

func (t *TraceObserver) ObservePreemption(time int64, pid int) {
	t.log.Tracef("[t=%d] quantum expired pid=%d", time, pid)
}

func (t *TraceObserver) ObserveSyscall(time int64, pid int, name string) {
	t.log.Tracef("[t=%d] syscall %s pid=%d", time, name, pid)
}

func (t *TraceObserver) ObserveBusGrant(time int64, device, op string, pid int, size, transferMicros int64) {
	t.log.Tracef("[t=%d] bus %s %s pid=%d size=%dB transfer=%dus", time, device, op, pid, size, transferMicros)
}

func (t *TraceObserver) ObserveUnblock(time int64, pid int, blockedFor int64) {
	t.log.Tracef("[t=%d] unblock pid=%d blocked=%dus", time, pid, blockedFor)
}

func (t *TraceObserver) ObserveMeasurements(totalTime int64, cpuUtil int) {
	t.log.Tracef("[t=%d] measurements util=%d", totalTime, cpuUtil)
}

// Compile-time interface checks
var (
	_ Observer = NoOpObserver{}
	_ Observer = (*MetricsObserver)(nil)
	_ Observer = (*TraceObserver)(nil)
)
