package simsched

import "fmt"

// Script is a fluent builder for a command's syscall sequence. It lets
// tests and embedding applications assemble a Catalog without going through
// the simio parser.
//
//	catalog := simsched.NewCatalog()
//	simsched.NewScript("worker").
//		Read(100, "disk", 4096).
//		Exit(200).
//		AddTo(catalog)
type Script struct {
	name     string
	syscalls []Syscall
}

// NewScript starts a script for the named command.
func NewScript(name string) *Script {
	return &Script{name: name}
}

// Spawn appends a spawn syscall at the given CPU-time offset.
func (s *Script) Spawn(when int64, command string) *Script {
	s.syscalls = append(s.syscalls, Syscall{When: when, Name: "spawn", Args: []string{command}})
	return s
}

// Read appends a read syscall.
func (s *Script) Read(when int64, device string, size int64) *Script {
	s.syscalls = append(s.syscalls, Syscall{When: when, Name: "read", Args: []string{device, fmt.Sprintf("%dB", size)}})
	return s
}

// Write appends a write syscall.
func (s *Script) Write(when int64, device string, size int64) *Script {
	s.syscalls = append(s.syscalls, Syscall{When: when, Name: "write", Args: []string{device, fmt.Sprintf("%dB", size)}})
	return s
}

// Sleep appends a sleep syscall.
func (s *Script) Sleep(when int64, duration int64) *Script {
	s.syscalls = append(s.syscalls, Syscall{When: when, Name: "sleep", Args: []string{fmt.Sprintf("%dusecs", duration)}})
	return s
}

// Wait appends a wait syscall.
func (s *Script) Wait(when int64) *Script {
	s.syscalls = append(s.syscalls, Syscall{When: when, Name: "wait"})
	return s
}

// Exit appends an exit syscall.
func (s *Script) Exit(when int64) *Script {
	s.syscalls = append(s.syscalls, Syscall{When: when, Name: "exit"})
	return s
}

// Raw appends an arbitrary syscall line, for exercising error paths.
func (s *Script) Raw(when int64, name string, args ...string) *Script {
	s.syscalls = append(s.syscalls, Syscall{When: when, Name: name, Args: args})
	return s
}

// AddTo registers the script in a catalog and returns the catalog for
// chaining.
func (s *Script) AddTo(c *Catalog) *Catalog {
	c.Add(s.name, s.syscalls)
	return c
}

// BuildCatalog assembles a catalog from scripts, in order.
func BuildCatalog(scripts ...*Script) *Catalog {
	c := NewCatalog()
	for _, s := range scripts {
		s.AddTo(c)
	}
	return c
}

// RecordingObserver captures every hook invocation as a formatted line, in
// order. Two identical runs produce identical recordings, which makes it
// the natural probe for determinism tests.
type RecordingObserver struct {
	Lines []string
}

func (r *RecordingObserver) add(format string, args ...interface{}) {
	r.Lines = append(r.Lines, fmt.Sprintf(format, args...))
}

func (r *RecordingObserver) ObserveEnqueue(now, fireAt int64, kind string, pid int) {
	r.add("enqueue t=%d fire=%d %s pid=%d", now, fireAt, kind, pid)
}

func (r *RecordingObserver) ObserveEvent(time int64, kind string, pid int) {
	r.add("handle t=%d %s pid=%d", time, kind, pid)
}

func (r *RecordingObserver) ObserveDispatch(time int64, pid int, switchMicros int64) {
	r.add("dispatch t=%d pid=%d ctx=%d", time, pid, switchMicros)
}

func (r *RecordingObserver) ObserveSlice(time int64, pid int, ranFor int64) {
	r.add("slice t=%d pid=%d run=%d", time, pid, ranFor)
}

func (r *RecordingObserver) ObservePreemption(time int64, pid int) {
	r.add("preempt t=%d pid=%d", time, pid)
}

func (r *RecordingObserver) ObserveSyscall(time int64, pid int, name string) {
	r.add("syscall t=%d pid=%d %s", time, pid, name)
}

func (r *RecordingObserver) ObserveBusGrant(time int64, device, op string, pid int, size, transferMicros int64) {
	r.add("bus t=%d %s %s pid=%d size=%d transfer=%d", time, device, op, pid, size, transferMicros)
}

func (r *RecordingObserver) ObserveUnblock(time int64, pid int, blockedFor int64) {
	r.add("unblock t=%d pid=%d blocked=%d", time, pid, blockedFor)
}

func (r *RecordingObserver) ObserveMeasurements(totalTime int64, cpuUtil int) {
	r.add("measurements %d %d", totalTime, cpuUtil)
}

var _ Observer = (*RecordingObserver)(nil)
