// Package sched implements the round-robin CPU dispatcher's bookkeeping:
// a FIFO ready queue and the single running slot.
package sched

import "github.com/ehrlich-b/go-simsched/internal/proc"

// Scheduler is a pure round-robin dispatcher. Processes are picked in FIFO
// order and preempted strictly on quantum expiry; there is no priority and
// no aging. Running is the process holding (or reserved for) the CPU.
//
// Running is set at dispatch time, before the context switch-in completes,
// so a second dispatch cannot start while one is in flight.
type Scheduler struct {
	TimeQuantum int64
	Running     *proc.Process

	ready []*proc.Process
}

// New returns a scheduler with the given time quantum.
func New(timeQuantum int64) *Scheduler {
	return &Scheduler{TimeQuantum: timeQuantum}
}

// EnqueueReady marks p READY and appends it to the ready queue's tail.
func (s *Scheduler) EnqueueReady(p *proc.Process) {
	p.State = proc.StateReady
	s.ready = append(s.ready, p)
}

// HasReady reports whether any process is waiting for the CPU.
func (s *Scheduler) HasReady() bool {
	return len(s.ready) > 0
}

// PickNext pops the head of the ready queue, or nil when it is empty.
func (s *Scheduler) PickNext() *proc.Process {
	if len(s.ready) == 0 {
		return nil
	}
	p := s.ready[0]
	s.ready[0] = nil
	s.ready = s.ready[1:]
	return p
}

// Ready returns the ready queue in dispatch order. The slice is a copy;
// mutating it does not affect the scheduler.
func (s *Scheduler) Ready() []*proc.Process {
	out := make([]*proc.Process, len(s.ready))
	copy(out, s.ready)
	return out
}
