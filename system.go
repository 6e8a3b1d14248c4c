// Package simsched is a discrete-event simulator of a single-CPU,
// multi-device operating-system scheduler. Given a machine description and
// a program catalog it advances virtual time from zero until no runnable
// work remains, and reports total elapsed virtual time and CPU utilization.
package simsched

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ehrlich-b/go-simsched/internal/bus"
	"github.com/ehrlich-b/go-simsched/internal/constants"
	"github.com/ehrlich-b/go-simsched/internal/device"
	"github.com/ehrlich-b/go-simsched/internal/event"
	"github.com/ehrlich-b/go-simsched/internal/proc"
	"github.com/ehrlich-b/go-simsched/internal/sched"
)

// Result summarizes a completed simulation.
type Result struct {
	// TotalTime is the virtual time of the last handled event, microseconds.
	TotalTime int64

	// CPUBusyTime is the accumulated CPU charge: every context switch-in
	// plus every scheduled run slice.
	CPUBusyTime int64

	// CPUUtilization is floor(CPUBusyTime * 100 / TotalTime), 0 when
	// TotalTime is 0.
	CPUUtilization int
}

// System owns one simulation: the event queue, process table, scheduler,
// devices, and bus. All counters and clocks are instance state, so multiple
// Systems may run independently.
type System struct {
	catalog *Catalog
	quantum int64
	entry   string

	devices      []*device.Device // sysconfig order
	deviceByName map[string]*device.Device

	now     int64
	queue   *event.Queue
	sched   *sched.Scheduler
	bus     *bus.Arbiter
	table   map[int]*proc.Process
	nextPid int

	cpuBusy   int64
	blockedAt map[int]int64

	log             Logger
	observer        Observer
	metrics         *Metrics
	checkInvariants bool
}

// New builds a System from params. Device names must be unique; the command
// catalog must not be empty.
func New(params Params, options *Options) (*System, error) {
	if options == nil {
		options = &Options{}
	}
	if params.Commands == nil || params.Commands.Len() == 0 {
		return nil, NewError("new", ErrCodeEmptyCatalog, "no commands to run")
	}

	quantum := params.TimeQuantum
	if quantum <= 0 {
		quantum = constants.DefaultTimeQuantum
	}

	entry := params.EntryCommand
	if entry == "" {
		entry, _ = params.Commands.Entry()
	}
	if _, ok := params.Commands.Get(entry); !ok {
		return nil, NewError("new", ErrCodeUnknownCommand, fmt.Sprintf("entry command %q not in catalog", entry))
	}

	s := &System{
		catalog:         params.Commands,
		quantum:         quantum,
		entry:           entry,
		deviceByName:    make(map[string]*device.Device),
		queue:           event.NewQueue(),
		sched:           sched.New(quantum),
		bus:             &bus.Arbiter{},
		table:           make(map[int]*proc.Process),
		blockedAt:       make(map[int]int64),
		log:             options.Logger,
		metrics:         NewMetrics(),
		checkInvariants: options.CheckInvariants,
	}

	for _, spec := range params.Devices {
		if _, dup := s.deviceByName[spec.Name]; dup {
			return nil, NewDeviceError("new", spec.Name, ErrCodeMalformedInput, "duplicate device name")
		}
		d := device.New(spec.Name, spec.ReadSpeed, spec.WriteSpeed)
		s.devices = append(s.devices, d)
		s.deviceByName[spec.Name] = d
	}

	if options.Observer != nil {
		s.observer = options.Observer
	} else {
		s.observer = NewMetricsObserver(s.metrics)
	}

	return s, nil
}

// Metrics returns the System's metrics instance. It is populated only when
// no custom Observer was supplied.
func (s *System) Metrics() *Metrics {
	return s.metrics
}

// Start creates the entry process, schedules its arrival at t=0, and runs
// the event loop to exhaustion.
func (s *System) Start() (Result, error) {
	p, err := s.createProcess(s.entry, nil)
	if err != nil {
		return Result{}, err
	}
	s.push(&event.Event{Time: 0, Kind: event.KindProcessArrival, Pid: p.PID})
	return s.Run()
}

// Run pumps the event queue until it drains, then reports. A process that
// runs past the end of its script without an exit syscall is parked: it
// never exits, holds no resources, and the run ends at whatever virtual
// time the last event reached.
func (s *System) Run() (Result, error) {
	for {
		ev := s.queue.Pop()
		if ev == nil {
			break
		}
		if ev.Time < s.now {
			return Result{}, NewInvariantError("run", fmt.Sprintf("event time %d before current time %d", ev.Time, s.now))
		}
		s.now = ev.Time
		s.observer.ObserveEvent(s.now, ev.Kind.String(), ev.Pid)

		var err error
		switch ev.Kind {
		case event.KindProcessArrival:
			s.handleArrival(ev)
		case event.KindDispatchComplete:
			s.handleDispatchComplete(ev)
		case event.KindRunComplete:
			s.handleRunComplete(ev)
		case event.KindSyscallInvoked:
			err = s.handleSyscallInvoked(ev)
		case event.KindIOComplete:
			err = s.handleIOComplete(ev)
		case event.KindSleepComplete:
			s.handleSleepComplete(ev)
		case event.KindBlockedToReady:
			s.handleBlockedToReady(ev)
		case event.KindProcessExit:
			s.handleProcessExit(ev)
		case event.KindWaitComplete:
			s.handleWaitComplete(ev)
		case event.KindCPUAvailable:
			s.attemptDispatch()
		case event.KindSpawn:
			// reserved; spawn is handled inline in SYSCALL_INVOKED
		default:
			err = NewInvariantError("run", fmt.Sprintf("unhandled event kind %s", ev.Kind))
		}
		if err != nil {
			return Result{}, err
		}
		if s.checkInvariants {
			if err := s.verifyInvariants(); err != nil {
				return Result{}, err
			}
		}
	}

	total := s.now
	util := 0
	if total > 0 {
		util = int(s.cpuBusy * 100 / total)
	}
	res := Result{TotalTime: total, CPUBusyTime: s.cpuBusy, CPUUtilization: util}
	s.observer.ObserveMeasurements(total, util)
	return res, nil
}

// push stamps and enqueues an event.
func (s *System) push(ev *event.Event) {
	s.queue.Push(ev)
	s.observer.ObserveEnqueue(s.now, ev.Time, ev.Kind.String(), ev.Pid)
}

// createProcess instantiates a command as a new process and registers it in
// the process table.
func (s *System) createProcess(command string, parent *proc.Process) (*proc.Process, error) {
	script, ok := s.catalog.Get(command)
	if !ok {
		pid := 0
		if parent != nil {
			pid = parent.PID
		}
		return nil, &Error{Op: "spawn", Pid: pid, Code: ErrCodeUnknownCommand, Msg: fmt.Sprintf("command %q not in catalog", command)}
	}

	syscalls := make([]proc.SystemCall, len(script))
	for i, sc := range script {
		syscalls[i] = proc.SystemCall{When: sc.When, Name: proc.Name(sc.Name), Args: sc.Args}
	}

	s.nextPid++
	p := proc.New(s.nextPid, command, syscalls, parent)
	s.table[p.PID] = p
	return p, nil
}

// process resolves an event's pid against the table.
func (s *System) process(pid int) *proc.Process {
	return s.table[pid]
}

// handleArrival moves a new or spawned process into the ready queue.
func (s *System) handleArrival(ev *event.Event) {
	p := s.process(ev.Pid)
	s.sched.EnqueueReady(p)
	if s.sched.Running == nil {
		s.attemptDispatch()
	}
}

// attemptDispatch reserves the CPU for the head of the ready queue and
// starts the context switch-in. Setting Running here, before the switch
// completes, prevents a second dispatch from starting in the window.
func (s *System) attemptDispatch() {
	if s.sched.Running != nil {
		return
	}
	next := s.sched.PickNext()
	if next == nil {
		return
	}
	s.sched.Running = next
	s.cpuBusy += constants.ContextSwitchIn
	s.observer.ObserveDispatch(s.now, next.PID, constants.ContextSwitchIn)
	s.push(&event.Event{Time: s.now + constants.ContextSwitchIn, Kind: event.KindDispatchComplete, Pid: next.PID})
}

// handleDispatchComplete transitions the reserved process to RUNNING and
// schedules its first slice of the new quantum.
func (s *System) handleDispatchComplete(ev *event.Event) {
	p := s.process(ev.Pid)
	p.State = proc.StateRunning
	p.QuantumLeft = s.quantum

	runFor := s.quantum
	if until, ok := p.TimeUntilNextSyscall(); ok && until < runFor {
		runFor = until
	}
	s.scheduleSlice(p, runFor)
}

// scheduleSlice charges a slice to CPU-busy time and schedules its end.
// Slices are charged when scheduled, not when they complete.
func (s *System) scheduleSlice(p *proc.Process, runFor int64) {
	s.cpuBusy += runFor
	s.observer.ObserveSlice(s.now, p.PID, runFor)
	s.push(&event.Event{Time: s.now + runFor, Kind: event.KindRunComplete, Pid: p.PID, RanFor: runFor})
}

// handleRunComplete ends a slice: either the process reached a syscall
// boundary, its quantum expired, or its script ran out.
func (s *System) handleRunComplete(ev *event.Event) {
	p := s.process(ev.Pid)
	p.CPUTimeExecuted += ev.RanFor
	p.QuantumLeft -= ev.RanFor
	if p.QuantumLeft < 0 {
		p.QuantumLeft = 0
	}

	until, ok := p.TimeUntilNextSyscall()
	switch {
	case !ok:
		// Script exhausted without an exit syscall: park the process and
		// free the CPU. It holds no resources and will never run again.
		p.State = proc.StateBlocked
		p.Blocked = nil
		if s.log != nil {
			s.log.Printf("pid=%d ran past end of %s without exit; parked", p.PID, p.Command)
		}
		if s.sched.Running == p {
			s.sched.Running = nil
		}
		if s.sched.HasReady() {
			s.push(&event.Event{Time: s.now + constants.ContextSwitchMoves, Kind: event.KindCPUAvailable})
		}
	case until == 0:
		s.push(&event.Event{Time: s.now, Kind: event.KindSyscallInvoked, Pid: p.PID})
	default:
		// Quantum expired with no syscall due. The move cost elapses before
		// the process re-enters the ready queue; no dispatch until then.
		s.observer.ObservePreemption(s.now, p.PID)
		s.push(&event.Event{Time: s.now + constants.ContextSwitchMoves, Kind: event.KindBlockedToReady, Pid: p.PID, Reason: event.ReasonQuantum})
		if s.sched.Running == p {
			s.sched.Running = nil
		}
	}
}

// scheduleContinueRunning keeps a process on the CPU after a non-blocking
// syscall, within whatever remains of its quantum. A zero-length slice is
// legal: consecutive syscalls at the same offset chain through RUN_COMPLETE
// events at the same virtual time. An exhausted quantum preempts instead.
func (s *System) scheduleContinueRunning(p *proc.Process) {
	if p.QuantumLeft <= 0 {
		s.observer.ObservePreemption(s.now, p.PID)
		s.push(&event.Event{Time: s.now + constants.ContextSwitchMoves, Kind: event.KindBlockedToReady, Pid: p.PID, Reason: event.ReasonQuantum})
		if s.sched.Running == p {
			s.sched.Running = nil
		}
		return
	}
	runFor := p.QuantumLeft
	if until, ok := p.TimeUntilNextSyscall(); ok && until < runFor {
		runFor = until
	}
	s.scheduleSlice(p, runFor)
}

// handleSyscallInvoked dispatches one programmed syscall. Blocking syscalls
// release the CPU and set the process BLOCKED at this moment; the follow-on
// event fires after the move cost.
func (s *System) handleSyscallInvoked(ev *event.Event) error {
	p := s.process(ev.Pid)
	sc, ok := p.CurrentSyscall()
	if !ok {
		return nil
	}
	s.observer.ObserveSyscall(s.now, p.PID, string(sc.Name))

	switch sc.Name {
	case proc.SyscallSpawn:
		if len(sc.Args) < 1 {
			return NewSyscallError(p.PID, ErrCodeMalformedInput, "spawn needs a command name")
		}
		child, err := s.createProcess(sc.Args[0], p)
		if err != nil {
			return err
		}
		s.push(&event.Event{Time: s.now, Kind: event.KindProcessArrival, Pid: child.PID})
		p.AdvancePC()
		s.scheduleContinueRunning(p)

	case proc.SyscallRead, proc.SyscallWrite:
		if len(sc.Args) < 2 {
			return NewSyscallError(p.PID, ErrCodeMalformedInput, fmt.Sprintf("%s needs a device and a size", sc.Name))
		}
		d, found := s.deviceByName[sc.Args[0]]
		if !found {
			return &Error{Op: "SYSCALL_INVOKED", Pid: p.PID, Device: sc.Args[0], Code: ErrCodeUnknownDevice, Msg: fmt.Sprintf("device %q not in sysconfig", sc.Args[0])}
		}
		size, err := parseSuffixed(sc.Args[1], "B")
		if err != nil {
			return NewSyscallError(p.PID, ErrCodeMalformedInput, fmt.Sprintf("bad size %q", sc.Args[1]))
		}
		op := device.OpRead
		if sc.Name == proc.SyscallWrite {
			op = device.OpWrite
		}
		reqID := uint64(p.PID)<<constants.RequestIDPidShift | uint64(p.PC)
		d.Enqueue(device.Request{EnqueueTime: s.now, Pid: p.PID, Op: op, Size: size, RequestID: reqID})
		p.Blocked = &proc.BlockedReason{Kind: proc.BlockedIO, Device: d.Name, Op: op, Size: size, RequestID: reqID}
		// State changes now; the BLOCKED_TO_READY event at +moves marks when
		// the move cost has elapsed, not when the state flips.
		p.State = proc.StateBlocked
		s.blockedAt[p.PID] = s.now
		p.AdvancePC()
		s.push(&event.Event{Time: s.now + constants.ContextSwitchMoves, Kind: event.KindBlockedToReady, Pid: p.PID, Reason: event.ReasonIOBlock})
		if s.sched.Running == p {
			s.sched.Running = nil
		}
		s.tryStartBusTransfer()

	case proc.SyscallSleep:
		if len(sc.Args) < 1 {
			return NewSyscallError(p.PID, ErrCodeMalformedInput, "sleep needs a duration")
		}
		dur, err := parseSuffixed(sc.Args[0], "usecs", "usec")
		if err != nil {
			return NewSyscallError(p.PID, ErrCodeMalformedInput, fmt.Sprintf("bad duration %q", sc.Args[0]))
		}
		p.Blocked = &proc.BlockedReason{Kind: proc.BlockedSleep, Duration: dur}
		// No enter-BLOCKED event is scheduled for sleep; the state changes
		// here and the only wakeup is SLEEP_COMPLETE.
		p.State = proc.StateBlocked
		s.blockedAt[p.PID] = s.now
		p.AdvancePC()
		s.push(&event.Event{Time: s.now + constants.ContextSwitchMoves + dur, Kind: event.KindSleepComplete, Pid: p.PID})
		if s.sched.Running == p {
			s.sched.Running = nil
		}

	case proc.SyscallWait:
		if !p.LiveChildren() {
			// No live children: a no-op, the process keeps the CPU.
			p.AdvancePC()
			s.scheduleContinueRunning(p)
			break
		}
		p.WaitingForChildren = true
		p.Blocked = &proc.BlockedReason{Kind: proc.BlockedWait}
		p.State = proc.StateBlocked
		s.blockedAt[p.PID] = s.now
		p.AdvancePC()
		s.push(&event.Event{Time: s.now + constants.ContextSwitchMoves, Kind: event.KindBlockedToReady, Pid: p.PID, Reason: event.ReasonWaitBlock})
		if s.sched.Running == p {
			s.sched.Running = nil
		}

	case proc.SyscallExit:
		p.AdvancePC()
		s.push(&event.Event{Time: s.now, Kind: event.KindProcessExit, Pid: p.PID})
		if s.sched.Running == p {
			s.sched.Running = nil
		}
		s.push(&event.Event{Time: s.now + constants.ContextSwitchMoves, Kind: event.KindCPUAvailable})

	default:
		return NewSyscallError(p.PID, ErrCodeUnknownSyscall, fmt.Sprintf("syscall %q", sc.Name))
	}
	return nil
}

// handleBlockedToReady performs the transition selected by the event's
// reason tag.
func (s *System) handleBlockedToReady(ev *event.Event) {
	p := s.process(ev.Pid)
	switch ev.Reason {
	case event.ReasonQuantum:
		s.sched.EnqueueReady(p)
	case event.ReasonIOBlock, event.ReasonWaitBlock:
		p.State = proc.StateBlocked
	default:
		p.State = proc.StateReady
		p.Blocked = nil
		p.WaitingForChildren = false
		if since, tracked := s.blockedAt[p.PID]; tracked {
			s.observer.ObserveUnblock(s.now, p.PID, s.now-since)
			delete(s.blockedAt, p.PID)
		}
		s.sched.EnqueueReady(p)
	}
	s.attemptDispatch()
}

// handleIOComplete frees the device and the bus, wakes the owner, and hands
// the bus to the next pending request.
func (s *System) handleIOComplete(ev *event.Event) error {
	d, ok := s.deviceByName[ev.Device]
	if !ok {
		return NewDeviceError("IO_COMPLETE", ev.Device, ErrCodeUnknownDevice, "completion for unknown device")
	}
	s.bus.Release(d)
	s.push(&event.Event{Time: s.now, Kind: event.KindBlockedToReady, Pid: ev.Pid, Reason: event.ReasonUnblock})
	s.tryStartBusTransfer()
	return nil
}

func (s *System) handleSleepComplete(ev *event.Event) {
	s.push(&event.Event{Time: s.now, Kind: event.KindBlockedToReady, Pid: ev.Pid, Reason: event.ReasonUnblock})
}

func (s *System) handleWaitComplete(ev *event.Event) {
	s.push(&event.Event{Time: s.now, Kind: event.KindBlockedToReady, Pid: ev.Pid, Reason: event.ReasonUnblock})
}

// handleProcessExit terminates a process and, when its parent is waiting
// and has no live children left, schedules the parent's wakeup.
func (s *System) handleProcessExit(ev *event.Event) {
	p := s.process(ev.Pid)
	p.State = proc.StateExit
	if p.PPID != 0 {
		if parent, ok := s.table[p.PPID]; ok && parent.WaitingForChildren && !parent.LiveChildren() {
			s.push(&event.Event{Time: s.now, Kind: event.KindWaitComplete, Pid: parent.PID})
		}
	}
	if s.sched.Running == p {
		s.sched.Running = nil
	}
	s.push(&event.Event{Time: s.now + constants.ContextSwitchMoves, Kind: event.KindCPUAvailable})
}

// tryStartBusTransfer grants the bus to the best pending request, if the
// bus is idle and any device has queued work.
func (s *System) tryStartBusTransfer() {
	d, req, ok := s.bus.Select(s.devices)
	if !ok {
		return
	}
	s.bus.Grant(d, req.Pid)
	transfer := d.TransferMicros(req.Op, req.Size)
	complete := s.now + constants.BusAcquireDelay + transfer
	s.observer.ObserveBusGrant(s.now, d.Name, req.Op.String(), req.Pid, req.Size, transfer)
	s.push(&event.Event{Time: complete, Kind: event.KindIOComplete, Pid: req.Pid, Device: d.Name, RequestID: req.RequestID})
}

// verifyInvariants walks the engine state and reports the first broken
// invariant. Used under Options.CheckInvariants.
func (s *System) verifyInvariants() error {
	running := 0
	for _, p := range s.table {
		if p.State == proc.StateRunning {
			running++
		}
	}
	if running > 1 {
		return NewInvariantError("verify", fmt.Sprintf("%d processes in RUNNING state", running))
	}

	inUse := 0
	for _, d := range s.devices {
		if d.InUse {
			inUse++
		}
	}
	if s.bus.Busy && inUse != 1 {
		return NewInvariantError("verify", fmt.Sprintf("bus busy with %d devices in use", inUse))
	}
	if !s.bus.Busy && inUse != 0 {
		return NewInvariantError("verify", fmt.Sprintf("bus idle with %d devices in use", inUse))
	}

	seen := make(map[int]bool)
	for _, p := range s.sched.Ready() {
		switch p.State {
		case proc.StateRunning, proc.StateBlocked, proc.StateExit:
			return NewInvariantError("verify", fmt.Sprintf("pid %d in ready queue with state %s", p.PID, p.State))
		}
		if seen[p.PID] {
			return NewInvariantError("verify", fmt.Sprintf("pid %d in ready queue twice", p.PID))
		}
		seen[p.PID] = true
	}
	return nil
}

// parseSuffixed strips the first matching suffix and parses the rest as a
// non-negative integer.
func parseSuffixed(s string, suffixes ...string) (int64, error) {
	for _, suf := range suffixes {
		if strings.HasSuffix(s, suf) {
			s = strings.TrimSuffix(s, suf)
			break
		}
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, fmt.Errorf("negative value %d", v)
	}
	return v, nil
}
