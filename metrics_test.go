package simsched

import "testing"

func TestMetrics(t *testing.T) {
	m := NewMetrics()

	// Test initial state
	snap := m.Snapshot()
	if snap.Events != 0 || snap.BusGrants != 0 {
		t.Errorf("Expected zeroed initial snapshot, got %+v", snap)
	}

	// Record a small run's worth of activity
	m.RecordEvent()
	m.RecordEvent()
	m.RecordDispatch(5)
	m.RecordSlice(100)
	m.RecordDispatch(5)
	m.RecordSlice(40)
	m.RecordPreemption()
	m.RecordSyscall("read")
	m.RecordSyscall("exit")
	m.RecordBusGrant("read", 1024, 1000)
	m.RecordBusGrant("write", 2048, 2000)

	snap = m.Snapshot()

	if snap.Events != 2 {
		t.Errorf("Expected 2 events, got %d", snap.Events)
	}
	if snap.Dispatches != 2 {
		t.Errorf("Expected 2 dispatches, got %d", snap.Dispatches)
	}
	if snap.Preemptions != 1 {
		t.Errorf("Expected 1 preemption, got %d", snap.Preemptions)
	}
	if snap.Reads != 1 || snap.Exits != 1 {
		t.Errorf("Expected 1 read and 1 exit, got %d and %d", snap.Reads, snap.Exits)
	}
	if snap.ReadBytes != 1024 {
		t.Errorf("Expected 1024 read bytes, got %d", snap.ReadBytes)
	}
	if snap.WriteBytes != 2048 {
		t.Errorf("Expected 2048 write bytes, got %d", snap.WriteBytes)
	}
	if snap.BusGrants != 2 {
		t.Errorf("Expected 2 bus grants, got %d", snap.BusGrants)
	}

	// CPU charge is switch-ins plus slices
	if snap.SwitchMicros != 10 {
		t.Errorf("Expected 10us of switch charge, got %d", snap.SwitchMicros)
	}
	if snap.SliceMicros != 140 {
		t.Errorf("Expected 140us of slices, got %d", snap.SliceMicros)
	}
	if snap.CPUBusyMicros != 150 {
		t.Errorf("Expected 150us busy, got %d", snap.CPUBusyMicros)
	}
}

func TestMetricsTransferLatency(t *testing.T) {
	m := NewMetrics()

	// Transfer latency includes the bus acquire delay
	m.RecordBusGrant("read", 100, 980)

	snap := m.Snapshot()
	if snap.TransferMax < 995 || snap.TransferMax > 1005 {
		t.Errorf("Expected transfer max near 1000us, got %d", snap.TransferMax)
	}
	if snap.TransferP50 < 995 || snap.TransferP50 > 1005 {
		t.Errorf("Expected transfer p50 near 1000us, got %d", snap.TransferP50)
	}
}

func TestMetricsZeroLengthTransfer(t *testing.T) {
	m := NewMetrics()

	// A zero-byte transfer still pays the acquire delay
	m.RecordBusGrant("read", 0, 0)

	snap := m.Snapshot()
	if snap.TransferMax < 15 || snap.TransferMax > 25 {
		t.Errorf("Expected transfer max near 20us, got %d", snap.TransferMax)
	}
}

func TestMetricsTurnaround(t *testing.T) {
	m := NewMetrics()

	m.RecordTurnaround(1020)
	m.RecordTurnaround(60)

	snap := m.Snapshot()
	if snap.TurnaroundMax < 1015 || snap.TurnaroundMax > 1025 {
		t.Errorf("Expected turnaround max near 1020us, got %d", snap.TurnaroundMax)
	}
	if snap.TurnaroundP50 < 55 || snap.TurnaroundP50 > 65 {
		t.Errorf("Expected turnaround p50 near 60us, got %d", snap.TurnaroundP50)
	}
}

func TestMetricsUnknownSyscallNameIgnored(t *testing.T) {
	m := NewMetrics()
	m.RecordSyscall("frobnicate")

	snap := m.Snapshot()
	total := snap.Spawns + snap.Reads + snap.Writes + snap.Sleeps + snap.Waits + snap.Exits
	if total != 0 {
		t.Errorf("Expected unknown name to count nowhere, got %+v", snap)
	}
}

func TestMetricsReset(t *testing.T) {
	m := NewMetrics()
	m.RecordDispatch(5)
	m.RecordSlice(50)
	m.RecordBusGrant("write", 10, 10)
	m.RecordTurnaround(30)

	m.Reset()
	snap := m.Snapshot()

	if snap.CPUBusyMicros != 0 || snap.BusGrants != 0 || snap.WriteBytes != 0 {
		t.Errorf("Expected zeroed snapshot after Reset, got %+v", snap)
	}
	if snap.TransferMax != 0 || snap.TurnaroundMax != 0 {
		t.Errorf("Expected zeroed histograms after Reset, got %+v", snap)
	}
}
