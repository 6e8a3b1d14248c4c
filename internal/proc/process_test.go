package proc

import "testing"

func TestNewSortsSyscalls(t *testing.T) {
	p := New(1, "job", []SystemCall{
		{When: 300, Name: SyscallExit},
		{When: 100, Name: SyscallSleep, Args: []string{"10usecs"}},
		{When: 200, Name: SyscallWait},
	}, nil)

	want := []int64{100, 200, 300}
	for i, w := range want {
		if p.Syscalls[i].When != w {
			t.Errorf("Syscalls[%d].When = %d, want %d", i, p.Syscalls[i].When, w)
		}
	}
}

func TestNewSortIsStable(t *testing.T) {
	p := New(1, "job", []SystemCall{
		{When: 50, Name: SyscallSpawn, Args: []string{"a"}},
		{When: 50, Name: SyscallSpawn, Args: []string{"b"}},
	}, nil)

	if p.Syscalls[0].Args[0] != "a" || p.Syscalls[1].Args[0] != "b" {
		t.Errorf("equal offsets reordered: %v", p.Syscalls)
	}
}

func TestNewLinksParent(t *testing.T) {
	parent := New(1, "shell", nil, nil)
	child := New(2, "worker", nil, parent)

	if child.PPID != 1 {
		t.Errorf("child.PPID = %d, want 1", child.PPID)
	}
	if parent.PPID != 0 {
		t.Errorf("parent.PPID = %d, want 0", parent.PPID)
	}
	if len(parent.Children) != 1 || parent.Children[0] != child {
		t.Errorf("parent.Children = %v, want [child]", parent.Children)
	}
}

func TestTimeUntilNextSyscall(t *testing.T) {
	p := New(1, "job", []SystemCall{{When: 100, Name: SyscallExit}}, nil)

	until, ok := p.TimeUntilNextSyscall()
	if !ok || until != 100 {
		t.Errorf("TimeUntilNextSyscall() = %d,%v, want 100,true", until, ok)
	}

	p.CPUTimeExecuted = 60
	until, _ = p.TimeUntilNextSyscall()
	if until != 40 {
		t.Errorf("TimeUntilNextSyscall() after 60us = %d, want 40", until)
	}

	// Never negative, even when execution overshot the offset
	p.CPUTimeExecuted = 150
	until, _ = p.TimeUntilNextSyscall()
	if until != 0 {
		t.Errorf("TimeUntilNextSyscall() overshot = %d, want 0", until)
	}

	p.AdvancePC()
	if _, ok := p.TimeUntilNextSyscall(); ok {
		t.Error("TimeUntilNextSyscall() past end should report !ok")
	}
}

func TestCurrentSyscall(t *testing.T) {
	p := New(1, "job", []SystemCall{{When: 0, Name: SyscallWait}}, nil)

	sc, ok := p.CurrentSyscall()
	if !ok || sc.Name != SyscallWait {
		t.Errorf("CurrentSyscall() = %v,%v, want wait,true", sc, ok)
	}

	p.AdvancePC()
	if _, ok := p.CurrentSyscall(); ok {
		t.Error("CurrentSyscall() past end should report !ok")
	}
}

func TestLiveChildren(t *testing.T) {
	parent := New(1, "shell", nil, nil)
	if parent.LiveChildren() {
		t.Error("LiveChildren() with no children should be false")
	}

	c1 := New(2, "worker", nil, parent)
	c2 := New(3, "worker", nil, parent)
	if !parent.LiveChildren() {
		t.Error("LiveChildren() with two live children should be true")
	}

	c1.State = StateExit
	if !parent.LiveChildren() {
		t.Error("LiveChildren() with one live child should be true")
	}

	c2.State = StateExit
	if parent.LiveChildren() {
		t.Error("LiveChildren() with all children exited should be false")
	}
}

func TestKnown(t *testing.T) {
	for _, n := range []Name{SyscallSpawn, SyscallRead, SyscallWrite, SyscallSleep, SyscallWait, SyscallExit} {
		if !Known(n) {
			t.Errorf("Known(%q) = false, want true", n)
		}
	}
	if Known("fork") {
		t.Error(`Known("fork") = true, want false`)
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateNew, "NEW"},
		{StateReady, "READY"},
		{StateRunning, "RUNNING"},
		{StateBlocked, "BLOCKED"},
		{StateExit, "EXIT"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State.String() = %q, want %q", got, tt.want)
		}
	}
}
