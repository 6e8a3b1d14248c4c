package simio

import (
	"errors"
	"strings"
	"testing"

	simsched "github.com/ehrlich-b/go-simsched"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSysconfig(t *testing.T) {
	input := `# machine description
device disk1 1000000Bps 800000Bps
device tape 100000Bps 50000Bps

timequantum 150usec
`
	devices, quantum, err := ParseSysconfigReader(strings.NewReader(input), "sysconfig")
	require.NoError(t, err)

	require.Len(t, devices, 2)
	assert.Equal(t, simsched.DeviceSpec{Name: "disk1", ReadSpeed: 1_000_000, WriteSpeed: 800_000}, devices[0])
	assert.Equal(t, simsched.DeviceSpec{Name: "tape", ReadSpeed: 100_000, WriteSpeed: 50_000}, devices[1])
	assert.Equal(t, int64(150), quantum)
}

func TestParseSysconfigDefaultQuantum(t *testing.T) {
	_, quantum, err := ParseSysconfigReader(strings.NewReader("device d 1Bps 1Bps\n"), "sysconfig")
	require.NoError(t, err)
	assert.Equal(t, int64(100), quantum)
}

func TestParseSysconfigQuantumSuffixes(t *testing.T) {
	for _, line := range []string{"timequantum 80usec", "timequantum 80usecs", "timequantum 80"} {
		_, quantum, err := ParseSysconfigReader(strings.NewReader(line), "sysconfig")
		require.NoError(t, err, line)
		assert.Equal(t, int64(80), quantum, line)
	}
}

func TestParseSysconfigErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"missing field", "device disk1 1000Bps"},
		{"bad speed", "device disk1 fastBps 1000Bps"},
		{"bad quantum", "timequantum shortusec"},
		{"unknown directive", "quantum 100usec"},
		{"negative quantum", "timequantum -5usec"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParseSysconfigReader(strings.NewReader(tt.input), "sysconfig")
			require.Error(t, err)
			assert.True(t, errors.Is(err, &simsched.Error{Code: simsched.ErrCodeMalformedInput}))
		})
	}
}

func TestParseCommands(t *testing.T) {
	input := "# program catalog\n" +
		"shell\n" +
		"\t100usecs  spawn  worker\n" +
		"\t200usecs  wait\n" +
		"\t250usecs  exit\n" +
		"worker\n" +
		"\t0usecs  read  disk1  4096B\n" +
		"\t50usecs  write  disk1  512B\n" +
		"\t60usecs  sleep  1000usecs\n" +
		"\t70usecs  exit\n"

	catalog, err := ParseCommandsReader(strings.NewReader(input), "commands")
	require.NoError(t, err)

	assert.Equal(t, 2, catalog.Len())
	assert.Equal(t, []string{"shell", "worker"}, catalog.Names())

	shell, ok := catalog.Get("shell")
	require.True(t, ok)
	require.Len(t, shell, 3)
	assert.Equal(t, simsched.Syscall{When: 100, Name: "spawn", Args: []string{"worker"}}, shell[0])
	assert.Equal(t, simsched.Syscall{When: 200, Name: "wait", Args: []string{}}, shell[1])

	worker, ok := catalog.Get("worker")
	require.True(t, ok)
	require.Len(t, worker, 4)
	assert.Equal(t, simsched.Syscall{When: 0, Name: "read", Args: []string{"disk1", "4096B"}}, worker[0])
	assert.Equal(t, simsched.Syscall{When: 60, Name: "sleep", Args: []string{"1000usecs"}}, worker[2])
}

func TestParseCommandsSpaceIndent(t *testing.T) {
	input := "job\n    10usecs  exit\n"
	catalog, err := ParseCommandsReader(strings.NewReader(input), "commands")
	require.NoError(t, err)

	job, ok := catalog.Get("job")
	require.True(t, ok)
	require.Len(t, job, 1)
	assert.Equal(t, "exit", job[0].Name)
}

func TestParseCommandsEmptyBody(t *testing.T) {
	catalog, err := ParseCommandsReader(strings.NewReader("idle\n"), "commands")
	require.NoError(t, err)
	assert.Equal(t, 1, catalog.Len())

	script, ok := catalog.Get("idle")
	assert.True(t, ok)
	assert.Empty(t, script)
}

func TestParseCommandsEntrySelection(t *testing.T) {
	withShell := "boot\n\t0usecs exit\nshell\n\t0usecs exit\n"
	catalog, err := ParseCommandsReader(strings.NewReader(withShell), "commands")
	require.NoError(t, err)
	entry, ok := catalog.Entry()
	require.True(t, ok)
	assert.Equal(t, "shell", entry)

	noShell := "boot\n\t0usecs exit\nother\n\t0usecs exit\n"
	catalog, err = ParseCommandsReader(strings.NewReader(noShell), "commands")
	require.NoError(t, err)
	entry, ok = catalog.Entry()
	require.True(t, ok)
	assert.Equal(t, "boot", entry)
}

func TestParseCommandsErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"syscall before header", "\t0usecs exit\n"},
		{"unknown syscall", "job\n\t0usecs fork\n"},
		{"bad offset", "job\n\tsoonusecs exit\n"},
		{"missing name", "job\n\t0usecs\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCommandsReader(strings.NewReader(tt.input), "commands")
			require.Error(t, err)
			assert.True(t, errors.Is(err, &simsched.Error{Code: simsched.ErrCodeMalformedInput}))
		})
	}
}

func TestParsedCatalogRunsEndToEnd(t *testing.T) {
	sysconfig := "device disk1 1000000Bps 1000000Bps\ntimequantum 100usec\n"
	commands := "shell\n" +
		"\t10usecs  read  disk1  1000B\n" +
		"\t20usecs  exit\n"

	devices, quantum, err := ParseSysconfigReader(strings.NewReader(sysconfig), "sysconfig")
	require.NoError(t, err)
	catalog, err := ParseCommandsReader(strings.NewReader(commands), "commands")
	require.NoError(t, err)

	params := simsched.DefaultParams(catalog)
	params.Devices = devices
	params.TimeQuantum = quantum

	system, err := simsched.New(params, &simsched.Options{CheckInvariants: true})
	require.NoError(t, err)
	result, err := system.Start()
	require.NoError(t, err)

	// Same workload as the engine's own read test: blocked at t=15, a
	// 1000us transfer after the 20us acquire, exit at t=1050.
	assert.Equal(t, int64(1060), result.TotalTime)
	assert.Equal(t, 2, result.CPUUtilization)
}
