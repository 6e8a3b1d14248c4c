// Package simio parses the sysconfig and commands input files into the
// in-memory shapes the simulator consumes.
//
// Both grammars are line-oriented and whitespace-delimited. Blank lines and
// lines whose first non-blank character is '#' are ignored. Unit suffixes
// (Bps, usec, usecs, B) are stripped to yield integers.
package simio

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	simsched "github.com/ehrlich-b/go-simsched"
	"github.com/ehrlich-b/go-simsched/internal/constants"
	"github.com/ehrlich-b/go-simsched/internal/proc"
)

// ParseSysconfig reads a sysconfig file: device lines and an optional
// timequantum line. The quantum defaults to 100 usec when absent.
//
//	device disk1 1000000Bps 800000Bps
//	timequantum 100usec
func ParseSysconfig(path string) ([]simsched.DeviceSpec, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, simsched.WrapError("parse", simsched.ErrCodeMalformedInput, err)
	}
	defer f.Close()
	return ParseSysconfigReader(f, path)
}

// ParseSysconfigReader is ParseSysconfig over an io.Reader; name labels
// errors.
func ParseSysconfigReader(r io.Reader, name string) ([]simsched.DeviceSpec, int64, error) {
	var devices []simsched.DeviceSpec
	quantum := int64(constants.DefaultTimeQuantum)

	scanner := bufio.NewScanner(r)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		switch fields[0] {
		case "device":
			if len(fields) != 4 {
				return nil, 0, simsched.NewParseError(name, lineno, "device needs a name and two speeds")
			}
			rs, err := parseSuffixed(fields[2], "Bps")
			if err != nil {
				return nil, 0, simsched.NewParseError(name, lineno, fmt.Sprintf("bad read speed %q", fields[2]))
			}
			ws, err := parseSuffixed(fields[3], "Bps")
			if err != nil {
				return nil, 0, simsched.NewParseError(name, lineno, fmt.Sprintf("bad write speed %q", fields[3]))
			}
			devices = append(devices, simsched.DeviceSpec{Name: fields[1], ReadSpeed: rs, WriteSpeed: ws})
		case "timequantum":
			if len(fields) != 2 {
				return nil, 0, simsched.NewParseError(name, lineno, "timequantum needs a value")
			}
			q, err := parseSuffixed(fields[1], "usecs", "usec")
			if err != nil {
				return nil, 0, simsched.NewParseError(name, lineno, fmt.Sprintf("bad time quantum %q", fields[1]))
			}
			quantum = q
		default:
			return nil, 0, simsched.NewParseError(name, lineno, fmt.Sprintf("unknown directive %q", fields[0]))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, simsched.WrapError("parse", simsched.ErrCodeMalformedInput, err)
	}
	return devices, quantum, nil
}

// ParseCommands reads a commands file. A command header starts at column 0;
// its syscall lines are indented with a tab or spaces:
//
//	shell
//		100usecs  spawn  worker
//		250usecs  exit
func ParseCommands(path string) (*simsched.Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, simsched.WrapError("parse", simsched.ErrCodeMalformedInput, err)
	}
	defer f.Close()
	return ParseCommandsReader(f, path)
}

// ParseCommandsReader is ParseCommands over an io.Reader; name labels
// errors.
func ParseCommandsReader(r io.Reader, name string) (*simsched.Catalog, error) {
	catalog := simsched.NewCatalog()
	var current string
	var script []simsched.Syscall

	flush := func() {
		if current != "" {
			catalog.Add(current, script)
		}
	}

	scanner := bufio.NewScanner(r)
	lineno := 0
	for scanner.Scan() {
		lineno++
		raw := scanner.Text()
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		indented := strings.HasPrefix(raw, "\t") || strings.HasPrefix(raw, " ")
		if !indented {
			flush()
			current = trimmed
			script = nil
			continue
		}
		if current == "" {
			return nil, simsched.NewParseError(name, lineno, "syscall line before any command header")
		}
		fields := strings.Fields(trimmed)
		if len(fields) < 2 {
			return nil, simsched.NewParseError(name, lineno, "syscall line needs an offset and a name")
		}
		when, err := parseSuffixed(fields[0], "usecs", "usec")
		if err != nil {
			return nil, simsched.NewParseError(name, lineno, fmt.Sprintf("bad offset %q", fields[0]))
		}
		if !proc.Known(proc.Name(fields[1])) {
			return nil, simsched.NewParseError(name, lineno, fmt.Sprintf("unknown syscall %q", fields[1]))
		}
		script = append(script, simsched.Syscall{When: when, Name: fields[1], Args: fields[2:]})
	}
	if err := scanner.Err(); err != nil {
		return nil, simsched.WrapError("parse", simsched.ErrCodeMalformedInput, err)
	}
	flush()
	return catalog, nil
}

// parseSuffixed strips the first matching suffix and parses a non-negative
// integer.
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
