package main

import (
	"flag"
	"fmt"
	"os"

	simsched "github.com/ehrlich-b/go-simsched"
	"github.com/ehrlich-b/go-simsched/internal/logging"
	"github.com/ehrlich-b/go-simsched/simio"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("myscheduler", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var verbose bool
	fs.BoolVar(&verbose, "v", false, "Enable verbose event tracing")
	fs.BoolVar(&verbose, "verbose", false, "Enable verbose event tracing")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: myscheduler <sysconfig-file> <commands-file> [-v|--verbose]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 1
	}
	// Flags may also follow the two positional arguments.
	positional := fs.Args()
	if len(positional) > 2 {
		if err := fs.Parse(positional[2:]); err != nil {
			return 1
		}
		positional = append(positional[:2:2], fs.Args()...)
	}
	if len(positional) != 2 {
		fs.Usage()
		return 1
	}
	sysconfigPath := positional[0]
	commandsPath := positional[1]

	devices, quantum, err := simio.ParseSysconfig(sysconfigPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	commands, err := simio.ParseCommands(commandsPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	fmt.Printf("found %d devices\n", len(devices))
	fmt.Printf("found %d commands\n", commands.Len())
	fmt.Printf("time quantum is %d\n", quantum)

	// Set up logging. The event trace goes to stdout so the measurements
	// line stays the last thing printed there.
	logConfig := logging.DefaultConfig()
	if verbose {
		logConfig.Level = logging.LevelTrace
		logConfig.Output = os.Stdout
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	params := simsched.DefaultParams(commands)
	params.Devices = devices
	params.TimeQuantum = quantum

	options := &simsched.Options{Logger: logger}
	if verbose {
		options.Observer = simsched.NewTraceObserver(logger)
	}

	system, err := simsched.New(params, options)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	result, err := system.Start()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	fmt.Printf("measurements %d %d\n", result.TotalTime, result.CPUUtilization)
	return 0
}
