// Command wamrun is a thin demonstration client of package wam: it
// loads a flat byte-code fixture from disk, ingests it with
// code_added, executes it from a chosen offset, and prints whether
// execution succeeded. It performs no front-end compilation of its
// own — spec.md names the host-side client that does that as an
// external collaborator — and mirrors cmd/wazero's own idiom of a
// stdlib flag-based CLI rather than a command framework.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	wam "github.com/rupertlssmith/hak-wambook"
	"github.com/rupertlssmith/hak-wambook/internal/trace"
)

func main() {
	os.Exit(doMain(os.Stdout, os.Stderr))
}

// doMain is separated from main for the purpose of unit testing.
func doMain(stdOut, stdErr io.Writer) int {
	flag.CommandLine.SetOutput(stdErr)

	var (
		path      string
		offset    uint
		useGen    bool
		level     int
		verbosity bool
	)
	flag.StringVar(&path, "code", "", "path to a flat byte-code fixture file")
	flag.UintVar(&offset, "offset", 0, "code offset to execute from")
	flag.BoolVar(&useGen, "generator", false, "lower ingested code through the closure generator instead of the interpreter")
	flag.IntVar(&level, "opt-level", 0, "generator optimization level, 0..4 (ignored without -generator)")
	flag.BoolVar(&verbosity, "trace", false, "print one line per decoded instruction")
	flag.Parse()

	if path == "" {
		fmt.Fprintln(stdErr, "missing -code path to a byte-code fixture")
		flag.Usage()
		return 1
	}

	buf, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(stdErr, "reading %s: %v\n", path, err)
		return 1
	}

	cfg := wam.NewMachineConfig().WithGenerator(useGen).WithOptimizationLevel(level)
	m := wam.NewMachine(cfg)
	if verbosity {
		m = m.WithTracer(trace.Logger{Sink: stdOut})
	}

	if err := m.CodeAdded(buf, uint32(offset), uint32(len(buf))-uint32(offset)); err != nil {
		fmt.Fprintf(stdErr, "code_added: %v\n", err)
		return 1
	}

	ok := m.Execute(buf, uint32(offset))
	fmt.Fprintf(stdOut, "execute(offset=%d) = %v\n", offset, ok)
	if !ok {
		return 1
	}
	return 0
}
