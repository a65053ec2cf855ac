// Command labcore records laboratory operations against the configured store,
// seeds reference data and exports labware provenance.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"labcore/pkg/domain"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

var exitFunc = os.Exit

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, args []string, stdout, stderr io.Writer) error
}

var commands = []command{
	{name: "seed", summary: "load reference data from a YAML file", run: runSeed},
	{name: "apply", summary: "validate and record one request", run: runApply},
	{name: "history", summary: "print the provenance of a labware", run: runHistory},
	{name: "export", summary: "export the provenance of a labware to the blob store", run: runExport},
	{name: "serve-metrics", summary: "serve Prometheus and expvar metrics", run: runServeMetrics},
}

// errUsage marks flag and argument errors.
var errUsage = errors.New("usage error")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	exitFunc(code)
}

func cli(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		usage(stderr)
		if len(args) == 0 {
			return exitUsage
		}
		return exitOK
	}
	for _, c := range commands {
		if c.name != args[0] {
			continue
		}
		err := c.run(ctx, args[1:], stdout, stderr)
		return report(stderr, err)
	}
	_, _ = fmt.Fprintf(stderr, "unknown command %q\n", args[0])
	usage(stderr)
	return exitUsage
}

func report(stderr io.Writer, err error) int {
	if err == nil {
		return exitOK
	}
	if errors.Is(err, flag.ErrHelp) {
		return exitOK
	}
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		_, _ = fmt.Fprintln(stderr, verr.Message)
		for _, p := range verr.Problems {
			_, _ = fmt.Fprintf(stderr, "  - %s\n", p)
		}
		return exitUsage
	}
	_, _ = fmt.Fprintf(stderr, "labcore: %v\n", err)
	if errors.Is(err, errUsage) {
		return exitUsage
	}
	return exitFailure
}

func usage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: labcore <command> [flags]")
	_, _ = fmt.Fprintln(w)
	for _, c := range commands {
		_, _ = fmt.Fprintf(w, "  %-14s %s\n", c.name, c.summary)
	}
}

func newFlagSet(name string, stderr io.Writer) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet("labcore "+name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", os.Getenv("LABCORE_CONFIG"), "path to YAML config file")
	return fs, configPath
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("%w: unexpected arguments %v", errUsage, fs.Args())
	}
	return nil
}
