package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/google/subcommands"
	"github.com/whampson/ohwes/kernel/irq"
)

// IRQ implements subcommands.Command for the "irq" command.
type IRQ struct {
	lines    string
	spurious int
	keys     string
}

// Name implements subcommands.Command.Name.
func (*IRQ) Name() string {
	return "irq"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*IRQ) Synopsis() string {
	return "inject interrupts and print per-line statistics."
}

// Usage implements subcommands.Command.Usage.
func (*IRQ) Usage() string {
	return `irq [options] - boot the kernel core, raise interrupt lines and print the
delivery counters of every line.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (c *IRQ) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.lines, "lines", "", "comma-separated interrupt lines to raise, e.g. 1,1,7.")
	f.IntVar(&c.spurious, "spurious", 0, "number of spurious interrupts to raise on each controller.")
	f.StringVar(&c.keys, "keys", "", "bytes to type on the keyboard.")
}

// Execute implements subcommands.Command.Execute.
func (c *IRQ) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	lines, err := parseLines(c.lines)
	if err != nil {
		f.Usage()
		return subcommands.ExitUsageError
	}

	e, err := newEnv()
	if err != nil {
		Fatalf("%v", err)
	}
	defer e.close()

	for _, line := range lines {
		e.machine.RaiseIRQ(line)
	}
	for i := 0; i < c.spurious; i++ {
		e.machine.RaiseSpurious(false)
		e.machine.RaiseSpurious(true)
	}
	for _, b := range []byte(c.keys) {
		e.machine.Feed(b)
	}

	stats, spurious := e.machine.IRQStats()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "LINE\tNAME\tDELIVERED\tUNHANDLED\n")
	for line, s := range stats {
		fmt.Fprintf(w, "%d\t%s\t%d\t%d\n", line, irq.Line(line), s.Delivered, s.Unhandled)
	}
	fmt.Fprintf(w, "-\tspurious\t%d\t-\n", spurious)
	if err = w.Flush(); err != nil {
		Fatalf("writing statistics: %v", err)
	}
	return subcommands.ExitSuccess
}

func parseLines(list string) ([]irq.Line, error) {
	var lines []irq.Line
	for _, field := range strings.Split(list, ",") {
		if field = strings.TrimSpace(field); field == "" {
			continue
		}
		n, err := strconv.ParseUint(field, 10, 8)
		if err != nil || n >= uint64(irq.NumLines) {
			return nil, fmt.Errorf("invalid interrupt line %q", field)
		}
		lines = append(lines, irq.Line(n))
	}
	return lines, nil
}
