package main

import (
	"context"
	"flag"
	"os"

	"github.com/google/subcommands"
)

// Tables implements subcommands.Command for the "tables" command.
type Tables struct{}

// Name implements subcommands.Command.Name.
func (*Tables) Name() string {
	return "tables"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Tables) Synopsis() string {
	return "decode and print the GDT, LDT, IDT and TSS."
}

// Usage implements subcommands.Command.Usage.
func (*Tables) Usage() string {
	return `tables - boot the kernel core and print its descriptor tables.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (*Tables) SetFlags(*flag.FlagSet) {}

// Execute implements subcommands.Command.Execute.
func (*Tables) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}

	e, err := newEnv()
	if err != nil {
		Fatalf("%v", err)
	}
	defer e.close()

	e.machine.DumpTables(os.Stdout)
	return subcommands.ExitSuccess
}
