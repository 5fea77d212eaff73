package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
)

// Boot implements subcommands.Command for the "boot" command.
type Boot struct{}

// Name implements subcommands.Command.Name.
func (*Boot) Name() string {
	return "boot"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Boot) Synopsis() string {
	return "boot the kernel core and print the CPU and interrupt controller state."
}

// Usage implements subcommands.Command.Usage.
func (*Boot) Usage() string {
	return `boot - boot the kernel core and print the machine state.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (*Boot) SetFlags(*flag.FlagSet) {}

// Execute implements subcommands.Command.Execute.
func (*Boot) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}

	e, err := newEnv()
	if err != nil {
		Fatalf("%v", err)
	}
	defer e.close()

	st := e.machine.State()
	fmt.Fprintf(os.Stdout, "IF=%t CS=0x%04x DS=0x%04x\n", st.InterruptFlag, st.CS, st.DS)
	fmt.Fprintf(os.Stdout, "GDTR base=0x%08x limit=0x%04x\n", st.GDTBase, st.GDTLimit)
	fmt.Fprintf(os.Stdout, "IDTR base=0x%08x limit=0x%04x\n", st.IDTBase, st.IDTLimit)
	fmt.Fprintf(os.Stdout, "LDTR=0x%04x TR=0x%04x\n", st.LDTR, st.TR)
	fmt.Fprintf(os.Stdout, "PIC master base=0x%02x imr=0x%02x irr=0x%02x isr=0x%02x\n", st.MasterBase, st.MasterIMR, st.MasterIRR, st.MasterISR)
	fmt.Fprintf(os.Stdout, "PIC slave  base=0x%02x imr=0x%02x irr=0x%02x isr=0x%02x\n", st.SlaveBase, st.SlaveIMR, st.SlaveIRR, st.SlaveISR)
	return subcommands.ExitSuccess
}
