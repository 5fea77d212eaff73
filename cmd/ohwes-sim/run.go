package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

// Run implements subcommands.Command for the "run" command.
type Run struct {
	host bool
}

// Name implements subcommands.Command.Name.
func (*Run) Name() string {
	return "run"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Run) Synopsis() string {
	return "boot the kernel core and run the configured user program."
}

// Usage implements subcommands.Command.Usage.
func (*Run) Usage() string {
	return `run [options] - boot the kernel core, type the configured keyboard input
and run the scripted user program as task 1.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (r *Run) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&r.host, "host-keyboard", false, "type the keys pressed on the host terminal; same as keyboard.host in the configuration.")
}

// Execute implements subcommands.Command.Execute.
func (r *Run) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}

	e, err := newEnv()
	if err != nil {
		Fatalf("%v", err)
	}
	defer e.close()

	if e.cfg.Keyboard.Input != "" {
		if err = e.machine.PumpKeyboard(ctx, strings.NewReader(e.cfg.Keyboard.Input), e.cfg.Keyboard); err != nil {
			Fatalf("typing keyboard input: %v", err)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if r.host || e.cfg.Keyboard.Host {
		restore, err := rawStdin()
		if err != nil {
			Fatalf("%v", err)
		}
		defer restore()

		go func() {
			if err := e.machine.PumpKeyboard(ctx, os.Stdin, e.cfg.Keyboard); err != nil && ctx.Err() == nil {
				e.log.WithError(err).Warn("host keyboard stopped")
			}
		}()
	}

	results, err := e.machine.Run(ctx, e.cfg.Program)
	for i, res := range results {
		entry := e.log.WithFields(logrus.Fields{"step": i, "syscall": res.Step.Syscall, "ret": res.Ret})
		if res.Data != nil {
			entry = entry.WithField("data", fmt.Sprintf("%q", res.Data))
		}
		entry.Debug("step result")
	}
	if err != nil {
		e.log.WithError(err).Error("program failed")
		return subcommands.ExitFailure
	}

	for _, exit := range e.machine.Exits() {
		e.log.WithFields(logrus.Fields{"task": exit.TaskID, "status": exit.Status}).Info("exit")
	}
	return subcommands.ExitSuccess
}

// rawStdin puts the host terminal into raw mode so every key press reaches
// the simulated keyboard.
func rawStdin() (func(), error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return func() {}, nil
	}

	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("setting terminal raw mode: %w", err)
	}
	return func() { term.Restore(fd, state) }, nil
}
