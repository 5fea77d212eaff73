// Binary ohwes-sim boots the kernel interrupt and system call core on a
// simulated PC.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"
	"github.com/whampson/ohwes/internal/sim"
)

var (
	configPath = flag.String("config", "", "path to a TOML machine configuration; the built-in defaults are used if empty.")
	logLevel   = flag.String("log-level", "", "logrus level (panic, fatal, error, warn, info, debug, trace); overrides the configuration.")
	logConsole = flag.Bool("log-console", false, "send the kernel console to the log instead of stdout.")
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")

	subcommands.Register(new(Boot), "")
	subcommands.Register(new(Tables), "")
	subcommands.Register(new(Run), "")
	subcommands.Register(new(IRQ), "")

	flag.Parse()
	os.Exit(int(subcommands.Execute(context.Background())))
}

// Fatalf logs the error and exits with a failure status.
func Fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "ohwes-sim: "+format+"\n", args...)
	os.Exit(int(subcommands.ExitFailure))
}

// env is the machine shared by every command and the things it writes to.
type env struct {
	cfg     sim.Config
	log     *logrus.Logger
	machine *sim.Machine
	console io.Writer
}

// newEnv loads the configuration named by the global flags and returns a
// booted machine.
func newEnv() (*env, error) {
	cfg := sim.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = sim.LoadConfig(*configPath); err != nil {
			return nil, err
		}
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(level)

	e := &env{cfg: cfg, log: log, console: os.Stdout}
	if *logConsole {
		e.console = log.WriterLevel(logrus.InfoLevel)
	}

	e.machine = sim.New(cfg, e.console, log)
	if err = e.machine.Boot(); err != nil {
		return nil, fmt.Errorf("boot: %w", err)
	}
	return e, nil
}

// close stops the machine and flushes the console pipe.
func (e *env) close() {
	e.machine.Stop()
	if c, ok := e.console.(io.Closer); ok {
		c.Close()
	}
}
