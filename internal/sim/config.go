package sim

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/whampson/ohwes/kernel/abi"
)

// Config describes a simulated machine and the program run on it.
type Config struct {
	// KernelStack is the ring 0 stack top loaded into the TSS.
	KernelStack uint32 `toml:"kernel_stack"`

	// UserBase and UserSize describe the user address space.
	UserBase uint32 `toml:"user_base"`
	UserSize uint32 `toml:"user_size"`

	// UserStack is the ESP value of the user task.
	UserStack uint32 `toml:"user_stack"`

	// LogLevel is a logrus level name.
	LogLevel string `toml:"log_level"`

	Keyboard KeyboardConfig `toml:"keyboard"`

	// Program is run step by step by the run command.
	Program []Step `toml:"program"`
}

// KeyboardConfig controls the keyboard input pump.
type KeyboardConfig struct {
	// Rate is the typematic rate in bytes per second; 0 disables rate
	// limiting.
	Rate float64 `toml:"rate"`

	// Burst is the number of bytes that may be delivered back to back.
	Burst int `toml:"burst"`

	// Input is typed once the machine has booted.
	Input string `toml:"input"`

	// Host feeds keys typed on the host terminal to the machine.
	Host bool `toml:"host"`
}

// Step is a single system call of a scripted program.
type Step struct {
	// Syscall is the system call name, e.g. "write".
	Syscall string `toml:"syscall"`

	// Args are passed in EBX, ECX and EDX.
	Args []uint32 `toml:"args"`

	// Data is copied to user memory at DataAddr before the call. If
	// CString is set, a terminating NUL is appended.
	Data     string `toml:"data"`
	DataAddr uint32 `toml:"data_addr"`
	CString  bool   `toml:"cstring"`

	// Expect, if set, is the value the call must return.
	Expect *int32 `toml:"expect"`
}

// DefaultConfig returns the configuration used when no file is given: a
// program that greets the console and echoes one line of keyboard input.
func DefaultConfig() Config {
	return Config{
		KernelStack: 0x00090000,
		UserBase:    0x00400000,
		UserSize:    0x00010000,
		UserStack:   0x0040f000,
		LogLevel:    "info",
		Keyboard: KeyboardConfig{
			Rate:  30,
			Burst: 1,
		},
		Program: []Step{
			{Syscall: "write", Args: []uint32{1, 0x00401000, 14}, Data: "hello, world!\n", DataAddr: 0x00401000},
			{Syscall: "_exit", Args: []uint32{0}},
		},
	}
}

// LoadConfig decodes the TOML file at path on top of the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := defaultsForDecode()
	md, err := toml.DecodeFile(path, &cfg)
	return finishDecode(cfg, md, err)
}

// DecodeConfig decodes a TOML document on top of the defaults.
func DecodeConfig(doc string) (Config, error) {
	cfg := defaultsForDecode()
	md, err := toml.Decode(doc, &cfg)
	return finishDecode(cfg, md, err)
}

// defaultsForDecode returns the defaults without a program; a program given
// in the document replaces the default one as a whole.
func defaultsForDecode() Config {
	cfg := DefaultConfig()
	cfg.Program = nil
	return cfg
}

func finishDecode(cfg Config, md toml.MetaData, err error) (Config, error) {
	if err != nil {
		return cfg, err
	}
	if !md.IsDefined("program") {
		cfg.Program = DefaultConfig().Program
	}
	if undecoded := md.Undecoded(); len(undecoded) != 0 {
		return cfg, fmt.Errorf("unknown configuration key %q", undecoded[0].String())
	}
	return cfg, cfg.Validate()
}

// Validate checks the memory layout and the program.
func (c *Config) Validate() error {
	if c.UserBase == 0 || c.UserSize == 0 {
		return fmt.Errorf("user address space must not be empty or start at 0")
	}
	if uint64(c.UserBase)+uint64(c.UserSize) > 1<<32 {
		return fmt.Errorf("user address space 0x%x+0x%x exceeds 4GiB", c.UserBase, c.UserSize)
	}
	if c.UserStack < c.UserBase || c.UserStack > c.UserBase+c.UserSize {
		return fmt.Errorf("user stack 0x%x outside of the user address space", c.UserStack)
	}
	for i, step := range c.Program {
		if _, ok := SyscallNumber(step.Syscall); !ok {
			return fmt.Errorf("program step %d: unknown system call %q", i, step.Syscall)
		}
		if len(step.Args) > 3 {
			return fmt.Errorf("program step %d: %s takes at most 3 arguments", i, step.Syscall)
		}
	}
	return nil
}

// SyscallNumber maps a system call name to its number.
func SyscallNumber(name string) (uint32, bool) {
	for nr := uint32(0); nr < abi.NRSyscalls; nr++ {
		if abi.SyscallName(nr) == name {
			return nr, true
		}
	}
	return 0, false
}
