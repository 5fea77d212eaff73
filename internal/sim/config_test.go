package sim

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDecodeConfig(t *testing.T) {
	doc := `
kernel_stack = 0x80000
log_level = "debug"

[keyboard]
rate = 10.5
input = "ls\n"

[[program]]
syscall = "open"
args = [0x401000, 2]
data = "/dev/tty0"
data_addr = 0x401000
cstring = true
expect = 3

[[program]]
syscall = "_exit"
args = [7]
`

	cfg, err := DecodeConfig(doc)
	if err != nil {
		t.Fatal(err)
	}

	expect := int32(3)
	exp := DefaultConfig()
	exp.KernelStack = 0x80000
	exp.LogLevel = "debug"
	exp.Keyboard.Rate = 10.5
	exp.Keyboard.Input = "ls\n"
	exp.Program = []Step{
		{Syscall: "open", Args: []uint32{0x401000, 2}, Data: "/dev/tty0", DataAddr: 0x401000, CString: true, Expect: &expect},
		{Syscall: "_exit", Args: []uint32{7}},
	}

	if diff := cmp.Diff(exp, cfg); diff != "" {
		t.Fatalf("unexpected config (-want +got):\n%s", diff)
	}
}

func TestConfigValidation(t *testing.T) {
	specs := []struct {
		doc    string
		expErr string
	}{
		{"user_base = 0", "must not be empty"},
		{"user_base = 0xffff0000\nuser_size = 0x20000", "exceeds 4GiB"},
		{"user_stack = 0x1000", "user stack"},
		{"[[program]]\nsyscall = \"fork\"", `unknown system call "fork"`},
		{"[[program]]\nsyscall = \"read\"\nargs = [0, 1, 2, 3]", "at most 3 arguments"},
		{"kernel_stack = \"high\"", "kernel_stack"},
	}

	for specIndex, spec := range specs {
		_, err := DecodeConfig(spec.doc)
		if err == nil || !strings.Contains(err.Error(), spec.expErr) {
			t.Errorf("[spec %d] expected error containing %q; got %v", specIndex, spec.expErr, err)
		}
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sim.toml")
	if err := os.WriteFile(path, []byte("[keyboard]\nhost = true\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Keyboard.Host || cfg.Keyboard.Rate != DefaultConfig().Keyboard.Rate {
		t.Fatalf("expected host input on top of the defaults; got %+v", cfg.Keyboard)
	}

	if _, err = LoadConfig(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestSyscallNumber(t *testing.T) {
	for name, exp := range map[string]uint32{"_exit": 0, "write": 2, "dup2": 7} {
		if nr, ok := SyscallNumber(name); !ok || nr != exp {
			t.Errorf("expected %s to be system call %d; got %d, %t", name, exp, nr, ok)
		}
	}
	if _, ok := SyscallNumber("fork"); ok {
		t.Error("expected fork to be unknown")
	}
}

func TestUnknownConfigKey(t *testing.T) {
	if _, err := DecodeConfig("[keyboard]\nrepeat = 3\n"); err == nil || !strings.Contains(err.Error(), "keyboard.repeat") {
		t.Fatalf("expected an unknown key error; got %v", err)
	}
}
