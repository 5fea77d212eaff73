package kfmt

import (
	"github.com/whampson/ohwes/kernel"
	"github.com/whampson/ohwes/kernel/cpu"
)

var (
	// The following functions are mocked by tests and are automatically
	// inlined by the compiler.
	cpuDisableInterruptsFn = cpu.DisableInterrupts
	cpuHaltFn              = cpu.Halt

	errRuntimePanic = &kernel.Error{Module: "rt", Message: "unknown cause"}
)

// Panic disables interrupts, reports the supplied error (if not nil) on the
// console and halts the CPU. Calls to Panic never return. Panic is also the
// redirection target for calls to panic().
//
//go:redirect-from runtime.gopanic
func Panic(e interface{}) {
	cpuDisableInterruptsFn()

	var err *kernel.Error
	switch t := e.(type) {
	case *kernel.Error:
		err = t
	case string:
		errRuntimePanic.Message = t
		err = errRuntimePanic
	case error:
		errRuntimePanic.Message = t.Error()
		err = errRuntimePanic
	}

	Printf("\n*** kernel panic")
	if err != nil {
		Printf(" in %s: %s", err.Module, err.Message)
	}
	Printf(" ***\ninterrupts disabled, system halted\n")

	cpuHaltFn()
}

// panicString is the redirection target for runtime.throw.
//
//go:redirect-from runtime.throw
func panicString(msg string) {
	Panic(msg)
}
