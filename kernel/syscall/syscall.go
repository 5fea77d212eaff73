// Package syscall implements the system call layer. User code raises the
// system call vector with the call number in EAX and up to three arguments
// in EBX, ECX and EDX; the result, or a negated abi.Errno, is returned in
// EAX.
package syscall

import (
	"github.com/whampson/ohwes/kernel"
	"github.com/whampson/ohwes/kernel/abi"
	"github.com/whampson/ohwes/kernel/gate"
	"github.com/whampson/ohwes/kernel/task"
)

type handlerFn func(t *task.Task, a0, a1, a2 uint32) (int32, error)

var (
	table = [abi.NRSyscalls]handlerFn{
		abi.SysExit:  sysExit,
		abi.SysRead:  sysRead,
		abi.SysWrite: sysWrite,
		abi.SysOpen:  sysOpen,
		abi.SysClose: sysClose,
		abi.SysIoctl: sysIoctl,
		abi.SysDup:   sysDup,
		abi.SysDup2:  sysDup2,
	}

	traceFn func(nr, a0, a1, a2 uint32, ret int32)

	// The following functions are mocked by tests and are automatically
	// inlined by the compiler.
	handleInterruptFn = gate.HandleInterrupt
	currentTaskFn     = task.Current
)

// Init installs Dispatch on the system call vector.
func Init() *kernel.Error {
	return handleInterruptFn(gate.Syscall, Dispatch)
}

// SetTraceHook installs fn as an observer of completed system calls and
// returns the previous hook.
func SetTraceHook(fn func(nr, a0, a1, a2 uint32, ret int32)) func(nr, a0, a1, a2 uint32, ret int32) {
	prev := traceFn
	traceFn = fn
	return prev
}

// Dispatch services a system call trap on behalf of the current task.
func Dispatch(regs *gate.Registers) {
	regs.SetReturn(Invoke(currentTaskFn(), regs.EAX, regs.EBX, regs.ECX, regs.EDX))
}

// Invoke runs system call nr for t and returns the value reported to user
// space. Unknown call numbers fail with ENOSYS before any other state is
// looked at.
func Invoke(t *task.Task, nr, a0, a1, a2 uint32) int32 {
	var ret int32

	switch {
	case nr >= abi.NRSyscalls:
		ret = abi.ENOSYS.Ret()
	case t == nil || t.Exited:
		ret = abi.EPERM.Ret()
	default:
		n, err := table[nr](t, a0, a1, a2)
		if err != nil {
			n = errnoOf(err).Ret()
		}
		ret = n
	}

	if traceFn != nil {
		traceFn(nr, a0, a1, a2, ret)
	}
	return ret
}

// errnoOf maps err to the errno reported to user space. Errors that do not
// carry an errno are reported as EIO.
func errnoOf(err error) abi.Errno {
	if errno, ok := err.(abi.Errno); ok {
		return errno
	}
	return abi.EIO
}
