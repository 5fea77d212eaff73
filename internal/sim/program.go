package sim

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/whampson/ohwes/kernel/abi"
)

// StepResult is the outcome of a program step.
type StepResult struct {
	Step Step
	Ret  int32

	// Data holds the bytes stored by a successful read.
	Data []byte
}

// Run executes the steps in order. It stops at the first step whose return
// value does not match its expectation, when the task exits or when ctx is
// done.
func (m *Machine) Run(ctx context.Context, program []Step) ([]StepResult, error) {
	var results []StepResult

	for i, step := range program {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		nr, ok := SyscallNumber(step.Syscall)
		if !ok {
			return results, fmt.Errorf("step %d: unknown system call %q", i, step.Syscall)
		}

		if step.Data != "" || step.CString {
			data := []byte(step.Data)
			if step.CString {
				data = append(data, 0)
			}
			if _, err := m.mem.CopyOut(step.DataAddr, data); err != nil {
				return results, fmt.Errorf("step %d: storing data at 0x%x: %w", i, step.DataAddr, err)
			}
		}

		var args [3]uint32
		copy(args[:], step.Args)

		ret, err := m.Syscall(nr, args[0], args[1], args[2])
		if err != nil {
			return results, fmt.Errorf("step %d (%s): %w", i, step.Syscall, err)
		}

		res := StepResult{Step: step, Ret: ret}
		if nr == abi.SysRead && ret > 0 {
			res.Data = make([]byte, ret)
			m.mem.CopyIn(args[1], res.Data)
		}
		results = append(results, res)

		m.log.WithFields(logrus.Fields{
			"step":    i,
			"syscall": step.Syscall,
			"ret":     ret,
		}).Info("program step")

		if step.Expect != nil && *step.Expect != ret {
			return results, fmt.Errorf("step %d (%s): expected %d; got %d", i, step.Syscall, *step.Expect, ret)
		}
		if nr == abi.SysExit {
			break
		}
	}

	return results, nil
}
