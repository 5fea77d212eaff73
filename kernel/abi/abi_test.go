package abi

import "testing"

func TestSyscallName(t *testing.T) {
	specs := []struct {
		nr  uint32
		exp string
	}{
		{SysExit, "_exit"},
		{SysWrite, "write"},
		{SysDup2, "dup2"},
		{NRSyscalls, "invalid"},
		{99, "invalid"},
	}

	for specIndex, spec := range specs {
		if got := SyscallName(spec.nr); got != spec.exp {
			t.Errorf("[spec %d] expected SyscallName(%d) to return %q; got %q", specIndex, spec.nr, spec.exp, got)
		}
	}
}

func TestErrno(t *testing.T) {
	if got, exp := ENOSYS.Error(), "invalid syscall"; got != exp {
		t.Errorf("expected ENOSYS.Error() to return %q; got %q", exp, got)
	}

	if got, exp := Errno(0).Error(), "unknown error"; got != exp {
		t.Errorf("expected Errno(0).Error() to return %q; got %q", exp, got)
	}

	if got, exp := Errno(1000).Error(), "unknown error"; got != exp {
		t.Errorf("expected Errno(1000).Error() to return %q; got %q", exp, got)
	}

	if got, exp := EBADF.Ret(), int32(-9); got != exp {
		t.Errorf("expected EBADF.Ret() to return %d; got %d", exp, got)
	}
}
