package kernel

import "testing"

func TestKernelError(t *testing.T) {
	var err error = &Error{Module: "irq", Message: "line already has a handler"}

	kErr, ok := err.(*Error)
	if !ok {
		t.Fatal("expected *Error to implement error")
	}

	if got := err.Error(); got != kErr.Message {
		t.Fatalf("expected err.Error() to return %q; got %q", kErr.Message, got)
	}
}
