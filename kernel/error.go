// Package kernel contains types shared by every kernel subsystem.
package kernel

// Error describes a kernel error. Errors are declared once as package-level
// pointers so that reporting them never needs the allocator; this matters for
// code that runs in interrupt context or before the Go runtime is usable.
type Error struct {
	// Module names the subsystem that raised the error (e.g. "irq").
	Module string

	// Message is a human readable description of the failure.
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}
