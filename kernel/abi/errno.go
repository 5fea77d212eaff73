package abi

// Errno is an error code reported to user space as a negative system call
// return value. Errno values satisfy the error interface without allocating
// so device drivers can return them from interrupt-safe paths.
type Errno int32

// Error codes.
const (
	EPERM  Errno = 1
	ENOENT Errno = 2
	EINTR  Errno = 4
	EIO    Errno = 5
	ENXIO  Errno = 6
	EBADF  Errno = 9
	EAGAIN Errno = 11
	EFAULT Errno = 14
	EBUSY  Errno = 16
	ENODEV Errno = 19
	EINVAL Errno = 22
	EMFILE Errno = 24
	ENOTTY Errno = 25
	ENOSYS Errno = 38
)

var errnoText = [...]string{
	EPERM:  "operation not permitted",
	ENOENT: "no such file or directory",
	EINTR:  "interrupted system call",
	EIO:    "input/output error",
	ENXIO:  "no such device or address",
	EBADF:  "bad file descriptor",
	EAGAIN: "resource temporarily unavailable",
	EFAULT: "bad address",
	EBUSY:  "device or resource busy",
	ENODEV: "no such device",
	EINVAL: "invalid argument",
	EMFILE: "too many open files",
	ENOTTY: "inappropriate ioctl for device",
	ENOSYS: "invalid syscall",
}

// Error implements the error interface.
func (e Errno) Error() string {
	if e > 0 && int(e) < len(errnoText) && errnoText[e] != "" {
		return errnoText[e]
	}
	return "unknown error"
}

// Ret returns the value placed in EAX to report e to user space.
func (e Errno) Ret() int32 {
	return -int32(e)
}
