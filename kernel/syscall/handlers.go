package syscall

import (
	"github.com/whampson/ohwes/device/chardev"
	"github.com/whampson/ohwes/kernel/abi"
	"github.com/whampson/ohwes/kernel/task"
	"github.com/whampson/ohwes/kernel/usermem"
)

const (
	// maxPath is the longest path accepted by open, including the
	// terminator.
	maxPath = 64

	// ioChunk is the number of bytes moved between user memory and a
	// device per device call.
	ioChunk = 256
)

var (
	pathBuf [maxPath]byte
	ioBuf   [ioChunk]byte
)

func sysExit(t *task.Task, status, _, _ uint32) (int32, error) {
	t.Terminate(int32(status))
	return 0, nil
}

// sysRead performs a single device read of at most ioChunk bytes. While the
// device has nothing to offer the task waits, unless the file is
// non-blocking. A task terminated while waiting gets EINTR.
func sysRead(t *task.Task, fd, buf, count uint32) (int32, error) {
	f, err := t.Files.Get(int32(fd))
	if err != nil {
		return 0, err
	}
	if !f.Readable() {
		return 0, abi.EBADF
	}
	if count == 0 {
		return 0, nil
	}

	chunk := ioBuf[:min(count, ioChunk)]
	for {
		n, err := f.Dev.Read(f.Minor, chunk)
		if err == abi.EAGAIN && !f.NonBlocking() {
			if t.Wait(); t.Exited {
				return 0, abi.EINTR
			}
			continue
		}
		if err != nil {
			return 0, err
		}

		if _, err = t.Mem.CopyOut(buf, chunk[:n]); err != nil {
			return 0, err
		}
		return int32(n), nil
	}
}

// sysWrite copies the user buffer to the device in ioChunk sized pieces. If
// the device fails after part of the buffer was written, the partial count is
// returned.
func sysWrite(t *task.Task, fd, buf, count uint32) (int32, error) {
	f, err := t.Files.Get(int32(fd))
	if err != nil {
		return 0, err
	}
	if !f.Writable() {
		return 0, abi.EBADF
	}

	var written uint32
	for written < count {
		chunk := ioBuf[:min(count-written, ioChunk)]
		if _, err = t.Mem.CopyIn(buf+written, chunk); err != nil {
			break
		}

		var n int
		n, err = f.Dev.Write(f.Minor, chunk)
		written += uint32(n)
		if err != nil || n < len(chunk) {
			break
		}
	}

	if written == 0 && err != nil {
		return 0, err
	}
	return int32(written), nil
}

func sysOpen(t *task.Task, path, flags, _ uint32) (int32, error) {
	if flags&^(abi.O_ACCMODE|abi.O_NONBLOCK) != 0 || flags&abi.O_ACCMODE == abi.O_ACCMODE {
		return 0, abi.EINVAL
	}

	n, err := usermem.CopyInString(t.Mem, path, pathBuf[:])
	if err != nil {
		return 0, err
	}

	major, minor, ok := chardev.ResolveNode(string(pathBuf[:n]))
	if !ok {
		return 0, abi.ENOENT
	}

	dev := chardev.Lookup(major)
	if dev == nil {
		return 0, abi.ENXIO
	}

	if err = dev.Open(minor, flags); err != nil {
		return 0, err
	}

	fd, err := t.Files.Install(task.NewFile(major, minor, flags, dev))
	if err != nil {
		dev.Close(minor)
		return 0, err
	}
	return fd, nil
}

func sysClose(t *task.Task, fd, _, _ uint32) (int32, error) {
	return 0, t.Files.Close(int32(fd))
}

func sysIoctl(t *task.Task, fd, cmd, arg uint32) (int32, error) {
	f, err := t.Files.Get(int32(fd))
	if err != nil {
		return 0, err
	}

	n, err := f.Dev.Ioctl(f.Minor, cmd, arg, t.Mem)
	return int32(n), err
}

func sysDup(t *task.Task, fd, _, _ uint32) (int32, error) {
	return t.Files.Dup(int32(fd))
}

func sysDup2(t *task.Task, oldFD, newFD, _ uint32) (int32, error) {
	return t.Files.Dup2(int32(oldFD), int32(newFD))
}
