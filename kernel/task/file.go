package task

import (
	"github.com/whampson/ohwes/device/chardev"
	"github.com/whampson/ohwes/kernel/abi"
)

// MaxFiles is the size of a task's file descriptor table.
const MaxFiles = 16

// File is an open character device. A File may be shared by several
// descriptors after dup; the device is closed when the last one goes away.
type File struct {
	Major uint8
	Minor uint8
	Flags uint32
	Dev   chardev.Device

	refs int
}

// NewFile returns a file with a single reference.
func NewFile(major, minor uint8, flags uint32, dev chardev.Device) *File {
	return &File{Major: major, Minor: minor, Flags: flags, Dev: dev, refs: 1}
}

// Readable returns true if the file was opened for reading.
func (f *File) Readable() bool {
	mode := f.Flags & abi.O_ACCMODE
	return mode == abi.O_RDONLY || mode == abi.O_RDWR
}

// Writable returns true if the file was opened for writing.
func (f *File) Writable() bool {
	mode := f.Flags & abi.O_ACCMODE
	return mode == abi.O_WRONLY || mode == abi.O_RDWR
}

// NonBlocking returns true if reads should fail with EAGAIN instead of
// waiting for data.
func (f *File) NonBlocking() bool {
	return f.Flags&abi.O_NONBLOCK != 0
}

// Refs returns the number of descriptors referring to f.
func (f *File) Refs() int {
	return f.refs
}

func (f *File) release() error {
	if f.refs--; f.refs > 0 {
		return nil
	}
	return f.Dev.Close(f.Minor)
}

// FileTable maps descriptors to open files.
type FileTable struct {
	files [MaxFiles]*File
}

func (ft *FileTable) valid(fd int32) bool {
	return fd >= 0 && fd < MaxFiles && ft.files[fd] != nil
}

// Get returns the file behind fd.
func (ft *FileTable) Get(fd int32) (*File, error) {
	if !ft.valid(fd) {
		return nil, abi.EBADF
	}
	return ft.files[fd], nil
}

// Install stores f in the lowest free descriptor.
func (ft *FileTable) Install(f *File) (int32, error) {
	for fd := range ft.files {
		if ft.files[fd] == nil {
			ft.files[fd] = f
			return int32(fd), nil
		}
	}
	return -1, abi.EMFILE
}

// Close releases fd. The device is closed once no descriptor refers to the
// file anymore and its error, if any, is returned.
func (ft *FileTable) Close(fd int32) error {
	if !ft.valid(fd) {
		return abi.EBADF
	}

	f := ft.files[fd]
	ft.files[fd] = nil
	return f.release()
}

// Dup makes the lowest free descriptor refer to the same file as fd.
func (ft *FileTable) Dup(fd int32) (int32, error) {
	f, err := ft.Get(fd)
	if err != nil {
		return -1, err
	}

	newFD, err := ft.Install(f)
	if err != nil {
		return -1, err
	}
	f.refs++
	return newFD, nil
}

// Dup2 makes newFD refer to the same file as oldFD, closing whatever newFD
// referred to before. If both are equal and valid, Dup2 does nothing.
func (ft *FileTable) Dup2(oldFD, newFD int32) (int32, error) {
	f, err := ft.Get(oldFD)
	if err != nil {
		return -1, err
	}
	if newFD < 0 || newFD >= MaxFiles {
		return -1, abi.EBADF
	}
	if oldFD == newFD {
		return newFD, nil
	}

	if ft.files[newFD] != nil {
		// Errors from closing the previous file are not reported.
		ft.Close(newFD)
	}

	ft.files[newFD] = f
	f.refs++
	return newFD, nil
}

// CloseAll releases every descriptor.
func (ft *FileTable) CloseAll() {
	for fd := range ft.files {
		if ft.files[fd] != nil {
			ft.Close(int32(fd))
		}
	}
}

// Count returns the number of open descriptors.
func (ft *FileTable) Count() int {
	var n int
	for _, f := range ft.files {
		if f != nil {
			n++
		}
	}
	return n
}
