//go:build linux

package platform

import (
	"errors"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Hint describes the expected access pattern for a range.
type Hint int

const (
	// HintWillNeed asks the kernel to start reading the range.
	HintWillNeed Hint = iota
	// HintSequential announces a forward scan of the range.
	HintSequential
)

// BlockDeviceSize returns the size in bytes of the block device behind f.
func BlockDeviceSize(f *os.File) (int64, error) {
	var size uint64
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), unix.BLKGETSIZE64, uintptr(unsafe.Pointer(&size)))
	if errno != 0 {
		return 0, errno
	}
	return int64(size), nil //nolint:gosec // device sizes fit in int64
}

// Preallocate reserves n bytes of f starting at off.
// Filesystems without fallocate support are tolerated; running out of
// space is not.
func Preallocate(f *os.File, off, n int64) error {
	if err := unix.Fallocate(int(f.Fd()), 0, off, n); errors.Is(err, unix.ENOSPC) {
		return err
	}
	return nil
}

// AdviseFile passes an access hint for a file range to the kernel.
func AdviseFile(f *os.File, off, n int64, hint Hint) error {
	advice := unix.FADV_WILLNEED
	if hint == HintSequential {
		advice = unix.FADV_SEQUENTIAL
	}
	return unix.Fadvise(int(f.Fd()), off, n, advice)
}

// Advise passes an access hint for n bytes at off within the mapping.
func (m *Mapping) Advise(off, n int, hint Hint) error {
	if m.region == nil || n <= 0 || off < 0 || off > len(m.data)-n {
		return nil
	}
	// madvise needs a page aligned start; region itself is page aligned.
	start := len(m.region) - len(m.data) + off
	page := os.Getpagesize()
	aligned := start &^ (page - 1)
	advice := unix.MADV_WILLNEED
	if hint == HintSequential {
		advice = unix.MADV_SEQUENTIAL
	}
	return unix.Madvise(m.region[aligned:start+n], advice)
}
