//go:build !linux

package platform

import (
	"errors"
	"os"
)

// Hint describes the expected access pattern for a range.
type Hint int

const (
	// HintWillNeed asks the kernel to start reading the range.
	HintWillNeed Hint = iota
	// HintSequential announces a forward scan of the range.
	HintSequential
)

// BlockDeviceSize is unsupported on this platform.
func BlockDeviceSize(f *os.File) (int64, error) {
	return 0, errors.ErrUnsupported
}

// Preallocate is a no-op on this platform.
func Preallocate(f *os.File, off, n int64) error {
	return nil
}

// AdviseFile is a no-op on this platform.
func AdviseFile(f *os.File, off, n int64, hint Hint) error {
	return nil
}

// Advise is a no-op on this platform.
func (m *Mapping) Advise(off, n int, hint Hint) error {
	return nil
}
