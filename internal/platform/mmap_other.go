//go:build !unix

package platform

import (
	"errors"
	"os"
)

// MapSupported reports whether Map can succeed on this platform.
const MapSupported = false

// Mapping is a read-only view of a file region.
type Mapping struct {
	data []byte
}

// Map is unsupported on this platform.
func Map(f *os.File, off int64, n int) (*Mapping, error) {
	return nil, errors.ErrUnsupported
}

// Bytes returns the mapped bytes.
func (m *Mapping) Bytes() []byte {
	return m.data
}

// Unmap releases the mapping.
func (m *Mapping) Unmap() error {
	m.data = nil
	return nil
}
