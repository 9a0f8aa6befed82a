//go:build unix

package platform

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// MapSupported reports whether Map can succeed on this platform.
const MapSupported = true

// Mapping is a read-only view of a file region.
type Mapping struct {
	region []byte
	data   []byte
}

// Map maps n bytes of f starting at off. The offset need not be page aligned.
func Map(f *os.File, off int64, n int) (*Mapping, error) {
	if off < 0 || n <= 0 {
		return nil, fmt.Errorf("map %d bytes at %d: invalid range", n, off)
	}
	page := int64(os.Getpagesize())
	aligned := off &^ (page - 1)
	delta := int(off - aligned)

	region, err := unix.Mmap(int(f.Fd()), aligned, n+delta, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap %d bytes at %d: %w", n, off, err)
	}
	return &Mapping{region: region, data: region[delta : delta+n]}, nil
}

// Bytes returns the mapped bytes.
func (m *Mapping) Bytes() []byte {
	return m.data
}

// Unmap releases the mapping. Bytes must not be used afterwards.
func (m *Mapping) Unmap() error {
	if m.region == nil {
		return nil
	}
	region := m.region
	m.region, m.data = nil, nil
	return unix.Munmap(region)
}
