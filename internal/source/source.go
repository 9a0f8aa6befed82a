// Package source provides positional access to archive bytes.
//
// A Source is backed by a file descriptor, an in-memory buffer, or any
// io.ReaderAt. Sources with a base pointer serve reads as zero-copy slices.
package source

import (
	"errors"
	"fmt"
	"io"

	"github.com/meigma/ziparchive/internal/platform"
	"github.com/meigma/ziparchive/internal/sizing"
)

// ErrOutOfRange is returned for reads outside the source.
var ErrOutOfRange = errors.New("source: read out of range")

// Source is positional, read-only access to an archive.
//
// Implementations are safe for concurrent use by multiple goroutines.
type Source interface {
	// Size returns the number of readable bytes.
	Size() int64

	// ReadAt reads exactly len(buf) bytes at off. The returned slice holds
	// the bytes; it is either buf or a view of the source's base memory.
	ReadAt(buf []byte, off int64) ([]byte, error)

	// Base returns the whole source as one slice, or nil when the source
	// is not memory resident.
	Base() []byte

	// MapRange makes n bytes at off available as a contiguous slice.
	MapRange(off, n int64) (Region, error)

	// Prepare hints that n bytes at off will be read soon.
	Prepare(off, n int64, hint platform.Hint) error

	// Close releases resources owned by the source.
	Close() error
}

// Region is a contiguous view of part of a source.
type Region interface {
	Bytes() []byte
	Release() error
}

// sliceRegion is a Region over memory the source already owns or a heap copy.
type sliceRegion []byte

func (r sliceRegion) Bytes() []byte  { return r }
func (r sliceRegion) Release() error { return nil }

// checkRange validates a read of n bytes at off against size.
func checkRange(off int64, n int, size int64) error {
	if off < 0 || n < 0 {
		return fmt.Errorf("%w: %d bytes at %d", ErrOutOfRange, n, off)
	}
	end, ok := sizing.AddInt64(off, int64(n))
	if !ok || end > size {
		return fmt.Errorf("%w: %d bytes at %d of %d", ErrOutOfRange, n, off, size)
	}
	return nil
}

// readFull reads n bytes at off from r into a fresh heap slice.
func readFull(r io.ReaderAt, off int64, n int64) ([]byte, error) {
	size, err := sizing.ToInt(uint64(n), ErrOutOfRange) //nolint:gosec // n validated non-negative by callers
	if err != nil {
		return nil, err
	}
	buf := make([]byte, size)
	got, err := r.ReadAt(buf, off)
	if got == size {
		return buf, nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return nil, err
}
