package ziparchive

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/meigma/ziparchive/internal/platform"
	"github.com/meigma/ziparchive/internal/sizing"
)

// Writer receives the uncompressed bytes of an entry.
//
// Buffer is an optimization: extraction works with a Writer that always
// returns nil, appending bounded chunks instead. A slice returned by Buffer
// is never retained across an Append.
type Writer interface {
	// Append consumes p. It may be called with p aliasing the slice last
	// returned by Buffer, after output was decoded into it.
	Append(p []byte) error

	// Buffer returns a writable slice of at least n bytes to decode into
	// directly, or nil.
	Buffer(n uint64) []byte
}

// MemoryWriter writes into a fixed caller-owned buffer.
type MemoryWriter struct {
	buf     []byte
	written int
}

// NewMemoryWriter returns a writer filling buf. It fails with ErrIO when
// size, the number of bytes that will be written, exceeds len(buf).
func NewMemoryWriter(buf []byte, size uint64) (*MemoryWriter, error) {
	if size > uint64(len(buf)) {
		return nil, fmt.Errorf("%w: entry of %d bytes does not fit in a %d byte buffer", ErrIO, size, len(buf))
	}
	return &MemoryWriter{buf: buf}, nil
}

func (w *MemoryWriter) Append(p []byte) error {
	if len(p) > len(w.buf)-w.written {
		return fmt.Errorf("%w: write of %d bytes overflows buffer with %d bytes left", ErrIO, len(p), len(w.buf)-w.written)
	}
	if len(p) == 0 {
		return nil
	}
	if &p[0] != &w.buf[w.written] {
		copy(w.buf[w.written:], p)
	}
	w.written += len(p)
	return nil
}

// Buffer returns the unwritten part of the buffer when nothing has been
// appended yet and it can hold n bytes.
func (w *MemoryWriter) Buffer(n uint64) []byte {
	if w.written != 0 || n > uint64(len(w.buf)) {
		return nil
	}
	return w.buf
}

// Written returns the number of bytes appended so far.
func (w *MemoryWriter) Written() int {
	return w.written
}

// FileWriter writes at a file's current position.
type FileWriter struct {
	f         *os.File
	remaining uint64
}

// NewFileWriter prepares f to receive size bytes at its current position:
// the space is preallocated and, unless f is a block device, the file is
// truncated to end right after the entry.
func NewFileWriter(f *os.File, size uint64) (*FileWriter, error) {
	if size > math.MaxInt64 {
		return nil, fmt.Errorf("%w: entry of %d bytes is too large for a file", ErrIO, size)
	}
	pos, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, fmt.Errorf("%w: seek: %w", ErrIO, err)
	}
	end, ok := sizing.AddInt64(pos, int64(size))
	if !ok {
		return nil, fmt.Errorf("%w: entry of %d bytes at position %d overflows", ErrIO, size, pos)
	}

	if size > 0 {
		if err := platform.Preallocate(f, pos, int64(size)); err != nil {
			return nil, fmt.Errorf("%w: preallocate %d bytes: %w", ErrIO, size, err)
		}
	}
	if err := truncateFile(f, end); err != nil {
		return nil, fmt.Errorf("%w: truncate to %d: %w", ErrIO, end, err)
	}
	return &FileWriter{f: f, remaining: size}, nil
}

func (w *FileWriter) Append(p []byte) error {
	if uint64(len(p)) > w.remaining {
		return fmt.Errorf("%w: write of %d bytes beyond the declared size (%d left)", ErrIO, len(p), w.remaining)
	}
	if _, err := w.f.Write(p); err != nil {
		return fmt.Errorf("%w: write: %w", ErrIO, err)
	}
	w.remaining -= uint64(len(p))
	return nil
}

func (w *FileWriter) Buffer(uint64) []byte { return nil }

// ProcessWriter hands each chunk of output to a callback.
type ProcessWriter struct {
	fn func([]byte) bool
}

// NewProcessWriter returns a writer passing chunks to fn. Returning false
// from fn stops extraction with ErrIO. Chunks are only valid during the call.
func NewProcessWriter(fn func(chunk []byte) bool) *ProcessWriter {
	return &ProcessWriter{fn: fn}
}

func (w *ProcessWriter) Append(p []byte) error {
	if !w.fn(p) {
		return fmt.Errorf("%w: processing callback stopped extraction", ErrIO)
	}
	return nil
}

func (w *ProcessWriter) Buffer(uint64) []byte { return nil }

// streamWriter adapts an io.Writer.
type streamWriter struct {
	w io.Writer
}

func (s streamWriter) Append(p []byte) error {
	if _, err := s.w.Write(p); err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	return nil
}

func (streamWriter) Buffer(uint64) []byte { return nil }
