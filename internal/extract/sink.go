// Package extract decodes entry data into sinks.
//
// Stored entries are copied and deflated entries are inflated with a raw
// DEFLATE decoder. When an entry carries a data descriptor, it is checked
// against the central directory after the data has been produced.
package extract

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/meigma/ziparchive/internal/source"
	"github.com/meigma/ziparchive/internal/ziptype"
)

// bufSize is the chunk size for buffered copies and inflation.
const bufSize = 32 << 10

// Sink receives the uncompressed bytes of an entry.
type Sink interface {
	// Append consumes p. Sinks that handed out a buffer through Buffer must
	// accept p aliasing that buffer.
	Append(p []byte) error

	// Buffer returns a writable slice of n bytes that output may be
	// decoded into directly, or nil when the sink has no such buffer.
	Buffer(n uint64) []byte
}

// Reader reads compressed data at offsets relative to the start of an
// entry's data.
type Reader interface {
	// ReadAt reads exactly len(buf) bytes at off. The returned slice may
	// alias memory other than buf.
	ReadAt(buf []byte, off int64) ([]byte, error)

	// Base returns the data as one resident slice, or nil.
	Base() []byte
}

// NewEntryReader returns a Reader over the data of an entry starting at
// dataOffset in src.
func NewEntryReader(src source.Source, dataOffset uint64) Reader {
	return &entryReader{src: src, offset: dataOffset}
}

type entryReader struct {
	src    source.Source
	offset uint64
}

func (r *entryReader) ReadAt(buf []byte, off int64) ([]byte, error) {
	if off < 0 || uint64(off) > math.MaxInt64-r.offset {
		return nil, source.ErrOutOfRange
	}
	return r.src.ReadAt(buf, int64(r.offset)+off) //nolint:gosec // checked above
}

func (r *entryReader) Base() []byte {
	base := r.src.Base()
	if base == nil || r.offset > uint64(len(base)) {
		return nil
	}
	return base[r.offset:]
}

// FromReaderAt adapts an io.ReaderAt. Data is always copied.
func FromReaderAt(r io.ReaderAt) Reader {
	return readerAt{r}
}

type readerAt struct {
	r io.ReaderAt
}

func (r readerAt) ReadAt(buf []byte, off int64) ([]byte, error) {
	n, err := r.r.ReadAt(buf, off)
	if n == len(buf) {
		return buf, nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return nil, fmt.Errorf("read %d bytes at %d: %w", len(buf), off, err)
}

func (readerAt) Base() []byte { return nil }

func ioError(err error) error {
	var zerr *ziptype.Error
	if errors.As(err, &zerr) {
		return err
	}
	return fmt.Errorf("%w: %w", ziptype.ErrIO, err)
}
