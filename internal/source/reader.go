package source

import (
	"fmt"
	"io"

	"github.com/meigma/ziparchive/internal/platform"
)

// ByteSource is random access storage with a known size, such as a remote
// object served over HTTP range requests.
type ByteSource interface {
	io.ReaderAt
	Size() int64
}

// Reader adapts a ByteSource to Source. Reads are copied into caller buffers.
type Reader struct {
	src ByteSource
}

// NewReader returns a Source reading from src.
func NewReader(src ByteSource) *Reader {
	return &Reader{src: src}
}

func (r *Reader) Size() int64 { return r.src.Size() }

func (r *Reader) ReadAt(buf []byte, off int64) ([]byte, error) {
	if err := checkRange(off, len(buf), r.Size()); err != nil {
		return nil, err
	}
	n, err := r.src.ReadAt(buf, off)
	if n == len(buf) {
		return buf, nil
	}
	if err == nil || err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return nil, fmt.Errorf("read %d bytes at %d: %w", len(buf), off, err)
}

func (r *Reader) Base() []byte { return nil }

// MapRange reads the range into the heap.
func (r *Reader) MapRange(off, n int64) (Region, error) {
	if n < 0 || off < 0 || off > r.Size()-n {
		return nil, ErrOutOfRange
	}
	buf, err := readFull(r.src, off, n)
	if err != nil {
		return nil, fmt.Errorf("read %d bytes at %d: %w", n, off, err)
	}
	return sliceRegion(buf), nil
}

func (r *Reader) Prepare(off, n int64, hint platform.Hint) error { return nil }

// Close closes the underlying source when it implements io.Closer.
func (r *Reader) Close() error {
	if c, ok := r.src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
