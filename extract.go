package ziparchive

import (
	"fmt"
	"io"
	"os"

	"github.com/meigma/ziparchive/internal/extract"
	"github.com/meigma/ziparchive/internal/platform"
)

// sharedPool serves Inflate calls that are not tied to an archive.
var sharedPool = extract.NewInflatePool()

// ExtractToWriter decodes e into w. e must come from this archive.
//
// On success w has received exactly e.UncompressedSize bytes, and the data
// descriptor, if any, agreed with the central directory. On failure w may
// hold partial output.
func (a *Archive) ExtractToWriter(e Entry, w Writer) error {
	if a.closed.Load() {
		return fmt.Errorf("%w: archive is closed", ErrInvalidHandle)
	}
	if w == nil {
		return fmt.Errorf("%w: nil writer", ErrIO)
	}

	span := e.CompressedSize
	if e.Method == Stored {
		span = e.UncompressedSize
	}
	a.hint(e.DataOffset, span, platform.HintSequential)

	opts := extract.Options{
		VerifyCRC: a.verifyCRC,
		Pool:      a.pool,
		Log:       a.log(),
	}
	return a.guard(func() error {
		return extract.Entry(a.src, e, w, opts)
	})
}

// ExtractToMemory decodes e into buf, which must hold e.UncompressedSize
// bytes; a smaller buffer fails with ErrIO before anything is read.
func (a *Archive) ExtractToMemory(e Entry, buf []byte) error {
	w, err := NewMemoryWriter(buf, e.UncompressedSize)
	if err != nil {
		return err
	}
	return a.ExtractToWriter(e, w)
}

// ExtractToFile writes e to f at its current position, preallocating the
// space and truncating f to end after the entry.
func (a *Archive) ExtractToFile(e Entry, f *os.File) error {
	if a.closed.Load() {
		return fmt.Errorf("%w: archive is closed", ErrInvalidHandle)
	}
	w, err := NewFileWriter(f, e.UncompressedSize)
	if err != nil {
		return err
	}
	return a.ExtractToWriter(e, w)
}

// ProcessEntryContents passes the contents of e to fn in chunks. Returning
// false from fn stops extraction with ErrIO.
func (a *Archive) ProcessEntryContents(e Entry, fn func(chunk []byte) bool) error {
	return a.ExtractToWriter(e, NewProcessWriter(fn))
}

// EntryReader returns a reader over the stored bytes of e: the raw
// compressed stream for deflated entries, the contents for stored ones.
func (a *Archive) EntryReader(e Entry) *io.SectionReader {
	return io.NewSectionReader(archiveReaderAt{a}, int64(e.DataOffset), int64(e.CompressedSize)) //nolint:gosec // bounded by the archive size
}

// Inflate decodes compressed bytes of raw DEFLATE data read from r into w
// and returns the CRC-32 of the output. The stream must produce exactly
// uncompressed bytes.
func Inflate(r io.ReaderAt, compressed, uncompressed uint64, w Writer) (uint32, error) {
	if r == nil || w == nil {
		return 0, fmt.Errorf("%w: nil reader or writer", ErrIO)
	}
	return extract.Inflate(extract.FromReaderAt(r), compressed, uncompressed, w, true, sharedPool)
}

type archiveReaderAt struct {
	a *Archive
}

func (r archiveReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if r.a.closed.Load() {
		return 0, fmt.Errorf("%w: archive is closed", ErrInvalidHandle)
	}
	size := r.a.src.Size()
	if off >= size {
		return 0, io.EOF
	}

	n := len(p)
	var eof error
	if int64(n) > size-off {
		n = int(size - off)
		eof = io.EOF
	}
	err := r.a.guard(func() error {
		b, err := r.a.src.ReadAt(p[:n], off)
		if err != nil {
			return err
		}
		copy(p, b)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrIO, err)
	}
	return n, eof
}
