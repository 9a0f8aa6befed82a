package source

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/meigma/ziparchive/internal/platform"
	"github.com/meigma/ziparchive/internal/sizing"
)

// ErrInvalidRange is returned for negative offsets or lengths.
var ErrInvalidRange = errors.New("source: invalid file range")

// File is a Source over a region of an open file, read with pread.
type File struct {
	f      *os.File
	offset int64
	length int64
	owned  bool

	// mapping covers the whole region when the file was mapped eagerly.
	mapping *platform.Mapping
}

// FileOption configures a File source.
type FileOption func(*fileConfig)

type fileConfig struct {
	mapAll bool
}

// WithMapAll maps the whole region at open and serves reads from memory.
func WithMapAll(enabled bool) FileOption {
	return func(c *fileConfig) {
		c.mapAll = enabled
	}
}

// ErrMapFailed wraps failures to map the file region.
var ErrMapFailed = errors.New("source: map failed")

// NewFile returns a Source over length bytes of f starting at offset.
// A negative length means "to the end of the file"; the size is then taken
// from fstat, or from the device itself for block devices.
// When owned is set, Close closes f.
func NewFile(f *os.File, offset, length int64, owned bool, opts ...FileOption) (*File, error) {
	if offset < 0 {
		return nil, fmt.Errorf("%w: offset %d", ErrInvalidRange, offset)
	}
	var cfg fileConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	if length < 0 {
		size, err := fileSize(f)
		if err != nil {
			return nil, err
		}
		if size < offset {
			return nil, fmt.Errorf("%w: offset %d beyond size %d", ErrInvalidRange, offset, size)
		}
		length = size - offset
	}
	if _, ok := sizing.AddInt64(offset, length); !ok {
		return nil, fmt.Errorf("%w: offset %d length %d", ErrInvalidRange, offset, length)
	}

	src := &File{f: f, offset: offset, length: length, owned: owned}
	if cfg.mapAll && length > 0 {
		n, err := sizing.ToInt(uint64(length), ErrInvalidRange)
		if err != nil {
			return nil, err
		}
		m, err := platform.Map(f, offset, n)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMapFailed, err)
		}
		src.mapping = m
	}
	return src, nil
}

// NewFileRange is NewFile for an explicit range; both offset and length
// must be non-negative.
func NewFileRange(f *os.File, offset, length int64, owned bool, opts ...FileOption) (*File, error) {
	if length < 0 || offset < 0 {
		return nil, fmt.Errorf("%w: offset %d length %d", ErrInvalidRange, offset, length)
	}
	return NewFile(f, offset, length, owned, opts...)
}

func fileSize(f *os.File) (int64, error) {
	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat: %w", err)
	}
	if info.Mode()&fs.ModeDevice != 0 && info.Mode()&fs.ModeCharDevice == 0 {
		size, err := platform.BlockDeviceSize(f)
		if err != nil {
			return 0, fmt.Errorf("block device size: %w", err)
		}
		return size, nil
	}
	return info.Size(), nil
}

// Fd returns the underlying file.
func (s *File) Fd() *os.File { return s.f }

// Offset returns the file offset of the region.
func (s *File) Offset() int64 { return s.offset }

func (s *File) Size() int64 { return s.length }

func (s *File) ReadAt(buf []byte, off int64) ([]byte, error) {
	if err := checkRange(off, len(buf), s.length); err != nil {
		return nil, err
	}
	if s.mapping != nil {
		return s.mapping.Bytes()[off : off+int64(len(buf))], nil
	}
	n, err := s.f.ReadAt(buf, s.offset+off)
	if n == len(buf) {
		return buf, nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return nil, fmt.Errorf("pread %d bytes at %d: %w", len(buf), s.offset+off, err)
}

func (s *File) Base() []byte {
	if s.mapping == nil {
		return nil
	}
	return s.mapping.Bytes()
}

// MapRange maps the range, falling back to a heap copy where mapping is
// unsupported.
func (s *File) MapRange(off, n int64) (Region, error) {
	if n < 0 || off < 0 || off > s.length-n {
		return nil, ErrOutOfRange
	}
	if s.mapping != nil {
		return sliceRegion(s.mapping.Bytes()[off : off+n]), nil
	}
	if n == 0 {
		return sliceRegion(nil), nil
	}
	if !platform.MapSupported {
		buf, err := readFull(io.NewSectionReader(s.f, s.offset, s.length), off, n)
		if err != nil {
			return nil, fmt.Errorf("read %d bytes at %d: %w", n, off, err)
		}
		return sliceRegion(buf), nil
	}
	size, err := sizing.ToInt(uint64(n), ErrOutOfRange)
	if err != nil {
		return nil, err
	}
	m, err := platform.Map(s.f, s.offset+off, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMapFailed, err)
	}
	return mappedRegion{m}, nil
}

type mappedRegion struct {
	m *platform.Mapping
}

func (r mappedRegion) Bytes() []byte  { return r.m.Bytes() }
func (r mappedRegion) Release() error { return r.m.Unmap() }

func (s *File) Prepare(off, n int64, hint platform.Hint) error {
	if s.mapping != nil {
		return s.mapping.Advise(int(off), int(n), hint)
	}
	return platform.AdviseFile(s.f, s.offset+off, n, hint)
}

// Close unmaps the region and closes the file when owned. It is safe to
// call more than once.
func (s *File) Close() error {
	var errs []error
	if s.mapping != nil {
		errs = append(errs, s.mapping.Unmap())
		s.mapping = nil
	}
	if s.owned && s.f != nil {
		errs = append(errs, s.f.Close())
	}
	s.f = nil
	return errors.Join(errs...)
}
