package ziparchive

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/meigma/ziparchive/internal/cdir"
	"github.com/meigma/ziparchive/internal/extract"
	"github.com/meigma/ziparchive/internal/index"
	"github.com/meigma/ziparchive/internal/platform"
	"github.com/meigma/ziparchive/internal/resolve"
	"github.com/meigma/ziparchive/internal/source"
	"github.com/meigma/ziparchive/internal/wire"
)

// Archive is an open ZIP archive.
//
// Archive is safe for concurrent FindEntry, Extract and iteration calls.
type Archive struct {
	src      source.Source
	dir      cdir.Directory
	cd       source.Region
	idx      index.Index
	resolver resolve.Resolver
	pool     *extract.InflatePool
	closed   atomic.Bool

	debugName  string
	verifyCRC  bool
	mapArchive bool
	prefetch   bool
	logger     *slog.Logger
}

// Open opens the archive at path. The file is closed by Close, or right
// away when opening fails.
func Open(path string, opts ...Option) (*Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrIO, path, err)
	}
	return OpenFile(f, true, append([]Option{WithDebugName(path)}, opts...)...)
}

// OpenFile opens the archive stored in f. When owned is set the archive
// takes ownership of f: Close closes it, as does a failed open.
func OpenFile(f *os.File, owned bool, opts ...Option) (*Archive, error) {
	if f == nil {
		return nil, fmt.Errorf("%w: nil file", ErrInvalidHandle)
	}
	a := newArchive(f.Name(), opts)
	src, err := source.NewFile(f, 0, -1, owned, source.WithMapAll(a.mapArchive))
	if err != nil {
		if owned {
			_ = f.Close() //nolint:errcheck // reporting the open failure
		}
		return nil, sourceError(err)
	}
	return a.load(src)
}

// OpenFileRange opens an archive occupying length bytes of f starting at
// offset, such as an archive embedded in a larger file. Ownership of f
// follows OpenFile.
func OpenFileRange(f *os.File, offset, length int64, owned bool, opts ...Option) (*Archive, error) {
	if f == nil {
		return nil, fmt.Errorf("%w: nil file", ErrInvalidHandle)
	}
	a := newArchive(f.Name(), opts)
	src, err := source.NewFileRange(f, offset, length, owned, source.WithMapAll(a.mapArchive))
	if err != nil {
		if owned {
			_ = f.Close() //nolint:errcheck // reporting the open failure
		}
		return nil, sourceError(err)
	}
	return a.load(src)
}

// OpenMemory opens an archive held in data. The slice is not copied and
// must not be modified while the archive is open.
func OpenMemory(data []byte, opts ...Option) (*Archive, error) {
	a := newArchive("<memory>", opts)
	return a.load(source.NewMemory(data))
}

// OpenSource opens an archive read through src, for example an HTTP range
// source. The central directory is read into memory. Close closes src when
// it implements io.Closer.
func OpenSource(src ByteSource, opts ...Option) (*Archive, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: nil source", ErrInvalidHandle)
	}
	a := newArchive("<source>", opts)
	return a.load(source.NewReader(src))
}

func newArchive(name string, opts []Option) *Archive {
	a := &Archive{
		debugName: name,
		prefetch:  true,
		pool:      extract.NewInflatePool(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.log().With(slog.String("archive", a.debugName))
	return a
}

// load reads the central directory of src and builds the name index.
// src is closed when loading fails.
func (a *Archive) load(src source.Source) (*Archive, error) {
	a.src = src
	err := a.guard(func() error {
		dir, err := cdir.Locate(src, a.log())
		if err != nil {
			return err
		}
		a.log().Debug("central directory located",
			slog.Uint64("offset", dir.Offset),
			slog.Uint64("size", dir.Size),
			slog.Uint64("entries", dir.Entries),
			slog.Bool("zip64", dir.Zip64))
		if dir.Entries == 0 {
			return fmt.Errorf("%w: central directory declares no entries", ErrEmptyArchive)
		}
		a.dir = dir

		region, err := src.MapRange(int64(dir.Offset), int64(dir.Size)) //nolint:gosec // bounded by the archive size
		if err != nil {
			return fmt.Errorf("%w: central directory of %d bytes at %d: %w", ErrMmapFailed, dir.Size, dir.Offset, err)
		}
		a.cd = region
		a.hint(dir.Offset, dir.Size, platform.HintSequential)

		idx, err := cdir.Parse(region.Bytes(), dir, src, a.log())
		if err != nil {
			return err
		}
		a.idx = idx
		a.log().Debug("archive opened", slog.Int("entries", idx.Len()))
		return nil
	})
	if err != nil {
		a.release()
		return nil, err
	}

	a.resolver = resolve.Resolver{
		Src:      src,
		CD:       a.cd.Bytes(),
		CDOffset: a.dir.Offset,
		Log:      a.log(),
	}
	return a, nil
}

// Info reports the archive size and central directory shape.
func (a *Archive) Info() ArchiveInfo {
	return ArchiveInfo{
		ArchiveSize:            a.src.Size(),
		EntryCount:             a.dir.Entries,
		CentralDirectoryOffset: a.dir.Offset,
		CentralDirectorySize:   a.dir.Size,
		Zip64:                  a.dir.Zip64,
	}
}

// FindEntry returns the entry called name.
func (a *Archive) FindEntry(name string) (Entry, error) {
	if a.closed.Load() {
		return Entry{}, fmt.Errorf("%w: archive is closed", ErrInvalidHandle)
	}
	if len(name) == 0 || len(name) > wire.MaxNameLen {
		return Entry{}, fmt.Errorf("%w: name of %d bytes", ErrInvalidEntryName, len(name))
	}

	var e Entry
	err := a.guard(func() error {
		offset, ok := a.idx.Lookup([]byte(name))
		if !ok {
			return fmt.Errorf("%w: %q", ErrEntryNotFound, name)
		}
		cdName := a.cd.Bytes()[offset : offset+uint64(len(name))]
		var err error
		e, err = a.resolver.Resolve(cdName, offset)
		return err
	})
	return e, err
}

// FindEntry32 is FindEntry for callers limited to 32-bit sizes. It fails
// with ErrUnsupportedEntrySize for larger entries.
func (a *Archive) FindEntry32(name string) (Entry32, error) {
	e, err := a.FindEntry(name)
	if err != nil {
		return Entry32{}, err
	}
	return e.Narrow()
}

// File returns the file the archive was opened from, or nil for memory and
// ByteSource archives.
func (a *Archive) File() *os.File {
	if f, ok := a.src.(*source.File); ok {
		return f.Fd()
	}
	return nil
}

// FileOffset returns the offset of the archive within File.
func (a *Archive) FileOffset() int64 {
	if f, ok := a.src.(*source.File); ok {
		return f.Offset()
	}
	return 0
}

// Close releases the central directory and closes the underlying file when
// owned. Calling Close more than once is a no-op.
func (a *Archive) Close() error {
	if !a.closed.CompareAndSwap(false, true) {
		return nil
	}
	if err := a.release(); err != nil {
		return fmt.Errorf("%w: close: %w", ErrIO, err)
	}
	return nil
}

func (a *Archive) release() error {
	var errs []error
	if a.cd != nil {
		errs = append(errs, a.cd.Release())
		a.cd = nil
	}
	if a.src != nil {
		errs = append(errs, a.src.Close())
	}
	return errors.Join(errs...)
}

func (a *Archive) log() *slog.Logger {
	if a.logger != nil {
		return a.logger
	}
	return slog.New(slog.DiscardHandler)
}

// guard runs fn, turning faults on mapped memory into I/O errors.
func (a *Archive) guard(fn func() error) error {
	err := platform.GuardFaults(fn)
	var fault *platform.Fault
	if errors.As(err, &fault) {
		a.log().Warn("fault reading mapped archive", slog.String("error", fault.Error()))
		return fmt.Errorf("%w: %w", ErrIO, fault)
	}
	return err
}

// hint passes an access pattern hint to the source; failures are only logged.
func (a *Archive) hint(off, n uint64, h platform.Hint) {
	if !a.prefetch || n == 0 {
		return
	}
	if err := a.src.Prepare(int64(off), int64(n), h); err != nil { //nolint:gosec // bounded by the archive size
		a.log().Warn("read-ahead hint failed", slog.Uint64("offset", off), slog.String("error", err.Error()))
	}
}

// sourceError classifies an error from opening a file source.
func sourceError(err error) error {
	if errors.Is(err, source.ErrMapFailed) {
		return fmt.Errorf("%w: %w", ErrMmapFailed, err)
	}
	return fmt.Errorf("%w: %w", ErrIO, err)
}
