package ziparchive

import (
	"github.com/meigma/ziparchive/internal/source"
	"github.com/meigma/ziparchive/internal/ziptype"
)

// Entry describes a single archive member. See [ziptype.Entry] for fields.
type Entry = ziptype.Entry

// Entry32 is an Entry whose sizes are known to fit in 32 bits.
type Entry32 = ziptype.Entry32

// Method identifies how an entry's bytes are stored.
type Method = ziptype.Method

// Supported compression methods.
const (
	Stored   = ziptype.Stored
	Deflated = ziptype.Deflated
)

// ByteSource provides random access to archive bytes of a known size.
//
// Implementations must be safe for concurrent ReadAt calls.
type ByteSource = source.ByteSource

// ArchiveInfo summarizes an open archive.
type ArchiveInfo struct {
	// ArchiveSize is the number of bytes the archive occupies.
	ArchiveSize int64

	// EntryCount is the number of central directory records.
	EntryCount uint64

	// CentralDirectoryOffset is the archive offset of the central directory.
	CentralDirectoryOffset uint64

	// CentralDirectorySize is the length of the central directory in bytes.
	CentralDirectorySize uint64

	// Zip64 reports whether the directory was described by ZIP64 records.
	Zip64 bool
}
