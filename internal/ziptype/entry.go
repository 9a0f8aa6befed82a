package ziptype

import (
	"fmt"
	"io/fs"
	"math"
	"time"
)

// Method identifies how an entry's bytes are stored.
type Method uint16

const (
	Stored   Method = 0
	Deflated Method = 8
)

// String returns the human-readable name of the method.
func (m Method) String() string {
	switch m {
	case Stored:
		return "stored"
	case Deflated:
		return "deflated"
	default:
		return fmt.Sprintf("unknown(%d)", uint16(m))
	}
}

// hostUnix is the "version made by" host byte for UNIX producers.
const hostUnix = 3

// Entry describes a single archive member.
//
// Entries are resolved on demand from the central directory and the local
// file header; they are plain values and never alias archive memory.
type Entry struct {
	// Method is the compression method.
	Method Method

	// ModTime is the DOS date (high 16 bits) and time (low 16 bits).
	ModTime uint32

	// CRC32 is the declared checksum of the uncompressed bytes.
	CRC32 uint32

	// CompressedSize is the number of stored bytes following the local header.
	CompressedSize uint64

	// UncompressedSize is the size of the entry once extracted.
	UncompressedSize uint64

	// LocalHeaderOffset is the archive offset of the local file header.
	LocalHeaderOffset uint64

	// DataOffset is the archive offset of the first data byte.
	DataOffset uint64

	// ExtraFieldSize is the length of the local header's extra field.
	ExtraFieldSize uint16

	// HasDataDescriptor reports whether a data descriptor follows the data.
	HasDataDescriptor bool

	// Flags holds the general purpose bit flags from the local header.
	Flags uint16

	// UnixMode holds the st_mode bits for UNIX-produced entries, 0o777 otherwise.
	UnixMode uint16

	// ExternalAttrs holds the raw external file attributes.
	ExternalAttrs uint32

	// VersionMadeBy holds the producer's host system and ZIP version.
	VersionMadeBy uint16

	// IsText reports the internal "text file" attribute bit.
	IsText bool

	// Zip64FormatSize reports whether either size came from a zip64 extra block.
	Zip64FormatSize bool
}

// Entry32 is the narrowed form of Entry with 32-bit sizes.
type Entry32 struct {
	Entry
	CompressedSize32   uint32
	UncompressedSize32 uint32
}

// Narrow converts e to its 32-bit form.
// It returns ErrUnsupportedEntrySize when either size does not fit in 32 bits.
func (e Entry) Narrow() (Entry32, error) {
	if e.CompressedSize > math.MaxUint32 || e.UncompressedSize > math.MaxUint32 {
		return Entry32{}, fmt.Errorf("%w: compressed %d, uncompressed %d",
			ErrUnsupportedEntrySize, e.CompressedSize, e.UncompressedSize)
	}
	return Entry32{
		Entry:              e,
		CompressedSize32:   uint32(e.CompressedSize),
		UncompressedSize32: uint32(e.UncompressedSize),
	}, nil
}

// Modified decodes the DOS timestamp as stored, without validation.
func (e Entry) Modified() time.Time {
	d := e.ModTime >> 16
	t := e.ModTime & 0xffff
	return time.Date(
		int(d>>9)+1980,
		time.Month((d>>5)&0xf),
		int(d&0x1f),
		int(t>>11),
		int((t>>5)&0x3f),
		int(t&0x1f)*2,
		0,
		time.UTC,
	)
}

// Mode converts UnixMode to fs.FileMode.
func (e Entry) Mode() fs.FileMode {
	mode := fs.FileMode(e.UnixMode & 0o777)
	switch e.UnixMode & 0o170000 {
	case 0o040000:
		mode |= fs.ModeDir
	case 0o120000:
		mode |= fs.ModeSymlink
	case 0o010000:
		mode |= fs.ModeNamedPipe
	case 0o140000:
		mode |= fs.ModeSocket
	case 0o060000:
		mode |= fs.ModeDevice
	case 0o020000:
		mode |= fs.ModeDevice | fs.ModeCharDevice
	}
	if e.UnixMode&0o4000 != 0 {
		mode |= fs.ModeSetuid
	}
	if e.UnixMode&0o2000 != 0 {
		mode |= fs.ModeSetgid
	}
	if e.UnixMode&0o1000 != 0 {
		mode |= fs.ModeSticky
	}
	return mode
}

// FromUnix reports whether the producer's host system was UNIX.
func (e Entry) FromUnix() bool {
	return e.VersionMadeBy>>8 == hostUnix
}

// UnixModeFor derives the unix_mode field from the central directory values.
func UnixModeFor(versionMadeBy uint16, externalAttrs uint32) uint16 {
	if versionMadeBy>>8 == hostUnix {
		return uint16(externalAttrs >> 16)
	}
	return 0o777
}
