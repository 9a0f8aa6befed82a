package ziparchive

import "github.com/meigma/ziparchive/internal/ziptype"

// ErrorCode is the stable numeric identifier carried by every error.
type ErrorCode = ziptype.ErrorCode

// Error is the concrete type of the sentinel errors.
type Error = ziptype.Error

// Error codes.
const (
	OK                      = ziptype.OK
	IterationEnd            = ziptype.IterationEnd
	ZlibError               = ziptype.ZlibError
	InvalidFile             = ziptype.InvalidFile
	InvalidHandle           = ziptype.InvalidHandle
	DuplicateEntry          = ziptype.DuplicateEntry
	EmptyArchive            = ziptype.EmptyArchive
	EntryNotFound           = ziptype.EntryNotFound
	InvalidOffset           = ziptype.InvalidOffset
	InconsistentInformation = ziptype.InconsistentInformation
	InvalidEntryName        = ziptype.InvalidEntryName
	IoError                 = ziptype.IoError
	MmapFailed              = ziptype.MmapFailed
	AllocationFailed        = ziptype.AllocationFailed
	UnsupportedEntrySize    = ziptype.UnsupportedEntrySize
)

// Errors re-exported from the internal type package.
var (
	// ErrIterationEnd is returned by Cursor.Next once every match was returned.
	ErrIterationEnd = ziptype.ErrIterationEnd

	// ErrZlib is returned when a deflate stream is corrupt.
	ErrZlib = ziptype.ErrZlib

	// ErrInvalidFile is returned for structurally invalid archives and
	// unsupported compression methods.
	ErrInvalidFile = ziptype.ErrInvalidFile

	// ErrInvalidHandle is returned when the archive was closed.
	ErrInvalidHandle = ziptype.ErrInvalidHandle

	// ErrDuplicateEntry is returned when two central directory records share a name.
	ErrDuplicateEntry = ziptype.ErrDuplicateEntry

	// ErrEmptyArchive is returned when the central directory declares no entries.
	ErrEmptyArchive = ziptype.ErrEmptyArchive

	// ErrEntryNotFound is returned when no entry has the requested name.
	ErrEntryNotFound = ziptype.ErrEntryNotFound

	// ErrInvalidOffset is returned when an offset or length points outside
	// the region it must lie in.
	ErrInvalidOffset = ziptype.ErrInvalidOffset

	// ErrInconsistentInformation is returned when two records describing the
	// same entry disagree, or when produced data does not match its declared
	// size or checksum.
	ErrInconsistentInformation = ziptype.ErrInconsistentInformation

	// ErrInvalidEntryName is returned for empty, oversized, non-UTF-8 or NUL
	// containing names.
	ErrInvalidEntryName = ziptype.ErrInvalidEntryName

	// ErrIO is returned when reading the archive or writing output fails.
	ErrIO = ziptype.ErrIO

	// ErrMmapFailed is returned when the central directory cannot be mapped.
	ErrMmapFailed = ziptype.ErrMmapFailed

	// ErrAllocationFailed is returned when a required buffer cannot be allocated.
	ErrAllocationFailed = ziptype.ErrAllocationFailed

	// ErrUnsupportedEntrySize is returned when a 32-bit view is requested for
	// an entry whose sizes do not fit.
	ErrUnsupportedEntrySize = ziptype.ErrUnsupportedEntrySize
)

// CodeOf returns the error code carried by err: OK for nil and IoError for
// errors that did not come from this package.
func CodeOf(err error) ErrorCode {
	return ziptype.CodeOf(err)
}
