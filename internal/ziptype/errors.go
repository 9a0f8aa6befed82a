package ziptype

import "errors"

// ErrorCode is the stable numeric identifier of an archive error.
//
// The values are part of the public contract and never change.
type ErrorCode int32

const (
	OK                      ErrorCode = 0
	IterationEnd            ErrorCode = -1
	ZlibError               ErrorCode = -2
	InvalidFile             ErrorCode = -3
	InvalidHandle           ErrorCode = -4
	DuplicateEntry          ErrorCode = -5
	EmptyArchive            ErrorCode = -6
	EntryNotFound           ErrorCode = -7
	InvalidOffset           ErrorCode = -8
	InconsistentInformation ErrorCode = -9
	InvalidEntryName        ErrorCode = -10
	IoError                 ErrorCode = -11
	MmapFailed              ErrorCode = -12
	AllocationFailed        ErrorCode = -13
	UnsupportedEntrySize    ErrorCode = -14
)

var codeMessages = map[ErrorCode]string{
	OK:                      "Success",
	IterationEnd:            "Iteration ended",
	ZlibError:               "Zlib error",
	InvalidFile:             "Invalid file",
	InvalidHandle:           "Invalid handle",
	DuplicateEntry:          "Duplicate entries in archive",
	EmptyArchive:            "Empty archive",
	EntryNotFound:           "Entry not found",
	InvalidOffset:           "Invalid offset",
	InconsistentInformation: "Inconsistent information",
	InvalidEntryName:        "Invalid entry name",
	IoError:                 "I/O error",
	MmapFailed:              "File mapping failed",
	AllocationFailed:        "Allocation failed",
	UnsupportedEntrySize:    "Unsupported zip entry size",
}

// String returns the canonical message for the code.
func (c ErrorCode) String() string {
	if msg, ok := codeMessages[c]; ok {
		return msg
	}
	return "Unknown return code"
}

// Error is the concrete type of every sentinel in this package.
type Error struct {
	Code ErrorCode
	msg  string
}

func newError(code ErrorCode, msg string) *Error {
	return &Error{Code: code, msg: msg}
}

func (e *Error) Error() string {
	return e.msg
}

// Sentinel errors, one per error code.
var (
	ErrIterationEnd            = newError(IterationEnd, "ziparchive: iteration ended")
	ErrZlib                    = newError(ZlibError, "ziparchive: inflate failed")
	ErrInvalidFile             = newError(InvalidFile, "ziparchive: invalid file")
	ErrInvalidHandle           = newError(InvalidHandle, "ziparchive: invalid handle")
	ErrDuplicateEntry          = newError(DuplicateEntry, "ziparchive: duplicate entry")
	ErrEmptyArchive            = newError(EmptyArchive, "ziparchive: empty archive")
	ErrEntryNotFound           = newError(EntryNotFound, "ziparchive: entry not found")
	ErrInvalidOffset           = newError(InvalidOffset, "ziparchive: invalid offset")
	ErrInconsistentInformation = newError(InconsistentInformation, "ziparchive: inconsistent information")
	ErrInvalidEntryName        = newError(InvalidEntryName, "ziparchive: invalid entry name")
	ErrIO                      = newError(IoError, "ziparchive: i/o error")
	ErrMmapFailed              = newError(MmapFailed, "ziparchive: mmap failed")
	ErrAllocationFailed        = newError(AllocationFailed, "ziparchive: allocation failed")
	ErrUnsupportedEntrySize    = newError(UnsupportedEntrySize, "ziparchive: unsupported entry size")
)

// CodeOf returns the error code carried by err.
// A nil error maps to OK and errors of unknown origin map to IoError.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return OK
	}
	var zerr *Error
	if errors.As(err, &zerr) {
		return zerr.Code
	}
	return IoError
}
