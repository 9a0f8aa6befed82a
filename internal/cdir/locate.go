// Package cdir locates, validates and indexes the central directory.
package cdir

import (
	"fmt"
	"log/slog"

	"github.com/valyala/bytebufferpool"

	"github.com/meigma/ziparchive/internal/sizing"
	"github.com/meigma/ziparchive/internal/source"
	"github.com/meigma/ziparchive/internal/wire"
	"github.com/meigma/ziparchive/internal/ziptype"
)

// maxEOCDSearch is the largest tail that can hold the EOCD record:
// the record itself plus the longest possible comment.
const maxEOCDSearch = wire.MaxCommentLen + wire.EOCDSize

var scanBuffers bytebufferpool.Pool

// Directory describes where the central directory lives.
type Directory struct {
	// Offset is the archive offset of the first central directory record.
	Offset uint64
	// Size is the length of the central directory in bytes.
	Size uint64
	// Entries is the declared number of records.
	Entries uint64
	// EOCDOffset is the archive offset of the EOCD record.
	EOCDOffset uint64
	// Zip64 reports whether the values came from the zip64 records.
	Zip64 bool
}

// Locate finds the EOCD record at the tail of src and returns the central
// directory it describes.
func Locate(src source.Source, log *slog.Logger) (Directory, error) {
	size := src.Size()
	if size < 0 || uint64(size) > sizing.MaxArchiveSize {
		return Directory{}, fmt.Errorf("%w: archive of %d bytes is too large", ziptype.ErrInvalidFile, size)
	}
	if size < wire.EOCDSize {
		return Directory{}, fmt.Errorf("%w: %d bytes is too small to be a zip archive", ziptype.ErrInvalidFile, size)
	}

	readAmount := int(min(size, maxEOCDSearch))
	searchStart := size - int64(readAmount)

	bb := scanBuffers.Get()
	defer scanBuffers.Put(bb)
	if cap(bb.B) < readAmount {
		bb.B = make([]byte, readAmount)
	}
	bb.B = bb.B[:readAmount]

	data, err := src.ReadAt(bb.B, searchStart)
	if err != nil {
		return Directory{}, fmt.Errorf("%w: read %d bytes at %d: %w", ziptype.ErrIO, readAmount, searchStart, err)
	}

	i := readAmount - wire.EOCDSize
	for ; i >= 0; i-- {
		if data[i] == 0x50 && wire.Signature(data[i:]) == wire.EOCDSignature {
			break
		}
	}
	if i < 0 {
		return Directory{}, fmt.Errorf("%w: end of central directory not found", ziptype.ErrInvalidFile)
	}

	eocdOffset := uint64(searchStart) + uint64(i) //nolint:gosec // both non-negative
	eocd := wire.ParseEOCD(data[i:])
	if want := eocdOffset + wire.EOCDSize + uint64(eocd.CommentLen); want != uint64(size) {
		log.Warn("extraneous bytes after central directory",
			slog.Int64("bytes", size-int64(want))) //nolint:gosec // want <= size + 64KiB
		return Directory{}, fmt.Errorf("%w: %d extraneous bytes at the end of the archive",
			ziptype.ErrInvalidFile, size-int64(want)) //nolint:gosec // as above
	}

	if eocd.NeedsZip64() {
		log.Debug("looking for zip64 end of central directory",
			slog.Uint64("cd_size", uint64(eocd.CDSize)),
			slog.Uint64("cd_offset", uint64(eocd.CDOffset)),
			slog.Int("records", int(eocd.Records)))
		return locateZip64(src, eocdOffset, log)
	}

	if uint64(eocd.CDOffset)+uint64(eocd.CDSize) > eocdOffset {
		log.Warn("bad central directory offsets",
			slog.Uint64("cd_offset", uint64(eocd.CDOffset)),
			slog.Uint64("cd_size", uint64(eocd.CDSize)),
			slog.Uint64("eocd_offset", eocdOffset))
		return Directory{}, fmt.Errorf("%w: central directory [%d, +%d) overlaps end record at %d",
			ziptype.ErrInvalidOffset, eocd.CDOffset, eocd.CDSize, eocdOffset)
	}

	return Directory{
		Offset:     uint64(eocd.CDOffset),
		Size:       uint64(eocd.CDSize),
		Entries:    uint64(eocd.Records),
		EOCDOffset: eocdOffset,
	}, nil
}

func locateZip64(src source.Source, eocdOffset uint64, log *slog.Logger) (Directory, error) {
	if eocdOffset <= wire.Zip64LocatorSize {
		return Directory{}, fmt.Errorf("%w: no room for zip64 locator", ziptype.ErrInvalidFile)
	}
	locatorOffset := eocdOffset - wire.Zip64LocatorSize

	var locBuf [wire.Zip64LocatorSize]byte
	b, err := src.ReadAt(locBuf[:], int64(locatorOffset)) //nolint:gosec // below MaxArchiveSize
	if err != nil {
		return Directory{}, fmt.Errorf("%w: read zip64 locator at %d: %w", ziptype.ErrIO, locatorOffset, err)
	}
	loc := wire.ParseZip64Locator(b)
	if loc.Signature != wire.Zip64LocatorSignature {
		return Directory{}, fmt.Errorf("%w: zip64 locator signature not found at %d", ziptype.ErrInvalidFile, locatorOffset)
	}

	recOffset := loc.EOCDOffset
	if locatorOffset <= wire.Zip64EOCDSize || recOffset > locatorOffset-wire.Zip64EOCDSize {
		log.Warn("bad zip64 end of central directory offset",
			slog.Uint64("offset", recOffset),
			slog.Uint64("locator_offset", locatorOffset))
		return Directory{}, fmt.Errorf("%w: zip64 end record at %d, locator at %d",
			ziptype.ErrInvalidOffset, recOffset, locatorOffset)
	}

	var recBuf [wire.Zip64EOCDSize]byte
	b, err = src.ReadAt(recBuf[:], int64(recOffset)) //nolint:gosec // below locatorOffset
	if err != nil {
		return Directory{}, fmt.Errorf("%w: read zip64 end record at %d: %w", ziptype.ErrIO, recOffset, err)
	}
	rec := wire.ParseZip64EOCD(b)
	if rec.Signature != wire.Zip64EOCDSignature {
		return Directory{}, fmt.Errorf("%w: zip64 end record signature not found at %d", ziptype.ErrInvalidFile, recOffset)
	}

	if recOffset <= rec.CDSize || rec.CDOffset > recOffset-rec.CDSize {
		log.Warn("bad zip64 central directory offsets",
			slog.Uint64("cd_offset", rec.CDOffset),
			slog.Uint64("cd_size", rec.CDSize),
			slog.Uint64("zip64_eocd_offset", recOffset))
		return Directory{}, fmt.Errorf("%w: zip64 central directory [%d, +%d) overlaps end record at %d",
			ziptype.ErrInvalidOffset, rec.CDOffset, rec.CDSize, recOffset)
	}

	return Directory{
		Offset:     rec.CDOffset,
		Size:       rec.CDSize,
		Entries:    rec.Records,
		EOCDOffset: eocdOffset,
		Zip64:      true,
	}, nil
}
