// Package resolve builds entry descriptors by cross-checking a central
// directory record against its local file header.
package resolve

import (
	"bytes"
	"fmt"
	"log/slog"

	"github.com/meigma/ziparchive/internal/source"
	"github.com/meigma/ziparchive/internal/wire"
	"github.com/meigma/ziparchive/internal/ziptype"
)

// Resolver resolves indexed names to entries.
type Resolver struct {
	// Src is the archive.
	Src source.Source
	// CD is the mapped central directory.
	CD []byte
	// CDOffset is the archive offset of CD; every local structure must end
	// at or before it.
	CDOffset uint64
	// Log receives warnings about suspicious but tolerated layouts.
	Log *slog.Logger
}

// Resolve returns the entry for name, whose bytes start at nameOffset in CD.
func (r *Resolver) Resolve(name []byte, nameOffset uint64) (ziptype.Entry, error) {
	if nameOffset < wire.CentralSize || nameOffset > uint64(len(r.CD)) {
		return ziptype.Entry{}, fmt.Errorf("%w: name offset %d outside central directory", ziptype.ErrInvalidOffset, nameOffset)
	}
	recStart := nameOffset - wire.CentralSize
	cdr := wire.ParseCentral(r.CD[recStart:])

	e := ziptype.Entry{
		Method:           ziptype.Method(cdr.Method),
		ModTime:          uint32(cdr.ModDate)<<16 | uint32(cdr.ModTime),
		CRC32:            cdr.CRC32,
		CompressedSize:   uint64(cdr.CompressedSize),
		UncompressedSize: uint64(cdr.UncompressedSize),
	}

	lfhOffset := uint64(cdr.LocalHeaderOffset)
	if cdr.UncompressedSize == wire.Sentinel32 || cdr.CompressedSize == wire.Sentinel32 ||
		cdr.LocalHeaderOffset == wire.Sentinel32 {
		extraStart := nameOffset + uint64(cdr.NameLen)
		extraEnd := extraStart + uint64(cdr.ExtraLen)
		if extraEnd > uint64(len(r.CD)) {
			return ziptype.Entry{}, fmt.Errorf("%w: extra field outside central directory", ziptype.ErrInvalidOffset)
		}
		info, err := wire.ParseZip64Extra(r.CD[extraStart:extraEnd], wire.Zip64Fields{
			Uncompressed:      cdr.UncompressedSize,
			Compressed:        cdr.CompressedSize,
			LocalHeaderOffset: cdr.LocalHeaderOffset,
			HasOffset:         true,
		})
		if err != nil {
			return ziptype.Entry{}, err
		}
		if info.HasUncompressed {
			e.UncompressedSize = info.Uncompressed
		}
		if info.HasCompressed {
			e.CompressedSize = info.Compressed
		}
		if info.HasLocalHeaderOffset {
			lfhOffset = info.LocalHeaderOffset
		}
		e.Zip64FormatSize = cdr.UncompressedSize == wire.Sentinel32 || cdr.CompressedSize == wire.Sentinel32
	}
	e.LocalHeaderOffset = lfhOffset

	// The name following the header cannot be empty, hence >=.
	nameStart := lfhOffset + wire.LocalSize
	if nameStart < lfhOffset || nameStart >= r.CDOffset {
		r.Log.Warn("bad local header offset", slog.Uint64("offset", lfhOffset))
		return ziptype.Entry{}, fmt.Errorf("%w: local header at %d", ziptype.ErrInvalidOffset, lfhOffset)
	}

	var hdrBuf [wire.LocalSize]byte
	hdr, err := r.Src.ReadAt(hdrBuf[:], int64(lfhOffset)) //nolint:gosec // below CDOffset
	if err != nil {
		return ziptype.Entry{}, fmt.Errorf("%w: read local header at %d: %w", ziptype.ErrIO, lfhOffset, err)
	}
	lfh := wire.ParseLocal(hdr)
	if lfh.Signature != wire.LocalSignature {
		r.Log.Warn("local header signature not found", slog.Uint64("offset", lfhOffset))
		return ziptype.Entry{}, fmt.Errorf("%w: no local header signature at %d", ziptype.ErrInvalidOffset, lfhOffset)
	}

	if int(lfh.NameLen) != len(name) {
		r.Log.Warn("local header name length differs from central directory",
			slog.String("name", string(name)),
			slog.Int("local", int(lfh.NameLen)),
			slog.Int("central", len(name)))
		return ziptype.Entry{}, fmt.Errorf("%w: local name length %d, central %d",
			ziptype.ErrInconsistentInformation, lfh.NameLen, len(name))
	}
	nameEnd := nameStart + uint64(lfh.NameLen)
	if nameEnd > r.CDOffset {
		return ziptype.Entry{}, fmt.Errorf("%w: local name runs into the central directory", ziptype.ErrInvalidOffset)
	}

	localName, err := r.Src.ReadAt(make([]byte, lfh.NameLen), int64(nameStart)) //nolint:gosec // below CDOffset
	if err != nil {
		return ziptype.Entry{}, fmt.Errorf("%w: read local name at %d: %w", ziptype.ErrIO, nameStart, err)
	}
	if !bytes.Equal(localName, name) {
		r.Log.Warn("local header name differs from central directory", slog.String("name", string(name)))
		return ziptype.Entry{}, fmt.Errorf("%w: local name %q, central %q",
			ziptype.ErrInconsistentInformation, localName, name)
	}

	extraStart := nameEnd
	if extraStart+uint64(lfh.ExtraLen) > r.CDOffset {
		r.Log.Warn("local extra field has a bad size", slog.String("name", string(name)))
		return ziptype.Entry{}, fmt.Errorf("%w: local extra field runs into the central directory", ziptype.ErrInvalidOffset)
	}
	e.ExtraFieldSize = lfh.ExtraLen

	localCompressed := uint64(lfh.CompressedSize)
	localUncompressed := uint64(lfh.UncompressedSize)
	if lfh.UncompressedSize == wire.Sentinel32 || lfh.CompressedSize == wire.Sentinel32 {
		if lfh.UncompressedSize != wire.Sentinel32 || lfh.CompressedSize != wire.Sentinel32 {
			r.Log.Warn("zip64 local header must mark both sizes", slog.String("name", string(name)))
			return ziptype.Entry{}, fmt.Errorf("%w: local header marks only one size as zip64", ziptype.ErrInvalidFile)
		}
		extra, err := r.Src.ReadAt(make([]byte, lfh.ExtraLen), int64(extraStart)) //nolint:gosec // below CDOffset
		if err != nil {
			return ziptype.Entry{}, fmt.Errorf("%w: read local extra field at %d: %w", ziptype.ErrIO, extraStart, err)
		}
		info, err := wire.ParseZip64Extra(extra, wire.Zip64Fields{
			Uncompressed: lfh.UncompressedSize,
			Compressed:   lfh.CompressedSize,
		})
		if err != nil {
			return ziptype.Entry{}, err
		}
		localUncompressed = info.Uncompressed
		localCompressed = info.Compressed
	}

	if lfh.Flags&wire.FlagDataDescriptor != cdr.Flags&wire.FlagDataDescriptor {
		r.Log.Warn("data descriptor flag differs between headers",
			slog.String("name", string(name)),
			slog.Int("central_flags", int(cdr.Flags)),
			slog.Int("local_flags", int(lfh.Flags)))
	}
	if lfh.Flags&wire.FlagDataDescriptor == 0 {
		if e.CompressedSize != localCompressed || e.UncompressedSize != localUncompressed || e.CRC32 != lfh.CRC32 {
			r.Log.Warn("size or crc32 mismatch between headers",
				slog.String("name", string(name)),
				slog.Uint64("compressed", e.CompressedSize),
				slog.Uint64("local_compressed", localCompressed),
				slog.Uint64("uncompressed", e.UncompressedSize),
				slog.Uint64("local_uncompressed", localUncompressed))
			return ziptype.Entry{}, fmt.Errorf("%w: local header disagrees with central directory",
				ziptype.ErrInconsistentInformation)
		}
	} else {
		e.HasDataDescriptor = true
	}

	e.VersionMadeBy = cdr.VersionMadeBy
	e.ExternalAttrs = cdr.ExternalAttrs
	e.UnixMode = ziptype.UnixModeFor(cdr.VersionMadeBy, cdr.ExternalAttrs)
	e.Flags = lfh.Flags
	e.IsText = cdr.InternalAttrs&1 != 0

	dataOffset := extraStart + uint64(lfh.ExtraLen)
	if dataOffset > r.CDOffset {
		return ziptype.Entry{}, fmt.Errorf("%w: data offset %d", ziptype.ErrInvalidOffset, dataOffset)
	}
	if e.CompressedSize > r.CDOffset-dataOffset {
		r.Log.Warn("bad compressed length",
			slog.Uint64("data_offset", dataOffset), slog.Uint64("compressed", e.CompressedSize))
		return ziptype.Entry{}, fmt.Errorf("%w: %d compressed bytes at %d run into the central directory",
			ziptype.ErrInvalidOffset, e.CompressedSize, dataOffset)
	}
	if e.Method == ziptype.Stored && e.UncompressedSize > r.CDOffset-dataOffset {
		r.Log.Warn("bad uncompressed length",
			slog.Uint64("data_offset", dataOffset), slog.Uint64("uncompressed", e.UncompressedSize))
		return ziptype.Entry{}, fmt.Errorf("%w: %d stored bytes at %d run into the central directory",
			ziptype.ErrInvalidOffset, e.UncompressedSize, dataOffset)
	}

	e.DataOffset = dataOffset
	return e, nil
}
