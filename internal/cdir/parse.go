package cdir

import (
	"fmt"
	"log/slog"

	"github.com/meigma/ziparchive/internal/index"
	"github.com/meigma/ziparchive/internal/source"
	"github.com/meigma/ziparchive/internal/wire"
	"github.com/meigma/ziparchive/internal/ziptype"
)

// Parse validates every record of the central directory cd and indexes the
// entry names. dir must describe cd; src is consulted for the first local
// header signature.
func Parse(cd []byte, dir Directory, src source.Source, log *slog.Logger) (index.Index, error) {
	cdLen := uint64(len(cd))
	maxNameLen := 0

	var pos uint64
	for i := range dir.Entries {
		if cdLen < wire.CentralSize || pos > cdLen-wire.CentralSize {
			log.Warn("ran off the end of the central directory",
				slog.Uint64("entry", i), slog.Uint64("cd_size", cdLen))
			return nil, fmt.Errorf("%w: central directory ends before entry %d", ziptype.ErrInvalidFile, i)
		}

		rec := wire.ParseCentral(cd[pos:])
		if rec.Signature != wire.CentralSignature {
			return nil, fmt.Errorf("%w: missing central directory signature at entry %d", ziptype.ErrInvalidFile, i)
		}

		nameStart := pos + wire.CentralSize
		nameLen := uint64(rec.NameLen)
		if nameLen >= cdLen || nameStart > cdLen-nameLen {
			return nil, fmt.Errorf("%w: name of entry %d exceeds the central directory",
				ziptype.ErrInvalidEntryName, i)
		}
		maxNameLen = max(maxNameLen, int(rec.NameLen))

		extraStart := nameStart + nameLen
		extraLen := uint64(rec.ExtraLen)
		if extraLen >= cdLen || extraStart > cdLen-extraLen {
			return nil, fmt.Errorf("%w: extra field of entry %d exceeds the central directory",
				ziptype.ErrInvalidFile, i)
		}

		lfhOffset := uint64(rec.LocalHeaderOffset)
		if rec.LocalHeaderOffset == wire.Sentinel32 {
			info, err := wire.ParseZip64Extra(cd[extraStart:extraStart+extraLen], wire.Zip64Fields{
				Uncompressed:      rec.UncompressedSize,
				Compressed:        rec.CompressedSize,
				LocalHeaderOffset: rec.LocalHeaderOffset,
				HasOffset:         true,
			})
			if err != nil {
				return nil, fmt.Errorf("entry %d: %w", i, err)
			}
			if info.IgnoredDiskStartField {
				log.Debug("ignoring zip64 disk start number", slog.Uint64("entry", i))
			}
			lfhOffset = info.LocalHeaderOffset
		}
		if lfhOffset >= dir.Offset {
			log.Warn("bad local header offset",
				slog.Uint64("entry", i), slog.Uint64("offset", lfhOffset))
			return nil, fmt.Errorf("%w: local header offset %d of entry %d is inside the central directory",
				ziptype.ErrInvalidFile, lfhOffset, i)
		}

		if !wire.ValidName(cd[nameStart : nameStart+nameLen]) {
			return nil, fmt.Errorf("%w: entry %d is not valid UTF-8 or contains NUL", ziptype.ErrInvalidEntryName, i)
		}

		pos += rec.RecordLen()
		if pos > cdLen {
			return nil, fmt.Errorf("%w: bad central directory advance (%d vs %d) at entry %d",
				ziptype.ErrInvalidFile, pos, cdLen, i)
		}
	}

	idx := index.New(cd, dir.Entries, maxNameLen)
	pos = 0
	for range dir.Entries {
		rec := wire.ParseCentral(cd[pos:])
		nameStart := pos + wire.CentralSize
		if err := idx.Add(cd[nameStart:nameStart+uint64(rec.NameLen)], nameStart); err != nil {
			log.Warn("adding entry to index failed", slog.Any("error", err))
			return nil, err
		}
		pos += rec.RecordLen()
	}

	var sig [4]byte
	b, err := src.ReadAt(sig[:], 0)
	if err != nil {
		return nil, fmt.Errorf("%w: read header of the first entry: %w", ziptype.ErrInvalidFile, err)
	}
	if got := wire.Signature(b); got != wire.LocalSignature {
		return nil, fmt.Errorf("%w: entry at offset zero has signature %#x", ziptype.ErrInvalidFile, got)
	}

	log.Debug("central directory scanned", slog.Uint64("entries", dir.Entries))
	return idx, nil
}
