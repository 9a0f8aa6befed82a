package extract

import (
	"fmt"
	"log/slog"

	"github.com/meigma/ziparchive/internal/source"
	"github.com/meigma/ziparchive/internal/wire"
	"github.com/meigma/ziparchive/internal/ziptype"
)

// Options tune Entry.
type Options struct {
	// VerifyCRC checks the CRC-32 of the produced bytes.
	VerifyCRC bool
	// Pool supplies decompressors; nil allocates one per call.
	Pool *InflatePool
	// Log receives mismatch warnings.
	Log *slog.Logger
}

// Entry writes the uncompressed bytes of e to sink.
func Entry(src source.Source, e ziptype.Entry, sink Sink, opts Options) error {
	var (
		crc uint32
		err error
	)
	switch e.Method {
	case ziptype.Stored:
		crc, err = Copy(src, e.DataOffset, e.UncompressedSize, sink, opts.VerifyCRC)
	case ziptype.Deflated:
		crc, err = Inflate(NewEntryReader(src, e.DataOffset), e.CompressedSize, e.UncompressedSize,
			sink, opts.VerifyCRC, opts.Pool)
	default:
		return fmt.Errorf("%w: unsupported compression method %d", ziptype.ErrInvalidFile, uint16(e.Method))
	}
	if err != nil {
		return err
	}

	if e.HasDataDescriptor {
		if err := ValidateDescriptor(src, e, opts.Log); err != nil {
			return err
		}
	}

	if opts.VerifyCRC && crc != e.CRC32 {
		opts.Log.Warn("crc mismatch", slog.Uint64("expected", uint64(e.CRC32)), slog.Uint64("actual", uint64(crc)))
		return fmt.Errorf("%w: crc32 %#08x, expected %#08x", ziptype.ErrInconsistentInformation, crc, e.CRC32)
	}
	return nil
}

// ValidateDescriptor checks the data descriptor trailing e's data against
// the central directory values.
func ValidateDescriptor(src source.Source, e ziptype.Entry, log *slog.Logger) error {
	offset := e.DataOffset
	if e.Method != ziptype.Stored {
		offset += e.CompressedSize
	} else {
		offset += e.UncompressedSize
	}

	var buf [wire.DataDescriptorMaxSize]byte
	b, err := src.ReadAt(buf[:], int64(offset)) //nolint:gosec // below the central directory offset
	if err != nil {
		return fmt.Errorf("%w: read data descriptor at %d: %w", ziptype.ErrIO, offset, err)
	}

	dd := wire.ParseDataDescriptor(b, wire.DescriptorIsWide(e.CompressedSize, e.UncompressedSize))
	if dd.CompressedSize != e.CompressedSize || dd.UncompressedSize != e.UncompressedSize || dd.CRC32 != e.CRC32 {
		log.Warn("data descriptor mismatch",
			slog.Uint64("compressed", e.CompressedSize),
			slog.Uint64("descriptor_compressed", dd.CompressedSize),
			slog.Uint64("uncompressed", e.UncompressedSize),
			slog.Uint64("descriptor_uncompressed", dd.UncompressedSize),
			slog.Uint64("crc32", uint64(e.CRC32)),
			slog.Uint64("descriptor_crc32", uint64(dd.CRC32)))
		return fmt.Errorf("%w: data descriptor disagrees with central directory", ziptype.ErrInconsistentInformation)
	}
	return nil
}
