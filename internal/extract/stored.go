package extract

import (
	"fmt"
	"hash/crc32"

	"github.com/meigma/ziparchive/internal/sizing"
	"github.com/meigma/ziparchive/internal/source"
	"github.com/meigma/ziparchive/internal/ziptype"
)

// Copy passes the length bytes stored at dataOffset in src to sink and
// returns their CRC-32 when computeCRC is set.
func Copy(src source.Source, dataOffset, length uint64, sink Sink, computeCRC bool) (uint32, error) {
	base := src.Base()
	if uint64(len(base)) < length {
		base = nil
	}

	var (
		buf     []byte
		direct  bool
		maxRead = length
	)
	if base == nil {
		if out := sink.Buffer(length); out != nil && uint64(len(out)) >= length {
			buf, direct = out, true
		} else {
			maxRead = min(length, bufSize)
			var release func()
			buf, release = scratch(maxRead)
			defer release()
		}
	}

	var (
		count uint64
		crc   uint32
	)
	for count < length {
		block := min(length-count, maxRead)
		offset := dataOffset + count

		var data []byte
		if base != nil {
			if !sizing.Within(offset, block, uint64(len(base))) {
				return 0, fmt.Errorf("%w: copy of %d bytes at %d beyond archive", ziptype.ErrIO, block, offset)
			}
			data = base[offset : offset+block]
		} else {
			dst := buf[:block]
			if direct {
				dst = buf[count : count+block]
			}
			var err error
			data, err = src.ReadAt(dst, int64(offset)) //nolint:gosec // validated against the central directory offset
			if err != nil {
				return 0, fmt.Errorf("%w: copy read of %d bytes at %d: %w", ziptype.ErrIO, block, offset, err)
			}
		}

		if err := sink.Append(data); err != nil {
			return 0, ioError(err)
		}
		if computeCRC {
			crc = crc32.Update(crc, crc32.IEEETable, data)
		}
		count += block
	}
	return crc, nil
}
