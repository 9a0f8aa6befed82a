package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/meigma/ziparchive/internal/ziptype"
)

// Zip64ExtraID is the header id of the zip64 extended information block.
const Zip64ExtraID = 0x0001

const (
	zip64FullSize      = 8 * 3
	zip64WithDiskStart = zip64FullSize + 4
)

// Zip64Info holds the values recovered from a zip64 extended information block.
// Only fields whose Has flag is set were present.
type Zip64Info struct {
	Uncompressed      uint64
	Compressed        uint64
	LocalHeaderOffset uint64

	HasUncompressed       bool
	HasCompressed         bool
	HasLocalHeaderOffset  bool
	IgnoredDiskStartField bool
}

// Zip64Fields are the 32-bit values whose sentinels select which zip64
// fields are present. LocalHeaderOffset is only consulted when HasOffset is set;
// local file headers carry no offset.
type Zip64Fields struct {
	Uncompressed      uint32
	Compressed        uint32
	LocalHeaderOffset uint32
	HasOffset         bool
}

// ParseZip64Extra walks an extra field for the zip64 extended information block.
//
// A field is read when its 32-bit counterpart is a sentinel, or unconditionally
// when the block holds all three 8-byte values. A trailing 4-byte disk start
// number is ignored.
func ParseZip64Extra(extra []byte, fields Zip64Fields) (Zip64Info, error) {
	n := len(extra)
	if n <= 4 {
		return Zip64Info{}, fmt.Errorf("%w: extra field of %d bytes cannot hold zip64 info", ziptype.ErrInvalidFile, n)
	}

	offset := 0
	for offset < n-4 {
		id := binary.LittleEndian.Uint16(extra[offset:])
		size := int(binary.LittleEndian.Uint16(extra[offset+2:]))
		offset += 4
		if size > n-offset {
			return Zip64Info{}, fmt.Errorf("%w: extra block size %d exceeds extra field", ziptype.ErrInvalidOffset, size)
		}
		if id != Zip64ExtraID {
			offset += size
			continue
		}

		var info Zip64Info
		if size == zip64WithDiskStart {
			info.IgnoredDiskStartField = true
			size -= 4
		}
		complete := size == zip64FullSize

		pos := offset
		read := func() (uint64, error) {
			if n < 8 || pos > n-8 {
				return 0, fmt.Errorf("%w: zip64 field at %d exceeds extra field", ziptype.ErrInvalidOffset, pos)
			}
			v := binary.LittleEndian.Uint64(extra[pos:])
			pos += 8
			return v, nil
		}

		var err error
		if fields.Uncompressed == Sentinel32 || complete {
			if info.Uncompressed, err = read(); err != nil {
				return Zip64Info{}, err
			}
			info.HasUncompressed = true
		}
		if fields.Compressed == Sentinel32 || complete {
			if info.Compressed, err = read(); err != nil {
				return Zip64Info{}, err
			}
			info.HasCompressed = true
		}
		if (fields.HasOffset && fields.LocalHeaderOffset == Sentinel32) || complete {
			if info.LocalHeaderOffset, err = read(); err != nil {
				return Zip64Info{}, err
			}
			info.HasLocalHeaderOffset = true
		}

		consumed := pos - offset
		if consumed == 0 {
			return Zip64Info{}, fmt.Errorf("%w: empty zip64 extended info", ziptype.ErrInvalidFile)
		}
		if consumed != size {
			return Zip64Info{}, fmt.Errorf("%w: zip64 extended info declares %d bytes, expected %d",
				ziptype.ErrInvalidFile, size, consumed)
		}
		return info, nil
	}

	return Zip64Info{}, fmt.Errorf("%w: zip64 extended info not found in extra field", ziptype.ErrInvalidFile)
}
