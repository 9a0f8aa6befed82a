package wire

import "math"

// DataDescriptorMaxSize is the largest possible data descriptor:
// optional signature, crc32 and two 64-bit sizes.
const DataDescriptorMaxSize = 24

// DataDescriptor is the record trailing an entry whose sizes were unknown
// when its local header was written.
type DataDescriptor struct {
	CRC32            uint32
	CompressedSize   uint64
	UncompressedSize uint64
}

// DescriptorIsWide reports whether an entry with the given sizes uses 64-bit
// descriptor fields.
func DescriptorIsWide(compressed, uncompressed uint64) bool {
	return compressed >= math.MaxUint32 || uncompressed >= math.MaxUint32
}

// ParseDataDescriptor decodes a descriptor from DataDescriptorMaxSize bytes.
// The optional signature is skipped when present.
func ParseDataDescriptor(b []byte, wide bool) DataDescriptor {
	r := readBuf(b[:DataDescriptorMaxSize])
	if Signature(r) == DataDescriptorSignature {
		r.skip(4)
	}
	var dd DataDescriptor
	dd.CRC32 = r.uint32()
	if wide {
		dd.CompressedSize = r.uint64()
		dd.UncompressedSize = r.uint64()
	} else {
		dd.CompressedSize = uint64(r.uint32())
		dd.UncompressedSize = uint64(r.uint32())
	}
	return dd
}
