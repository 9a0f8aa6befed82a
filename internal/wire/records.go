// Package wire decodes the fixed-layout ZIP records.
//
// Every record is decoded field by field from little-endian bytes; nothing is
// ever reinterpreted in place, so inputs may be arbitrarily aligned.
package wire

import (
	"encoding/binary"
	"unicode/utf8"
)

// Record signatures.
const (
	EOCDSignature           uint32 = 0x06054b50
	Zip64LocatorSignature   uint32 = 0x07064b50
	Zip64EOCDSignature      uint32 = 0x06064b50
	CentralSignature        uint32 = 0x02014b50
	LocalSignature          uint32 = 0x04034b50
	DataDescriptorSignature uint32 = 0x08074b50
)

// Fixed record sizes in bytes.
const (
	EOCDSize         = 22
	Zip64LocatorSize = 20
	Zip64EOCDSize    = 56
	CentralSize      = 46
	LocalSize        = 30
)

const (
	// Sentinel16 marks a 16-bit count stored in the zip64 records.
	Sentinel16 = 0xffff
	// Sentinel32 marks a 32-bit size or offset stored in the zip64 extra block.
	Sentinel32 = 0xffffffff

	// MaxCommentLen is the largest EOCD comment.
	MaxCommentLen = 0xffff
	// MaxNameLen is the largest entry name.
	MaxNameLen = 0xffff

	// FlagDataDescriptor is general purpose bit 3.
	FlagDataDescriptor = 1 << 3
)

// EOCD is the end of central directory record.
type EOCD struct {
	DiskNumber    uint16
	CDDisk        uint16
	RecordsOnDisk uint16
	Records       uint16
	CDSize        uint32
	CDOffset      uint32
	CommentLen    uint16
}

// NeedsZip64 reports whether any field holds its zip64 sentinel.
func (e EOCD) NeedsZip64() bool {
	return e.RecordsOnDisk == Sentinel16 || e.Records == Sentinel16 ||
		e.CDSize == Sentinel32 || e.CDOffset == Sentinel32 ||
		e.CommentLen == Sentinel16
}

// ParseEOCD decodes an EOCD record. b must hold at least EOCDSize bytes
// starting at the signature.
func ParseEOCD(b []byte) EOCD {
	r := readBuf(b[4:EOCDSize])
	return EOCD{
		DiskNumber:    r.uint16(),
		CDDisk:        r.uint16(),
		RecordsOnDisk: r.uint16(),
		Records:       r.uint16(),
		CDSize:        r.uint32(),
		CDOffset:      r.uint32(),
		CommentLen:    r.uint16(),
	}
}

// Zip64Locator is the zip64 end of central directory locator.
type Zip64Locator struct {
	Signature  uint32
	Disk       uint32
	EOCDOffset uint64
	TotalDisks uint32
}

// ParseZip64Locator decodes a locator from Zip64LocatorSize bytes.
func ParseZip64Locator(b []byte) Zip64Locator {
	r := readBuf(b[:Zip64LocatorSize])
	return Zip64Locator{
		Signature:  r.uint32(),
		Disk:       r.uint32(),
		EOCDOffset: r.uint64(),
		TotalDisks: r.uint32(),
	}
}

// Zip64EOCD is the fixed part of the zip64 end of central directory record.
type Zip64EOCD struct {
	Signature     uint32
	RecordSize    uint64
	VersionMadeBy uint16
	VersionNeeded uint16
	Disk          uint32
	CDDisk        uint32
	RecordsOnDisk uint64
	Records       uint64
	CDSize        uint64
	CDOffset      uint64
}

// ParseZip64EOCD decodes a record from Zip64EOCDSize bytes.
func ParseZip64EOCD(b []byte) Zip64EOCD {
	r := readBuf(b[:Zip64EOCDSize])
	return Zip64EOCD{
		Signature:     r.uint32(),
		RecordSize:    r.uint64(),
		VersionMadeBy: r.uint16(),
		VersionNeeded: r.uint16(),
		Disk:          r.uint32(),
		CDDisk:        r.uint32(),
		RecordsOnDisk: r.uint64(),
		Records:       r.uint64(),
		CDSize:        r.uint64(),
		CDOffset:      r.uint64(),
	}
}

// Central is the fixed part of a central directory record.
type Central struct {
	Signature         uint32
	VersionMadeBy     uint16
	VersionNeeded     uint16
	Flags             uint16
	Method            uint16
	ModTime           uint16
	ModDate           uint16
	CRC32             uint32
	CompressedSize    uint32
	UncompressedSize  uint32
	NameLen           uint16
	ExtraLen          uint16
	CommentLen        uint16
	DiskStart         uint16
	InternalAttrs     uint16
	ExternalAttrs     uint32
	LocalHeaderOffset uint32
}

// ParseCentral decodes a central directory record from CentralSize bytes.
func ParseCentral(b []byte) Central {
	r := readBuf(b[:CentralSize])
	return Central{
		Signature:         r.uint32(),
		VersionMadeBy:     r.uint16(),
		VersionNeeded:     r.uint16(),
		Flags:             r.uint16(),
		Method:            r.uint16(),
		ModTime:           r.uint16(),
		ModDate:           r.uint16(),
		CRC32:             r.uint32(),
		CompressedSize:    r.uint32(),
		UncompressedSize:  r.uint32(),
		NameLen:           r.uint16(),
		ExtraLen:          r.uint16(),
		CommentLen:        r.uint16(),
		DiskStart:         r.uint16(),
		InternalAttrs:     r.uint16(),
		ExternalAttrs:     r.uint32(),
		LocalHeaderOffset: r.uint32(),
	}
}

// RecordLen is the full length of the record including variable fields.
func (c Central) RecordLen() uint64 {
	return CentralSize + uint64(c.NameLen) + uint64(c.ExtraLen) + uint64(c.CommentLen)
}

// Local is the fixed part of a local file header.
type Local struct {
	Signature        uint32
	VersionNeeded    uint16
	Flags            uint16
	Method           uint16
	ModTime          uint16
	ModDate          uint16
	CRC32            uint32
	CompressedSize   uint32
	UncompressedSize uint32
	NameLen          uint16
	ExtraLen         uint16
}

// ParseLocal decodes a local file header from LocalSize bytes.
func ParseLocal(b []byte) Local {
	r := readBuf(b[:LocalSize])
	return Local{
		Signature:        r.uint32(),
		VersionNeeded:    r.uint16(),
		Flags:            r.uint16(),
		Method:           r.uint16(),
		ModTime:          r.uint16(),
		ModDate:          r.uint16(),
		CRC32:            r.uint32(),
		CompressedSize:   r.uint32(),
		UncompressedSize: r.uint32(),
		NameLen:          r.uint16(),
		ExtraLen:         r.uint16(),
	}
}

// Signature reads the 4-byte signature at the start of b.
func Signature(b []byte) uint32 {
	return binary.LittleEndian.Uint32(b)
}

// ValidName reports whether name is valid UTF-8 without NUL bytes.
func ValidName(name []byte) bool {
	for _, c := range name {
		if c == 0 {
			return false
		}
	}
	return utf8.Valid(name)
}
