package testutil

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"testing"
	"time"

	"github.com/klauspost/compress/flate"
)

// Compression methods understood by the builder.
const (
	MethodStored   uint16 = 0
	MethodDeflated uint16 = 8
)

// TestEntry describes one member of a test archive.
type TestEntry struct {
	Name   string
	Data   []byte
	Method uint16

	// DataDescriptor sets bit 3, zeroes the local sizes and appends a
	// signed descriptor after the data.
	DataDescriptor bool

	// Zip64 stores both sizes and the local header offset in zip64 extra
	// blocks, with sentinels in the fixed fields.
	Zip64 bool

	ModTime       time.Time
	VersionMadeBy uint16
	ExternalAttrs uint32
	InternalAttrs uint16
	Comment       string
}

// TestArchive describes a whole test archive.
type TestArchive struct {
	Entries []TestEntry
	Comment string

	// Zip64EOCD writes the zip64 end records and sentinel EOCD fields.
	Zip64EOCD bool
}

// Layout records where the builder placed each structure.
type Layout struct {
	Data []byte

	// Local and Central hold header offsets keyed by entry name.
	Local   map[string]int
	Central map[string]int
	// DataStart holds the offset of each entry's data.
	DataStart map[string]int

	CDOffset   int
	CDSize     int
	EOCDOffset int
}

// Default values applied to entries without explicit settings.
var (
	DefaultModTime       = time.Date(2021, time.March, 4, 5, 6, 8, 0, time.UTC)
	DefaultVersionMadeBy = uint16(3<<8 | 20)
	DefaultExternalAttrs = uint32(0o100644) << 16
)

// BuildZip returns the bytes of an archive holding entries.
func BuildZip(tb testing.TB, entries ...TestEntry) []byte {
	tb.Helper()
	return BuildArchive(tb, TestArchive{Entries: entries}).Data
}

// BuildArchive lays out a complete archive.
func BuildArchive(tb testing.TB, a TestArchive) Layout {
	tb.Helper()

	l := Layout{
		Local:     map[string]int{},
		Central:   map[string]int{},
		DataStart: map[string]int{},
	}
	var buf bytes.Buffer
	type written struct {
		e          TestEntry
		comp       []byte
		crc        uint32
		offset     int
		flags      uint16
		dosTime    uint16
		dosDate    uint16
		versionReq uint16
	}
	var records []written

	for _, e := range a.Entries {
		comp := e.Data
		if e.Method == MethodDeflated {
			comp = Deflate(tb, e.Data)
		}
		w := written{
			e:          e,
			comp:       comp,
			crc:        crc32.ChecksumIEEE(e.Data),
			offset:     buf.Len(),
			versionReq: 20,
		}
		if e.DataDescriptor {
			w.flags |= 1 << 3
		}
		if e.Zip64 {
			w.versionReq = 45
		}
		mod := e.ModTime
		if mod.IsZero() {
			mod = DefaultModTime
		}
		w.dosDate, w.dosTime = DOSDateTime(mod)

		l.Local[e.Name] = buf.Len()
		le := binary.LittleEndian
		var extra []byte
		compSize, uncompSize, crc := uint32(len(comp)), uint32(len(e.Data)), w.crc //nolint:gosec // test data is small
		if e.Zip64 {
			extra = le.AppendUint16(extra, 0x0001)
			extra = le.AppendUint16(extra, 16)
			extra = le.AppendUint64(extra, uint64(len(e.Data)))
			extra = le.AppendUint64(extra, uint64(len(comp)))
			compSize, uncompSize = 0xffffffff, 0xffffffff
		} else if e.DataDescriptor {
			compSize, uncompSize, crc = 0, 0, 0
		}

		h := le.AppendUint32(nil, 0x04034b50)
		h = le.AppendUint16(h, w.versionReq)
		h = le.AppendUint16(h, w.flags)
		h = le.AppendUint16(h, e.Method)
		h = le.AppendUint16(h, w.dosTime)
		h = le.AppendUint16(h, w.dosDate)
		h = le.AppendUint32(h, crc)
		h = le.AppendUint32(h, compSize)
		h = le.AppendUint32(h, uncompSize)
		h = le.AppendUint16(h, uint16(len(e.Name))) //nolint:gosec // test names are short
		h = le.AppendUint16(h, uint16(len(extra)))  //nolint:gosec // fixed size
		buf.Write(h)
		buf.WriteString(e.Name)
		buf.Write(extra)

		l.DataStart[e.Name] = buf.Len()
		buf.Write(comp)

		if e.DataDescriptor {
			d := le.AppendUint32(nil, 0x08074b50)
			d = le.AppendUint32(d, w.crc)
			d = le.AppendUint32(d, uint32(len(comp)))   //nolint:gosec // test data is small
			d = le.AppendUint32(d, uint32(len(e.Data))) //nolint:gosec // test data is small
			buf.Write(d)
		}
		records = append(records, w)
	}

	l.CDOffset = buf.Len()
	for _, w := range records {
		e := w.e
		le := binary.LittleEndian
		l.Central[e.Name] = buf.Len()

		compSize, uncompSize := uint32(len(w.comp)), uint32(len(e.Data)) //nolint:gosec // test data is small
		lfhOffset := uint32(w.offset)                                    //nolint:gosec // test data is small
		var extra []byte
		if e.Zip64 {
			extra = le.AppendUint16(extra, 0x0001)
			extra = le.AppendUint16(extra, 24)
			extra = le.AppendUint64(extra, uint64(len(e.Data)))
			extra = le.AppendUint64(extra, uint64(len(w.comp)))
			extra = le.AppendUint64(extra, uint64(w.offset)) //nolint:gosec // non-negative
			compSize, uncompSize, lfhOffset = 0xffffffff, 0xffffffff, 0xffffffff
		}
		vmb := e.VersionMadeBy
		if vmb == 0 {
			vmb = DefaultVersionMadeBy
		}
		attrs := e.ExternalAttrs
		if attrs == 0 {
			attrs = DefaultExternalAttrs
		}

		h := le.AppendUint32(nil, 0x02014b50)
		h = le.AppendUint16(h, vmb)
		h = le.AppendUint16(h, w.versionReq)
		h = le.AppendUint16(h, w.flags)
		h = le.AppendUint16(h, e.Method)
		h = le.AppendUint16(h, w.dosTime)
		h = le.AppendUint16(h, w.dosDate)
		h = le.AppendUint32(h, w.crc)
		h = le.AppendUint32(h, compSize)
		h = le.AppendUint32(h, uncompSize)
		h = le.AppendUint16(h, uint16(len(e.Name)))    //nolint:gosec // test names are short
		h = le.AppendUint16(h, uint16(len(extra)))     //nolint:gosec // fixed size
		h = le.AppendUint16(h, uint16(len(e.Comment))) //nolint:gosec // test comments are short
		h = le.AppendUint16(h, 0)
		h = le.AppendUint16(h, e.InternalAttrs)
		h = le.AppendUint32(h, attrs)
		h = le.AppendUint32(h, lfhOffset)
		buf.Write(h)
		buf.WriteString(e.Name)
		buf.Write(extra)
		buf.WriteString(e.Comment)
	}
	l.CDSize = buf.Len() - l.CDOffset

	le := binary.LittleEndian
	count := uint16(len(records))  //nolint:gosec // test archives are small
	cdSize := uint32(l.CDSize)     //nolint:gosec // test archives are small
	cdOffset := uint32(l.CDOffset) //nolint:gosec // test archives are small
	if a.Zip64EOCD {
		recOffset := buf.Len()
		r := le.AppendUint32(nil, 0x06064b50)
		r = le.AppendUint64(r, 44)
		r = le.AppendUint16(r, 45)
		r = le.AppendUint16(r, 45)
		r = le.AppendUint32(r, 0)
		r = le.AppendUint32(r, 0)
		r = le.AppendUint64(r, uint64(len(records)))
		r = le.AppendUint64(r, uint64(len(records)))
		r = le.AppendUint64(r, uint64(l.CDSize))   //nolint:gosec // non-negative
		r = le.AppendUint64(r, uint64(l.CDOffset)) //nolint:gosec // non-negative
		buf.Write(r)

		loc := le.AppendUint32(nil, 0x07064b50)
		loc = le.AppendUint32(loc, 0)
		loc = le.AppendUint64(loc, uint64(recOffset)) //nolint:gosec // non-negative
		loc = le.AppendUint32(loc, 1)
		buf.Write(loc)

		count, cdSize, cdOffset = 0xffff, 0xffffffff, 0xffffffff
	}

	l.EOCDOffset = buf.Len()
	eocd := le.AppendUint32(nil, 0x06054b50)
	eocd = le.AppendUint16(eocd, 0)
	eocd = le.AppendUint16(eocd, 0)
	eocd = le.AppendUint16(eocd, count)
	eocd = le.AppendUint16(eocd, count)
	eocd = le.AppendUint32(eocd, cdSize)
	eocd = le.AppendUint32(eocd, cdOffset)
	eocd = le.AppendUint16(eocd, uint16(len(a.Comment))) //nolint:gosec // test comments are short
	buf.Write(eocd)
	buf.WriteString(a.Comment)

	l.Data = buf.Bytes()
	return l
}

// Deflate compresses data as a raw DEFLATE stream.
func Deflate(tb testing.TB, data []byte) []byte {
	tb.Helper()
	var out bytes.Buffer
	w, err := flate.NewWriter(&out, flate.DefaultCompression)
	if err != nil {
		tb.Fatalf("flate writer: %v", err)
	}
	if _, err := w.Write(data); err != nil {
		tb.Fatalf("deflate: %v", err)
	}
	if err := w.Close(); err != nil {
		tb.Fatalf("deflate close: %v", err)
	}
	return out.Bytes()
}

// DOSDateTime encodes t in MS-DOS date and time format.
func DOSDateTime(t time.Time) (date, tm uint16) {
	date = uint16((t.Year()-1980)<<9 | int(t.Month())<<5 | t.Day())   //nolint:gosec // years 1980-2107
	tm = uint16(t.Hour()<<11 | t.Minute()<<5 | t.Second()/2)          //nolint:gosec // bounded fields
	return date, tm
}

// PutUint16 overwrites a little-endian uint16 at off.
func PutUint16(b []byte, off int, v uint16) {
	binary.LittleEndian.PutUint16(b[off:], v)
}

// PutUint32 overwrites a little-endian uint32 at off.
func PutUint32(b []byte, off int, v uint32) {
	binary.LittleEndian.PutUint32(b[off:], v)
}
