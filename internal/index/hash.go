package index

import (
	"bytes"

	"github.com/cespare/xxhash/v2"
)

// slotCodec packs a name location into a table slot. The zero slot is empty;
// names never start at offset 0 because a fixed record header precedes them.
type slotCodec[S comparable] interface {
	encode(offset uint64, n int) S
	decode(s S) (offset uint64, n int)
}

// table is an open addressing hash table with linear probing.
type table[S comparable, C slotCodec[S]] struct {
	cd    []byte
	slots []S
	mask  uint64
	count int
	codec C
}

func newTable[S comparable, C slotCodec[S]](cd []byte, entries uint64) *table[S, C] {
	size := tableSize(entries)
	return &table[S, C]{
		cd:    cd,
		slots: make([]S, size),
		mask:  size - 1,
	}
}

func (t *table[S, C]) name(s S) []byte {
	off, n := t.codec.decode(s)
	return t.cd[off : off+uint64(n)]
}

func (t *table[S, C]) Add(name []byte, offset uint64) error {
	var empty S
	i := xxhash.Sum64(name) & t.mask
	for t.slots[i] != empty {
		if bytes.Equal(t.name(t.slots[i]), name) {
			return duplicate(name)
		}
		i = (i + 1) & t.mask
	}
	t.slots[i] = t.codec.encode(offset, len(name))
	t.count++
	return nil
}

func (t *table[S, C]) Lookup(name []byte) (uint64, bool) {
	var empty S
	i := xxhash.Sum64(name) & t.mask
	for t.slots[i] != empty {
		if off, n := t.codec.decode(t.slots[i]); n == len(name) && bytes.Equal(t.cd[off:off+uint64(n)], name) {
			return off, true
		}
		i = (i + 1) & t.mask
	}
	return 0, false
}

func (t *table[S, C]) Next(pos *Position) ([]byte, uint64, bool) {
	var empty S
	for pos.slot < uint64(len(t.slots)) {
		s := t.slots[pos.slot]
		pos.slot++
		if s != empty {
			off, n := t.codec.decode(s)
			return t.cd[off : off+uint64(n)], off, true
		}
	}
	return nil, 0, false
}

func (t *table[S, C]) Len() int { return t.count }

// packedCodec stores a 20-bit offset and a 12-bit length in one word.
type packedCodec struct{}

func (packedCodec) encode(offset uint64, n int) uint32 {
	return uint32(offset)<<packedLenBits | uint32(n) //nolint:gosec // bounds checked by New
}

func (packedCodec) decode(s uint32) (uint64, int) {
	return uint64(s >> packedLenBits), int(s & packedMaxLen)
}

// wideSlot holds a 32-bit offset and a 16-bit length.
type wideSlot struct {
	offset uint32
	n      uint16
}

type wideCodec struct{}

func (wideCodec) encode(offset uint64, n int) wideSlot {
	return wideSlot{offset: uint32(offset), n: uint16(n)} //nolint:gosec // bounds checked by New
}

func (wideCodec) decode(s wideSlot) (uint64, int) {
	return uint64(s.offset), int(s.n)
}

func newPacked(cd []byte, entries uint64) Index {
	return newTable[uint32, packedCodec](cd, entries)
}

func newWide(cd []byte, entries uint64) Index {
	return newTable[wideSlot, wideCodec](cd, entries)
}
