// Package index maps entry names to their location in the central directory.
//
// Names are never copied: every variant stores offsets into the mapped
// central directory and compares against it. Three layouts trade memory for
// range, chosen by New from the directory's shape.
package index

import (
	"fmt"

	"github.com/meigma/ziparchive/internal/sizing"
	"github.com/meigma/ziparchive/internal/ziptype"
)

// Index is a set of entry names keyed to their central directory offsets.
//
// An Index is not safe for concurrent mutation; once built it may be read
// from multiple goroutines.
type Index interface {
	// Add records name, which starts at offset within the central
	// directory. It fails with ziptype.ErrDuplicateEntry if name is present.
	Add(name []byte, offset uint64) error

	// Lookup returns the central directory offset of name.
	Lookup(name []byte) (uint64, bool)

	// Next advances pos and returns the next name and its offset.
	// It returns ok == false when every name has been visited.
	Next(pos *Position) (name []byte, offset uint64, ok bool)

	// Len returns the number of names added.
	Len() int
}

// Position is an iteration cursor. The zero value starts at the beginning.
type Position struct {
	slot    uint64
	last    []byte
	started bool
}

// Reset rewinds the cursor to the beginning.
func (p *Position) Reset() {
	*p = Position{}
}

const (
	// MaxHashEntries is the largest entry count served by the hash tables.
	MaxHashEntries = 0xffff

	packedOffsetBits = 20
	packedLenBits    = 12
	packedMaxOffset  = 1<<packedOffsetBits - 1
	packedMaxLen     = 1<<packedLenBits - 1

	wideMaxOffset = 1<<32 - 1
)

// New returns the most compact index able to hold entries names whose
// offsets and lengths fall inside cd. maxNameLen is the longest name.
func New(cd []byte, entries uint64, maxNameLen int) Index {
	cdLen := uint64(len(cd))
	switch {
	case entries > MaxHashEntries || cdLen > wideMaxOffset:
		return newSorted()
	case cdLen <= packedMaxOffset && maxNameLen <= packedMaxLen:
		return newPacked(cd, entries)
	default:
		return newWide(cd, entries)
	}
}

// tableSize sizes an open addressing table for a load factor of 3/4.
func tableSize(entries uint64) uint64 {
	return sizing.NextPow2(1 + entries*4/3)
}

func duplicate(name []byte) error {
	return fmt.Errorf("%w: %q", ziptype.ErrDuplicateEntry, name)
}
