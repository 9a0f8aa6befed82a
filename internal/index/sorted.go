package index

import (
	"bytes"

	"github.com/google/btree"
)

const btreeDegree = 32

type sortedItem struct {
	name   []byte
	offset uint64
}

func lessItem(a, b sortedItem) bool {
	return bytes.Compare(a.name, b.name) < 0
}

// sorted is an ordered map used for directories too large for the hash
// tables. Iteration visits names in byte order.
type sorted struct {
	tree *btree.BTreeG[sortedItem]
}

func newSorted() Index {
	return &sorted{tree: btree.NewG(btreeDegree, lessItem)}
}

func (s *sorted) Add(name []byte, offset uint64) error {
	if _, found := s.tree.ReplaceOrInsert(sortedItem{name: name, offset: offset}); found {
		return duplicate(name)
	}
	return nil
}

func (s *sorted) Lookup(name []byte) (uint64, bool) {
	item, ok := s.tree.Get(sortedItem{name: name})
	return item.offset, ok
}

func (s *sorted) Next(pos *Position) ([]byte, uint64, bool) {
	var (
		out   sortedItem
		found bool
	)
	visit := func(item sortedItem) bool {
		if pos.started && bytes.Equal(item.name, pos.last) {
			return true
		}
		out, found = item, true
		return false
	}
	if pos.started {
		s.tree.AscendGreaterOrEqual(sortedItem{name: pos.last}, visit)
	} else {
		s.tree.Ascend(visit)
	}
	if !found {
		return nil, 0, false
	}
	pos.last, pos.started = out.name, true
	return out.name, out.offset, true
}

func (s *sorted) Len() int { return s.tree.Len() }
