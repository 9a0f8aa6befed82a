package source

import (
	"github.com/meigma/ziparchive/internal/platform"
)

// Memory is a Source over a caller-owned byte slice.
type Memory struct {
	data []byte
}

// NewMemory returns a Source serving data. The slice is not copied and must
// outlive the source.
func NewMemory(data []byte) *Memory {
	return &Memory{data: data}
}

func (m *Memory) Size() int64 { return int64(len(m.data)) }

func (m *Memory) ReadAt(buf []byte, off int64) ([]byte, error) {
	if err := checkRange(off, len(buf), m.Size()); err != nil {
		return nil, err
	}
	return m.data[off : off+int64(len(buf))], nil
}

func (m *Memory) Base() []byte { return m.data }

func (m *Memory) MapRange(off, n int64) (Region, error) {
	if n < 0 || n > m.Size() {
		return nil, ErrOutOfRange
	}
	if err := checkRange(off, int(n), m.Size()); err != nil {
		return nil, err
	}
	return sliceRegion(m.data[off : off+n]), nil
}

// Prepare is a no-op; memory-backed data is already resident.
func (m *Memory) Prepare(off, n int64, hint platform.Hint) error { return nil }

func (m *Memory) Close() error { return nil }
