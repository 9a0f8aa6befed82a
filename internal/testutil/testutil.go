// Package testutil builds ZIP archives and byte sources for tests.
package testutil

import (
	"errors"
	"io"
	"sync/atomic"
)

// ErrInjected is returned by MockByteSource reads that were set up to fail.
var ErrInjected = errors.New("testutil: injected read failure")

// MockByteSource implements a simple in-memory byte source for tests.
type MockByteSource struct {
	data  []byte
	reads atomic.Int64

	// FailFrom makes every read touching offsets >= FailFrom fail.
	// Negative disables injection.
	FailFrom int64
}

// NewMockByteSource returns a byte source backed by the provided data.
func NewMockByteSource(data []byte) *MockByteSource {
	return &MockByteSource{data: data, FailFrom: -1}
}

// ReadAt implements io.ReaderAt semantics over the backing slice.
func (m *MockByteSource) ReadAt(p []byte, off int64) (int, error) {
	m.reads.Add(1)
	if m.FailFrom >= 0 && off+int64(len(p)) > m.FailFrom {
		return 0, ErrInjected
	}
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if off+int64(n) >= int64(len(m.data)) {
		return n, io.EOF
	}
	return n, nil
}

// Size returns the total size of the backing data.
func (m *MockByteSource) Size() int64 {
	return int64(len(m.data))
}

// Bytes returns the backing slice for tests that need to mutate data.
func (m *MockByteSource) Bytes() []byte {
	return m.data
}

// Reads returns the number of ReadAt calls served.
func (m *MockByteSource) Reads() int64 {
	return m.reads.Load()
}
