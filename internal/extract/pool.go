package extract

import (
	"io"
	"sync"

	"github.com/klauspost/compress/flate"
)

// InflatePool manages reusable raw DEFLATE decompressors.
type InflatePool struct {
	pool sync.Pool
}

// NewInflatePool creates an empty pool.
func NewInflatePool() *InflatePool {
	return &InflatePool{}
}

// Get returns a decompressor reading from r.
// The caller must call the returned release function when done.
func (p *InflatePool) Get(r io.Reader) (io.ReadCloser, func()) {
	if p == nil {
		dec := flate.NewReader(r)
		return dec, func() { _ = dec.Close() }
	}

	if dec, ok := p.pool.Get().(io.ReadCloser); ok {
		if resetter, ok := dec.(flate.Resetter); ok && resetter.Reset(r, nil) == nil {
			return dec, func() { p.put(dec) }
		}
	}
	dec := flate.NewReader(r)
	return dec, func() { p.put(dec) }
}

func (p *InflatePool) put(dec io.ReadCloser) {
	// Drop the reference to the input before pooling.
	if resetter, ok := dec.(flate.Resetter); ok {
		_ = resetter.Reset(eofReader{}, nil) //nolint:errcheck // clearing state before pool return
	}
	p.pool.Put(dec)
}

// scratchPool holds bufSize staging buffers for positioned reads and
// inflate output.
var scratchPool = sync.Pool{
	New: func() any {
		b := make([]byte, bufSize)
		return &b
	},
}

// scratch returns a pooled buffer of n <= bufSize bytes and its release func.
func scratch(n uint64) ([]byte, func()) {
	bp := scratchPool.Get().(*[]byte) //nolint:errcheck // pool only holds *[]byte
	return (*bp)[:n], func() { scratchPool.Put(bp) }
}

type eofReader struct{}

func (eofReader) Read([]byte) (int, error) { return 0, io.EOF }
func (eofReader) ReadByte() (byte, error) { return 0, io.EOF }
