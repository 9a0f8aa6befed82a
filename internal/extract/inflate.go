package extract

import (
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"math"

	"github.com/meigma/ziparchive/internal/ziptype"
)

// windowReader feeds compressed bytes to the decoder in windows fetched from
// a Reader. It never reads past the compressed length.
type windowReader struct {
	r         Reader
	base      []byte
	buf       []byte
	window    []byte
	total     uint64
	remaining uint64
	maxRead   uint64
	err       error
}

func (w *windowReader) fill() bool {
	if w.err != nil || w.remaining == 0 {
		return false
	}
	n := min(w.remaining, w.maxRead)
	off := w.total - w.remaining
	if w.base != nil {
		if off+n > uint64(len(w.base)) {
			w.err = fmt.Errorf("compressed data [%d, +%d) beyond mapped region", off, n)
			return false
		}
		w.window = w.base[off : off+n]
	} else {
		b, err := w.r.ReadAt(w.buf[:n], int64(off)) //nolint:gosec // off < total which fits in int64
		if err != nil {
			w.err = err
			return false
		}
		w.window = b
	}
	w.remaining -= n
	return true
}

func (w *windowReader) Read(p []byte) (int, error) {
	if len(w.window) == 0 && !w.fill() {
		return 0, w.eof()
	}
	n := copy(p, w.window)
	w.window = w.window[n:]
	return n, nil
}

func (w *windowReader) ReadByte() (byte, error) {
	if len(w.window) == 0 && !w.fill() {
		return 0, w.eof()
	}
	c := w.window[0]
	w.window = w.window[1:]
	return c, nil
}

func (w *windowReader) eof() error {
	if w.err != nil {
		return w.err
	}
	return io.EOF
}

// Inflate decodes compressed bytes of raw DEFLATE data from r into sink and
// returns the CRC-32 of the output when computeCRC is set. The stream must
// produce exactly uncompressed bytes and consume all compressed input.
func Inflate(r Reader, compressed, uncompressed uint64, sink Sink, computeCRC bool, pool *InflatePool) (uint32, error) {
	in := &windowReader{r: r, total: compressed, remaining: compressed}
	if base := r.Base(); base != nil {
		in.base = base
		in.maxRead = min(compressed, math.MaxUint32)
	} else {
		in.maxRead = min(compressed, bufSize)
		buf, release := scratch(in.maxRead)
		defer release()
		in.buf = buf
	}

	// Some streams need more room than the uncompressed size, e.g. empty
	// ones, so size the output for whichever is larger.
	minOut := max(compressed, uncompressed)
	out := sink.Buffer(minOut)
	direct := minOut > 0 && out != nil && uint64(len(out)) >= minOut
	if !direct {
		buf, release := scratch(max(1, min(minOut, bufSize)))
		defer release()
		out = buf
	}

	dec, release := pool.Get(in)
	defer release()

	var (
		total uint64
		crc   uint32
		probe [1]byte
	)
	for {
		p := out
		if direct {
			p = out[total:]
			if len(p) == 0 {
				p = probe[:]
			}
		}
		n, err := dec.Read(p)
		if n > 0 {
			if direct && total == uint64(len(out)) {
				return 0, fmt.Errorf("%w: inflated data exceeds %d bytes", ziptype.ErrInconsistentInformation, len(out))
			}
			chunk := p[:n]
			if computeCRC {
				crc = crc32.Update(crc, crc32.IEEETable, chunk)
			}
			total += uint64(n)
			if !direct {
				if aerr := sink.Append(chunk); aerr != nil {
					return 0, ioError(aerr)
				}
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if in.err != nil {
				return 0, fmt.Errorf("%w: inflate read: %w", ziptype.ErrIO, in.err)
			}
			return 0, fmt.Errorf("%w: %w", ziptype.ErrZlib, err)
		}
	}

	if total != uncompressed || in.remaining != 0 {
		return 0, fmt.Errorf("%w: inflated %d bytes, expected %d (%d compressed bytes unread)",
			ziptype.ErrInconsistentInformation, total, uncompressed, in.remaining)
	}
	return crc, nil
}
