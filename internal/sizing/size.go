// Package sizing provides overflow-checked arithmetic for archive offsets and lengths.
package sizing

import "math"

// MaxArchiveSize is the largest archive the engine accepts (256 GiB).
const MaxArchiveSize uint64 = 256 << 30

// AddUint64 adds two uint64 values, returning (result, false) on overflow.
func AddUint64(a, b uint64) (uint64, bool) {
	sum := a + b
	if sum < a {
		return 0, false
	}
	return sum, true
}

// AddInt64 adds two non-negative int64 values, returning (result, false) on overflow
// or when either operand is negative.
func AddInt64(a, b int64) (int64, bool) {
	if a < 0 || b < 0 || a > math.MaxInt64-b {
		return 0, false
	}
	return a + b, true
}

// Within reports whether [off, off+n) lies inside [0, limit).
func Within(off, n, limit uint64) bool {
	end, ok := AddUint64(off, n)
	return ok && end <= limit
}

// ToInt converts a uint64 to int, returning overflowErr if it doesn't fit.
func ToInt(size uint64, overflowErr error) (int, error) {
	if size > uint64(math.MaxInt) {
		return 0, overflowErr
	}
	return int(size), nil
}

// ToInt64 converts a uint64 to int64, returning overflowErr if it doesn't fit.
func ToInt64(size uint64, overflowErr error) (int64, error) {
	if size > uint64(math.MaxInt64) {
		return 0, overflowErr
	}
	return int64(size), nil
}

// NextPow2 returns the smallest power of two >= n (1 for n == 0).
func NextPow2(n uint64) uint64 {
	p := uint64(1)
	for p < n {
		p <<= 1
	}
	return p
}
