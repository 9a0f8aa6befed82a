package cache

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/ziparchive/internal/testutil"
)

func sequential(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}

// rangeSource serves blocks through ReadRange and fails ReadAt.
type rangeSource struct {
	data   []byte
	ranges atomic.Int32
	closed atomic.Bool
}

func (r *rangeSource) ReadAt([]byte, int64) (int, error) {
	return 0, errors.New("ReadAt should not be used")
}

func (r *rangeSource) Size() int64 { return int64(len(r.data)) }

func (r *rangeSource) SourceID() string { return "range-source" }

func (r *rangeSource) ReadRange(_ context.Context, off, length int64) (io.ReadCloser, error) {
	r.ranges.Add(1)
	return io.NopCloser(bytes.NewReader(r.data[off : off+length])), nil
}

func (r *rangeSource) Close() error {
	r.closed.Store(true)
	return nil
}

func TestSourceReadAt(t *testing.T) {
	t.Parallel()

	data := sequential(1000)
	src, err := New(WithBlockSize(100), WithMaxBlocksPerRead(0)).Wrap(testutil.NewMockByteSource(data))
	require.NoError(t, err)
	require.Equal(t, int64(len(data)), src.Size())

	tests := []struct {
		name    string
		off     int64
		size    int
		wantN   int
		wantErr error
	}{
		{name: "inside one block", off: 10, size: 20, wantN: 20},
		{name: "spans blocks", off: 95, size: 210, wantN: 210},
		{name: "whole source", off: 0, size: 1000, wantN: 1000},
		{name: "short final block", off: 990, size: 10, wantN: 10},
		{name: "past the end", off: 950, size: 100, wantN: 50, wantErr: io.EOF},
		{name: "at the end", off: 1000, size: 1, wantErr: io.EOF},
		{name: "empty buffer", off: 5, size: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			buf := make([]byte, tt.size)
			n, err := src.ReadAt(buf, tt.off)
			assert.Equal(t, tt.wantErr, err)
			require.Equal(t, tt.wantN, n)
			assert.Equal(t, data[tt.off:tt.off+int64(n)], buf[:n])
		})
	}

	_, err = src.ReadAt(make([]byte, 1), -1)
	require.Error(t, err)
}

func TestSourceCachesBlocks(t *testing.T) {
	t.Parallel()

	mock := testutil.NewMockByteSource(sequential(1000))
	c := New(WithBlockSize(100))
	src, err := c.Wrap(mock)
	require.NoError(t, err)

	buf := make([]byte, 150)
	_, err = src.ReadAt(buf, 50)
	require.NoError(t, err)
	assert.Equal(t, int64(2), mock.Reads())
	assert.Equal(t, int64(200), c.SizeBytes())

	_, err = src.ReadAt(buf, 50)
	require.NoError(t, err)
	assert.Equal(t, int64(2), mock.Reads(), "second read is served from memory")

	hits, misses := c.Stats()
	assert.Equal(t, int64(2), hits)
	assert.Equal(t, int64(2), misses)
}

func TestSourceBypassesLargeReads(t *testing.T) {
	t.Parallel()

	mock := testutil.NewMockByteSource(sequential(1000))
	c := New(WithBlockSize(100), WithMaxBlocksPerRead(2))
	src, err := c.Wrap(mock)
	require.NoError(t, err)

	buf := make([]byte, 300)
	_, err = src.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), mock.Reads())
	assert.Zero(t, c.SizeBytes())
	assert.Equal(t, sequential(300), buf)
}

func TestBlockCacheEvictsLeastRecentlyUsed(t *testing.T) {
	t.Parallel()

	mock := testutil.NewMockByteSource(sequential(1000))
	c := New(WithBlockSize(100), WithMaxBytes(250))
	require.Equal(t, int64(250), c.MaxBytes())
	src, err := c.Wrap(mock)
	require.NoError(t, err)

	one := make([]byte, 1)
	for _, off := range []int64{0, 100, 0, 200} {
		_, err = src.ReadAt(one, off)
		require.NoError(t, err)
	}
	assert.Equal(t, int64(200), c.SizeBytes())
	assert.Equal(t, int64(3), mock.Reads())

	// Block 0 was used after block 1, so block 1 was evicted.
	_, err = src.ReadAt(one, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), mock.Reads())
	_, err = src.ReadAt(one, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(4), mock.Reads())
}

func TestBlockCachePrune(t *testing.T) {
	t.Parallel()

	c := New(WithBlockSize(100), WithMaxBlocksPerRead(0))
	src, err := c.Wrap(testutil.NewMockByteSource(sequential(500)))
	require.NoError(t, err)

	_, err = src.ReadAt(make([]byte, 500), 0)
	require.NoError(t, err)
	require.Equal(t, int64(500), c.SizeBytes())

	assert.Equal(t, int64(300), c.Prune(250))
	assert.Equal(t, int64(200), c.SizeBytes())
	assert.Equal(t, int64(200), c.Prune(-1))
	assert.Zero(t, c.SizeBytes())
}

func TestBlockCacheSkipsOversizedBlocks(t *testing.T) {
	t.Parallel()

	c := New(WithBlockSize(100), WithMaxBytes(50))
	src, err := c.Wrap(testutil.NewMockByteSource(sequential(300)))
	require.NoError(t, err)

	buf := make([]byte, 10)
	_, err = src.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Zero(t, c.SizeBytes())
}

func TestSourceUsesRangeReader(t *testing.T) {
	t.Parallel()

	rs := &rangeSource{data: sequential(400)}
	src, err := New(WithBlockSize(100)).Wrap(rs)
	require.NoError(t, err)
	assert.Equal(t, "range-source", src.SourceID())

	buf := make([]byte, 120)
	n, err := src.ReadAt(buf, 250)
	require.NoError(t, err)
	assert.Equal(t, 120, n)
	assert.Equal(t, rs.data[250:370], buf)
	assert.Equal(t, int32(2), rs.ranges.Load())

	require.NoError(t, src.Close())
	assert.True(t, rs.closed.Load())
}

func TestSourceSharesBlocksBySourceID(t *testing.T) {
	t.Parallel()

	c := New(WithBlockSize(100))
	a, err := c.Wrap(&rangeSource{data: sequential(200)})
	require.NoError(t, err)
	other := &rangeSource{data: sequential(200)}
	b, err := c.Wrap(other)
	require.NoError(t, err)

	_, err = a.ReadAt(make([]byte, 10), 0)
	require.NoError(t, err)
	_, err = b.ReadAt(make([]byte, 10), 0)
	require.NoError(t, err)
	assert.Zero(t, other.ranges.Load())

	// Sources without an identity never share blocks.
	x, err := c.Wrap(testutil.NewMockByteSource(sequential(200)))
	require.NoError(t, err)
	y, err := c.Wrap(testutil.NewMockByteSource(sequential(200)))
	require.NoError(t, err)
	assert.NotEqual(t, x.SourceID(), y.SourceID())
}

func TestSourceDeduplicatesConcurrentFetches(t *testing.T) {
	t.Parallel()

	mock := testutil.NewMockByteSource(sequential(1000))
	src, err := New(WithBlockSize(1000)).Wrap(mock)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 16 {
		wg.Go(func() {
			buf := make([]byte, 10)
			_, err := src.ReadAt(buf, 500)
			assert.NoError(t, err)
			assert.Equal(t, sequential(1000)[500:510], buf)
		})
	}
	wg.Wait()
	assert.Equal(t, int64(1), mock.Reads())
}

func TestSourceReadError(t *testing.T) {
	t.Parallel()

	mock := testutil.NewMockByteSource(sequential(300))
	mock.FailFrom = 150
	c := New(WithBlockSize(100))
	src, err := c.Wrap(mock)
	require.NoError(t, err)

	buf := make([]byte, 200)
	n, err := src.ReadAt(buf, 0)
	require.ErrorIs(t, err, testutil.ErrInjected)
	assert.Equal(t, 100, n)
	assert.Equal(t, int64(100), c.SizeBytes(), "failed blocks are not cached")
}

func TestWrapNilSource(t *testing.T) {
	t.Parallel()

	_, err := New().Wrap(nil)
	require.Error(t, err)
}
