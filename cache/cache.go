// Package cache provides an in-memory block cache for archive byte sources.
//
// Remote sources such as the HTTP range source are slow to read in small
// pieces. Wrapping them splits reads into fixed-size blocks that are fetched
// once and kept in memory under a byte budget, so repeated central
// directory and local header reads hit memory instead of the network.
//
//	c := cache.New(cache.WithMaxBytes(64 << 20))
//	src, err := c.Wrap(remote)
//	if err != nil {
//		return err
//	}
//	a, err := ziparchive.OpenSource(src)
package cache

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

const (
	// DefaultBlockSize is the default block size for wrapped sources.
	DefaultBlockSize int64 = 64 << 10

	// DefaultMaxBlocksPerRead is the default number of blocks a single read
	// may span before it bypasses the cache.
	DefaultMaxBlocksPerRead = 4
)

// ByteSource is a random access source with a known size.
type ByteSource interface {
	io.ReaderAt
	Size() int64
}

// RangeReader is implemented by sources that can stream a byte range in one
// request. Blocks are fetched through it when available.
type RangeReader interface {
	ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error)
}

// sourceIdentifier is implemented by sources with a stable identity, such as
// a URL plus ETag. Sources without one get a per-wrap identity.
type sourceIdentifier interface {
	SourceID() string
}

// BlockCache keeps fixed-size blocks of wrapped sources in memory and evicts
// the least recently used blocks once the byte budget is exceeded. It is safe
// for concurrent use.
type BlockCache struct {
	maxBytes         int64
	blockSize        int64
	maxBlocksPerRead int

	mu     sync.Mutex
	bytes  int64
	lru    *list.List // front is most recently used
	blocks map[blockKey]*list.Element

	fetchGroup singleflight.Group
	nextID     atomic.Uint64
	hits       atomic.Int64
	misses     atomic.Int64
}

type blockKey struct {
	source string
	index  int64
}

type block struct {
	key  blockKey
	data []byte
}

// Option configures a BlockCache.
type Option func(*BlockCache)

// WithMaxBytes sets the memory budget for cached blocks.
// Values <= 0 disable the limit.
func WithMaxBytes(n int64) Option {
	return func(c *BlockCache) {
		c.maxBytes = n
	}
}

// WithBlockSize sets the block size used by wrapped sources.
// Values <= 0 keep DefaultBlockSize.
func WithBlockSize(n int64) Option {
	return func(c *BlockCache) {
		if n > 0 {
			c.blockSize = n
		}
	}
}

// WithMaxBlocksPerRead sets how many blocks a read may span before it goes
// straight to the source. Use 0 to always cache.
func WithMaxBlocksPerRead(n int) Option {
	return func(c *BlockCache) {
		if n >= 0 {
			c.maxBlocksPerRead = n
		}
	}
}

// New creates an empty block cache.
func New(opts ...Option) *BlockCache {
	c := &BlockCache{
		blockSize:        DefaultBlockSize,
		maxBlocksPerRead: DefaultMaxBlocksPerRead,
		lru:              list.New(),
		blocks:           make(map[blockKey]*list.Element),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Wrap returns a source that serves reads of src through the cache. Closing
// the returned source closes src when it implements io.Closer.
func (c *BlockCache) Wrap(src ByteSource) (*Source, error) {
	if src == nil {
		return nil, errors.New("block cache: source is nil")
	}
	if c.blockSize > math.MaxInt32 {
		return nil, errors.New("block cache: block size too large")
	}
	var id string
	if ider, ok := src.(sourceIdentifier); ok {
		id = ider.SourceID()
	}
	if id == "" {
		id = "wrap:" + strconv.FormatUint(c.nextID.Add(1), 10)
	}
	return &Source{
		src:              src,
		cache:            c,
		sourceID:         id,
		blockSize:        c.blockSize,
		maxBlocksPerRead: c.maxBlocksPerRead,
	}, nil
}

// MaxBytes returns the configured budget (0 = unlimited).
func (c *BlockCache) MaxBytes() int64 {
	return c.maxBytes
}

// SizeBytes returns the number of bytes currently cached.
func (c *BlockCache) SizeBytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bytes
}

// Stats returns the number of block lookups served from memory and the
// number that had to be fetched.
func (c *BlockCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Prune evicts least recently used blocks until the cache holds at most
// targetBytes. It returns the number of bytes freed.
func (c *BlockCache) Prune(targetBytes int64) int64 {
	targetBytes = max(targetBytes, 0)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictLocked(targetBytes)
}

func (c *BlockCache) evictLocked(targetBytes int64) int64 {
	var freed int64
	for c.bytes > targetBytes {
		el := c.lru.Back()
		if el == nil {
			break
		}
		b := c.lru.Remove(el).(*block) //nolint:errcheck // list only holds *block
		delete(c.blocks, b.key)
		c.bytes -= int64(len(b.data))
		freed += int64(len(b.data))
	}
	return freed
}

func (c *BlockCache) lookup(key blockKey) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.blocks[key]
	if !ok {
		return nil, false
	}
	c.lru.MoveToFront(el)
	return el.Value.(*block).data, true //nolint:errcheck // list only holds *block
}

func (c *BlockCache) store(key blockKey, data []byte) {
	size := int64(len(data))
	if size == 0 || (c.maxBytes > 0 && size > c.maxBytes) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.blocks[key]; ok {
		return
	}
	if c.maxBytes > 0 {
		c.evictLocked(c.maxBytes - size)
	}
	c.blocks[key] = c.lru.PushFront(&block{key: key, data: data})
	c.bytes += size
}

func (c *BlockCache) getBlock(key blockKey, blockLen int64, fetch func() ([]byte, error)) ([]byte, error) {
	if data, ok := c.lookup(key); ok && int64(len(data)) == blockLen {
		c.hits.Add(1)
		return data, nil
	}
	flightKey := key.source + "#" + strconv.FormatInt(key.index, 10)
	result, err, _ := c.fetchGroup.Do(flightKey, func() (any, error) {
		if data, ok := c.lookup(key); ok && int64(len(data)) == blockLen {
			c.hits.Add(1)
			return data, nil
		}
		c.misses.Add(1)
		data, err := fetch()
		if err != nil {
			return nil, err
		}
		if int64(len(data)) != blockLen {
			return nil, io.ErrUnexpectedEOF
		}
		c.store(key, data)
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil //nolint:errcheck // type assertion always succeeds when err is nil
}

// Source is a ByteSource whose reads are served in blocks from a BlockCache.
type Source struct {
	src              ByteSource
	cache            *BlockCache
	sourceID         string
	blockSize        int64
	maxBlocksPerRead int
}

// ReadAt implements io.ReaderAt.
func (s *Source) ReadAt(p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if off < 0 {
		return 0, fmt.Errorf("read at %d: negative offset", off)
	}
	size := s.src.Size()
	if off >= size {
		return 0, io.EOF
	}

	expected := min(int64(len(p)), size-off)
	startBlock := off / s.blockSize
	endBlock := (off + expected - 1) / s.blockSize

	if s.maxBlocksPerRead > 0 && endBlock-startBlock+1 > int64(s.maxBlocksPerRead) {
		return s.src.ReadAt(p, off)
	}

	var n int64
	for index := startBlock; index <= endBlock; index++ {
		blockStart := index * s.blockSize
		blockEnd := min(blockStart+s.blockSize, size)

		data, err := s.cache.getBlock(blockKey{source: s.sourceID, index: index}, blockEnd-blockStart, func() ([]byte, error) {
			return s.fetch(blockStart, blockEnd-blockStart)
		})
		if err != nil {
			return int(n), err
		}

		copyStart := max(off, blockStart)
		copyEnd := min(off+expected, blockEnd)
		n += int64(copy(p[copyStart-off:copyEnd-off], data[copyStart-blockStart:]))
	}

	if expected < int64(len(p)) {
		return int(n), io.EOF
	}
	return int(n), nil
}

// Size returns the size of the wrapped source.
func (s *Source) Size() int64 {
	return s.src.Size()
}

// SourceID returns the identity blocks are cached under.
func (s *Source) SourceID() string {
	return s.sourceID
}

// Close closes the wrapped source when it implements io.Closer. Cached
// blocks stay in the cache.
func (s *Source) Close() error {
	if c, ok := s.src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (s *Source) fetch(off, length int64) ([]byte, error) {
	if rr, ok := s.src.(RangeReader); ok {
		rc, err := rr.ReadRange(context.Background(), off, length)
		if err != nil {
			return nil, err
		}
		defer rc.Close()

		buf := make([]byte, length)
		if _, err := io.ReadFull(rc, buf); err != nil {
			return nil, err
		}
		return buf, nil
	}

	buf := make([]byte, length)
	n, err := s.src.ReadAt(buf, off)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if int64(n) != length {
		return nil, io.ErrUnexpectedEOF
	}
	return buf, nil
}
