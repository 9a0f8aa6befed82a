package ziparchive

import (
	"fmt"
	"strings"

	"github.com/meigma/ziparchive/internal/index"
	"github.com/meigma/ziparchive/internal/wire"
)

// Cursor walks the entries of an archive. Create one with StartIteration.
//
// The order of entries is unspecified. A Cursor must not be shared between
// goroutines, but any number of cursors may walk the same archive.
type Cursor struct {
	a     *Archive
	pos   index.Position
	match func(name string) bool
}

// StartIteration returns a cursor over the entries whose name satisfies
// match. A nil match selects every entry.
func (a *Archive) StartIteration(match func(name string) bool) (*Cursor, error) {
	if a.closed.Load() {
		return nil, fmt.Errorf("%w: archive is closed", ErrInvalidHandle)
	}
	return &Cursor{a: a, match: match}, nil
}

// StartIterationWithAffixes returns a cursor over the entries whose name
// starts with prefix and ends with suffix. Empty affixes match anything.
func (a *Archive) StartIterationWithAffixes(prefix, suffix string) (*Cursor, error) {
	if len(prefix) > wire.MaxNameLen || len(suffix) > wire.MaxNameLen {
		return nil, fmt.Errorf("%w: prefix of %d or suffix of %d bytes", ErrInvalidEntryName, len(prefix), len(suffix))
	}
	var match func(string) bool
	if prefix != "" || suffix != "" {
		match = func(name string) bool {
			return strings.HasPrefix(name, prefix) && strings.HasSuffix(name, suffix)
		}
	}
	return a.StartIteration(match)
}

// Next returns the next matching entry and its name. It returns
// ErrIterationEnd once every entry was visited, and keeps doing so until
// Reset is called.
func (c *Cursor) Next() (Entry, string, error) {
	a := c.a
	if a.closed.Load() {
		return Entry{}, "", fmt.Errorf("%w: archive is closed", ErrInvalidHandle)
	}

	var (
		e    Entry
		name string
	)
	err := a.guard(func() error {
		for {
			raw, offset, ok := a.idx.Next(&c.pos)
			if !ok {
				return ErrIterationEnd
			}
			// Copied so the name outlives Close.
			candidate := string(raw)
			if c.match != nil && !c.match(candidate) {
				continue
			}
			var err error
			e, err = a.resolver.Resolve(raw, offset)
			if err != nil {
				return fmt.Errorf("entry %q: %w", candidate, err)
			}
			name = candidate
			return nil
		}
	})
	if err != nil {
		return Entry{}, "", err
	}
	return e, name, nil
}

// Next32 is Next for callers limited to 32-bit sizes.
func (c *Cursor) Next32() (Entry32, string, error) {
	e, name, err := c.Next()
	if err != nil {
		return Entry32{}, "", err
	}
	e32, err := e.Narrow()
	if err != nil {
		return Entry32{}, name, err
	}
	return e32, name, nil
}

// Reset rewinds the cursor to the first entry.
func (c *Cursor) Reset() {
	c.pos.Reset()
}
