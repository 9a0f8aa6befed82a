// Package batch extracts many archive entries into a sink in parallel.
package batch

import (
	"context"
	"fmt"
	"io"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/meigma/ziparchive/internal/sizing"
	"github.com/meigma/ziparchive/internal/ziptype"
)

// parallelMinAvgBytes is the minimum average entry size to use parallel processing.
// Below this threshold, serial processing is more efficient due to reduced overhead.
const parallelMinAvgBytes = 64 << 10

// Entry is one archive member scheduled for extraction.
type Entry struct {
	// Name is the slash-separated path of the entry inside the archive,
	// relative to the destination.
	Name string

	// Zip is the resolved entry.
	Zip ziptype.Entry
}

// ExtractFunc writes the contents of entry to w.
type ExtractFunc func(entry *Entry, w io.Writer) error

// Sink receives extracted entries.
type Sink interface {
	// ShouldProcess reports whether entry needs to be extracted.
	ShouldProcess(entry *Entry) bool

	// Writer returns a destination for entry's contents.
	Writer(entry *Entry) (Committer, error)
}

// Committer is a pending output: it becomes visible on Commit and is
// thrown away on Discard.
type Committer interface {
	io.Writer
	Commit() error
	Discard() error
}

// Processor runs an ExtractFunc over a set of entries.
type Processor struct {
	extract ExtractFunc
	workers int // 0 = auto, <0 = serial, >0 = fixed count
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithWorkers sets the number of workers for parallel processing.
// Values < 0 force serial processing. Zero uses automatic heuristics.
// Values > 0 force a specific worker count.
func WithWorkers(n int) ProcessorOption {
	return func(p *Processor) {
		p.workers = n
	}
}

// NewProcessor creates a processor extracting entries with extract.
func NewProcessor(extract ExtractFunc, opts ...ProcessorOption) *Processor {
	p := &Processor{extract: extract}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process extracts every entry the sink accepts. Processing stops at the
// first error, which is returned; outputs that were not committed are
// discarded.
func (p *Processor) Process(ctx context.Context, entries []*Entry, sink Sink) error {
	toProcess := make([]*Entry, 0, len(entries))
	for _, entry := range entries {
		if sink.ShouldProcess(entry) {
			toProcess = append(toProcess, entry)
		}
	}
	if len(toProcess) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workerCount(toProcess))
	for _, entry := range toProcess {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return p.processEntry(entry, sink)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (p *Processor) processEntry(entry *Entry, sink Sink) error {
	w, err := sink.Writer(entry)
	if err != nil {
		return fmt.Errorf("batch: %s: %w", entry.Name, err)
	}
	if err := p.extract(entry, w); err != nil {
		_ = w.Discard() //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("batch: %s: %w", entry.Name, err)
	}
	if err := w.Commit(); err != nil {
		return fmt.Errorf("batch: %s: commit: %w", entry.Name, err)
	}
	return nil
}

// workerCount determines the number of workers to use for processing.
func (p *Processor) workerCount(entries []*Entry) int {
	if len(entries) < 2 || p.workers < 0 {
		return 1
	}

	workers := p.workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
		if workers < 2 {
			return 1
		}
		// Use size-based heuristic: only parallelize for larger entries
		var total uint64
		for _, entry := range entries {
			next, ok := sizing.AddUint64(total, entry.Zip.UncompressedSize)
			if !ok {
				total = ^uint64(0)
				break
			}
			total = next
		}
		if total/uint64(len(entries)) < parallelMinAvgBytes {
			return 1
		}
	}

	return max(1, min(workers, len(entries)))
}
