package ziparchive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/meigma/ziparchive/internal/batch"
	"github.com/meigma/ziparchive/internal/pathutil"
)

// CopyOption configures CopyDir.
type CopyOption func(*copyConfig)

type copyConfig struct {
	overwrite     bool
	preserveMode  bool
	preserveTimes bool
	workers       int
}

// CopyWithOverwrite allows overwriting existing files.
// By default, existing files are skipped.
func CopyWithOverwrite(overwrite bool) CopyOption {
	return func(c *copyConfig) {
		c.overwrite = overwrite
	}
}

// CopyWithPreserveMode applies the UNIX permission bits stored in the archive.
// By default, files use umask defaults.
func CopyWithPreserveMode(preserve bool) CopyOption {
	return func(c *copyConfig) {
		c.preserveMode = preserve
	}
}

// CopyWithPreserveTimes applies the modification times stored in the archive.
// By default, files carry the time they were extracted.
func CopyWithPreserveTimes(preserve bool) CopyOption {
	return func(c *copyConfig) {
		c.preserveTimes = preserve
	}
}

// CopyWithWorkers sets the number of workers for parallel extraction.
// Values < 0 force serial processing. Zero uses automatic heuristics.
// Values > 0 force a specific worker count.
func CopyWithWorkers(n int) CopyOption {
	return func(c *copyConfig) {
		c.workers = n
	}
}

// CopyDir extracts every entry under the directory prefix into destDir,
// keeping the full entry names. If prefix is "" or ".", the whole archive
// is extracted.
//
// Files are written atomically using temp files and renames, and no file
// is created outside destDir: an entry whose name is absolute or climbs
// with ".." fails the copy with fs.ErrInvalid before anything is written.
//
// By default:
//   - Existing files are skipped (use CopyWithOverwrite to overwrite)
//   - File modes and times are not preserved (use CopyWithPreserveMode/Times)
func (a *Archive) CopyDir(destDir, prefix string, opts ...CopyOption) error {
	cfg := copyConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	var dirPrefix string
	if prefix != "" && prefix != "." {
		clean, ok := pathutil.Clean(prefix)
		if !ok {
			return fmt.Errorf("%w: prefix %q", fs.ErrInvalid, prefix)
		}
		dirPrefix = pathutil.DirPrefix(clean)
	}

	files, dirs, err := a.collectEntries(dirPrefix)
	if err != nil {
		return err
	}
	if len(files) == 0 && len(dirs) == 0 {
		return nil
	}

	sink, err := batch.NewFileSink(destDir,
		batch.WithOverwrite(cfg.overwrite),
		batch.WithPreserveMode(cfg.preserveMode),
		batch.WithPreserveTimes(cfg.preserveTimes),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	defer sink.Close()

	for _, dir := range dirs {
		if err := sink.Mkdir(dir); err != nil {
			return fmt.Errorf("%w: %w", ErrIO, err)
		}
	}

	var procOpts []batch.ProcessorOption
	if cfg.workers != 0 {
		procOpts = append(procOpts, batch.WithWorkers(cfg.workers))
	}
	proc := batch.NewProcessor(func(entry *batch.Entry, w io.Writer) error {
		return a.ExtractToWriter(entry.Zip, streamWriter{w})
	}, procOpts...)

	if err := proc.Process(context.Background(), files, sink); err != nil {
		var zerr *Error
		if errors.As(err, &zerr) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	return nil
}

// collectEntries resolves the entries under dirPrefix, split into files and
// directories, rejecting names that would leave the destination.
func (a *Archive) collectEntries(dirPrefix string) (files []*batch.Entry, dirs []string, err error) {
	c, err := a.StartIterationWithAffixes(dirPrefix, "")
	if err != nil {
		return nil, nil, err
	}
	for {
		e, name, err := c.Next()
		if errors.Is(err, ErrIterationEnd) {
			return files, dirs, nil
		}
		if err != nil {
			return nil, nil, err
		}
		clean, ok := pathutil.Clean(name)
		if !ok {
			return nil, nil, fmt.Errorf("%w: entry name %q", fs.ErrInvalid, name)
		}
		if pathutil.IsDir(name) {
			dirs = append(dirs, clean)
			continue
		}
		files = append(files, &batch.Entry{Name: clean, Zip: e})
	}
}
