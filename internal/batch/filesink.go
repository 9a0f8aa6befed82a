package batch

import (
	"errors"
	"fmt"
	"io/fs"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
)

const (
	dirPerm  = 0o750
	filePerm = 0o666

	tempPrefix   = ".ziparchive-"
	tempAttempts = 8
)

// FileSink writes entries below a directory with atomic writes.
//
// Files are written to a temporary file in the same directory,
// then renamed to the final path on Commit. This ensures that
// partially written files are never visible at the final path.
// All paths are resolved through an os.Root, so no entry can
// escape the destination.
type FileSink struct {
	root          *os.Root
	overwrite     bool
	preserveMode  bool
	preserveTimes bool
}

// FileSinkOption configures a FileSink.
type FileSinkOption func(*FileSink)

// WithOverwrite allows overwriting existing files.
// By default, existing files are skipped.
func WithOverwrite(overwrite bool) FileSinkOption {
	return func(s *FileSink) {
		s.overwrite = overwrite
	}
}

// WithPreserveMode applies the permission bits recorded in the archive.
// By default, files are created with the umask defaults.
func WithPreserveMode(preserve bool) FileSinkOption {
	return func(s *FileSink) {
		s.preserveMode = preserve
	}
}

// WithPreserveTimes applies the modification times recorded in the archive.
// By default, files carry the time they were written.
func WithPreserveTimes(preserve bool) FileSinkOption {
	return func(s *FileSink) {
		s.preserveTimes = preserve
	}
}

// NewFileSink creates a FileSink writing below destDir, which is created
// if missing. The sink must be closed.
func NewFileSink(destDir string, opts ...FileSinkOption) (*FileSink, error) {
	if err := os.MkdirAll(destDir, dirPerm); err != nil {
		return nil, fmt.Errorf("create directory %s: %w", destDir, err)
	}
	root, err := os.OpenRoot(destDir)
	if err != nil {
		return nil, err
	}
	s := &FileSink{root: root}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close releases the destination directory.
func (s *FileSink) Close() error {
	return s.root.Close()
}

// Mkdir creates the directory name and its parents.
func (s *FileSink) Mkdir(name string) error {
	if err := s.root.MkdirAll(filepath.FromSlash(name), dirPerm); err != nil {
		return fmt.Errorf("create directory %s: %w", name, err)
	}
	return nil
}

// ShouldProcess returns false if the file already exists and overwrite is disabled.
func (s *FileSink) ShouldProcess(entry *Entry) bool {
	if s.overwrite {
		return true
	}
	_, err := s.root.Lstat(filepath.FromSlash(entry.Name))
	return errors.Is(err, fs.ErrNotExist)
}

// Writer returns a Committer that writes to a temp file and renames on Commit.
func (s *FileSink) Writer(entry *Entry) (Committer, error) {
	destPath := filepath.FromSlash(entry.Name)
	dir := filepath.Dir(destPath)
	if err := s.root.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("create directory %s: %w", dir, err)
	}

	var (
		tempPath string
		tempFile *os.File
		err      error
	)
	for range tempAttempts {
		tempPath = filepath.Join(dir, tempPrefix+strconv.FormatUint(rand.Uint64(), 36))
		tempFile, err = s.root.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm)
		if !errors.Is(err, fs.ErrExist) {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}

	return &fileCommitter{
		entry:    entry,
		destPath: destPath,
		tempPath: tempPath,
		tempFile: tempFile,
		sink:     s,
	}, nil
}

// fileCommitter writes to a temp file and renames on Commit.
type fileCommitter struct {
	entry    *Entry
	destPath string
	tempPath string
	tempFile *os.File
	sink     *FileSink
}

// Write implements io.Writer.
func (c *fileCommitter) Write(p []byte) (int, error) {
	return c.tempFile.Write(p)
}

// Commit closes the temp file, applies metadata, and renames to final path.
func (c *fileCommitter) Commit() error {
	root := c.sink.root
	if err := c.tempFile.Close(); err != nil {
		c.cleanup()
		return fmt.Errorf("close temp file: %w", err)
	}

	if c.sink.preserveMode {
		if err := root.Chmod(c.tempPath, c.entry.Zip.Mode().Perm()); err != nil {
			c.cleanup()
			return fmt.Errorf("chmod: %w", err)
		}
	}

	if c.sink.preserveTimes {
		mtime := c.entry.Zip.Modified()
		if err := root.Chtimes(c.tempPath, mtime, mtime); err != nil {
			c.cleanup()
			return fmt.Errorf("chtimes: %w", err)
		}
	}

	if err := root.Rename(c.tempPath, c.destPath); err != nil {
		c.cleanup()
		return fmt.Errorf("rename to %s: %w", c.entry.Name, err)
	}
	return nil
}

// Discard closes and removes the temp file.
func (c *fileCommitter) Discard() error {
	_ = c.tempFile.Close() //nolint:errcheck // we're cleaning up
	return c.sink.root.Remove(c.tempPath)
}

func (c *fileCommitter) cleanup() {
	_ = c.sink.root.Remove(c.tempPath) //nolint:errcheck // best-effort cleanup
}
