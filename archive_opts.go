package ziparchive

import "log/slog"

// Option configures an Archive.
type Option func(*Archive)

// WithLogger sets the logger for diagnostics about malformed or suspicious
// archives. By default nothing is logged.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Archive) {
		a.logger = logger
	}
}

// WithDebugName sets the name attached to log records. Open uses the path.
func WithDebugName(name string) Option {
	return func(a *Archive) {
		a.debugName = name
	}
}

// WithVerifyCRC checks the CRC-32 of every extracted entry.
// Verification is disabled by default.
func WithVerifyCRC(enabled bool) Option {
	return func(a *Archive) {
		a.verifyCRC = enabled
	}
}

// WithMapArchive maps the whole file range into memory at open, so entries
// are served without copies. By default only the central directory is mapped
// and entry data is read with positional reads. It has no effect on memory
// and ByteSource archives.
func WithMapArchive(enabled bool) Option {
	return func(a *Archive) {
		a.mapArchive = enabled
	}
}

// WithPrefetch controls read-ahead hints to the kernel for the central
// directory and extracted entries. Hints are enabled by default.
func WithPrefetch(enabled bool) Option {
	return func(a *Archive) {
		a.prefetch = enabled
	}
}
