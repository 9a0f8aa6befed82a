//go:build !unix

package ziparchive

import "os"

func truncateFile(f *os.File, size int64) error {
	return f.Truncate(size)
}
