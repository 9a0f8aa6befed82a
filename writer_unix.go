//go:build unix

package ziparchive

import (
	"os"

	"golang.org/x/sys/unix"
)

// truncateFile sets the size of f to size. Block devices have a fixed size
// and are left alone.
func truncateFile(f *os.File, size int64) error {
	conn, err := f.SyscallConn()
	if err != nil {
		return err
	}
	var (
		st      unix.Stat_t
		statErr error
	)
	if err := conn.Control(func(fd uintptr) {
		statErr = unix.Fstat(int(fd), &st)
	}); err != nil {
		return err
	}
	if statErr != nil {
		return statErr
	}
	if st.Mode&unix.S_IFMT == unix.S_IFBLK {
		return nil
	}
	return f.Truncate(size)
}
