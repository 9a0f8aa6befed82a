package main

import (
	"cmp"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"slices"

	"github.com/meigma/ziparchive"
	"github.com/meigma/ziparchive/internal/pathutil"
)

type listedEntry struct {
	name string
	e    ziparchive.Entry
}

// writeListing prints one zipinfo-style line per entry, sorted by name.
// With totals set it also prints an archive header and a summary line.
func writeListing(w io.Writer, a *ziparchive.Archive, archiveName string, totals bool) error {
	cur, err := a.StartIteration(nil)
	if err != nil {
		return err
	}
	var entries []listedEntry
	for {
		e, name, err := cur.Next()
		if errors.Is(err, ziparchive.ErrIterationEnd) {
			break
		}
		if err != nil {
			return err
		}
		entries = append(entries, listedEntry{name: name, e: e})
	}
	slices.SortFunc(entries, func(x, y listedEntry) int { return cmp.Compare(x.name, y.name) })

	info := a.Info()
	if totals {
		if _, err := fmt.Fprintf(w, "Archive:  %s\nZip file size: %d bytes, number of entries: %d\n",
			archiveName, info.ArchiveSize, info.EntryCount); err != nil {
			return err
		}
	}

	var compressed, uncompressed uint64
	for _, le := range entries {
		compressed += le.e.CompressedSize
		uncompressed += le.e.UncompressedSize
		if _, err := fmt.Fprintln(w, formatEntry(le.name, le.e)); err != nil {
			return err
		}
	}

	if totals {
		_, err := fmt.Fprintf(w, "%d files, %d bytes uncompressed, %d bytes compressed:  %s\n",
			len(entries), uncompressed, compressed, ratio(compressed, uncompressed))
		return err
	}
	return nil
}

// formatEntry renders an entry the way "zipinfo -s" does:
// mode, version made by, host, text flag, size, method, time, name.
func formatEntry(name string, e ziparchive.Entry) string {
	mode := e.Mode()
	if pathutil.IsDir(name) {
		mode |= fs.ModeDir
	}
	version := e.VersionMadeBy & 0xff
	return fmt.Sprintf("%-10s %d.%d %s %9d %s %s %s %s",
		mode.String(),
		version/10, version%10,
		hostName(e.VersionMadeBy>>8),
		e.UncompressedSize,
		textFlag(e),
		methodName(e.Method),
		e.Modified().Format("06-Jan-02 15:04"),
		name,
	)
}

func hostName(host uint16) string {
	switch host {
	case 0:
		return "fat"
	case 3:
		return "unx"
	case 10:
		return "ntf"
	case 19:
		return "osx"
	default:
		return fmt.Sprintf("%3d", host)
	}
}

// textFlag returns "t" or "b" for the text attribute, followed by "x" when
// the local header carries an extra field and "-" otherwise.
func textFlag(e ziparchive.Entry) string {
	flag := "b"
	if e.IsText {
		flag = "t"
	}
	if e.ExtraFieldSize > 0 {
		return flag + "x"
	}
	return flag + "-"
}

func methodName(m ziparchive.Method) string {
	switch m {
	case ziparchive.Stored:
		return "stor"
	case ziparchive.Deflated:
		return "defN"
	default:
		return fmt.Sprintf("u%03d", uint16(m))
	}
}

func ratio(compressed, uncompressed uint64) string {
	if uncompressed == 0 {
		return "0.0%"
	}
	saved := 100 * (1 - float64(compressed)/float64(uncompressed))
	return fmt.Sprintf("%.1f%%", saved)
}
