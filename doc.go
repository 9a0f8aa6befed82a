// Package ziparchive reads ZIP archives with random access.
//
// An [Archive] is opened over a file, a file range, a byte slice, or any
// [ByteSource] such as an HTTP range reader. Opening locates the end of
// central directory record (and its ZIP64 counterparts), validates every
// central directory record and builds an index of entry names. No entry data
// is read until it is asked for.
//
// Entries are resolved on demand by cross-checking the central directory
// record against the entry's local file header. Only stored and deflated
// entries are supported; archives are never written.
//
// # Quick Start
//
// Open an archive and read one entry into memory:
//
//	a, err := ziparchive.Open("app.zip")
//	if err != nil {
//	    return err
//	}
//	defer a.Close()
//
//	e, err := a.FindEntry("META-INF/MANIFEST.MF")
//	if err != nil {
//	    return err
//	}
//	buf := make([]byte, e.UncompressedSize)
//	if err := a.ExtractToMemory(e, buf); err != nil {
//	    return err
//	}
//
// Iterate entries by prefix and suffix:
//
//	c, err := a.StartIterationWithAffixes("lib/", ".so")
//	if err != nil {
//	    return err
//	}
//	for {
//	    e, name, err := c.Next()
//	    if errors.Is(err, ziparchive.ErrIterationEnd) {
//	        break
//	    }
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Println(name, e.UncompressedSize)
//	}
//
// # Errors
//
// Every error carries a stable [ErrorCode]. Use [errors.Is] with the sentinel
// errors or [CodeOf] to recover the code.
//
// # Concurrency
//
// FindEntry, the Extract methods and independent cursors may be used from
// multiple goroutines. A [Cursor] belongs to one goroutine. Close must not
// race with other operations.
package ziparchive
