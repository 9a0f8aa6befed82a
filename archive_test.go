package ziparchive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/ziparchive/internal/testutil"
)

func writeTemp(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.zip")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

// stdZip writes files with archive/zip. Deflated entries written this way
// carry data descriptors.
func stdZip(t *testing.T, method uint16, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: method})
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func extractString(t *testing.T, a *Archive, name string) string {
	t.Helper()
	e, err := a.FindEntry(name)
	require.NoError(t, err)
	buf := make([]byte, e.UncompressedSize)
	require.NoError(t, a.ExtractToMemory(e, buf))
	return string(buf)
}

func sampleEntries() []testutil.TestEntry {
	return []testutil.TestEntry{
		{Name: "a.txt", Data: []byte("hello"), Method: testutil.MethodStored},
		{Name: "dir/b.txt", Data: bytes.Repeat([]byte("compressible "), 500), Method: testutil.MethodDeflated},
		{Name: "empty", Method: testutil.MethodStored},
	}
}

// openers returns every way of opening data.
func openers(t *testing.T, data []byte) map[string]func(...Option) (*Archive, error) {
	t.Helper()
	path := writeTemp(t, data)
	return map[string]func(...Option) (*Archive, error){
		"memory": func(opts ...Option) (*Archive, error) { return OpenMemory(data, opts...) },
		"path":   func(opts ...Option) (*Archive, error) { return Open(path, opts...) },
		"mapped": func(opts ...Option) (*Archive, error) {
			return Open(path, append(opts, WithMapArchive(true))...)
		},
		"source": func(opts ...Option) (*Archive, error) {
			return OpenSource(testutil.NewMockByteSource(data), opts...)
		},
	}
}

func TestOpenAndExtract(t *testing.T) {
	t.Parallel()

	data := testutil.BuildZip(t, sampleEntries()...)
	for name, open := range openers(t, data) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			a, err := open(WithVerifyCRC(true))
			require.NoError(t, err)
			t.Cleanup(func() { _ = a.Close() })

			info := a.Info()
			assert.Equal(t, int64(len(data)), info.ArchiveSize)
			assert.Equal(t, uint64(3), info.EntryCount)
			assert.False(t, info.Zip64)

			for _, want := range sampleEntries() {
				assert.Equal(t, string(want.Data), extractString(t, a, want.Name), want.Name)
			}
		})
	}
}

func TestFindEntryFields(t *testing.T) {
	t.Parallel()

	mod := time.Date(2020, time.February, 29, 13, 14, 16, 0, time.UTC)
	data := testutil.BuildZip(t,
		testutil.TestEntry{
			Name:          "bin/tool",
			Data:          []byte("#!/bin/sh\n"),
			Method:        testutil.MethodDeflated,
			ModTime:       mod,
			ExternalAttrs: 0o100755 << 16,
			InternalAttrs: 1,
		},
		testutil.TestEntry{
			Name:          "dos.txt",
			Data:          []byte("x"),
			VersionMadeBy: 20,
			ExternalAttrs: 0x20,
		},
	)

	a, err := OpenMemory(data)
	require.NoError(t, err)
	defer a.Close()

	e, err := a.FindEntry("bin/tool")
	require.NoError(t, err)
	assert.Equal(t, Deflated, e.Method)
	assert.Equal(t, uint64(10), e.UncompressedSize)
	assert.Equal(t, mod, e.Modified())
	assert.Equal(t, uint16(0o100755), e.UnixMode)
	assert.Equal(t, fs.FileMode(0o755), e.Mode())
	assert.True(t, e.FromUnix())
	assert.True(t, e.IsText)
	assert.False(t, e.HasDataDescriptor)
	assert.Equal(t, uint64(0), e.LocalHeaderOffset)
	assert.Equal(t, uint64(30+len("bin/tool")), e.DataOffset)

	dos, err := a.FindEntry("dos.txt")
	require.NoError(t, err)
	assert.Equal(t, uint16(0o777), dos.UnixMode)
	assert.False(t, dos.FromUnix())
	assert.False(t, dos.IsText)

	e32, err := a.FindEntry32("dos.txt")
	require.NoError(t, err)
	assert.Equal(t, uint32(1), e32.UncompressedSize32)
}

func TestFindEntryErrors(t *testing.T) {
	t.Parallel()

	a, err := OpenMemory(testutil.BuildZip(t, sampleEntries()...))
	require.NoError(t, err)
	// Subtests run after this function returns.
	t.Cleanup(func() { _ = a.Close() })

	tests := []struct {
		name  string
		entry string
		want  error
	}{
		{name: "empty name", entry: "", want: ErrInvalidEntryName},
		{name: "name too long", entry: strings.Repeat("a", 0x10000), want: ErrInvalidEntryName},
		{name: "missing", entry: "nope.txt", want: ErrEntryNotFound},
		{name: "prefix of existing", entry: "a.tx", want: ErrEntryNotFound},
		{name: "directory without slash", entry: "dir", want: ErrEntryNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := a.FindEntry(tt.entry)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestOpenRejectsMalformedArchives(t *testing.T) {
	t.Parallel()

	two := []testutil.TestEntry{
		{Name: "a.txt", Data: []byte("first")},
		{Name: "b.txt", Data: []byte("second")},
	}

	tests := []struct {
		name  string
		build func(t *testing.T) []byte
		want  error
	}{
		{
			name:  "shorter than an end record",
			build: func(*testing.T) []byte { return []byte("PK\x05\x06") },
			want:  ErrInvalidFile,
		},
		{
			name:  "no end record",
			build: func(*testing.T) []byte { return bytes.Repeat([]byte{0xaa}, 1024) },
			want:  ErrInvalidFile,
		},
		{
			name: "trailing bytes after the comment",
			build: func(t *testing.T) []byte {
				return append(testutil.BuildZip(t, two...), "junk"...)
			},
			want: ErrInvalidFile,
		},
		{
			name: "empty archive",
			build: func(t *testing.T) []byte {
				return stdZip(t, zip.Store, nil)
			},
			want: ErrEmptyArchive,
		},
		{
			name: "duplicate names",
			build: func(t *testing.T) []byte {
				return testutil.BuildZip(t,
					testutil.TestEntry{Name: "same", Data: []byte("1")},
					testutil.TestEntry{Name: "same", Data: []byte("2")},
				)
			},
			want: ErrDuplicateEntry,
		},
		{
			name: "central directory overlaps end record",
			build: func(t *testing.T) []byte {
				l := testutil.BuildArchive(t, testutil.TestArchive{Entries: two})
				testutil.PutUint32(l.Data, l.EOCDOffset+16, uint32(l.CDOffset+8))
				return l.Data
			},
			want: ErrInvalidOffset,
		},
		{
			name: "bad central directory signature",
			build: func(t *testing.T) []byte {
				l := testutil.BuildArchive(t, testutil.TestArchive{Entries: two})
				testutil.PutUint32(l.Data, l.Central["b.txt"], 0x12345678)
				return l.Data
			},
			want: ErrInvalidFile,
		},
		{
			name: "local header offset inside the central directory",
			build: func(t *testing.T) []byte {
				l := testutil.BuildArchive(t, testutil.TestArchive{Entries: two})
				testutil.PutUint32(l.Data, l.Central["b.txt"]+42, uint32(l.CDOffset))
				return l.Data
			},
			want: ErrInvalidFile,
		},
		{
			name: "name length runs past the central directory",
			build: func(t *testing.T) []byte {
				l := testutil.BuildArchive(t, testutil.TestArchive{Entries: two})
				testutil.PutUint16(l.Data, l.Central["b.txt"]+28, 0x7fff)
				return l.Data
			},
			want: ErrInvalidEntryName,
		},
		{
			name: "name is not utf-8",
			build: func(t *testing.T) []byte {
				return testutil.BuildZip(t, testutil.TestEntry{Name: "bad\xffname", Data: []byte("x")})
			},
			want: ErrInvalidEntryName,
		},
		{
			name: "name contains nul",
			build: func(t *testing.T) []byte {
				return testutil.BuildZip(t, testutil.TestEntry{Name: "bad\x00name", Data: []byte("x")})
			},
			want: ErrInvalidEntryName,
		},
		{
			name: "first entry is not a local header",
			build: func(t *testing.T) []byte {
				l := testutil.BuildArchive(t, testutil.TestArchive{Entries: two})
				testutil.PutUint32(l.Data, 0, 0x08074b50)
				return l.Data
			},
			want: ErrInvalidFile,
		},
		{
			name: "more records declared than present",
			build: func(t *testing.T) []byte {
				l := testutil.BuildArchive(t, testutil.TestArchive{Entries: two})
				testutil.PutUint16(l.Data, l.EOCDOffset+8, 3)
				testutil.PutUint16(l.Data, l.EOCDOffset+10, 3)
				return l.Data
			},
			want: ErrInvalidFile,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := OpenMemory(tt.build(t))
			require.ErrorIs(t, err, tt.want)
			assert.Equal(t, CodeOf(tt.want), CodeOf(err))
		})
	}
}

func TestOpenAcceptsArchiveComment(t *testing.T) {
	t.Parallel()

	comment := strings.Repeat("c", 0xfffe)
	l := testutil.BuildArchive(t, testutil.TestArchive{
		Entries: sampleEntries(),
		Comment: comment,
	})

	a, err := OpenMemory(l.Data)
	require.NoError(t, err)
	defer a.Close()
	assert.Equal(t, "hello", extractString(t, a, "a.txt"))
}

func TestResolveRejectsInconsistentHeaders(t *testing.T) {
	t.Parallel()

	entries := []testutil.TestEntry{
		{Name: "a.txt", Data: []byte("first entry")},
		{Name: "b.txt", Data: []byte("second entry")},
	}

	tests := []struct {
		name  string
		patch func(l testutil.Layout)
		want  error
	}{
		{
			name: "local name differs",
			patch: func(l testutil.Layout) {
				l.Data[l.Local["b.txt"]+30] = 'c'
			},
			want: ErrInconsistentInformation,
		},
		{
			name: "local name length differs",
			patch: func(l testutil.Layout) {
				testutil.PutUint16(l.Data, l.Local["b.txt"]+26, 4)
			},
			want: ErrInconsistentInformation,
		},
		{
			name: "local sizes differ",
			patch: func(l testutil.Layout) {
				testutil.PutUint32(l.Data, l.Local["b.txt"]+18, 3)
			},
			want: ErrInconsistentInformation,
		},
		{
			name: "local crc differs",
			patch: func(l testutil.Layout) {
				testutil.PutUint32(l.Data, l.Local["b.txt"]+14, 0xdeadbeef)
			},
			want: ErrInconsistentInformation,
		},
		{
			name: "no local header signature",
			patch: func(l testutil.Layout) {
				testutil.PutUint32(l.Data, l.Local["b.txt"], 0)
			},
			want: ErrInvalidOffset,
		},
		{
			name: "data runs into the central directory",
			patch: func(l testutil.Layout) {
				testutil.PutUint32(l.Data, l.Local["b.txt"]+18, 1<<20)
				testutil.PutUint32(l.Data, l.Local["b.txt"]+22, 1<<20)
				testutil.PutUint32(l.Data, l.Central["b.txt"]+20, 1<<20)
				testutil.PutUint32(l.Data, l.Central["b.txt"]+24, 1<<20)
			},
			want: ErrInvalidOffset,
		},
		{
			name: "local extra runs into the central directory",
			patch: func(l testutil.Layout) {
				testutil.PutUint16(l.Data, l.Local["b.txt"]+28, 0xffff)
			},
			want: ErrInvalidOffset,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			l := testutil.BuildArchive(t, testutil.TestArchive{Entries: entries})
			tt.patch(l)

			a, err := OpenMemory(l.Data)
			require.NoError(t, err)
			defer a.Close()

			_, err = a.FindEntry("b.txt")
			require.ErrorIs(t, err, tt.want)

			// The other entry is unaffected.
			assert.Equal(t, "first entry", extractString(t, a, "a.txt"))
		})
	}
}

func TestDataDescriptorEntries(t *testing.T) {
	t.Parallel()

	content := strings.Repeat("described ", 300)
	entries := []testutil.TestEntry{
		{Name: "stored", Data: []byte(content), DataDescriptor: true},
		{Name: "deflated", Data: []byte(content), Method: testutil.MethodDeflated, DataDescriptor: true},
	}

	t.Run("valid descriptors", func(t *testing.T) {
		t.Parallel()
		a, err := OpenMemory(testutil.BuildZip(t, entries...))
		require.NoError(t, err)
		defer a.Close()

		for _, e := range entries {
			entry, err := a.FindEntry(e.Name)
			require.NoError(t, err)
			assert.True(t, entry.HasDataDescriptor)
			assert.Equal(t, content, extractString(t, a, e.Name))
		}
	})

	t.Run("descriptor disagrees", func(t *testing.T) {
		t.Parallel()
		l := testutil.BuildArchive(t, testutil.TestArchive{Entries: entries})
		// The descriptor of the first entry follows its data: signature then crc.
		ddOffset := l.DataStart["stored"] + len(content)
		testutil.PutUint32(l.Data, ddOffset+4, 0x0badf00d)

		a, err := OpenMemory(l.Data)
		require.NoError(t, err)
		defer a.Close()

		e, err := a.FindEntry("stored")
		require.NoError(t, err)
		err = a.ExtractToMemory(e, make([]byte, e.UncompressedSize))
		require.ErrorIs(t, err, ErrInconsistentInformation)
	})

	t.Run("archive/zip streaming writer", func(t *testing.T) {
		t.Parallel()
		data := stdZip(t, zip.Deflate, map[string]string{
			"one.txt": content,
			"two.txt": "short",
		})
		a, err := OpenMemory(data, WithVerifyCRC(true))
		require.NoError(t, err)
		defer a.Close()

		e, err := a.FindEntry("one.txt")
		require.NoError(t, err)
		assert.True(t, e.HasDataDescriptor)
		assert.Equal(t, content, extractString(t, a, "one.txt"))
		assert.Equal(t, "short", extractString(t, a, "two.txt"))
	})
}

func TestZip64(t *testing.T) {
	t.Parallel()

	data := bytes.Repeat([]byte("zip64 "), 1000)
	l := testutil.BuildArchive(t, testutil.TestArchive{
		Entries: []testutil.TestEntry{
			{Name: "stored", Data: data, Zip64: true},
			{Name: "deflated", Data: data, Method: testutil.MethodDeflated, Zip64: true},
		},
		Zip64EOCD: true,
	})

	a, err := OpenMemory(l.Data, WithVerifyCRC(true))
	require.NoError(t, err)
	defer a.Close()

	info := a.Info()
	assert.True(t, info.Zip64)
	assert.Equal(t, uint64(2), info.EntryCount)
	assert.Equal(t, uint64(l.CDOffset), info.CentralDirectoryOffset)

	e, err := a.FindEntry("deflated")
	require.NoError(t, err)
	assert.True(t, e.Zip64FormatSize)
	assert.Equal(t, uint64(len(data)), e.UncompressedSize)
	assert.Equal(t, string(data), extractString(t, a, "deflated"))
	assert.Equal(t, string(data), extractString(t, a, "stored"))
}

func TestZip64RecordErrors(t *testing.T) {
	t.Parallel()

	build := func(t *testing.T) testutil.Layout {
		return testutil.BuildArchive(t, testutil.TestArchive{
			Entries:   []testutil.TestEntry{{Name: "a", Data: []byte("a")}},
			Zip64EOCD: true,
		})
	}

	tests := []struct {
		name  string
		patch func(l testutil.Layout)
		want  error
	}{
		{
			name: "locator signature",
			patch: func(l testutil.Layout) {
				testutil.PutUint32(l.Data, l.EOCDOffset-20, 0)
			},
			want: ErrInvalidFile,
		},
		{
			name: "record offset after locator",
			patch: func(l testutil.Layout) {
				testutil.PutUint32(l.Data, l.EOCDOffset-20+8, uint32(l.EOCDOffset))
			},
			want: ErrInvalidOffset,
		},
		{
			name: "record signature",
			patch: func(l testutil.Layout) {
				testutil.PutUint32(l.Data, l.EOCDOffset-20-56, 0)
			},
			want: ErrInvalidFile,
		},
		{
			name: "central directory overlaps record",
			patch: func(l testutil.Layout) {
				testutil.PutUint32(l.Data, l.EOCDOffset-20-56+48, uint32(l.EOCDOffset))
			},
			want: ErrInvalidOffset,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			l := build(t)
			tt.patch(l)
			_, err := OpenMemory(l.Data)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestManyEntriesUseSortedIndex(t *testing.T) {
	if testing.Short() {
		t.Skip("builds a 70000 entry archive")
	}
	t.Parallel()

	const n = 70000
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for i := range n {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: fmt.Sprintf("f/%05d", i), Method: zip.Store})
		require.NoError(t, err)
		_, err = fmt.Fprintf(w, "%d", i)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	a, err := OpenMemory(buf.Bytes())
	require.NoError(t, err)
	defer a.Close()

	info := a.Info()
	assert.True(t, info.Zip64)
	assert.Equal(t, uint64(n), info.EntryCount)

	for _, i := range []int{0, 1, 65535, 65536, n - 1} {
		assert.Equal(t, fmt.Sprint(i), extractString(t, a, fmt.Sprintf("f/%05d", i)))
	}

	c, err := a.StartIteration(nil)
	require.NoError(t, err)
	count := 0
	for {
		_, _, err := c.Next()
		if err != nil {
			require.ErrorIs(t, err, ErrIterationEnd)
			break
		}
		count++
	}
	assert.Equal(t, n, count)
}

func TestClosedArchive(t *testing.T) {
	t.Parallel()

	a, err := OpenMemory(testutil.BuildZip(t, sampleEntries()...))
	require.NoError(t, err)

	e, err := a.FindEntry("a.txt")
	require.NoError(t, err)
	c, err := a.StartIteration(nil)
	require.NoError(t, err)

	require.NoError(t, a.Close())
	require.NoError(t, a.Close())

	_, err = a.FindEntry("a.txt")
	require.ErrorIs(t, err, ErrInvalidHandle)
	_, err = a.StartIteration(nil)
	require.ErrorIs(t, err, ErrInvalidHandle)
	_, _, err = c.Next()
	require.ErrorIs(t, err, ErrInvalidHandle)
	err = a.ExtractToMemory(e, make([]byte, 5))
	require.ErrorIs(t, err, ErrInvalidHandle)
	_, err = a.EntryReader(e).ReadAt(make([]byte, 1), 0)
	require.ErrorIs(t, err, ErrInvalidHandle)
}

func TestOpenFileOwnership(t *testing.T) {
	t.Parallel()

	path := writeTemp(t, testutil.BuildZip(t, sampleEntries()...))

	t.Run("borrowed file stays open", func(t *testing.T) {
		t.Parallel()
		f, err := os.Open(path)
		require.NoError(t, err)
		defer f.Close()

		a, err := OpenFile(f, false)
		require.NoError(t, err)
		assert.Same(t, f, a.File())
		assert.Equal(t, int64(0), a.FileOffset())
		require.NoError(t, a.Close())

		_, err = f.Stat()
		require.NoError(t, err)
	})

	t.Run("owned file is closed", func(t *testing.T) {
		t.Parallel()
		f, err := os.Open(path)
		require.NoError(t, err)

		a, err := OpenFile(f, true)
		require.NoError(t, err)
		require.NoError(t, a.Close())

		_, err = f.Stat()
		require.ErrorIs(t, err, os.ErrClosed)
	})

	t.Run("owned file is closed when open fails", func(t *testing.T) {
		t.Parallel()
		bad := writeTemp(t, []byte("not a zip archive at all, just some bytes"))
		f, err := os.Open(bad)
		require.NoError(t, err)

		_, err = OpenFile(f, true)
		require.ErrorIs(t, err, ErrInvalidFile)

		_, err = f.Stat()
		require.ErrorIs(t, err, os.ErrClosed)
	})

	t.Run("memory archive has no file", func(t *testing.T) {
		t.Parallel()
		a, err := OpenMemory(testutil.BuildZip(t, sampleEntries()...))
		require.NoError(t, err)
		defer a.Close()
		assert.Nil(t, a.File())
		assert.Equal(t, int64(0), a.FileOffset())
	})
}

func TestOpenFileRange(t *testing.T) {
	t.Parallel()

	archive := testutil.BuildZip(t, sampleEntries()...)
	prefix := bytes.Repeat([]byte{'P'}, 100)
	suffix := bytes.Repeat([]byte{'S'}, 50)
	path := writeTemp(t, bytes.Join([][]byte{prefix, archive, suffix}, nil))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	for _, mapped := range []bool{false, true} {
		a, err := OpenFileRange(f, int64(len(prefix)), int64(len(archive)), false, WithMapArchive(mapped))
		require.NoError(t, err)
		assert.Equal(t, int64(len(prefix)), a.FileOffset())
		assert.Equal(t, int64(len(archive)), a.Info().ArchiveSize)
		assert.Equal(t, "hello", extractString(t, a, "a.txt"))
		require.NoError(t, a.Close())
	}

	_, err = OpenFileRange(f, -1, 10, false)
	require.ErrorIs(t, err, ErrIO)
	_, err = OpenFileRange(f, 0, -10, false)
	require.ErrorIs(t, err, ErrIO)

	// The whole file does not end with an end record.
	_, err = OpenFile(f, false)
	require.ErrorIs(t, err, ErrInvalidFile)
}

func TestOpenMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Open(filepath.Join(t.TempDir(), "missing.zip"))
	require.ErrorIs(t, err, ErrIO)
	require.ErrorIs(t, err, fs.ErrNotExist)
	assert.Equal(t, IoError, CodeOf(err))
}

// oversizedSource reports a size past the archive limit and fails every read.
type oversizedSource struct {
	reads int
}

func (s *oversizedSource) Size() int64 { return 256<<30 + 1 }

func (s *oversizedSource) ReadAt([]byte, int64) (int, error) {
	s.reads++
	return 0, testutil.ErrInjected
}

func TestOpenSourceRejectsOversizedArchive(t *testing.T) {
	t.Parallel()

	src := &oversizedSource{}
	_, err := OpenSource(src)
	require.ErrorIs(t, err, ErrInvalidFile)
	assert.Equal(t, InvalidFile, CodeOf(err))
	assert.Zero(t, src.reads, "size is checked before reading")
}

func TestOpenSourceReadFailure(t *testing.T) {
	t.Parallel()

	l := testutil.BuildArchive(t, testutil.TestArchive{Entries: sampleEntries()})
	src := testutil.NewMockByteSource(l.Data)
	a, err := OpenSource(src)
	require.NoError(t, err)
	defer a.Close()
	assert.Nil(t, a.File())

	e, err := a.FindEntry("dir/b.txt")
	require.NoError(t, err)

	src.FailFrom = int64(l.DataStart["dir/b.txt"])
	err = a.ExtractToMemory(e, make([]byte, e.UncompressedSize))
	require.ErrorIs(t, err, ErrIO)
	require.ErrorIs(t, err, testutil.ErrInjected)
}

func TestConcurrentUse(t *testing.T) {
	t.Parallel()

	entries := make([]testutil.TestEntry, 0, 32)
	for i := range 32 {
		entries = append(entries, testutil.TestEntry{
			Name:   fmt.Sprintf("file-%02d", i),
			Data:   bytes.Repeat([]byte{byte('a' + i%26)}, 4096+i),
			Method: testutil.MethodDeflated,
		})
	}
	data := testutil.BuildZip(t, entries...)

	for name, open := range openers(t, data) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			a, err := open(WithVerifyCRC(true))
			require.NoError(t, err)
			defer a.Close()

			var wg sync.WaitGroup
			errs := make(chan error, len(entries))
			for _, want := range entries {
				wg.Go(func() {
					e, err := a.FindEntry(want.Name)
					if err != nil {
						errs <- err
						return
					}
					buf := make([]byte, e.UncompressedSize)
					if err := a.ExtractToMemory(e, buf); err != nil {
						errs <- err
						return
					}
					if !bytes.Equal(buf, want.Data) {
						errs <- fmt.Errorf("%s: content mismatch", want.Name)
					}
				})
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				assert.NoError(t, err)
			}
		})
	}
}
