package http

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveBytes(t *testing.T, data []byte) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		nethttp.ServeContent(w, r, "data", time.Time{}, bytes.NewReader(data))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestSourceReadAt(t *testing.T) {
	t.Parallel()

	data := []byte("hello world")
	server := serveBytes(t, data)

	src, err := NewSource(context.Background(), server.URL, WithConditionalHeaders())
	require.NoError(t, err)
	t.Cleanup(func() { _ = src.Close() })
	require.Equal(t, int64(len(data)), src.Size())

	tests := []struct {
		name    string
		bufSize int
		offset  int64
		wantN   int
		wantErr error
		want    string
	}{
		{name: "read from middle", bufSize: 5, offset: 6, wantN: 5, want: "world"},
		{name: "read past end returns EOF", bufSize: 10, offset: int64(len(data) - 3), wantN: 3, wantErr: io.EOF, want: "rld"},
		{name: "offset at end", bufSize: 1, offset: int64(len(data)), wantErr: io.EOF},
		{name: "empty buffer", bufSize: 0, offset: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			buf := make([]byte, tt.bufSize)
			n, err := src.ReadAt(buf, tt.offset)
			assert.Equal(t, tt.wantErr, err)
			assert.Equal(t, tt.wantN, n)
			assert.Equal(t, tt.want, string(buf[:n]))
		})
	}

	_, err = src.ReadAt(make([]byte, 1), -1)
	require.Error(t, err)
}

func TestSourceReadRange(t *testing.T) {
	t.Parallel()

	data := []byte("0123456789abcdef")
	server := serveBytes(t, data)
	src, err := NewSource(context.Background(), server.URL)
	require.NoError(t, err)
	ctx := context.Background()

	rc, err := src.ReadRange(ctx, 4, 6)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "456789", string(got))

	rc, err = src.ReadRange(ctx, 12, 100)
	require.NoError(t, err)
	got, err = io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "cdef", string(got))

	rc, err = src.ReadRange(ctx, 0, 0)
	require.NoError(t, err)
	require.NoError(t, rc.Close())

	_, err = src.ReadRange(ctx, int64(len(data)), 1)
	require.ErrorIs(t, err, io.EOF)
	_, err = src.ReadRange(ctx, 0, -1)
	require.Error(t, err)
	_, err = src.ReadRange(ctx, -1, 1)
	require.Error(t, err)
}

func TestSourceReadsZipArchive(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("remote.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("fetched over range requests"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	server := serveBytes(t, buf.Bytes())
	src, err := NewSource(context.Background(), server.URL)
	require.NoError(t, err)

	zr, err := zip.NewReader(src, src.Size())
	require.NoError(t, err)
	require.Len(t, zr.File, 1)
	rc, err := zr.File[0].Open()
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "fetched over range requests", string(got))
}

func TestNewSourceRangeUnsupported(t *testing.T) {
	t.Parallel()

	data := []byte("range unsupported")
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method == nethttp.MethodHead {
			w.Header().Set("Content-Length", strconv.Itoa(len(data)))
			return
		}
		_, _ = w.Write(data)
	}))
	t.Cleanup(server.Close)

	_, err := NewSource(context.Background(), server.URL)
	require.ErrorIs(t, err, ErrRangeUnsupported)
}

func TestNewSourceSizeMismatch(t *testing.T) {
	t.Parallel()

	data := []byte("0123456789")
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method == nethttp.MethodHead {
			w.Header().Set("Content-Length", "99")
			return
		}
		nethttp.ServeContent(w, r, "data", time.Time{}, bytes.NewReader(data))
	}))
	t.Cleanup(server.Close)

	_, err := NewSource(context.Background(), server.URL)
	require.ErrorIs(t, err, ErrSizeMismatch)
}

func TestNewSourceCanceled(t *testing.T) {
	t.Parallel()

	server := serveBytes(t, []byte("data"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewSource(ctx, server.URL)
	require.ErrorIs(t, err, context.Canceled)
}

func TestSourceHeadersAndID(t *testing.T) {
	t.Parallel()

	data := []byte("with headers")
	var missing atomic.Int32
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Header.Get("Authorization") != "Bearer token" || r.Header.Get("X-Trace") != "1" {
			missing.Add(1)
		}
		w.Header().Set("ETag", `"v1"`)
		nethttp.ServeContent(w, r, "data", time.Time{}, bytes.NewReader(data))
	}))
	t.Cleanup(server.Close)

	src, err := NewSource(context.Background(), server.URL,
		WithHeaders(nethttp.Header{"Authorization": []string{"Bearer token"}}),
		WithHeader("X-Trace", "1"),
		WithClient(server.Client()),
	)
	require.NoError(t, err)
	assert.Equal(t, "url:"+server.URL+`|etag:"v1"`, src.SourceID())

	_, err = src.ReadAt(make([]byte, 4), 0)
	require.NoError(t, err)
	assert.Zero(t, missing.Load())

	custom, err := NewSource(context.Background(), server.URL, WithSourceID("archive-1"))
	require.NoError(t, err)
	assert.Equal(t, "archive-1", custom.SourceID())
}

func TestSourceReadAtRetriesWithoutIfMatchOn412(t *testing.T) {
	t.Parallel()

	data := []byte("hello world")
	etag := `"retry-test"`
	var withIfMatchRange, withoutIfMatchRange atomic.Int32

	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		switch r.Method {
		case nethttp.MethodHead:
			w.Header().Set("Content-Length", strconv.Itoa(len(data)))
			w.Header().Set("ETag", etag)
			return
		case nethttp.MethodGet:
			if r.Header.Get("Range") == "bytes=6-10" {
				if r.Header.Get("If-Match") != "" {
					withIfMatchRange.Add(1)
					w.WriteHeader(nethttp.StatusPreconditionFailed)
					return
				}
				withoutIfMatchRange.Add(1)
			}
			w.Header().Set("ETag", etag)
			nethttp.ServeContent(w, r, "data", time.Time{}, bytes.NewReader(data))
			return
		default:
			w.WriteHeader(nethttp.StatusMethodNotAllowed)
		}
	}))
	t.Cleanup(server.Close)

	src, err := NewSource(context.Background(), server.URL, WithConditionalHeaders())
	require.NoError(t, err)

	buf := make([]byte, 5)
	n, err := src.ReadAt(buf, 6)
	require.NoError(t, err)
	assert.Equal(t, "world", string(buf[:n]))
	assert.Equal(t, int32(1), withIfMatchRange.Load())
	assert.Equal(t, int32(1), withoutIfMatchRange.Load())
}

func TestParseContentRange(t *testing.T) {
	t.Parallel()

	tests := []struct {
		value   string
		want    int64
		wantErr bool
	}{
		{value: "bytes 0-0/100", want: 100},
		{value: " bytes 5-9/10 ", want: 10},
		{value: "bytes 0-0/*", wantErr: true},
		{value: "items 0-0/10", wantErr: true},
		{value: "bytes 0-0", wantErr: true},
		{value: "bytes 0-0/-1", wantErr: true},
		{value: "bytes 0-0/abc", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Parallel()
			got, err := parseContentRange(tt.value)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
