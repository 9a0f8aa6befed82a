// Package http reads remote archives through HTTP range requests.
//
// A Source satisfies ziparchive.ByteSource, so a remote archive can be
// opened without downloading it:
//
//	src, err := http.NewSource(ctx, "https://example.com/app.zip")
//	if err != nil {
//		return err
//	}
//	archive, err := ziparchive.OpenSource(src)
//
// Every ReadAt issues one range request; wrap the source with the cache
// package to coalesce the many small reads the archive engine makes.
package http //nolint:revive // intentional naming for domain clarity

import (
	"bytes"
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	nethttp "net/http"
	"strconv"
	"strings"
)

var (
	// ErrRangeUnsupported is returned when the server ignores range requests.
	ErrRangeUnsupported = errors.New("http: range requests not supported")

	// ErrSizeMismatch is returned when HEAD and range responses disagree on
	// the content size.
	ErrSizeMismatch = errors.New("http: content size mismatch")
)

// Source reads a remote archive with HTTP range requests. It is safe for
// concurrent use.
type Source struct {
	url     string
	client  *nethttp.Client
	headers nethttp.Header
	id      string
	logger  *slog.Logger

	conditional bool
	remote      remoteInfo
}

// remoteInfo is what the probe learned about the remote object.
type remoteInfo struct {
	size         int64
	etag         string
	lastModified string
}

// Option configures a Source.
type Option func(*Source)

// WithClient sets the HTTP client. The default is http.DefaultClient.
func WithClient(client *nethttp.Client) Option {
	return func(s *Source) {
		s.client = client
	}
}

// WithHeaders replaces the extra headers sent with every request.
func WithHeaders(headers nethttp.Header) Option {
	return func(s *Source) {
		if headers != nil {
			s.headers = headers.Clone()
		}
	}
}

// WithHeader adds one header sent with every request.
func WithHeader(key, value string) Option {
	return func(s *Source) {
		if s.headers == nil {
			s.headers = nethttp.Header{}
		}
		s.headers.Set(key, value)
	}
}

// WithSourceID overrides the identity reported by SourceID.
func WithSourceID(id string) Option {
	return func(s *Source) {
		s.id = id
	}
}

// WithConditionalHeaders sends If-Match and If-Unmodified-Since with range
// reads so that a remote archive replaced while open fails instead of
// returning mixed bytes. A server answering 412 to a conditional read is
// retried once without the validators.
func WithConditionalHeaders() Option {
	return func(s *Source) {
		s.conditional = true
	}
}

// WithLogger sets the logger for request diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Source) {
		s.logger = logger
	}
}

// NewSource probes url for its size and validators and returns a Source
// reading from it. ctx bounds the probe only.
func NewSource(ctx context.Context, url string, opts ...Option) (*Source, error) {
	s := &Source{url: url}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		s.client = nethttp.DefaultClient
	}

	info, err := s.probe(ctx)
	if err != nil {
		return nil, err
	}
	s.remote = info
	if s.id == "" {
		s.id = info.identity(url)
	}
	s.log().Debug("remote archive probed",
		slog.String("url", url),
		slog.Int64("size", info.size),
		slog.String("etag", info.etag))
	return s, nil
}

// Size returns the size of the remote object.
func (s *Source) Size() int64 {
	return s.remote.size
}

// SourceID identifies the remote object, by default from its URL and
// validators.
func (s *Source) SourceID() string {
	return s.id
}

// ReadAt implements io.ReaderAt with one range request per call. Reads
// running past the end return the available bytes and io.EOF.
func (s *Source) ReadAt(p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if off < 0 {
		return 0, fmt.Errorf("http: read at %d: negative offset", off)
	}
	if off >= s.remote.size {
		return 0, io.EOF
	}
	want := min(int64(len(p)), s.remote.size-off)

	body, err := s.get(context.Background(), off, want)
	if err != nil {
		return 0, err
	}
	defer drain(body)

	n, err := io.ReadFull(body, p[:want])
	if err != nil {
		return n, err
	}
	if want < int64(len(p)) {
		return n, io.EOF
	}
	return n, nil
}

// ReadRange streams [off, off+length) in a single request, clamped to the
// object size. It returns io.EOF when off is at or past the end. The reader
// must be closed to release the connection.
func (s *Source) ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	switch {
	case length < 0:
		return nil, fmt.Errorf("http: read range of %d bytes: negative length", length)
	case length == 0:
		return io.NopCloser(bytes.NewReader(nil)), nil
	case off < 0:
		return nil, fmt.Errorf("http: read range at %d: negative offset", off)
	case off >= s.remote.size:
		return io.NopCloser(bytes.NewReader(nil)), io.EOF
	}
	length = min(length, s.remote.size-off)

	body, err := s.get(ctx, off, length)
	if err != nil {
		return nil, err
	}
	return &rangeBody{Reader: io.LimitReader(body, length), body: body}, nil
}

// Close releases idle connections held by the client.
func (s *Source) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func (s *Source) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.New(slog.DiscardHandler)
}

// get requests length bytes at off and returns the body of a 206 response.
func (s *Source) get(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	byteRange := fmt.Sprintf("bytes=%d-%d", off, off+length-1)
	conditional := s.conditional && s.remote.hasValidators()

	resp, err := s.do(ctx, nethttp.MethodGet, byteRange, conditional)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == nethttp.StatusPreconditionFailed && conditional {
		drain(resp.Body)
		s.log().Warn("conditional range request rejected, retrying without validators",
			slog.String("url", s.url), slog.Int64("offset", off))
		if resp, err = s.do(ctx, nethttp.MethodGet, byteRange, false); err != nil {
			return nil, err
		}
	}

	switch resp.StatusCode {
	case nethttp.StatusPartialContent:
		return resp.Body, nil
	case nethttp.StatusRequestedRangeNotSatisfiable:
		drain(resp.Body)
		return nil, io.EOF
	case nethttp.StatusOK:
		drain(resp.Body)
		return nil, ErrRangeUnsupported
	default:
		drain(resp.Body)
		return nil, fmt.Errorf("http: GET %s: %s", byteRange, resp.Status)
	}
}

// do sends a request carrying the configured headers. byteRange may be
// empty. Validators are attached when conditional is set.
func (s *Source) do(ctx context.Context, method, byteRange string, conditional bool) (*nethttp.Response, error) {
	req, err := nethttp.NewRequestWithContext(ctx, method, s.url, nethttp.NoBody)
	if err != nil {
		return nil, err
	}
	for key, values := range s.headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	// Compressed transfer would make byte offsets meaningless.
	if req.Header.Get("Accept-Encoding") == "" {
		req.Header.Set("Accept-Encoding", "identity")
	}
	if byteRange != "" {
		req.Header.Set("Range", byteRange)
	}
	if conditional {
		setIfEmpty(req.Header, "If-Match", s.remote.etag)
		setIfEmpty(req.Header, "If-Unmodified-Since", s.remote.lastModified)
	}
	return s.client.Do(req)
}

// probe learns the object size from a one-byte range request, cross-checked
// against HEAD when the server answers it.
func (s *Source) probe(ctx context.Context) (remoteInfo, error) {
	var head remoteInfo
	head.size = -1
	if resp, err := s.do(ctx, nethttp.MethodHead, "", false); err == nil {
		head = remoteInfo{
			size:         resp.ContentLength,
			etag:         resp.Header.Get("ETag"),
			lastModified: resp.Header.Get("Last-Modified"),
		}
		drain(resp.Body)
	}

	resp, err := s.do(ctx, nethttp.MethodGet, "bytes=0-0", false)
	if err != nil {
		return remoteInfo{}, err
	}
	defer drain(resp.Body)

	switch resp.StatusCode {
	case nethttp.StatusPartialContent:
	case nethttp.StatusOK:
		return remoteInfo{}, ErrRangeUnsupported
	default:
		return remoteInfo{}, fmt.Errorf("http: range probe: %s", resp.Status)
	}
	contentRange := resp.Header.Get("Content-Range")
	if contentRange == "" {
		return remoteInfo{}, errors.New("http: range probe: no Content-Range in response")
	}
	size, err := parseContentRange(contentRange)
	if err != nil {
		return remoteInfo{}, err
	}
	if head.size > 0 && head.size != size {
		return remoteInfo{}, fmt.Errorf("%w: HEAD reports %d bytes, range probe %d", ErrSizeMismatch, head.size, size)
	}

	info := remoteInfo{
		size:         size,
		etag:         cmp.Or(head.etag, resp.Header.Get("ETag")),
		lastModified: cmp.Or(head.lastModified, resp.Header.Get("Last-Modified")),
	}
	return info, nil
}

func (r remoteInfo) hasValidators() bool {
	return r.etag != "" || r.lastModified != ""
}

// identity derives a source ID from the strongest validator available.
func (r remoteInfo) identity(url string) string {
	switch {
	case r.etag != "":
		return "url:" + url + "|etag:" + r.etag
	case r.lastModified != "":
		return fmt.Sprintf("url:%s|mod:%s|size:%d", url, r.lastModified, r.size)
	default:
		return fmt.Sprintf("url:%s|size:%d", url, r.size)
	}
}

func setIfEmpty(h nethttp.Header, key, value string) {
	if value != "" && h.Get(key) == "" {
		h.Set(key, value)
	}
}

// drain discards what is left of body and closes it so the connection can
// be reused.
func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body) //nolint:errcheck // best-effort drain for connection reuse
	_ = body.Close()
}

// rangeBody limits reads to the requested range and drains the response on
// Close.
type rangeBody struct {
	io.Reader
	body io.ReadCloser
}

func (r *rangeBody) Close() error {
	drain(r.body)
	return nil
}

// parseContentRange returns the complete length from a
// "bytes first-last/complete" Content-Range value.
func parseContentRange(value string) (int64, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(value), "bytes ")
	if !ok {
		return 0, fmt.Errorf("http: invalid Content-Range %q", value)
	}
	_, complete, ok := strings.Cut(rest, "/")
	if !ok || complete == "*" {
		return 0, fmt.Errorf("http: invalid Content-Range %q", value)
	}
	size, err := strconv.ParseInt(complete, 10, 64)
	if err != nil || size < 0 {
		return 0, fmt.Errorf("http: invalid Content-Range %q", value)
	}
	return size, nil
}
