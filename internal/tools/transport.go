// internal/tools/transport.go
package tools

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
)

// decompressTransport is an http.RoundTripper that negotiates compression on
// outgoing requests and transparently decodes the response body. Servers may
// stack encodings; they are undone in reverse order of application. Supports
// brotli, gzip, and deflate (both zlib-wrapped and raw streams).
type decompressTransport struct {
	base http.RoundTripper
}

// newDecompressTransport wraps base, defaulting to http.DefaultTransport.
func newDecompressTransport(base http.RoundTripper) *decompressTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &decompressTransport{base: base}
}

// NewFetchClient builds the HTTP client shared by tools that fetch from the
// web, with transparent decompression and the given timeout.
func NewFetchClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: newDecompressTransport(nil),
	}
}

func (t *decompressTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Advertise support if the caller hasn't already. Brotli first since it
	// usually compresses best.
	if req.Header.Get("Accept-Encoding") == "" {
		req.Header.Set("Accept-Encoding", "br, gzip, deflate, identity")
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if err := decodeResponseBody(resp); err != nil {
		// The body stream may be partially consumed; discard the response.
		_ = resp.Body.Close()
		return nil, fmt.Errorf("failed to initialize response decompression: %w", err)
	}
	return resp, nil
}

// decodeResponseBody wraps resp.Body with the decoders named by
// Content-Encoding, innermost last. On success the encoding and length
// headers are cleared since they no longer describe the body.
func decodeResponseBody(resp *http.Response) error {
	if resp == nil || resp.Body == nil {
		return nil
	}
	encodings := resp.Header.Values("Content-Encoding")
	if len(encodings) == 0 {
		return nil
	}

	for i := len(encodings) - 1; i >= 0; i-- {
		encoding := strings.ToLower(strings.TrimSpace(encodings[i]))

		var reader io.ReadCloser
		switch encoding {
		case "gzip":
			gz, err := gzip.NewReader(resp.Body)
			if err != nil {
				return fmt.Errorf("gzip initialization error: %w", err)
			}
			reader = gz
		case "deflate":
			d, err := tryDeflate(resp.Body)
			if err != nil {
				return fmt.Errorf("deflate initialization error: %w", err)
			}
			reader = d
		case "br":
			reader = io.NopCloser(brotli.NewReader(resp.Body))
		case "identity", "":
			continue
		default:
			return fmt.Errorf("unsupported Content-Encoding layer: %s", encoding)
		}

		resp.Body = &closeBoth{ReadCloser: reader, original: resp.Body}
	}

	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	resp.Uncompressed = true
	return nil
}

// closeBoth closes the decoder and the underlying body it wraps.
type closeBoth struct {
	io.ReadCloser
	original io.ReadCloser
}

func (c *closeBoth) Close() error {
	return errors.Join(c.ReadCloser.Close(), c.original.Close())
}

// tryDeflate attempts to decode as zlib (RFC 1950), falling back to raw
// deflate (RFC 1951). Some servers send either under the same header. The
// bytes consumed by the failed zlib probe are replayed for the fallback.
func tryDeflate(r io.Reader) (io.ReadCloser, error) {
	var probe bytes.Buffer
	tee := io.TeeReader(r, &probe)

	zr, err := zlib.NewReader(tee)
	if err == nil {
		return zr, nil
	}

	replay := io.MultiReader(bytes.NewReader(probe.Bytes()), r)
	return flate.NewReader(replay), nil
}
