package fetch

import (
	"compress/gzip"
	"compress/zlib"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
)

// ErrBodyTooLarge is returned when a decoded body exceeds the configured limit.
var ErrBodyTooLarge = errors.New("decoded body exceeds limit")

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// DecodeBody reads and closes res.Body, undoing every Content-Encoding in
// reverse order. maxBytes <= 0 means no limit.
func DecodeBody(res *http.Response, maxBytes int64) ([]byte, error) {
	if res == nil || res.Body == nil {
		return nil, errors.New("nil response body")
	}
	defer res.Body.Close()

	reader, closers, err := decoderChain(res.Body, res.Header.Get("Content-Encoding"))
	if err != nil {
		return nil, err
	}
	if maxBytes > 0 {
		reader = io.LimitReader(reader, maxBytes+1)
	}
	body, readErr := io.ReadAll(reader)
	closeErr := closeAll(closers)
	if readErr != nil {
		return nil, readErr
	}
	if closeErr != nil {
		return nil, closeErr
	}
	if maxBytes > 0 && int64(len(body)) > maxBytes {
		return nil, fmt.Errorf("%w (%d bytes)", ErrBodyTooLarge, maxBytes)
	}
	return body, nil
}

func decoderChain(body io.Reader, encHeader string) (io.Reader, []io.Closer, error) {
	reader := body
	var closers []io.Closer

	encHeader = strings.ToLower(strings.TrimSpace(encHeader))
	if encHeader == "" {
		return reader, closers, nil
	}
	parts := strings.Split(encHeader, ",")
	for i := len(parts) - 1; i >= 0; i-- {
		switch enc := strings.TrimSpace(parts[i]); enc {
		case "", "identity":
			continue
		case "gzip", "x-gzip":
			gr, err := gzip.NewReader(reader)
			if err != nil {
				closeAll(closers)
				return nil, nil, fmt.Errorf("gzip: %w", err)
			}
			reader = gr
			closers = append(closers, gr)
		case "br":
			reader = brotli.NewReader(reader)
		case "zstd":
			zr, err := zstd.NewReader(reader)
			if err != nil {
				closeAll(closers)
				return nil, nil, fmt.Errorf("zstd: %w", err)
			}
			reader = zr
			closers = append(closers, closerFunc(func() error { zr.Close(); return nil }))
		case "deflate":
			zr, err := zlib.NewReader(reader)
			if err != nil {
				closeAll(closers)
				return nil, nil, fmt.Errorf("deflate: %w", err)
			}
			reader = zr
			closers = append(closers, zr)
		default:
			closeAll(closers)
			return nil, nil, fmt.Errorf("unsupported content-encoding: %s", enc)
		}
	}
	return reader, closers, nil
}

func closeAll(closers []io.Closer) error {
	var first error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
