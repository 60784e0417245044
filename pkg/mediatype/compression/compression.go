// Package compression adapts mediatype.Compression to concrete
// io.Reader/io.Writer implementations. Zstd and gzip are backed by
// github.com/klauspost/compress, matching the teacher's dependency
// graph; bzip2 is read-only via the stdlib compress/bzip2 (no writer
// exists in the pack's dependency set — see DESIGN.md's stdlib
// justifications).
package compression

import (
	"bufio"
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/edo-build/edo/pkg/mediatype"
)

// NewReader wraps r with a decompressor for c. Lz and Xz are not
// supported for decompression by any library in this module's dependency
// set; callers needing them must stage the bytes unmodified and shell out
// to an external tool, which is an environment/transform concern, not a
// storage concern.
func NewReader(c mediatype.Compression, r io.Reader) (io.ReadCloser, error) {
	switch c {
	case mediatype.None:
		return io.NopCloser(r), nil
	case mediatype.Gzip:
		return gzip.NewReader(r)
	case mediatype.Bzip2:
		return io.NopCloser(bufio.NewReader(bzip2.NewReader(r))), nil
	case mediatype.Zstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return zr.IOReadCloser(), nil
	default:
		return nil, fmt.Errorf("compression: no reader available for %s", c)
	}
}

// NewWriter wraps w with a compressor for c. Only None, Gzip, and Zstd
// support writing in this module's dependency set.
func NewWriter(c mediatype.Compression, w io.Writer) (io.WriteCloser, error) {
	switch c {
	case mediatype.None:
		return nopWriteCloser{w}, nil
	case mediatype.Gzip:
		return gzip.NewWriter(w), nil
	case mediatype.Zstd:
		return zstd.NewWriter(w)
	default:
		return nil, fmt.Errorf("compression: no writer available for %s", c)
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
