package kubeenv

import (
	"archive/tar"
	"bytes"
	"io"
)

// singleFileTar wraps r's contents as a one-entry tar stream named name, so
// Write can reuse the same tar-over-exec transport Unpack uses for
// whole-directory layers.
func singleFileTar(name string, r io.Reader) io.Reader {
	data, err := io.ReadAll(r)
	if err != nil {
		return errReader{err}
	}

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	_ = tw.WriteHeader(&tar.Header{Name: name, Size: int64(len(data)), Mode: 0o644})
	_, _ = tw.Write(data)
	_ = tw.Close()
	return &buf
}

type errReader struct{ err error }

func (e errReader) Read([]byte) (int, error) { return 0, e.err }
