package mediatype_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edo-build/edo/pkg/mediatype"
)

func TestDetectSuffixes(t *testing.T) {
	cases := []struct {
		in       string
		stripped string
		comp     mediatype.Compression
	}{
		{"foo.tar.zst", "foo.tar", mediatype.Zstd},
		{"foo.tar.gz", "foo.tar", mediatype.Gzip},
		{"foo.tar.gzip", "foo.tar", mediatype.Gzip},
		{"foo.tar.gzip2", "foo.tar", mediatype.Gzip},
		{"foo.tar.bz2", "foo.tar", mediatype.Bzip2},
		{"foo.tar.lz4", "foo.tar", mediatype.Lz},
		{"foo.tar.lzma", "foo.tar", mediatype.Lz},
		{"foo.tar.xz", "foo.tar", mediatype.Xz},
		{"foo.tar", "foo.tar", mediatype.None},
	}
	for _, c := range cases {
		stripped, comp := mediatype.Detect(c.in)
		assert.Equal(t, c.stripped, stripped, c.in)
		assert.Equal(t, c.comp, comp, c.in)
	}
}

func TestStringRoundTrip(t *testing.T) {
	cases := []mediatype.MediaType{
		mediatype.NewManifest(),
		mediatype.NewTar(mediatype.Zstd),
		mediatype.NewFile(mediatype.None),
		mediatype.NewOci(mediatype.Gzip),
		mediatype.NewCustom("npm-package", mediatype.Xz),
	}
	for _, mt := range cases {
		s := mt.String()
		parsed, err := mediatype.Parse(s)
		require.NoError(t, err, s)
		assert.Equal(t, mt.Kind(), parsed.Kind(), s)
		assert.Equal(t, mt.Compression(), parsed.Compression(), s)
		if mt.Kind() == mediatype.Custom {
			assert.Equal(t, mt.CustomTag(), parsed.CustomTag(), s)
		}
	}
}

func TestManifestStringExact(t *testing.T) {
	assert.Equal(t, "vnd.edo.artifact.v1.manifest", mediatype.NewManifest().String())
}
