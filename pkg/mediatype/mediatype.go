// Package mediatype implements Edo's MediaType tagged union and
// Compression enum (spec.md §3, §4.1), grounded on the OCI media-type
// conventions the teacher pulls in transitively via helm.sh/helm/v3 and
// oras.land/oras-go/v2.
package mediatype

import (
	"fmt"
	"strings"
)

// Compression identifies how a layer's raw bytes are compressed.
type Compression int

const (
	None Compression = iota
	Zstd
	Gzip
	Bzip2
	Lz
	Xz
)

func (c Compression) String() string {
	switch c {
	case Zstd:
		return "zstd"
	case Gzip:
		return "gzip"
	case Bzip2:
		return "bzip2"
	case Lz:
		return "lz"
	case Xz:
		return "xz"
	default:
		return ""
	}
}

// Ext returns the canonical filename suffix for c, or "" for None. Used
// when staging layers out to disk inside an environment.
func (c Compression) Ext() string {
	switch c {
	case Zstd:
		return ".zst"
	case Gzip:
		return ".gz"
	case Bzip2:
		return ".bz2"
	case Lz:
		return ".lz4"
	case Xz:
		return ".xz"
	default:
		return ""
	}
}

// Kind is the outer tag of a MediaType.
type Kind int

const (
	Manifest Kind = iota
	File
	Tar
	Oci
	Image
	Zip
	Custom
)

func (k Kind) kindName() string {
	switch k {
	case Manifest:
		return "manifest"
	case File:
		return "file"
	case Tar:
		return "tar"
	case Oci:
		return "oci"
	case Image:
		return "image"
	case Zip:
		return "zip"
	case Custom:
		return "custom"
	default:
		return ""
	}
}

// MediaType is the tagged union spec.md §3 describes:
// Manifest | File(C) | Tar(C) | Oci(C) | Image(C) | Zip(C) | Custom(tag, C).
type MediaType struct {
	kind        Kind
	compression Compression
	customTag   string
}

// NewManifest is the outer media type artifacts use for their config.
func NewManifest() MediaType { return MediaType{kind: Manifest} }

// NewFile/Tar/Oci/Image/Zip construct the compressible variants.
func NewFile(c Compression) MediaType  { return MediaType{kind: File, compression: c} }
func NewTar(c Compression) MediaType   { return MediaType{kind: Tar, compression: c} }
func NewOci(c Compression) MediaType   { return MediaType{kind: Oci, compression: c} }
func NewImage(c Compression) MediaType { return MediaType{kind: Image, compression: c} }
func NewZip(c Compression) MediaType   { return MediaType{kind: Zip, compression: c} }

// NewCustom constructs a plugin-defined media type carrying an opaque tag.
func NewCustom(tag string, c Compression) MediaType {
	return MediaType{kind: Custom, customTag: tag, compression: c}
}

// Kind reports the outer tag.
func (m MediaType) Kind() Kind { return m.kind }

// Compression reports the payload compression (None for Manifest).
func (m MediaType) Compression() Compression { return m.compression }

// CustomTag reports the plugin-defined tag (only meaningful for Custom).
func (m MediaType) CustomTag() string { return m.customTag }

// String renders "vnd.edo.artifact.v1.<kind>[.<ext>]".
func (m MediaType) String() string {
	var b strings.Builder
	b.WriteString("vnd.edo.artifact.v1.")
	if m.kind == Custom {
		b.WriteString(m.customTag)
	} else {
		b.WriteString(m.kind.kindName())
	}
	if m.kind != Manifest {
		if ext := compressionTag(m.compression); ext != "" {
			b.WriteByte('.')
			b.WriteString(ext)
		}
	}
	return b.String()
}

func compressionTag(c Compression) string {
	switch c {
	case Zstd:
		return "zstd"
	case Gzip:
		return "gzip"
	case Bzip2:
		return "bzip2"
	case Lz:
		return "lz"
	case Xz:
		return "xz"
	default:
		return ""
	}
}

// Parse reconstructs a MediaType from its String() form.
func Parse(s string) (MediaType, error) {
	const prefix = "vnd.edo.artifact.v1."
	if !strings.HasPrefix(s, prefix) {
		return MediaType{}, fmt.Errorf("mediatype: %q missing prefix %q", s, prefix)
	}
	rest := strings.TrimPrefix(s, prefix)
	parts := strings.Split(rest, ".")

	kindNames := map[string]Kind{
		"manifest": Manifest,
		"file":     File,
		"tar":      Tar,
		"oci":      Oci,
		"image":    Image,
		"zip":      Zip,
	}
	compNames := map[string]Compression{
		"zstd": Zstd, "gzip": Gzip, "bzip2": Bzip2, "lz": Lz, "xz": Xz,
	}

	kindTok := parts[0]
	if kind, ok := kindNames[kindTok]; ok {
		if kind == Manifest {
			return NewManifest(), nil
		}
		comp := None
		if len(parts) > 1 {
			c, ok := compNames[parts[1]]
			if !ok {
				return MediaType{}, fmt.Errorf("mediatype: unknown compression tag %q", parts[1])
			}
			comp = c
		}
		return MediaType{kind: kind, compression: comp}, nil
	}

	// Unknown first token: treat as a Custom tag, optionally followed by a
	// recognized compression tag.
	comp := None
	tag := kindTok
	if len(parts) > 1 {
		if c, ok := compNames[parts[1]]; ok {
			comp = c
		}
	}
	return MediaType{kind: Custom, customTag: tag, compression: comp}, nil
}

// Detect classifies a filename suffix hint into a stripped name and the
// Compression implied by the suffix, per spec.md §4.1. Absence of a known
// suffix yields Compression None and the hint unchanged.
func Detect(extensionHint string) (stripped string, compression Compression) {
	switch {
	case strings.HasSuffix(extensionHint, ".zst"):
		return strings.TrimSuffix(extensionHint, ".zst"), Zstd
	case strings.HasSuffix(extensionHint, ".gzip2"):
		return strings.TrimSuffix(extensionHint, ".gzip2"), Gzip
	case strings.HasSuffix(extensionHint, ".gzip"):
		return strings.TrimSuffix(extensionHint, ".gzip"), Gzip
	case strings.HasSuffix(extensionHint, ".gz"):
		return strings.TrimSuffix(extensionHint, ".gz"), Gzip
	case strings.HasSuffix(extensionHint, ".bz2"):
		return strings.TrimSuffix(extensionHint, ".bz2"), Bzip2
	case strings.HasSuffix(extensionHint, ".bzip2"):
		return strings.TrimSuffix(extensionHint, ".bzip2"), Bzip2
	case strings.HasSuffix(extensionHint, ".bzip"):
		return strings.TrimSuffix(extensionHint, ".bzip"), Bzip2
	case strings.HasSuffix(extensionHint, ".lz4"):
		return strings.TrimSuffix(extensionHint, ".lz4"), Lz
	case strings.HasSuffix(extensionHint, ".lzma"):
		return strings.TrimSuffix(extensionHint, ".lzma"), Lz
	case strings.HasSuffix(extensionHint, ".xz"):
		return strings.TrimSuffix(extensionHint, ".xz"), Xz
	default:
		return extensionHint, None
	}
}
