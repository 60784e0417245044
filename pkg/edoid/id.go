// Package edoid implements Id, artifact identity, per spec.md §3.
//
// Textual form: "[package+]name[-version][.arch]-digest". Equality is
// field-wise; the digest alone never identifies an artifact, since two
// differently-named artifacts can share the digest of an empty layer set.
package edoid

import (
	"fmt"
	"regexp"
	"strings"

	"lukechampine.com/blake3"
)

// reservedChars mirrors spec.md §3: "no @ : . - /" in name.
var reservedChars = "@:.-/"

var digestHexPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// Id is artifact identity: a required sanitized name, optional package,
// version, and architecture tag, plus a required Blake3 hex digest.
type Id struct {
	Name    string
	Package string
	Version string
	Arch    string
	Digest  string
}

// New validates and constructs an Id. Digest must already be a 64-hex-char
// Blake3 digest; use Blake3Hex to compute one from bytes.
func New(name, pkg, version, arch, digest string) (Id, error) {
	id := Id{Name: name, Package: pkg, Version: version, Arch: arch, Digest: digest}
	if err := id.Validate(); err != nil {
		return Id{}, err
	}
	return id, nil
}

// Validate checks the required fields and reserved-character rule.
func (id Id) Validate() error {
	if id.Name == "" {
		return fmt.Errorf("edoid: name is required")
	}
	if strings.ContainsAny(id.Name, reservedChars) {
		return fmt.Errorf("edoid: name %q contains a reserved character (one of %q)", id.Name, reservedChars)
	}
	if id.Digest == "" {
		return fmt.Errorf("edoid: digest is required")
	}
	if !digestHexPattern.MatchString(id.Digest) {
		return fmt.Errorf("edoid: digest %q is not a 64-character hex Blake3 digest", id.Digest)
	}
	return nil
}

// WithDigest returns a copy of id with Digest replaced.
func (id Id) WithDigest(digest string) Id {
	id.Digest = digest
	return id
}

// WithVersion returns a copy of id with Version replaced.
func (id Id) WithVersion(version string) Id {
	id.Version = version
	return id
}

// Equal is field-wise equality, per spec.md §3 ("digest alone does not
// identify an artifact").
func (id Id) Equal(other Id) bool {
	return id.Name == other.Name &&
		id.Package == other.Package &&
		id.Version == other.Version &&
		id.Arch == other.Arch &&
		id.Digest == other.Digest
}

// String renders the textual form: "[package+]name[-version][.arch]-digest".
func (id Id) String() string {
	var b strings.Builder
	if id.Package != "" {
		b.WriteString(id.Package)
		b.WriteByte('+')
	}
	b.WriteString(id.Name)
	if id.Version != "" {
		b.WriteByte('-')
		b.WriteString(id.Version)
	}
	if id.Arch != "" {
		b.WriteByte('.')
		b.WriteString(id.Arch)
	}
	b.WriteByte('-')
	b.WriteString(id.Digest)
	return b.String()
}

// digestSuffixPattern strips the trailing "-<64 hex chars>" digest segment
// that every rendered Id ends with.
var digestSuffixPattern = regexp.MustCompile(`-([0-9a-f]{64})$`)

// archLikePattern is the heuristic used to decide whether the final
// dot-delimited segment of the version+arch remainder is an arch tag
// rather than the trailing component of a semver version: arch tags start
// with a letter, numeric version components start with a digit. This is
// a deliberately lossy edge case — the grammar in spec.md §3 is ambiguous
// when both are present and the version has internal dots.
var archLikePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// Parse parses the textual form produced by String.
func Parse(s string) (Id, error) {
	digestMatch := digestSuffixPattern.FindStringSubmatchIndex(s)
	if digestMatch == nil {
		return Id{}, fmt.Errorf("edoid: %q has no trailing -<blake3-digest>", s)
	}
	digest := s[digestMatch[2]:digestMatch[3]]
	rest := s[:digestMatch[0]]

	var pkg string
	if i := strings.IndexByte(rest, '+'); i >= 0 {
		pkg, rest = rest[:i], rest[i+1:]
	}

	nameEnd := len(rest)
	for i, c := range rest {
		if c == '-' || c == '.' {
			nameEnd = i
			break
		}
	}
	name := rest[:nameEnd]
	remainder := rest[nameEnd:]

	var version, arch string
	switch {
	case strings.HasPrefix(remainder, "-"):
		versionAndArch := remainder[1:]
		parts := strings.Split(versionAndArch, ".")
		if len(parts) > 1 && archLikePattern.MatchString(parts[len(parts)-1]) {
			arch = parts[len(parts)-1]
			version = strings.Join(parts[:len(parts)-1], ".")
		} else {
			version = versionAndArch
		}
	case strings.HasPrefix(remainder, "."):
		arch = remainder[1:]
	case remainder != "":
		return Id{}, fmt.Errorf("edoid: %q has malformed version/arch segment %q", s, remainder)
	}

	id := Id{Package: pkg, Name: name, Version: version, Arch: arch, Digest: digest}
	if err := id.Validate(); err != nil {
		return Id{}, err
	}
	return id, nil
}

// Blake3Hex computes the lowercase hex Blake3 digest of b, the digest form
// every layer, manifest, and Id in Edo uses.
func Blake3Hex(b []byte) string {
	sum := blake3.Sum256(b)
	return fmt.Sprintf("%x", sum[:])
}
