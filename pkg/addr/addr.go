// Package addr implements Addr, the stable hierarchical identifier the
// config evaluator uses to key transforms, sources, vendors, and farms.
// Edo's core treats Addr as opaque: it never interprets segments beyond
// using them for equality, ordering, and display.
package addr

import "strings"

// Addr is a hierarchical configuration-space identifier, e.g.
// "//project/component/name". It is a thin value type over the textual
// form; the core never parses segment semantics, only compares and sorts.
type Addr struct {
	raw string
}

// New wraps a raw textual address. It does not validate the form beyond
// trimming surrounding whitespace, since the config evaluator (out of
// scope here) is the authority on what a well-formed Addr looks like.
func New(raw string) Addr {
	return Addr{raw: strings.TrimSpace(raw)}
}

// String returns the textual form.
func (a Addr) String() string { return a.raw }

// IsZero reports whether a is the zero-value Addr.
func (a Addr) IsZero() bool { return a.raw == "" }

// Less provides a stable, lexicographic ordering on the textual form.
func (a Addr) Less(other Addr) bool { return a.raw < other.raw }

// Segments splits the address on "/" for components that need to derive
// a display name (e.g. the last segment) without claiming any deeper
// semantics than "this is how addresses happen to be written".
func (a Addr) Segments() []string {
	trimmed := strings.Trim(a.raw, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// Name returns the last path segment, used for human-readable logging
// and for naming derived resources (e.g. workspace directories).
func (a Addr) Name() string {
	segs := a.Segments()
	if len(segs) == 0 {
		return ""
	}
	return segs[len(segs)-1]
}

// ByAddr adapts an []Addr to sort.Interface using Less.
type ByAddr []Addr

func (b ByAddr) Len() int           { return len(b) }
func (b ByAddr) Less(i, j int) bool { return b[i].Less(b[j]) }
func (b ByAddr) Swap(i, j int)      { b[i], b[j] = b[j], b[i] }
