// Package node models the configuration contract between Edo's core and
// the (out-of-scope) configuration-language evaluator. A Node is a typed
// tree: either a table of named children, or a leaf carrying one of a
// fixed set of scalar kinds. Providers (sources, vendors, farms,
// transforms) receive a Node and project it into the typed values they
// need.
//
// The shape mirrors the teacher's EnvironmentConfig/Probe structs: plain
// data with explicit accessors and copy helpers, not a reflection-driven
// generic tree.
package node

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// Kind identifies what a Node actually holds.
type Kind int

const (
	KindTable Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindVersion
	KindRequire
	KindList
)

// Node is a single element of a configuration tree.
type Node struct {
	kind Kind

	table map[string]Node
	list  []Node

	boolVal    bool
	intVal     int64
	floatVal   float64
	stringVal  string
	versionVal *semver.Version
	requireVal *semver.Constraints
}

// Table constructs a table node from named children.
func Table(fields map[string]Node) Node {
	cp := make(map[string]Node, len(fields))
	for k, v := range fields {
		cp[k] = v
	}
	return Node{kind: KindTable, table: cp}
}

func Bool(v bool) Node          { return Node{kind: KindBool, boolVal: v} }
func Int(v int64) Node          { return Node{kind: KindInt, intVal: v} }
func Float(v float64) Node      { return Node{kind: KindFloat, floatVal: v} }
func String(v string) Node      { return Node{kind: KindString, stringVal: v} }
func List(items []Node) Node    { return Node{kind: KindList, list: append([]Node(nil), items...)} }
func Version(v *semver.Version) Node {
	return Node{kind: KindVersion, versionVal: v}
}
func Require(c *semver.Constraints) Node {
	return Node{kind: KindRequire, requireVal: c}
}

// Kind reports which variant this Node holds.
func (n Node) Kind() Kind { return n.kind }

// Get looks up a named child of a table node. ok is false if n is not a
// table or the key is absent.
func (n Node) Get(key string) (Node, bool) {
	if n.kind != KindTable {
		return Node{}, false
	}
	v, ok := n.table[key]
	return v, ok
}

// Keys returns the field names of a table node in no particular order (Go
// maps have no stable order, so callers that need determinism should sort
// the result themselves; this just exposes the set).
func (n Node) Keys() []string {
	if n.kind != KindTable {
		return nil
	}
	keys := make([]string, 0, len(n.table))
	for k := range n.table {
		keys = append(keys, k)
	}
	return keys
}

func (n Node) typeErr(want Kind) error {
	return fmt.Errorf("node: expected kind %d, got %d", want, n.kind)
}

// AsBool projects a leaf as bool.
func (n Node) AsBool() (bool, error) {
	if n.kind != KindBool {
		return false, n.typeErr(KindBool)
	}
	return n.boolVal, nil
}

// AsInt projects a leaf as int64.
func (n Node) AsInt() (int64, error) {
	if n.kind != KindInt {
		return 0, n.typeErr(KindInt)
	}
	return n.intVal, nil
}

// AsFloat projects a leaf as float64.
func (n Node) AsFloat() (float64, error) {
	if n.kind != KindFloat {
		return 0, n.typeErr(KindFloat)
	}
	return n.floatVal, nil
}

// AsString projects a leaf as string.
func (n Node) AsString() (string, error) {
	if n.kind != KindString {
		return "", n.typeErr(KindString)
	}
	return n.stringVal, nil
}

// AsVersion projects a leaf as a semantic version.
func (n Node) AsVersion() (*semver.Version, error) {
	if n.kind != KindVersion {
		return nil, n.typeErr(KindVersion)
	}
	return n.versionVal, nil
}

// AsRequire projects a leaf as a version constraint set.
func (n Node) AsRequire() (*semver.Constraints, error) {
	if n.kind != KindRequire {
		return nil, n.typeErr(KindRequire)
	}
	return n.requireVal, nil
}

// AsList projects a node as an ordered list of children.
func (n Node) AsList() ([]Node, error) {
	if n.kind != KindList {
		return nil, n.typeErr(KindList)
	}
	return append([]Node(nil), n.list...), nil
}

// StringOr is a convenience accessor for optional string fields, mirroring
// the teacher's "non-zero overrides default" merge style in
// internal/controller/config.go.
func (n Node) StringOr(key, def string) string {
	child, ok := n.Get(key)
	if !ok {
		return def
	}
	s, err := child.AsString()
	if err != nil {
		return def
	}
	return s
}

// IntOr is the integer analogue of StringOr.
func (n Node) IntOr(key string, def int64) int64 {
	child, ok := n.Get(key)
	if !ok {
		return def
	}
	v, err := child.AsInt()
	if err != nil {
		return def
	}
	return v
}

// BoolOr is the boolean analogue of StringOr.
func (n Node) BoolOr(key string, def bool) bool {
	child, ok := n.Get(key)
	if !ok {
		return def
	}
	v, err := child.AsBool()
	if err != nil {
		return def
	}
	return v
}
