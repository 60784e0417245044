package node_test

import (
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edo-build/edo/pkg/node"
)

func TestTableGetAndProjections(t *testing.T) {
	v, err := semver.NewVersion("1.2.3")
	require.NoError(t, err)

	n := node.Table(map[string]node.Node{
		"name":    node.String("build"),
		"batch":   node.Int(8),
		"enabled": node.Bool(true),
		"version": node.Version(v),
	})

	name, err := mustGet(t, n, "name").AsString()
	require.NoError(t, err)
	assert.Equal(t, "build", name)

	batch, err := mustGet(t, n, "batch").AsInt()
	require.NoError(t, err)
	assert.EqualValues(t, 8, batch)

	enabled, err := mustGet(t, n, "enabled").AsBool()
	require.NoError(t, err)
	assert.True(t, enabled)

	got, err := mustGet(t, n, "version").AsVersion()
	require.NoError(t, err)
	assert.True(t, got.Equal(v))
}

func TestMissingKeyDefaults(t *testing.T) {
	n := node.Table(nil)
	assert.Equal(t, "fallback", n.StringOr("missing", "fallback"))
	assert.EqualValues(t, 42, n.IntOr("missing", 42))
	assert.False(t, n.BoolOr("missing", false))
}

func TestWrongKindProjectionErrors(t *testing.T) {
	n := node.String("hello")
	_, err := n.AsInt()
	assert.Error(t, err)
}

func mustGet(t *testing.T, n node.Node, key string) node.Node {
	t.Helper()
	child, ok := n.Get(key)
	require.True(t, ok, "missing key %q", key)
	return child
}
