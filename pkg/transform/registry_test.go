package transform_test

import (
	"context"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edo-build/edo/pkg/addr"
	"github.com/edo-build/edo/pkg/artifact"
	"github.com/edo-build/edo/pkg/edoid"
	"github.com/edo-build/edo/pkg/environment"
	"github.com/edo-build/edo/pkg/transform"
)

type stubTransform struct {
	addr    addr.Addr
	depends []addr.Addr
}

func (s stubTransform) Addr() addr.Addr          { return s.addr }
func (s stubTransform) Environment() addr.Addr   { return addr.New("//farm/local") }
func (s stubTransform) Depends() []addr.Addr     { return s.depends }
func (s stubTransform) UniqueId(context.Context, logr.Logger, transform.Handle) (edoid.Id, error) {
	return edoid.Id{}, nil
}
func (s stubTransform) Prepare(context.Context, logr.Logger, transform.Handle) error { return nil }
func (s stubTransform) Stage(context.Context, logr.Logger, transform.Handle, environment.Environment) error {
	return nil
}
func (s stubTransform) Execute(context.Context, logr.Logger, transform.Handle, environment.Environment) transform.Status {
	return transform.Success(artifact.Artifact{})
}
func (s stubTransform) CanShell() bool { return false }
func (s stubTransform) Shell(context.Context, logr.Logger, environment.Environment) error {
	return nil
}

func TestBuilderRejectsDuplicateAddr(t *testing.T) {
	b := transform.NewBuilder()
	require.NoError(t, b.Add(stubTransform{addr: addr.New("//a")}))
	err := b.Add(stubTransform{addr: addr.New("//a")})
	assert.Error(t, err)
}

func TestFreezeProducesLookableRegistry(t *testing.T) {
	b := transform.NewBuilder()
	require.NoError(t, b.Add(stubTransform{addr: addr.New("//a")}))
	require.NoError(t, b.Add(stubTransform{addr: addr.New("//b"), depends: []addr.Addr{addr.New("//a")}}))

	reg := b.Freeze()
	tr, ok := reg.Lookup(addr.New("//b"))
	require.True(t, ok)
	assert.Equal(t, []addr.Addr{addr.New("//a")}, tr.Depends())

	_, ok = reg.Lookup(addr.New("//missing"))
	assert.False(t, ok)
	assert.Len(t, reg.All(), 2)
}
