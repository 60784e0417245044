package plugin_test

import (
	"context"
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edo-build/edo/pkg/addr"
	"github.com/edo-build/edo/pkg/environment"
	"github.com/edo-build/edo/pkg/node"
	"github.com/edo-build/edo/pkg/plugin"
	"github.com/edo-build/edo/pkg/source"
	"github.com/edo-build/edo/pkg/storage"
	"github.com/edo-build/edo/pkg/transform"
	"github.com/edo-build/edo/pkg/vendor"
)

// stubPlugin supports exactly one (component, providerKind) pair, so
// tests can tell which registered plugin answered a request.
type stubPlugin struct {
	component    plugin.Kind
	providerKind string
	tag          string
}

func (p *stubPlugin) Supports(component plugin.Kind, providerKind string) bool {
	return component == p.component && providerKind == p.providerKind
}

func (p *stubPlugin) CreateStorage(context.Context, addr.Addr, node.Node) (storage.Backend, error) {
	return nil, nil
}
func (p *stubPlugin) CreateFarm(context.Context, addr.Addr, node.Node) (environment.Farm, error) {
	return nil, nil
}
func (p *stubPlugin) CreateSource(context.Context, addr.Addr, node.Node) (source.Source, error) {
	return nil, nil
}
func (p *stubPlugin) CreateTransform(context.Context, addr.Addr, node.Node) (transform.Transform, error) {
	return nil, nil
}
func (p *stubPlugin) CreateVendor(context.Context, addr.Addr, node.Node) (vendor.Vendor, error) {
	return &tagVendor{tag: p.tag}, nil
}

type tagVendor struct{ tag string }

func (v *tagVendor) Name() string { return v.tag }
func (v *tagVendor) Options(context.Context, string) ([]*semver.Version, error) {
	return nil, nil
}
func (v *tagVendor) Resolve(context.Context, string, *semver.Version) (node.Node, error) {
	return node.Node{}, nil
}
func (v *tagVendor) Dependencies(context.Context, string, *semver.Version) (map[string]string, error) {
	return nil, nil
}

func TestHostTriesPluginsInRegistrationOrderAndStopsAtFirstMatch(t *testing.T) {
	h := plugin.NewHost()
	h.Register(&stubPlugin{component: plugin.KindVendor, providerKind: "git", tag: "first"})
	h.Register(&stubPlugin{component: plugin.KindVendor, providerKind: "git", tag: "second"})

	v, err := h.CreateVendor(context.Background(), "git", addr.New("//vendor/git"), node.Table(nil))
	require.NoError(t, err)
	assert.Equal(t, "first", v.Name())
}

func TestHostReturnsErrorWhenNoPluginSupportsTheRequest(t *testing.T) {
	h := plugin.NewHost()
	h.Register(&stubPlugin{component: plugin.KindVendor, providerKind: "git", tag: "only"})

	_, err := h.CreateSource(context.Background(), "http", addr.New("//source/http"), node.Table(nil))
	require.Error(t, err)
}

func TestKindStringMatchesComponentName(t *testing.T) {
	assert.Equal(t, "storage", plugin.KindStorage.String())
	assert.Equal(t, "farm", plugin.KindFarm.String())
	assert.Equal(t, "source", plugin.KindSource.String())
	assert.Equal(t, "transform", plugin.KindTransform.String())
	assert.Equal(t, "vendor", plugin.KindVendor.String())
}
