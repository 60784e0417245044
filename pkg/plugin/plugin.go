// Package plugin models the plugin host's component interface (spec.md
// §6): a plugin implementation can be asked to construct any of Edo's
// five pluggable component kinds from a provider address plus a
// configuration Node. The dynamic loading mechanism itself (how a
// plugin binary is discovered and loaded) is out of scope — this package
// only models the interface a loaded plugin value satisfies.
package plugin

import (
	"context"
	"fmt"

	"github.com/edo-build/edo/pkg/addr"
	"github.com/edo-build/edo/pkg/environment"
	"github.com/edo-build/edo/pkg/node"
	"github.com/edo-build/edo/pkg/source"
	"github.com/edo-build/edo/pkg/storage"
	"github.com/edo-build/edo/pkg/transform"
	"github.com/edo-build/edo/pkg/vendor"
)

// Kind identifies which of the five pluggable component contracts a
// Plugin is being asked to construct.
type Kind int

const (
	KindStorage Kind = iota
	KindFarm
	KindSource
	KindTransform
	KindVendor
)

func (k Kind) String() string {
	switch k {
	case KindStorage:
		return "storage"
	case KindFarm:
		return "farm"
	case KindSource:
		return "source"
	case KindTransform:
		return "transform"
	case KindVendor:
		return "vendor"
	default:
		return "unknown"
	}
}

// Plugin is the component interface every plugin implementation
// satisfies. A single plugin may support any subset of the five kinds;
// Supports lets the host discover which before calling the matching
// Create method.
type Plugin interface {
	// Supports reports whether this plugin can construct component kind
	// for the given provider kind, per spec.md §6's "supports(component,
	// kind)" query.
	Supports(component Kind, providerKind string) bool

	CreateStorage(ctx context.Context, provider addr.Addr, cfg node.Node) (storage.Backend, error)
	CreateFarm(ctx context.Context, provider addr.Addr, cfg node.Node) (environment.Farm, error)
	CreateSource(ctx context.Context, provider addr.Addr, cfg node.Node) (source.Source, error)
	CreateTransform(ctx context.Context, provider addr.Addr, cfg node.Node) (transform.Transform, error)
	CreateVendor(ctx context.Context, provider addr.Addr, cfg node.Node) (vendor.Vendor, error)
}

// Host resolves component requests across a set of registered plugins,
// trying each in registration order and taking the first that Supports
// the request — the same "first registered vendor wins ties" determinism
// rule the resolver applies to its version pools (pkg/resolver).
type Host struct {
	plugins []Plugin
}

func NewHost() *Host { return &Host{} }

func (h *Host) Register(p Plugin) { h.plugins = append(h.plugins, p) }

func (h *Host) find(component Kind, providerKind string) (Plugin, error) {
	for _, p := range h.plugins {
		if p.Supports(component, providerKind) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("plugin: no registered plugin supports %s kind %q", component, providerKind)
}

func (h *Host) CreateStorage(ctx context.Context, providerKind string, provider addr.Addr, cfg node.Node) (storage.Backend, error) {
	p, err := h.find(KindStorage, providerKind)
	if err != nil {
		return nil, err
	}
	return p.CreateStorage(ctx, provider, cfg)
}

func (h *Host) CreateFarm(ctx context.Context, providerKind string, provider addr.Addr, cfg node.Node) (environment.Farm, error) {
	p, err := h.find(KindFarm, providerKind)
	if err != nil {
		return nil, err
	}
	return p.CreateFarm(ctx, provider, cfg)
}

func (h *Host) CreateSource(ctx context.Context, providerKind string, provider addr.Addr, cfg node.Node) (source.Source, error) {
	p, err := h.find(KindSource, providerKind)
	if err != nil {
		return nil, err
	}
	return p.CreateSource(ctx, provider, cfg)
}

func (h *Host) CreateTransform(ctx context.Context, providerKind string, provider addr.Addr, cfg node.Node) (transform.Transform, error) {
	p, err := h.find(KindTransform, providerKind)
	if err != nil {
		return nil, err
	}
	return p.CreateTransform(ctx, provider, cfg)
}

func (h *Host) CreateVendor(ctx context.Context, providerKind string, provider addr.Addr, cfg node.Node) (vendor.Vendor, error) {
	p, err := h.find(KindVendor, providerKind)
	if err != nil {
		return nil, err
	}
	return p.CreateVendor(ctx, provider, cfg)
}
