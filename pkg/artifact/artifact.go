// Package artifact implements Layer and Artifact (spec.md §3) and the
// content-addressing invariant that ties an artifact's config digest to
// its serialized config plus its layer descriptors.
package artifact

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/edo-build/edo/pkg/edoid"
	"github.com/edo-build/edo/pkg/mediatype"
)

// Layer is an immutable, content-addressed blob belonging to an artifact.
type Layer struct {
	MediaType mediatype.MediaType `json:"mediaType"`
	Digest    string              `json:"digest"`
	Size      int64               `json:"size"`
	Platform  *string             `json:"platform,omitempty"`
}

type layerWire struct {
	MediaType string  `json:"mediaType"`
	Digest    string  `json:"digest"`
	Size      int64   `json:"size"`
	Platform  *string `json:"platform,omitempty"`
}

// MarshalJSON renders the wire form from the §6 external interface.
func (l Layer) MarshalJSON() ([]byte, error) {
	return json.Marshal(layerWire{
		MediaType: l.MediaType.String(),
		Digest:    l.Digest,
		Size:      l.Size,
		Platform:  l.Platform,
	})
}

// UnmarshalJSON parses the wire form.
func (l *Layer) UnmarshalJSON(data []byte) error {
	var w layerWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	mt, err := mediatype.Parse(w.MediaType)
	if err != nil {
		return err
	}
	l.MediaType = mt
	l.Digest = w.Digest
	l.Size = w.Size
	l.Platform = w.Platform
	return nil
}

// Config is an artifact's content-addressed payload descriptor.
type Config struct {
	Id       edoid.Id                     `json:"id"`
	Provides map[string]struct{}          `json:"-"`
	Requires map[string]map[string]string `json:"requires,omitempty"`
	Metadata map[string]any               `json:"metadata,omitempty"`
}

type configWire struct {
	Id       idWire                        `json:"id"`
	Provides []string                      `json:"provides,omitempty"`
	Requires map[string]map[string]string  `json:"requires,omitempty"`
	Metadata map[string]any                `json:"metadata,omitempty"`
}

type idWire struct {
	Name    string `json:"name"`
	Package string `json:"package,omitempty"`
	Version string `json:"version,omitempty"`
	Arch    string `json:"arch,omitempty"`
	Digest  string `json:"digest"`
}

// ProvidesSet builds a Provides set from a variadic list, the usual way
// callers populate Config without fiddling with map literals.
func ProvidesSet(items ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		set[it] = struct{}{}
	}
	return set
}

func (c Config) providesSorted() []string {
	out := make([]string, 0, len(c.Provides))
	for k := range c.Provides {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (c Config) toWire(digestOverride string) configWire {
	id := c.Id
	return configWire{
		Id: idWire{
			Name:    id.Name,
			Package: id.Package,
			Version: id.Version,
			Arch:    id.Arch,
			Digest:  digestOverride,
		},
		Provides: c.providesSorted(),
		Requires: c.Requires,
		Metadata: c.Metadata,
	}
}

// MarshalJSON renders the §6 wire form, digest included.
func (c Config) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.toWire(c.Id.Digest))
}

// UnmarshalJSON parses the §6 wire form.
func (c *Config) UnmarshalJSON(data []byte) error {
	var w configWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	c.Id = edoid.Id{Name: w.Id.Name, Package: w.Id.Package, Version: w.Id.Version, Arch: w.Id.Arch, Digest: w.Id.Digest}
	c.Provides = ProvidesSet(w.Provides...)
	c.Requires = w.Requires
	c.Metadata = w.Metadata
	return nil
}

// Artifact is an OCI-shaped content-addressed build output: an outer
// media type (usually Manifest), a config, and an ordered list of layers.
type Artifact struct {
	MediaType mediatype.MediaType `json:"mediaType"`
	Config    Config              `json:"config"`
	Layers    []Layer             `json:"layers"`
}

type artifactWire struct {
	MediaType string      `json:"mediaType"`
	Config    json.RawMessage `json:"config"`
	Layers    []Layer     `json:"layers"`
}

// MarshalJSON renders the §6 manifest wire form.
func (a Artifact) MarshalJSON() ([]byte, error) {
	cfg, err := json.Marshal(a.Config)
	if err != nil {
		return nil, err
	}
	return json.Marshal(artifactWire{
		MediaType: a.MediaType.String(),
		Config:    cfg,
		Layers:    a.Layers,
	})
}

// UnmarshalJSON parses the §6 manifest wire form.
func (a *Artifact) UnmarshalJSON(data []byte) error {
	var w artifactWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	mt, err := mediatype.Parse(w.MediaType)
	if err != nil {
		return err
	}
	var cfg Config
	if err := json.Unmarshal(w.Config, &cfg); err != nil {
		return err
	}
	a.MediaType = mt
	a.Config = cfg
	a.Layers = w.Layers
	return nil
}

// digestPayload serializes the config (with its id digest blanked, since
// the digest is what we are computing) concatenated with the ordered
// layer descriptors, per spec.md §3's invariant:
//
//	Blake3(serialize(a.config) ∥ descriptors(a.layers)) == a.config.id.digest
func digestPayload(cfg Config, layers []Layer) ([]byte, error) {
	cfgBytes, err := json.Marshal(cfg.toWire(""))
	if err != nil {
		return nil, fmt.Errorf("artifact: marshal config for digest: %w", err)
	}
	layerBytes, err := json.Marshal(layers)
	if err != nil {
		return nil, fmt.Errorf("artifact: marshal layers for digest: %w", err)
	}
	var buf bytes.Buffer
	buf.Write(cfgBytes)
	buf.Write(layerBytes)
	return buf.Bytes(), nil
}

// Finalize computes a.Config.Id.Digest from the current config and layers
// and returns the updated artifact. Call this after assembling all layers
// and before Config.Id.Digest is relied upon (e.g. before Backend.Save).
func Finalize(a Artifact) (Artifact, error) {
	payload, err := digestPayload(a.Config, a.Layers)
	if err != nil {
		return Artifact{}, err
	}
	a.Config.Id.Digest = edoid.Blake3Hex(payload)
	return a, nil
}

// VerifyDigest reports whether a.Config.Id.Digest matches the recomputed
// digest of its current config+layers, the round-trip property spec.md §8
// requires.
func VerifyDigest(a Artifact) (bool, error) {
	payload, err := digestPayload(a.Config, a.Layers)
	if err != nil {
		return false, err
	}
	return edoid.Blake3Hex(payload) == a.Config.Id.Digest, nil
}
