// Package registry loads the static asset catalog: every deliverable asset
// with its encoding variants, plus the named bundles that group them. The
// catalog is read once at startup and is read-only afterwards.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"assetd/internal/common/fsutil"
	"assetd/pkg/types"
)

// File is the on-disk catalog shape. Bundles reference assets by id so one
// asset can appear in several bundles without duplicating its variants.
type File struct {
	Assets  []types.AssetDescriptor `json:"assets" yaml:"assets" toml:"assets"`
	Bundles []BundleDef             `json:"bundles" yaml:"bundles" toml:"bundles"`
}

// BundleDef names a bundle and lists its member asset ids.
type BundleDef struct {
	ID       string         `json:"id" yaml:"id" toml:"id"`
	Priority types.Priority `json:"priority" yaml:"priority" toml:"priority"`
	Assets   []string       `json:"assets" yaml:"assets" toml:"assets"`
}

// Registry is the resolved, validated catalog.
type Registry struct {
	assets  map[string]types.AssetDescriptor
	bundles map[string]types.AssetBundle
}

// Load reads a catalog file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (*Registry, error) {
	if path == "" {
		return nil, fmt.Errorf("empty registry path")
	}
	expanded, err := fsutil.ExpandHome(path)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(expanded)
	if err != nil {
		return nil, err
	}
	var f File
	switch ext := strings.ToLower(filepath.Ext(expanded)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &f); err != nil {
			return nil, err
		}
	case ".json":
		if err := json.Unmarshal(b, &f); err != nil {
			return nil, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &f); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported registry extension: %s", ext)
	}
	return Build(f)
}

// Build validates a catalog and resolves bundle references.
func Build(f File) (*Registry, error) {
	r := &Registry{
		assets:  make(map[string]types.AssetDescriptor, len(f.Assets)),
		bundles: make(map[string]types.AssetBundle, len(f.Bundles)),
	}
	for _, a := range f.Assets {
		if err := validateAsset(a); err != nil {
			return nil, err
		}
		if _, dup := r.assets[a.ID]; dup {
			return nil, fmt.Errorf("duplicate asset id %q", a.ID)
		}
		r.assets[a.ID] = a
	}
	for _, bd := range f.Bundles {
		if bd.ID == "" {
			return nil, fmt.Errorf("bundle with empty id")
		}
		if _, dup := r.bundles[bd.ID]; dup {
			return nil, fmt.Errorf("duplicate bundle id %q", bd.ID)
		}
		if !bd.Priority.Valid() {
			return nil, fmt.Errorf("bundle %q: unknown priority %q", bd.ID, bd.Priority)
		}
		bundle := types.AssetBundle{ID: bd.ID, Priority: bd.Priority}
		for _, id := range bd.Assets {
			a, ok := r.assets[id]
			if !ok {
				return nil, fmt.Errorf("bundle %q references unknown asset %q", bd.ID, id)
			}
			switch a.Kind {
			case types.KindModel:
				bundle.Models = append(bundle.Models, a)
			case types.KindTexture:
				bundle.Textures = append(bundle.Textures, a)
			}
		}
		r.bundles[bd.ID] = bundle
	}
	return r, nil
}

func validateAsset(a types.AssetDescriptor) error {
	if a.ID == "" {
		return fmt.Errorf("asset with empty id")
	}
	if a.Kind != types.KindModel && a.Kind != types.KindTexture {
		return fmt.Errorf("asset %q: unknown kind %q", a.ID, a.Kind)
	}
	if !a.Priority.Valid() {
		return fmt.Errorf("asset %q: unknown priority %q", a.ID, a.Priority)
	}
	if err := validateVariant(a.ID, "baseline", a.Baseline); err != nil {
		return err
	}
	seen := map[types.Codec]bool{a.Baseline.Codec: true}
	for _, v := range a.Alternates {
		if err := validateVariant(a.ID, string(v.Codec), v); err != nil {
			return err
		}
		if seen[v.Codec] {
			return fmt.Errorf("asset %q: duplicate variant codec %q", a.ID, v.Codec)
		}
		seen[v.Codec] = true
	}
	return nil
}

func validateVariant(assetID, label string, v types.Variant) error {
	if v.URL == "" {
		return fmt.Errorf("asset %q: %s variant has no url", assetID, label)
	}
	if v.SizeBytes <= 0 {
		return fmt.Errorf("asset %q: %s variant size must be positive", assetID, label)
	}
	if v.Codec == "" {
		return fmt.Errorf("asset %q: %s variant has no codec", assetID, label)
	}
	return nil
}

// Asset returns one descriptor by id.
func (r *Registry) Asset(id string) (types.AssetDescriptor, bool) {
	a, ok := r.assets[id]
	return a, ok
}

// Bundle returns one resolved bundle by id.
func (r *Registry) Bundle(id string) (types.AssetBundle, bool) {
	b, ok := r.bundles[id]
	return b, ok
}

// Assets lists every descriptor, sorted by id.
func (r *Registry) Assets() []types.AssetDescriptor {
	out := make([]types.AssetDescriptor, 0, len(r.assets))
	for _, a := range r.assets {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Bundles lists every resolved bundle, sorted by id.
func (r *Registry) Bundles() []types.AssetBundle {
	out := make([]types.AssetBundle, 0, len(r.bundles))
	for _, b := range r.bundles {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
