package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"recast/internal/paths"
)

// Manifest filenames probed in order. TOML is the primary format, the
// YAML spelling exists for repositories that keep all their tooling
// config in YAML.
const (
	ManifestFileTOML = "recast.toml"
	ManifestFileYAML = "recast.yaml"
	ManifestFileYML  = "recast.yml"
)

// RootDeclaration declares one source root inside the workspace.
type RootDeclaration struct {
	// Name is a human-readable label for the root (optional)
	Name string `toml:"name" yaml:"name"`

	// Path is the workspace-relative path to the root directory
	Path string `toml:"path" yaml:"path"`

	// Namespace is the namespace documents under this root are
	// expected to declare (optional, checked by recast status)
	Namespace string `toml:"namespace,omitempty" yaml:"namespace,omitempty"`

	// Exclude lists directory names under this root to skip
	Exclude []string `toml:"exclude,omitempty" yaml:"exclude,omitempty"`
}

// Manifest is the parsed recast.toml / recast.yaml declaration file.
// When no manifest exists the whole workspace root is scanned.
type Manifest struct {
	// Version is the schema version
	Version int `toml:"version" yaml:"version"`

	// Roots lists the declared source roots
	Roots []RootDeclaration `toml:"root" yaml:"roots"`
}

// ParseManifest parses manifest bytes, choosing the codec from the
// file extension.
func ParseManifest(filePath string, data []byte) (*Manifest, error) {
	var m Manifest
	if strings.HasSuffix(filePath, ".yaml") || strings.HasSuffix(filePath, ".yml") {
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(filePath), err)
		}
	} else {
		if err := toml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(filePath), err)
		}
	}
	if m.Version < 1 {
		m.Version = 1
	}
	for i := range m.Roots {
		if m.Roots[i].Path == "" {
			return nil, fmt.Errorf("root declaration %d missing required 'path' field", i+1)
		}
		m.Roots[i].Path = paths.NormalizePath(m.Roots[i].Path)
	}
	return &m, nil
}

// LoadManifest loads the workspace manifest if one exists. A missing
// manifest is not an error; it returns (nil, nil).
func LoadManifest(workspaceRoot string) (*Manifest, error) {
	for _, name := range []string{ManifestFileTOML, ManifestFileYAML, ManifestFileYML} {
		filePath := filepath.Join(workspaceRoot, name)
		data, err := os.ReadFile(filePath)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		return ParseManifest(filePath, data)
	}
	return nil, nil
}

// RootFor returns the declared root containing the canonical path, or
// nil when the path falls outside every declared root.
func (m *Manifest) RootFor(canonicalPath string) *RootDeclaration {
	if m == nil {
		return nil
	}
	var best *RootDeclaration
	for i := range m.Roots {
		r := &m.Roots[i]
		if r.Path == "." || canonicalPath == r.Path || strings.HasPrefix(canonicalPath, r.Path+"/") {
			if best == nil || len(r.Path) > len(best.Path) {
				best = r
			}
		}
	}
	return best
}

// ExpectedNamespace returns the namespace a document at the canonical
// path is expected to declare, or "" when the manifest does not say.
func (m *Manifest) ExpectedNamespace(canonicalPath string) string {
	r := m.RootFor(canonicalPath)
	if r == nil {
		return ""
	}
	return r.Namespace
}
