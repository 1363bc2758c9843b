package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/mattsolo1/grove-coursebook/pkg/content"
)

// ManifestName is the optional per-course manifest at the content root.
const ManifestName = "course.yml"

// Manifest describes a course directory.
type Manifest struct {
	Title     string   `yaml:"title" json:"title"`
	Container string   `yaml:"container" json:"container"`
	Hidden    []string `yaml:"hidden" json:"hidden"`
}

// Course is a content root on disk together with its manifest.
type Course struct {
	Root     string   `json:"root"`
	Manifest Manifest `json:"manifest"`
}

// Open resolves root and loads its manifest. A missing manifest yields
// the defaults.
func Open(root string) (*Course, error) {
	if root == "" {
		return nil, fmt.Errorf("content directory cannot be empty")
	}
	abs, err := filepath.Abs(ExpandHome(root))
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("content directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("content directory %s is not a directory", abs)
	}

	m, err := LoadManifest(abs)
	if err != nil {
		return nil, err
	}
	return &Course{Root: abs, Manifest: m}, nil
}

// LoadManifest reads course.yml from dir.
func LoadManifest(dir string) (Manifest, error) {
	var m Manifest
	data, err := os.ReadFile(filepath.Join(dir, ManifestName))
	if errors.Is(err, os.ErrNotExist) {
		return m, nil
	}
	if err != nil {
		return m, err
	}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("parse %s: %w", ManifestName, err)
	}
	return m, nil
}

// Title is the manifest title, or the root directory name.
func (c *Course) Title() string {
	if c.Manifest.Title != "" {
		return c.Manifest.Title
	}
	return filepath.Base(c.Root)
}

// Hidden returns the default hidden markers followed by the manifest's
// extra markers, without duplicates.
func (c *Course) Hidden() []string {
	seen := map[string]bool{}
	var out []string
	for _, list := range [][]string{content.DefaultHidden, c.Manifest.Hidden} {
		for _, h := range list {
			if h != "" && !seen[h] {
				seen[h] = true
				out = append(out, h)
			}
		}
	}
	return out
}

// Builder returns a tree builder configured from the manifest.
func (c *Course) Builder(logger *logrus.Entry) *content.Builder {
	return content.NewBuilder(c.Manifest.Container, c.Hidden(), logger)
}

// Source returns a directory source over the course root. Asset
// locators are prefixed with assetBase.
func (c *Course) Source(assetBase string) *content.DirSource {
	return &content.DirSource{Root: c.Root, AssetBase: assetBase}
}
