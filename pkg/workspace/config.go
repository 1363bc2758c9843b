package workspace

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/mattsolo1/grove-core/config"
)

// ExtensionKey is the grove.yml section read by coursebook.
const ExtensionKey = "coursebook"

// CoursebookConfig represents the 'coursebook' section in grove.yml
type CoursebookConfig struct {
	ContentDir string `yaml:"content_dir"`
	BackendURL string `yaml:"backend_url"`
}

// LoadGroveConfig reads the coursebook extension from the shared grove
// config. A missing config or section yields an empty value.
func LoadGroveConfig() CoursebookConfig {
	cfg, err := config.LoadDefault()
	if err != nil {
		return CoursebookConfig{}
	}
	return FromGroveConfig(cfg)
}

// FromGroveConfig extracts the coursebook extension from cfg.
func FromGroveConfig(cfg *config.Config) CoursebookConfig {
	var cb CoursebookConfig
	if cfg == nil {
		return cb
	}
	if err := cfg.UnmarshalExtension(ExtensionKey, &cb); err == nil && (cb.ContentDir != "" || cb.BackendURL != "") {
		cb.ContentDir = ExpandHome(cb.ContentDir)
		return cb
	}

	// Fall back to the raw extension map.
	if data, ok := cfg.Extensions[ExtensionKey]; ok {
		if m, ok := data.(map[string]interface{}); ok {
			if dir, ok := m["content_dir"].(string); ok {
				cb.ContentDir = ExpandHome(dir)
			}
			if u, ok := m["backend_url"].(string); ok {
				cb.BackendURL = u
			}
		}
	}
	return cb
}

// ExpandHome replaces a leading "~/" with the user's home directory.
func ExpandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return p
		}
		return filepath.Join(home, strings.TrimPrefix(p[1:], "/"))
	}
	return p
}
