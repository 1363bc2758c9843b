package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"

	"github.com/mattsolo1/grove-coursebook/pkg/backend"
	"github.com/mattsolo1/grove-coursebook/pkg/workspace"
)

func resetConfig(t *testing.T) {
	t.Helper()
	viper.Reset()
	ContentDirFlag, BackendURLFlag = "", ""
	t.Cleanup(func() {
		viper.Reset()
		ContentDirFlag, BackendURLFlag = "", ""
	})
}

func TestResolveDefaults(t *testing.T) {
	resetConfig(t)

	cfg := resolve(workspace.CoursebookConfig{})
	assert.Equal(t, defaultContentDir, cfg.ContentDir)
	assert.Equal(t, defaultBackendURL, cfg.BackendURL)
	assert.Equal(t, backend.DefaultTimeout, cfg.Timeout)
}

func TestResolvePrecedence(t *testing.T) {
	resetConfig(t)
	grove := workspace.CoursebookConfig{ContentDir: "/grove/course", BackendURL: "http://grove:9000"}

	cfg := resolve(grove)
	assert.Equal(t, "/grove/course", cfg.ContentDir)
	assert.Equal(t, "http://grove:9000", cfg.BackendURL)

	viper.Set("content_dir", "/cb/course")
	viper.Set("timeout", 5*time.Second)
	cfg = resolve(grove)
	assert.Equal(t, "/cb/course", cfg.ContentDir)
	assert.Equal(t, "http://grove:9000", cfg.BackendURL)
	assert.Equal(t, 5*time.Second, cfg.Timeout)

	ContentDirFlag = "/flag/course"
	BackendURLFlag = "http://flag:1"
	cfg = resolve(grove)
	assert.Equal(t, "/flag/course", cfg.ContentDir)
	assert.Equal(t, "http://flag:1", cfg.BackendURL)
}

func TestResolveTimeoutUnits(t *testing.T) {
	resetConfig(t)

	tests := []struct {
		value interface{}
		want  time.Duration
	}{
		{120, 120 * time.Second},
		{"300", 300 * time.Second},
		{"2m", 2 * time.Minute},
		{5 * time.Second, 5 * time.Second},
		{"0", backend.DefaultTimeout},
		{"500ms", backend.DefaultTimeout},
		{"soon", backend.DefaultTimeout},
	}
	for _, tt := range tests {
		viper.Set("timeout", tt.value)
		cfg := resolve(workspace.CoursebookConfig{})
		assert.Equal(t, tt.want, cfg.Timeout, "timeout %v", tt.value)
	}
}
