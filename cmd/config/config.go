package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mattsolo1/grove-coursebook/pkg/backend"
	"github.com/mattsolo1/grove-coursebook/pkg/service"
	"github.com/mattsolo1/grove-coursebook/pkg/workspace"
)

const (
	defaultContentDir = "."
	defaultBackendURL = "http://localhost:8000"
)

var (
	cfgFile          string
	ContentDirFlag   string
	BackendURLFlag   string
	LogLevelOverride string
)

func InitConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		configDir := filepath.Join(home, ".config", "cb")
		viper.AddConfigPath(configDir)
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("CB")
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("data_dir", filepath.Join(os.Getenv("HOME"), ".local", "share", "cb"))
	viper.SetDefault("asset_base", "/content")
	viper.SetDefault("timeout", backend.DefaultTimeout)
	viper.SetDefault("max_rows", backend.DefaultMaxRows)
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("listen", "127.0.0.1:8080")

	// A missing config file is fine; defaults and env apply.
	_ = viper.ReadInConfig()
}

// ServiceConfig merges flags, the cb config file, CB_* variables and the
// coursebook section of grove.yml. Flags win, then explicit cb settings,
// then grove.yml, then defaults.
func ServiceConfig() *service.Config {
	grove := workspace.LoadGroveConfig()
	return resolve(grove)
}

func resolve(grove workspace.CoursebookConfig) *service.Config {
	contentDir := firstNonEmpty(ContentDirFlag, viper.GetString("content_dir"), grove.ContentDir, defaultContentDir)
	backendURL := firstNonEmpty(BackendURLFlag, viper.GetString("backend_url"), grove.BackendURL, defaultBackendURL)

	timeout := parseTimeout(viper.GetString("timeout"))

	return &service.Config{
		ContentDir: workspace.ExpandHome(contentDir),
		DataDir:    workspace.ExpandHome(viper.GetString("data_dir")),
		BackendURL: backendURL,
		AssetBase:  viper.GetString("asset_base"),
		Timeout:    timeout,
		MaxRows:    viper.GetInt("max_rows"),
	}
}

// NewLogger builds the process logger. Logs go to stderr so command
// output on stdout stays clean.
func NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	level := viper.GetString("log_level")
	if LogLevelOverride != "" {
		level = LogLevelOverride
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.WarnLevel
	}
	logger.SetLevel(lvl)
	return logger
}

// ListenAddr is the address for cb serve.
func ListenAddr() string {
	return viper.GetString("listen")
}

// parseTimeout reads a timeout given either as whole seconds ("120") or
// as a duration ("2m"). Anything unparsable or under a second yields the
// default.
func parseTimeout(v string) time.Duration {
	v = strings.TrimSpace(v)
	d := time.Duration(0)
	if n, err := strconv.Atoi(v); err == nil {
		d = time.Duration(n) * time.Second
	} else if parsed, err := time.ParseDuration(v); err == nil {
		d = parsed
	}
	if d < time.Second {
		return backend.DefaultTimeout
	}
	return d
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func AddGlobalFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/cb/config.yaml)")
	cmd.PersistentFlags().StringVarP(&ContentDirFlag, "content", "C", "", "Course content directory")
	cmd.PersistentFlags().StringVar(&BackendURLFlag, "backend", "", "Notebook execution backend URL")
	cmd.PersistentFlags().StringVar(&LogLevelOverride, "log-level", "", "Log level (debug, info, warn, error)")
}
