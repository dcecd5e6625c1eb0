package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

const envPrefix = "QA_CONSOLE"

// consoleConfig holds every setting the console reads.
type consoleConfig struct {
	API      apiConfig      `mapstructure:"api"`
	Files    filesConfig    `mapstructure:"files"`
	UI       uiConfig       `mapstructure:"ui"`
	Export   exportConfig   `mapstructure:"export"`
	Snapshot snapshotConfig `mapstructure:"snapshot"`
	Log      logConfig      `mapstructure:"log"`
}

type apiConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type filesConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

type uiConfig struct {
	PageSize       int `mapstructure:"page_size"`
	WideBreakpoint int `mapstructure:"wide_breakpoint"`
}

type exportConfig struct {
	Dir string `mapstructure:"dir"`
}

type snapshotConfig struct {
	Path string `mapstructure:"path"`
}

type logConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

// loadConfig reads the optional config file, .env and QA_CONSOLE_* env vars.
func loadConfig() (consoleConfig, error) {
	_ = godotenv.Load()

	configDir, err := defaultConfigDir()
	if err != nil {
		return consoleConfig{}, err
	}

	v := viper.New()
	setConfigDefaults(v, configDir)

	configPath := strings.TrimSpace(os.Getenv(envPrefix + "_CONFIG"))
	if configPath == "" {
		configPath = filepath.Join(configDir, "config.yaml")
	}
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return consoleConfig{}, fmt.Errorf("read config %q: %w", configPath, err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg consoleConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return consoleConfig{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

func setConfigDefaults(v *viper.Viper, configDir string) {
	v.SetDefault("api.base_url", "")
	v.SetDefault("api.token", "")
	v.SetDefault("api.timeout", defaultHTTPTimeout)
	v.SetDefault("files.base_url", "")
	v.SetDefault("ui.page_size", defaultPageSize)
	v.SetDefault("ui.wide_breakpoint", defaultWideBreakpoint)
	v.SetDefault("export.dir", ".")
	v.SetDefault("snapshot.path", "")
	v.SetDefault("log.file", filepath.Join(configDir, "qa-console.log"))
	v.SetDefault("log.level", "info")
}

func (c *consoleConfig) normalize() {
	if c.UI.PageSize <= 0 {
		c.UI.PageSize = defaultPageSize
	}
	if c.UI.WideBreakpoint <= 0 {
		c.UI.WideBreakpoint = defaultWideBreakpoint
	}
	if c.API.Timeout <= 0 {
		c.API.Timeout = defaultHTTPTimeout
	}
	if strings.TrimSpace(c.Files.BaseURL) == "" && c.API.BaseURL != "" {
		c.Files.BaseURL = strings.TrimRight(c.API.BaseURL, "/") + "/files"
	}
	if strings.TrimSpace(c.Export.Dir) == "" {
		c.Export.Dir = "."
	}
	c.Snapshot.Path = expandHome(c.Snapshot.Path)
	c.Log.File = expandHome(c.Log.File)
	c.Export.Dir = expandHome(c.Export.Dir)
}

func defaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".config", "qa-console"), nil
}

func expandHome(path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed != "~" && !strings.HasPrefix(trimmed, "~/") {
		return trimmed
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return trimmed
	}
	return filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
}

// newBackend picks the snapshot backend when a snapshot path is configured.
func newBackend(cfg consoleConfig, log zerolog.Logger) (Backend, func() error, error) {
	if cfg.Snapshot.Path != "" {
		backend, err := openSnapshotBackend(cfg.Snapshot.Path, log)
		if err != nil {
			return nil, nil, err
		}
		return backend, backend.Close, nil
	}
	backend, err := newHTTPBackend(cfg.API, log)
	if err != nil {
		return nil, nil, err
	}
	return backend, func() error { return nil }, nil
}
