// Package config loads wikifs configuration from a YAML file and the
// environment. Command line flags are applied on top by cmd/wikifs.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FUSE bindings selectable with fuse_binding.
const (
	BindingBazil  = "bazil"
	BindingGoFuse = "gofuse"
)

// Config is the top-level configuration.
type Config struct {
	// URL is the wiki webapp root, e.g. http://localhost:8080/xwiki.
	URL string `yaml:"url"`

	// Wiki is the wiki the sync engine pushes to. Defaults to "xwiki".
	Wiki string `yaml:"wiki"`

	User string `yaml:"user"`
	Pass string `yaml:"pass"`

	// Headers are sent with every REST request.
	Headers map[string]string `yaml:"headers"`

	// Timeout bounds each REST request. Defaults to 30s.
	Timeout time.Duration `yaml:"timeout"`

	// Debug keeps response bodies of failed requests in errors.
	Debug bool `yaml:"debug"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// MountPath is where the filesystem is mounted; empty disables the mount.
	MountPath string `yaml:"mount_path"`

	// FUSEBinding picks the FUSE library: "bazil" (default) or "gofuse".
	FUSEBinding string `yaml:"fuse_binding"`

	AllowOther bool `yaml:"allow_other"`

	// StrictWrites fails writes the wiki rejects with EIO instead of
	// dropping them.
	StrictWrites bool `yaml:"strict_writes"`

	// SyncPath is the mirrored directory; empty disables sync.
	SyncPath string `yaml:"sync_path"`

	// SyncDataSource is the maven project holding page XML files.
	SyncDataSource string `yaml:"sync_data_source"`

	// XMLReadDir and XMLWriteDir add a maven project as an extra input or
	// output document store next to the wiki.
	XMLReadDir  string `yaml:"xml_read_dir"`
	XMLWriteDir string `yaml:"xml_write_dir"`

	// StateFile holds the sync manifest. Defaults to .wikifs-state.json next
	// to the sync directory.
	StateFile string `yaml:"state_file"`

	// MetricsAddr serves Prometheus metrics when set, e.g. ":9090".
	MetricsAddr string `yaml:"metrics_addr"`
}

// Default returns a configuration with defaults applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Wiki == "" {
		c.Wiki = "xwiki"
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	if c.FUSEBinding == "" {
		c.FUSEBinding = BindingBazil
	}
	if c.Headers == nil {
		c.Headers = make(map[string]string)
	}
}

// LoadConfig loads a configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyDefaults()
	return &config, nil
}

// ApplyEnv overrides fields from WIKIFS_* environment variables.
func (c *Config) ApplyEnv() {
	c.URL = envOr("WIKIFS_URL", c.URL)
	c.Wiki = envOr("WIKIFS_WIKI", c.Wiki)
	c.User = envOr("WIKIFS_USER", c.User)
	c.Pass = envOr("WIKIFS_PASS", c.Pass)
	c.Timeout = envDuration("WIKIFS_TIMEOUT", c.Timeout)
	c.Debug = envBool("WIKIFS_DEBUG", c.Debug)
	c.LogFormat = envOr("WIKIFS_LOG_FORMAT", c.LogFormat)
	c.MountPath = envOr("WIKIFS_MOUNT", c.MountPath)
	c.FUSEBinding = envOr("WIKIFS_FUSE_BINDING", c.FUSEBinding)
	c.AllowOther = envBool("WIKIFS_ALLOW_OTHER", c.AllowOther)
	c.StrictWrites = envBool("WIKIFS_STRICT_WRITES", c.StrictWrites)
	c.SyncPath = envOr("WIKIFS_SYNC", c.SyncPath)
	c.SyncDataSource = envOr("WIKIFS_SYNC_DATA_SOURCE", c.SyncDataSource)
	c.XMLReadDir = envOr("WIKIFS_XML_READ_DIR", c.XMLReadDir)
	c.XMLWriteDir = envOr("WIKIFS_XML_WRITE_DIR", c.XMLWriteDir)
	c.StateFile = envOr("WIKIFS_STATE", c.StateFile)
	c.MetricsAddr = envOr("WIKIFS_METRICS_ADDR", c.MetricsAddr)
}

// StatePath returns the manifest location.
func (c *Config) StatePath() string {
	if c.StateFile != "" {
		return c.StateFile
	}
	return filepath.Join(filepath.Dir(filepath.Clean(c.SyncPath)), ".wikifs-state.json")
}

// Validate checks that an action is selected and its inputs are present.
func (c *Config) Validate() error {
	if c.MountPath == "" && c.SyncPath == "" {
		return fmt.Errorf("nothing to do: set mount_path or sync_path")
	}

	if c.MountPath != "" {
		if c.URL == "" {
			return fmt.Errorf("url is required to mount")
		}
		switch c.FUSEBinding {
		case BindingBazil, BindingGoFuse:
		default:
			return fmt.Errorf("unknown fuse_binding %q (supported: %s, %s)", c.FUSEBinding, BindingBazil, BindingGoFuse)
		}
	}

	if c.SyncPath != "" && c.SyncDataSource == "" {
		return fmt.Errorf("sync_data_source is required to sync")
	}

	switch c.LogFormat {
	case "", "console", "json":
	default:
		return fmt.Errorf("unknown log_format %q (supported: console, json)", c.LogFormat)
	}

	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	return nil
}

// ParseHeader splits a "Name: value" header argument.
func ParseHeader(s string) (string, string, error) {
	name, value, ok := strings.Cut(s, ":")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return "", "", fmt.Errorf("invalid header %q, expected \"Name: value\"", s)
	}
	return name, strings.TrimSpace(value), nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
