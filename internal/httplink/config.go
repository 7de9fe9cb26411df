package httplink

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// configNames are the files LoadConfig looks for, in order.
var configNames = []string{".contractcheck.yaml", ".contractcheck.yml", ".contractcheck.toml"}

// ConfigFiles returns the file names, relative to a facts directory, that
// LoadConfig reads.
func ConfigFiles() []string {
	return append(append([]string(nil), configNames...), ".env")
}

// Env vars appended to the file configuration (comma-separated).
const (
	envInternalDomains = "CONTRACTCHECK_INTERNAL_DOMAINS"
	envInternalEnvVars = "CONTRACTCHECK_INTERNAL_ENV_VARS"
	envExternalEnvVars = "CONTRACTCHECK_EXTERNAL_ENV_VARS"
)

// LinkerConfig holds user-overridable linker settings.
// Loaded from .contractcheck.yaml (or .toml) in the facts directory.
type LinkerConfig struct {
	HTTPLinker HTTPLinkerConfig `yaml:"http_linker" toml:"http_linker"`
}

// HTTPLinkerConfig holds HTTP linker-specific settings.
type HTTPLinkerConfig struct {
	// InternalDomains are hostnames (and their subdomains) that belong to the
	// analysed organisation.
	InternalDomains []string `yaml:"internal_domains" toml:"internal_domains"`

	// InternalEnvVars name env vars whose value is an internal service base URL.
	InternalEnvVars []string `yaml:"internal_env_vars" toml:"internal_env_vars"`

	// ExternalEnvVars name env vars that point outside the organisation.
	ExternalEnvVars []string `yaml:"external_env_vars" toml:"external_env_vars"`

	// ExcludePaths are endpoint paths never reported as orphaned. Empty by
	// default: health and metrics routes are listed here when wanted.
	ExcludePaths []string `yaml:"exclude_paths" toml:"exclude_paths"`

	// Suggestions enables "did you mean" hints on missing endpoints.
	// Default: true.
	Suggestions *bool `yaml:"suggestions" toml:"suggestions"`

	// MinSimilarity is the minimum similarity for a suggestion.
	// Default: 0.6.
	MinSimilarity *float64 `yaml:"min_similarity" toml:"min_similarity"`
}

// DefaultConfig returns the default linker configuration.
func DefaultConfig() *LinkerConfig {
	return &LinkerConfig{}
}

// LoadConfig reads the first config file found in dir, then applies env
// overrides. A missing or invalid file yields the defaults.
func LoadConfig(dir string) *LinkerConfig {
	cfg := DefaultConfig()
	for _, name := range configNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		loaded, err := LoadConfigFile(path)
		if err != nil {
			slog.Warn("config.load.err", "path", path, "err", err)
			break
		}
		cfg = loaded
		break
	}
	_ = godotenv.Load(filepath.Join(dir, ".env"))
	cfg.ApplyEnv()
	return cfg
}

// LoadConfigFile decodes a YAML or TOML config file, chosen by extension.
func LoadConfigFile(path string) (*LinkerConfig, error) {
	cfg := DefaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("decode toml %s: %w", path, err)
		}
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode yaml %s: %w", path, err)
		}
	}
	return cfg, nil
}

// ApplyEnv appends the comma-separated CONTRACTCHECK_* env lists.
func (c *LinkerConfig) ApplyEnv() {
	c.HTTPLinker.InternalDomains = append(c.HTTPLinker.InternalDomains, splitList(os.Getenv(envInternalDomains))...)
	c.HTTPLinker.InternalEnvVars = append(c.HTTPLinker.InternalEnvVars, splitList(os.Getenv(envInternalEnvVars))...)
	c.HTTPLinker.ExternalEnvVars = append(c.HTTPLinker.ExternalEnvVars, splitList(os.Getenv(envExternalEnvVars))...)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// EffectiveSuggestions returns the configured suggestion setting,
// or the default (true) if not set.
func (c *LinkerConfig) EffectiveSuggestions() bool {
	if c.HTTPLinker.Suggestions != nil {
		return *c.HTTPLinker.Suggestions
	}
	return true
}

// EffectiveMinSimilarity returns the configured minimum similarity,
// or the default (0.6) if not set.
func (c *LinkerConfig) EffectiveMinSimilarity() float64 {
	if c.HTTPLinker.MinSimilarity != nil {
		return *c.HTTPLinker.MinSimilarity
	}
	return 0.6
}

// AllExcludePaths returns a copy of the configured exclude paths. There are no
// built-in entries, so every uncalled endpoint is an orphan unless listed.
func (c *LinkerConfig) AllExcludePaths() []string {
	return append([]string(nil), c.HTTPLinker.ExcludePaths...)
}

// isPathExcluded checks if a route path matches any of the given exclusion paths.
func isPathExcluded(path string, excludePaths []string) bool {
	normalized := strings.ToLower(strings.TrimRight(path, "/"))
	for _, excluded := range excludePaths {
		if strings.EqualFold(normalized, strings.TrimRight(excluded, "/")) {
			return true
		}
	}
	return false
}
