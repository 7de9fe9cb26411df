package httplink

import (
	"os"
	"path/filepath"
	"testing"
)

// unsetEnv clears key for the test and restores it afterwards.
func unsetEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	os.Unsetenv(key)
}

func clearLinkerEnv(t *testing.T) {
	t.Helper()
	unsetEnv(t, envInternalDomains)
	unsetEnv(t, envInternalEnvVars)
	unsetEnv(t, envExternalEnvVars)
}

func TestLoadConfigDefault(t *testing.T) {
	clearLinkerEnv(t)
	cfg := LoadConfig("/nonexistent/path")
	if cfg.EffectiveMinSimilarity() != 0.6 {
		t.Errorf("expected default min_similarity 0.6, got %f", cfg.EffectiveMinSimilarity())
	}
	if !cfg.EffectiveSuggestions() {
		t.Error("expected default suggestions true")
	}
	if paths := cfg.AllExcludePaths(); len(paths) != 0 {
		t.Errorf("expected no default exclude paths, got %v", paths)
	}
	if len(cfg.HTTPLinker.InternalDomains) != 0 {
		t.Errorf("expected no internal domains, got %v", cfg.HTTPLinker.InternalDomains)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	clearLinkerEnv(t)
	dir := t.TempDir()
	configContent := `
http_linker:
  internal_domains:
    - user-service.internal
  internal_env_vars: [USER_SERVICE_URL]
  external_env_vars: [STRIPE_URL]
  exclude_paths:
    - /debug
    - /internal/status
  min_similarity: 0.5
  suggestions: false
`
	if err := os.WriteFile(filepath.Join(dir, ".contractcheck.yaml"), []byte(configContent), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := LoadConfig(dir)
	if cfg.EffectiveMinSimilarity() != 0.5 {
		t.Errorf("expected min_similarity 0.5, got %f", cfg.EffectiveMinSimilarity())
	}
	if cfg.EffectiveSuggestions() {
		t.Error("expected suggestions false")
	}
	paths := cfg.AllExcludePaths()
	if len(paths) != 2 || paths[0] != "/debug" || paths[1] != "/internal/status" {
		t.Errorf("exclude paths = %v", paths)
	}
	if got := cfg.HTTPLinker.InternalDomains; len(got) != 1 || got[0] != "user-service.internal" {
		t.Errorf("internal_domains = %v", got)
	}
	if got := cfg.HTTPLinker.InternalEnvVars; len(got) != 1 || got[0] != "USER_SERVICE_URL" {
		t.Errorf("internal_env_vars = %v", got)
	}
	if got := cfg.HTTPLinker.ExternalEnvVars; len(got) != 1 || got[0] != "STRIPE_URL" {
		t.Errorf("external_env_vars = %v", got)
	}
}

func TestLoadConfigFromTOML(t *testing.T) {
	clearLinkerEnv(t)
	dir := t.TempDir()
	configContent := `
[http_linker]
internal_domains = ["orders.internal"]
exclude_paths = ["/debug"]
min_similarity = 0.8
`
	if err := os.WriteFile(filepath.Join(dir, ".contractcheck.toml"), []byte(configContent), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := LoadConfig(dir)
	if cfg.EffectiveMinSimilarity() != 0.8 {
		t.Errorf("expected min_similarity 0.8, got %f", cfg.EffectiveMinSimilarity())
	}
	if !cfg.EffectiveSuggestions() {
		t.Error("expected default suggestions true")
	}
	if got := cfg.HTTPLinker.InternalDomains; len(got) != 1 || got[0] != "orders.internal" {
		t.Errorf("internal_domains = %v", got)
	}
	if paths := cfg.AllExcludePaths(); len(paths) != 1 || paths[0] != "/debug" {
		t.Errorf("exclude paths = %v", paths)
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	clearLinkerEnv(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".contractcheck.yaml"), []byte("not: [valid: yaml"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg := LoadConfig(dir)
	// Should fall back to defaults
	if cfg.EffectiveMinSimilarity() != 0.6 {
		t.Errorf("expected default on invalid yaml, got %f", cfg.EffectiveMinSimilarity())
	}
}

func TestLoadConfigFileErrors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.toml")
	if err := os.WriteFile(bad, []byte("[http_linker\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfigFile(bad); err == nil {
		t.Error("expected error for invalid toml")
	}
	if _, err := LoadConfigFile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	clearLinkerEnv(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".contractcheck.yaml"),
		[]byte("http_linker:\n  internal_domains: [a.internal]\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(envInternalDomains, "b.internal, c.internal,")
	// The .env file fills in variables that are not already set.
	if err := os.WriteFile(filepath.Join(dir, ".env"),
		[]byte(envExternalEnvVars+"=STRIPE_URL\n"+envInternalDomains+"=ignored.internal\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := LoadConfig(dir)
	want := []string{"a.internal", "b.internal", "c.internal"}
	got := cfg.HTTPLinker.InternalDomains
	if len(got) != len(want) {
		t.Fatalf("internal_domains = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("internal_domains[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if ext := cfg.HTTPLinker.ExternalEnvVars; len(ext) != 1 || ext[0] != "STRIPE_URL" {
		t.Errorf("external_env_vars = %v, want [STRIPE_URL]", ext)
	}
}

func TestIsPathExcluded(t *testing.T) {
	paths := []string{"/health", "/debug", "/internal/status"}

	tests := []struct {
		path string
		want bool
	}{
		{"/health", true},
		{"/health/", true},
		{"/HEALTH", true},
		{"/debug", true},
		{"/internal/status", true},
		{"/api/orders", false},
		{"/healthcheck", false},
	}
	for _, tt := range tests {
		got := isPathExcluded(tt.path, paths)
		if got != tt.want {
			t.Errorf("isPathExcluded(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestAllExcludePathsOnlyConfigured(t *testing.T) {
	cfg := DefaultConfig()
	if paths := cfg.AllExcludePaths(); len(paths) != 0 {
		t.Errorf("default AllExcludePaths() = %v, want empty", paths)
	}

	cfg.HTTPLinker.ExcludePaths = []string{"/custom1", "/custom2"}
	paths := cfg.AllExcludePaths()
	if len(paths) != 2 || paths[0] != "/custom1" || paths[1] != "/custom2" {
		t.Errorf("AllExcludePaths() = %v, want [/custom1 /custom2]", paths)
	}

	paths[0] = "mutated"
	if cfg.HTTPLinker.ExcludePaths[0] != "/custom1" {
		t.Error("AllExcludePaths must return a copy")
	}
}

func TestConfigFiles(t *testing.T) {
	files := ConfigFiles()
	if len(files) != len(configNames)+1 || files[len(files)-1] != ".env" {
		t.Errorf("ConfigFiles() = %v", files)
	}
	files[0] = "mutated"
	if configNames[0] == "mutated" {
		t.Error("ConfigFiles must return a copy")
	}
}
