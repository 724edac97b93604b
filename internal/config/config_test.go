package config

import (
	"os"
	"path/filepath"
	"testing"
)

// ============================================================
// Defaults
// ============================================================

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.BaseURL != DefaultBaseURL {
		t.Errorf("BaseURL = %q, want %q", cfg.BaseURL, DefaultBaseURL)
	}
	if cfg.Model != DefaultModel {
		t.Errorf("Model = %q, want %q", cfg.Model, DefaultModel)
	}
	if cfg.Concurrency != DefaultConcurrency {
		t.Errorf("Concurrency = %d, want %d", cfg.Concurrency, DefaultConcurrency)
	}
	if cfg.MinParagraphLength != DefaultMinParagraphLength {
		t.Errorf("MinParagraphLength = %d, want %d", cfg.MinParagraphLength, DefaultMinParagraphLength)
	}
}

// ============================================================
// Loading
// ============================================================

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv(EnvAPIKey, "")
	t.Setenv(EnvBaseURL, "")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if cfg.Model != DefaultModel {
		t.Errorf("Model = %q, want default", cfg.Model)
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	t.Setenv(EnvAPIKey, "")
	t.Setenv(EnvBaseURL, "")

	path := filepath.Join(t.TempDir(), "cfg.yaml")
	content := `model: custom-model
concurrency: 8
preserve_terms:
  - BERT
  - ResNet
min_paragraph_length: 30
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}

	if cfg.Model != "custom-model" {
		t.Errorf("Model = %q, want custom-model", cfg.Model)
	}
	if cfg.Concurrency != 8 {
		t.Errorf("Concurrency = %d, want 8", cfg.Concurrency)
	}
	if cfg.BaseURL != DefaultBaseURL {
		t.Errorf("BaseURL = %q, want default kept", cfg.BaseURL)
	}
	if len(cfg.PreserveTerms) != 2 || cfg.PreserveTerms[0] != "BERT" {
		t.Errorf("PreserveTerms = %v", cfg.PreserveTerms)
	}
	if cfg.MinParagraphLength != 30 {
		t.Errorf("MinParagraphLength = %d, want 30", cfg.MinParagraphLength)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	if err := os.WriteFile(path, []byte("model: [unclosed"), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Error("Load() = nil error for invalid YAML")
	}
}

func TestEnvironmentFallback(t *testing.T) {
	t.Setenv(EnvAPIKey, "sk-from-env")
	t.Setenv(EnvBaseURL, "https://proxy.example.org/v1")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if cfg.APIKey != "sk-from-env" {
		t.Errorf("APIKey = %q, want env value", cfg.APIKey)
	}
	if cfg.BaseURL != "https://proxy.example.org/v1" {
		t.Errorf("BaseURL = %q, want env value", cfg.BaseURL)
	}
}

func TestFileAPIKeyBeatsEnvironment(t *testing.T) {
	t.Setenv(EnvAPIKey, "sk-from-env")

	path := filepath.Join(t.TempDir(), "cfg.yaml")
	if err := os.WriteFile(path, []byte("api_key: sk-from-file\n"), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if cfg.APIKey != "sk-from-file" {
		t.Errorf("APIKey = %q, want file value", cfg.APIKey)
	}
}

// ============================================================
// Saving
// ============================================================

func TestSaveAndReload(t *testing.T) {
	t.Setenv(EnvAPIKey, "")
	t.Setenv(EnvBaseURL, "")

	path := filepath.Join(t.TempDir(), "sub", "cfg.yaml")

	cfg := Default()
	cfg.Model = "saved-model"
	cfg.ExtraProtectedEnvironments = []string{"custombox"}

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() unexpected error: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if loaded.Model != "saved-model" {
		t.Errorf("Model = %q, want saved-model", loaded.Model)
	}
	if len(loaded.ExtraProtectedEnvironments) != 1 || loaded.ExtraProtectedEnvironments[0] != "custombox" {
		t.Errorf("ExtraProtectedEnvironments = %v", loaded.ExtraProtectedEnvironments)
	}
}
