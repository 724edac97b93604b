// Package config provides configuration management for the LaTeX chunking
// engine. Settings are additive overrides on top of built-in defaults: extra
// environment names widen the protected/translatable sets, they never narrow
// them.
package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"latex-chunker/internal/logger"
	"latex-chunker/internal/types"
)

const (
	// DefaultConfigFileName is the default configuration file name
	DefaultConfigFileName = "latex-chunker.yaml"
	// EnvAPIKey is the environment variable consulted when the config file
	// carries no API key
	EnvAPIKey = "OPENAI_API_KEY"
	// EnvBaseURL is the environment variable for the API base URL
	EnvBaseURL = "OPENAI_BASE_URL"
	// DefaultBaseURL is the default chat-completions API base URL
	DefaultBaseURL = "https://api.openai.com/v1"
	// DefaultModel is the default model used for translation
	DefaultModel = "gpt-4o"
	// DefaultConcurrency caps in-flight translation requests
	DefaultConcurrency = 3
	// DefaultTimeoutSeconds is the per-request HTTP timeout
	DefaultTimeoutSeconds = 120
	// DefaultMinParagraphLength is the minimum cleaned-text length for a
	// paragraph to become a translation chunk
	DefaultMinParagraphLength = 20
)

// Config holds all engine settings.
type Config struct {
	// Translator settings
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	Model          string `yaml:"model"`
	Concurrency    int    `yaml:"concurrency"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	TargetLanguage string `yaml:"target_language"`

	// Parser overrides, all additive
	ExtraProtectedEnvironments    []string `yaml:"extra_protected_environments"`
	ExtraTranslatableEnvironments []string `yaml:"extra_translatable_environments"`
	PreserveTerms                 []string `yaml:"preserve_terms"`
	MinParagraphLength            int      `yaml:"min_paragraph_length"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		BaseURL:            DefaultBaseURL,
		Model:              DefaultModel,
		Concurrency:        DefaultConcurrency,
		TimeoutSeconds:     DefaultTimeoutSeconds,
		TargetLanguage:     "Chinese",
		MinParagraphLength: DefaultMinParagraphLength,
	}
}

// DefaultPath returns the default config file location under the user's
// config directory.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", types.NewAppError(types.ErrConfig, "failed to get user home directory", err)
	}
	return filepath.Join(homeDir, ".config", "latex-chunker", DefaultConfigFileName), nil
}

// Load reads the YAML config file at path and merges it over the defaults.
// A missing file is not an error: defaults apply. The API key and base URL
// fall back to environment variables when the file leaves them empty.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Info("config file not found, using defaults", logger.String("path", path))
			cfg.applyEnv()
			return cfg, nil
		}
		logger.Error("failed to read config file", err, logger.String("path", path))
		return nil, types.NewAppError(types.ErrConfig, "failed to read config file", err)
	}

	loaded := &Config{}
	if err := yaml.Unmarshal(data, loaded); err != nil {
		logger.Error("invalid config file", err, logger.String("path", path))
		return nil, types.NewAppErrorWithDetails(types.ErrConfig, "invalid config file", path, err)
	}

	cfg.merge(loaded)
	cfg.applyEnv()

	logger.Info("configuration loaded",
		logger.String("path", path),
		logger.String("model", cfg.Model),
		logger.Int("concurrency", cfg.Concurrency),
		logger.Int("extraProtectedEnvs", len(cfg.ExtraProtectedEnvironments)),
		logger.Int("preserveTerms", len(cfg.PreserveTerms)))

	return cfg, nil
}

// merge overlays non-zero fields from other onto c. List fields are
// additive overrides, so they replace wholesale.
func (c *Config) merge(other *Config) {
	if other.APIKey != "" {
		c.APIKey = other.APIKey
	}
	if other.BaseURL != "" {
		c.BaseURL = other.BaseURL
	}
	if other.Model != "" {
		c.Model = other.Model
	}
	if other.Concurrency > 0 {
		c.Concurrency = other.Concurrency
	}
	if other.TimeoutSeconds > 0 {
		c.TimeoutSeconds = other.TimeoutSeconds
	}
	if other.TargetLanguage != "" {
		c.TargetLanguage = other.TargetLanguage
	}
	if len(other.ExtraProtectedEnvironments) > 0 {
		c.ExtraProtectedEnvironments = other.ExtraProtectedEnvironments
	}
	if len(other.ExtraTranslatableEnvironments) > 0 {
		c.ExtraTranslatableEnvironments = other.ExtraTranslatableEnvironments
	}
	if len(other.PreserveTerms) > 0 {
		c.PreserveTerms = other.PreserveTerms
	}
	if other.MinParagraphLength > 0 {
		c.MinParagraphLength = other.MinParagraphLength
	}
}

func (c *Config) applyEnv() {
	if c.APIKey == "" {
		c.APIKey = os.Getenv(EnvAPIKey)
	}
	if envURL := os.Getenv(EnvBaseURL); envURL != "" && c.BaseURL == DefaultBaseURL {
		c.BaseURL = envURL
	}
}

// Save writes the configuration to the given path as YAML.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		logger.Error("failed to create config directory", err, logger.String("dir", dir))
		return types.NewAppError(types.ErrConfig, "failed to create config directory", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return types.NewAppError(types.ErrConfig, "failed to marshal config", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		logger.Error("failed to write config file", err, logger.String("path", path))
		return types.NewAppError(types.ErrConfig, "failed to write config file", err)
	}

	logger.Info("configuration saved", logger.String("path", path))
	return nil
}
