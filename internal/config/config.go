package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all profiler configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Conversational backend configuration
	Backend BackendConfig `yaml:"backend"`

	// Persistent store configuration
	Store StoreConfig `yaml:"store"`

	// HTTP server configuration
	Server ServerConfig `yaml:"server"`

	// Similarity-search recall configuration
	Recall RecallConfig `yaml:"recall"`

	// Interview phase table and coordination settings
	Interview InterviewConfig `yaml:"interview"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// BackendConfig configures the conversational backend.
type BackendConfig struct {
	Provider  string `yaml:"provider"` // anthropic, openai, mock
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	Timeout   string `yaml:"timeout"`
	MaxTokens int    `yaml:"max_tokens"`
}

// TimeoutDuration parses the backend timeout, defaulting to 60s.
func (b BackendConfig) TimeoutDuration() time.Duration {
	return parseDuration(b.Timeout, 60*time.Second)
}

// StoreConfig configures session persistence.
type StoreConfig struct {
	// Enabled turns SQLite durability on. When off, sessions live only in
	// the in-process registry.
	Enabled      bool   `yaml:"enabled"`
	DatabasePath string `yaml:"database_path"`
}

// ServerConfig configures the HTTP transport.
type ServerConfig struct {
	Addr            string `yaml:"addr"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
}

// ShutdownDuration parses the shutdown timeout, defaulting to 10s.
func (s ServerConfig) ShutdownDuration() time.Duration {
	return parseDuration(s.ShutdownTimeout, 10*time.Second)
}

// RecallConfig configures the similarity-search memory.
type RecallConfig struct {
	Enabled bool `yaml:"enabled"`
	// TopK is how many prior turns an analyzer may recall per invocation.
	TopK int `yaml:"top_k"`
	// EmbedCacheSize is the max number of cached text embeddings.
	EmbedCacheSize int64 `yaml:"embed_cache_size"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Level      string          `yaml:"level"`  // debug, info, warn, error
	Format     string          `yaml:"format"` // json, text
	Categories map[string]bool `yaml:"categories"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "profiler",
		Version: "1.0.0",

		Backend: BackendConfig{
			Provider:  "anthropic",
			Model:     "claude-sonnet-4-20250514",
			BaseURL:   "",
			Timeout:   "60s",
			MaxTokens: 1024,
		},

		Store: StoreConfig{
			Enabled:      true,
			DatabasePath: "data/profiler.db",
		},

		Server: ServerConfig{
			Addr:            ":8090",
			ShutdownTimeout: "10s",
		},

		Recall: RecallConfig{
			Enabled:        true,
			TopK:           3,
			EmbedCacheSize: 4096,
		},

		Interview: DefaultInterviewConfig(),

		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file. Missing file returns defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Interview.Validate(); err != nil {
		return nil, fmt.Errorf("invalid interview config: %w", err)
	}

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	// Backend API key from environment (check in priority order)
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		c.Backend.APIKey = key
		if c.Backend.Provider == "" {
			c.Backend.Provider = "anthropic"
		}
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.Backend.APIKey = key
		c.Backend.Provider = "openai"
	}
	if key := os.Getenv("PROFILER_API_KEY"); key != "" {
		c.Backend.APIKey = key
	}

	if addr := os.Getenv("PROFILER_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
	if db := os.Getenv("PROFILER_DB"); db != "" {
		c.Store.DatabasePath = db
	}
	if os.Getenv("PROFILER_DEBUG") == "1" {
		c.Logging.DebugMode = true
	}
}

// parseDuration parses s, returning def on empty or malformed input.
func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
