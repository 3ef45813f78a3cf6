package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "profiler", cfg.Name)
	assert.Equal(t, "anthropic", cfg.Backend.Provider)
	assert.True(t, cfg.Store.Enabled)
	assert.Equal(t, ":8090", cfg.Server.Addr)
	assert.Len(t, cfg.Interview.Phases, 4)
	require.NoError(t, cfg.Interview.Validate())
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Server.Addr, cfg.Server.Addr)
}

func TestLoadParsesOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
server:
  addr: ":9999"
backend:
  provider: openai
  model: gpt-4o
interview:
  backpressure: reject
`)
	require.NoError(t, os.WriteFile(path, data, 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, "openai", cfg.Backend.Provider)
	assert.Equal(t, "gpt-4o", cfg.Backend.Model)
	assert.Equal(t, BackpressureReject, cfg.Interview.Backpressure)
	// Unset sections keep their defaults.
	assert.True(t, cfg.Store.Enabled)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")

	cfg := DefaultConfig()
	cfg.Server.Addr = ":7070"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7070", loaded.Server.Addr)
}

func TestEnvOverrides(t *testing.T) {
	t.Run("AnthropicKeySetsProviderOnlyWhenEmpty", func(t *testing.T) {
		t.Setenv("ANTHROPIC_API_KEY", "ant-key")
		t.Setenv("OPENAI_API_KEY", "")
		t.Setenv("PROFILER_API_KEY", "")

		cfg := DefaultConfig()
		cfg.Backend.Provider = ""
		cfg.applyEnvOverrides()

		assert.Equal(t, "ant-key", cfg.Backend.APIKey)
		assert.Equal(t, "anthropic", cfg.Backend.Provider)
	})

	t.Run("OpenAIKeyOverridesAnthropic", func(t *testing.T) {
		t.Setenv("ANTHROPIC_API_KEY", "ant-key")
		t.Setenv("OPENAI_API_KEY", "oai-key")
		t.Setenv("PROFILER_API_KEY", "")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "oai-key", cfg.Backend.APIKey)
		assert.Equal(t, "openai", cfg.Backend.Provider)
	})

	t.Run("ProfilerKeyWinsWithoutChangingProvider", func(t *testing.T) {
		t.Setenv("ANTHROPIC_API_KEY", "ant-key")
		t.Setenv("OPENAI_API_KEY", "oai-key")
		t.Setenv("PROFILER_API_KEY", "own-key")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "own-key", cfg.Backend.APIKey)
		assert.Equal(t, "openai", cfg.Backend.Provider)
	})

	t.Run("AddrAndDatabase", func(t *testing.T) {
		t.Setenv("PROFILER_ADDR", ":1234")
		t.Setenv("PROFILER_DB", "/tmp/x.db")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, ":1234", cfg.Server.Addr)
		assert.Equal(t, "/tmp/x.db", cfg.Store.DatabasePath)
	})
}

func TestDurationParsing(t *testing.T) {
	b := BackendConfig{Timeout: "5s"}
	assert.Equal(t, "5s", b.Timeout)
	assert.Equal(t, 5.0, b.TimeoutDuration().Seconds())

	// Malformed and empty fall back to the default.
	assert.Equal(t, 60.0, BackendConfig{Timeout: "bogus"}.TimeoutDuration().Seconds())
	assert.Equal(t, 60.0, BackendConfig{}.TimeoutDuration().Seconds())
}
