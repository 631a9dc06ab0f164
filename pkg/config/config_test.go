package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, []string{".jpg", ".jpeg", ".png", ".webp", ".gif", ".heic"}, cfg.Resolver.ImageExtensions)
	assert.Equal(t, []string{"icon", "logo", "pixel", "tracker"}, cfg.Resolver.ImgBlocklist)
	assert.Equal(t, 12*time.Second, cfg.Fetch.EmbedTimeout)
	assert.Equal(t, 10*time.Second, cfg.Fetch.DocumentTimeout)
	assert.Equal(t, 1, cfg.Fetch.MaxAttempts)
	assert.True(t, cfg.Metadata.Enabled)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("POSTMEDIA_USER_AGENT", "test-agent")
	t.Setenv("POSTMEDIA_EMBED_TIMEOUT", "3s")
	t.Setenv("POSTMEDIA_MAX_ATTEMPTS", "2")
	t.Setenv("POSTMEDIA_METADATA_ENABLED", "false")
	t.Setenv("POSTMEDIA_DISABLED_STRATEGIES", "metadata, document")
	t.Setenv("POSTMEDIA_LOG_LEVEL", "debug")
	t.Setenv("POSTMEDIA_EMBED_REQUESTS_PER_MINUTE", "0")
	t.Setenv("POSTMEDIA_TRUSTED_PROXIES", "10.0.0.0/8, 192.168.1.1")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "test-agent", cfg.Fetch.UserAgent)
	assert.Equal(t, 3*time.Second, cfg.Fetch.EmbedTimeout)
	assert.Equal(t, 2, cfg.Fetch.MaxAttempts)
	assert.False(t, cfg.Metadata.Enabled)
	assert.Equal(t, []string{"metadata", "document"}, cfg.Resolver.DisabledStrategies)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 0, cfg.Fetch.EmbedRequestsPerMinute)
	assert.Equal(t, []string{"10.0.0.0/8", "192.168.1.1"}, cfg.Server.TrustedProxies)
}

func TestLoadFromEnvRejectsBadValues(t *testing.T) {
	t.Setenv("POSTMEDIA_EMBED_TIMEOUT", "soon")
	t.Setenv("POSTMEDIA_MAX_ATTEMPTS", "many")

	err := DefaultConfig().LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "POSTMEDIA_EMBED_TIMEOUT")
	assert.Contains(t, err.Error(), "POSTMEDIA_MAX_ATTEMPTS")
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
fetch:
  document_timeout: 4s
  max_attempts: 3
resolver:
  img_blocklist: [icon, sprite]
  disabled_strategies: [metadata]
logging:
  level: warn
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, 4*time.Second, cfg.Fetch.DocumentTimeout)
	assert.Equal(t, 3, cfg.Fetch.MaxAttempts)
	assert.Equal(t, []string{"icon", "sprite"}, cfg.Resolver.ImgBlocklist)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.False(t, cfg.StrategyEnabled("metadata"))
	assert.True(t, cfg.StrategyEnabled("embed"))
	// untouched sections keep defaults
	assert.Equal(t, 12*time.Second, cfg.Fetch.EmbedTimeout)
}

func TestLoadFromFileErrors(t *testing.T) {
	cfg := DefaultConfig()
	assert.Error(t, cfg.LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")))

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("fetch: [unclosed"), 0644))
	assert.Error(t, cfg.LoadFromFile(bad))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "negative embed pacing", mutate: func(c *Config) { c.Fetch.EmbedRequestsPerMinute = -1 }, wantErr: "embed requests per minute"},
		{name: "zero attempts", mutate: func(c *Config) { c.Fetch.MaxAttempts = 0 }, wantErr: "max attempts"},
		{name: "no extensions", mutate: func(c *Config) { c.Resolver.ImageExtensions = nil }, wantErr: "image extension"},
		{name: "extension without dot", mutate: func(c *Config) { c.Resolver.ImageExtensions = []string{"png"} }, wantErr: "must start with a dot"},
		{name: "negative timeout", mutate: func(c *Config) { c.Fetch.EmbedTimeout = -time.Second }, wantErr: "embed timeout"},
		{name: "metadata without binary", mutate: func(c *Config) { c.Metadata.Binary = "" }, wantErr: "metadata binary"},
		{name: "metadata disabled without binary", mutate: func(c *Config) {
			c.Metadata.Enabled = false
			c.Metadata.Binary = ""
		}},
		{name: "negative max clients", mutate: func(c *Config) { c.Server.MaxClients = -1 }, wantErr: "max clients"},
		{name: "trusted proxies", mutate: func(c *Config) { c.Server.TrustedProxies = []string{"10.0.0.0/8", "::1"} }},
		{name: "bad trusted proxy", mutate: func(c *Config) { c.Server.TrustedProxies = []string{"proxy.local"} }, wantErr: "not an IP or CIDR"},
		{name: "bad log level", mutate: func(c *Config) { c.Logging.Level = "chatty" }, wantErr: "log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMergeCommandLineFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MergeCommandLineFlags(map[string]interface{}{
		"addr":         ":9999",
		"no-metadata":  true,
		"max-attempts": 4,
		"timeout":      2 * time.Second,
		"disable":      []string{"document"},
	})

	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.False(t, cfg.Metadata.Enabled)
	assert.Equal(t, 4, cfg.Fetch.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Fetch.EmbedTimeout)
	assert.Equal(t, 2*time.Second, cfg.Fetch.DocumentTimeout)
	assert.Equal(t, 2*time.Second, cfg.Metadata.Timeout)
	assert.False(t, cfg.StrategyEnabled("Document"))
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Fetch.EmbedTimeout = 7 * time.Second
	cfg.Resolver.DisabledStrategies = []string{"metadata"}
	require.NoError(t, cfg.Save(path))

	loaded := DefaultConfig()
	require.NoError(t, loaded.LoadFromFile(path))
	assert.Equal(t, 7*time.Second, loaded.Fetch.EmbedTimeout)
	assert.Equal(t, []string{"metadata"}, loaded.Resolver.DisabledStrategies)
}

func TestLoadPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: warn\n"), 0644))
	t.Setenv("POSTMEDIA_LOG_LEVEL", "error")

	cfg, err := Load(path, map[string]interface{}{"log-level": "debug"})
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)

	cfg, err = Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Logging.Level)
}
