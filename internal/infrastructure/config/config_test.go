package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAppliesDefaults(t *testing.T) {
	t.Setenv(EnvAPIKey, "")
	cfg, err := Parse(``)
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.App.LogLevel)
	assert.Equal(t, "aggregates", cfg.App.DefaultChannel)
	assert.Equal(t, []string{"2330", "2317", "2454"}, cfg.App.DefaultSymbols)
	assert.Equal(t, 10, cfg.App.MaxFavorites)
	assert.Equal(t, 60*time.Second, cfg.PingInterval())
	assert.Equal(t, 10*time.Second, cfg.ConnectTimeout())
	assert.Equal(t, 30*time.Second, cfg.ReadTimeout())
	assert.Equal(t, 5, cfg.Reconnect.MaxRetries)
	assert.Equal(t, 2.0, cfg.Reconnect.Multiplier)
	assert.Error(t, cfg.RequireAPIKey())
}

func TestLoadFile(t *testing.T) {
	t.Setenv(EnvAPIKey, "")
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[app]
log_level = "DEBUG"
default_symbols = [" 2330", "2603", "2330", ""]

[fugle]
api_key = "from-file"

[sqlite]
enabled = true
path = "data/test.db"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.App.LogLevel)
	assert.Equal(t, []string{"2330", "2603"}, cfg.App.DefaultSymbols)
	assert.Equal(t, "from-file", cfg.Fugle.APIKey)
	assert.True(t, cfg.SQLite.Enabled)
	assert.NoError(t, cfg.RequireAPIKey())
}

func TestEnvOverridesAPIKey(t *testing.T) {
	t.Setenv(EnvAPIKey, "from-env")
	cfg, err := Parse(`
[fugle]
api_key = "from-file"
`)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Fugle.APIKey)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"bad channel":   "[app]\ndefault_channel = \"ticks\"\n",
		"bad level":     "[app]\nlog_level = \"loud\"\n",
		"bad url":       "[fugle]\nws_url = \"not a url\"\n",
		"delay order":   "[reconnect]\ninitial_delay_ms = 5000\nmax_delay_ms = 100\n",
		"pg no dsn":     "[postgres]\nenabled = true\n",
		"blank symbols": "[app]\ndefault_symbols = [\" \"]\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(doc)
			assert.Error(t, err)
		})
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "quotewatch", cfg.Redis.Prefix)
	assert.Equal(t, 10*time.Second, cfg.ProbeEvery())
}
