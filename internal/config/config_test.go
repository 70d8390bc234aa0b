package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eci-results-crawler/internal/crawler"
	"eci-results-crawler/internal/models"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	sweeps, err := cfg.Sweeps()
	require.NoError(t, err)
	assert.Equal(t, []crawler.Sweep{
		{Kind: models.State, MaxRegionCode: 29},
		{Kind: models.UnionTerritory, MaxRegionCode: 19},
	}, sweeps)
	assert.Equal(t, 2*time.Second, cfg.Fetch.Settle())
	assert.Equal(t, 5*time.Second, cfg.Fetch.ScrapeSettle())
	assert.Equal(t, 30*time.Second, cfg.Fetch.NavigationTimeout())
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "crawl.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
sweep:
  max_state_region_code: 2
  order: [UNION_TERRITORY]
fetch:
  driver: http
  settle_delay_seconds: 0.5
`), 0o644))
	t.Setenv("ECI_SWEEP_MAX_CONSTITUENCY_NUMBER", "7")

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Sweep.MaxStateRegionCode)
	assert.Equal(t, 7, cfg.Sweep.MaxConstituencyNumber)
	assert.Equal(t, "http", cfg.Fetch.Driver)
	assert.Equal(t, 500*time.Millisecond, cfg.Fetch.Settle())

	sweeps, err := cfg.Sweeps()
	require.NoError(t, err)
	assert.Equal(t, []crawler.Sweep{{Kind: models.UnionTerritory, MaxRegionCode: 19}}, sweeps)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty marker", func(c *Config) { c.Site.ValidityMarker = "" }},
		{"zero ceiling", func(c *Config) { c.Sweep.MaxConstituencyNumber = 0 }},
		{"unknown driver", func(c *Config) { c.Fetch.Driver = "curl" }},
		{"unknown kind", func(c *Config) { c.Sweep.Order = []string{"STATE", "COUNTY"} }},
		{"duplicate kind", func(c *Config) { c.Sweep.Order = []string{"STATE", "S"} }},
		{"negative settle", func(c *Config) { c.Fetch.SettleDelaySeconds = -1 }},
		{"missing base", func(c *Config) { c.Site.UTBase = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
	assert.NoError(t, DefaultConfig().Validate())
}

func TestWriteDefaultRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, WriteDefault(path))

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}
