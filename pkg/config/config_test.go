package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, "https://wiki.developer.mozilla.org", cfg.Upstream.BaseURL)
	assert.Equal(t, 25, cfg.Review.SubsetSize)
	assert.Equal(t, 72*time.Hour, cfg.Review.IgnoreRetention)
	assert.Equal(t, 10, cfg.Sweep.ChecksPerLocale)
	assert.Equal(t, time.Hour, cfg.Sweep.RecheckAfter)
	assert.Equal(t, []string{"mdnwebdocs-bot"}, cfg.Upstream.Bots)
	assert.Equal(t, "0.0.0.0:5000", cfg.Server.Addr())
}

func TestLoadHonoursLegacyEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PORT", "8123")
	t.Setenv("MDN_BASE_URL", "http://localhost:9999/")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8123, cfg.Server.Port)
	assert.Equal(t, "http://localhost:9999", cfg.Upstream.BaseURL, "trailing slash is trimmed")
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	body := []byte("suspects:\n  root: /data/suspects\n  strict: true\nsweep:\n  checks_per_locale: 3\n")
	require.NoError(t, os.WriteFile(path, body, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/data/suspects", cfg.Suspects.Root)
	assert.True(t, cfg.Suspects.Strict)
	assert.Equal(t, 3, cfg.Sweep.ChecksPerLocale)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidateRejectsRelativeUpstream(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("UPSTREAM_BASE_URL", "wiki.example")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream.base_url")
}
