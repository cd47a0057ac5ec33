package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("KIOSK_CONFIG_FILE", "")
	t.Setenv("KIOSK_BACKEND_URL", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.Liveness.Interval)
	assert.Equal(t, 8*time.Second, cfg.Liveness.Timeout)
	assert.Equal(t, 3, cfg.Liveness.FailureThreshold)
	assert.Equal(t, 90*time.Second, cfg.Liveness.OfflineAfter)
	assert.Equal(t, 7*time.Second, cfg.Slideshow.Dwell)
	assert.Equal(t, 2*time.Second, cfg.Slideshow.Settle)
	assert.Equal(t, SourceBackend, cfg.Slideshow.Source)
	assert.Equal(t, filepath.Join(".", "cache"), cfg.Slideshow.CacheDir)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("KIOSK_CONFIG_FILE", "")
	t.Setenv("KIOSK_BACKEND_URL", "http://10.0.0.5:5000/")
	t.Setenv("KIOSK_LIVENESS_INTERVAL", "5s")
	t.Setenv("KIOSK_LIVENESS_TIMEOUT", "2")
	t.Setenv("KIOSK_LIVENESS_FAILURES", "not_a_number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://10.0.0.5:5000", cfg.Backend.URL)
	assert.Equal(t, 5*time.Second, cfg.Liveness.Interval)
	assert.Equal(t, 2*time.Second, cfg.Liveness.Timeout)
	assert.Equal(t, 3, cfg.Liveness.FailureThreshold)
}

func TestLoadYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kiosk.yaml")
	body := `
backend:
  url: http://pc.local:5000
liveness:
  interval: 10s
slideshow:
  dwell: 12s
root_path: /srv/kiosk
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	t.Setenv("KIOSK_CONFIG_FILE", path)
	t.Setenv("KIOSK_BACKEND_URL", "")
	t.Setenv("KIOSK_SLIDESHOW_DWELL", "15s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://pc.local:5000", cfg.Backend.URL)
	assert.Equal(t, 10*time.Second, cfg.Liveness.Interval)
	// env wins over the file
	assert.Equal(t, 15*time.Second, cfg.Slideshow.Dwell)
	assert.Equal(t, filepath.Join("/srv/kiosk", "cache"), cfg.Slideshow.CacheDir)
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("KIOSK_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := Load()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Run("s3 requires bucket", func(t *testing.T) {
		cfg := Default()
		cfg.Slideshow.Source = SourceS3
		require.Error(t, cfg.Validate())

		cfg.S3.Bucket = "photos"
		require.NoError(t, cfg.Validate())
	})

	t.Run("unknown source", func(t *testing.T) {
		cfg := Default()
		cfg.Slideshow.Source = "ftp"
		require.Error(t, cfg.Validate())
	})

	t.Run("threshold below one", func(t *testing.T) {
		cfg := Default()
		cfg.Liveness.FailureThreshold = 0
		require.Error(t, cfg.Validate())
	})
}

func TestSlogLevel(t *testing.T) {
	cfg := Default()
	for in, want := range map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
	} {
		cfg.LogLevel = in
		assert.Equal(t, want, cfg.SlogLevel(), in)
	}
}
