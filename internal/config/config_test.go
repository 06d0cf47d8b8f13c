package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerGetReturnsDefaultsWhenFileMissing(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "missing.yaml"))
	cfg, err := m.Get()
	require.NoError(t, err)
	assert.Equal(t, 7080, cfg.Server.Port)
	assert.Equal(t, 2, cfg.Stop.MaxRetries)
	assert.True(t, cfg.Stop.RetryOnError)
}

func TestManagerGetDecodesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
server:
  port: 9090
telegram:
  enabled: true
  denialAlertThreshold: 0
stop:
  maxRetries: 0
escalation:
  telegramTimeout: 45s
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	m := NewManager(path)
	cfg, err := m.Get()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.True(t, cfg.Telegram.Enabled)
	assert.Equal(t, 0, cfg.Telegram.DenialAlertThreshold)
	assert.Equal(t, 0, cfg.Stop.MaxRetries)
	assert.Equal(t, 45e9, float64(cfg.Escalation.TelegramTimeout.Duration))
	// Untouched sections keep their defaults.
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Escalation.EvaluatorModel)
}

func TestManagerGetRejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  portt: 1\n"), 0o644))

	m := NewManager(path)
	_, err := m.Get()
	assert.Error(t, err)
}

func TestManagerGetCachesResult(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 1234\n"), 0o644))

	m := NewManager(path)
	first, err := m.Get()
	require.NoError(t, err)

	require.NoError(t, os.Remove(path))
	second, err := m.Get()
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestValidateRejectsBadPort(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = 0
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsNegativeMaxRetries(t *testing.T) {
	cfg := Default()
	cfg.Stop.MaxRetries = -1
	assert.Error(t, cfg.Validate())
}
