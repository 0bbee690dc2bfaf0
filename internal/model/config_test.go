package model

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
imap:
  host: mail.example.com
  username: user@example.com
  password: secret
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "mail.example.com", cfg.IMAP.Host)
	assert.Equal(t, "993", cfg.IMAP.Port)
	assert.Equal(t, "INBOX", cfg.IMAP.Folder)
	assert.True(t, cfg.IMAP.TLS)
	assert.True(t, cfg.AI.Enabled)
	assert.Equal(t, 3, cfg.AI.SummaryMaxRetries)
	assert.Equal(t, []string{"marketing", "fyi"}, cfg.AI.DropLabels)
	assert.Equal(t, 5*time.Minute, cfg.PollInterval())
	assert.Equal(t, 12*time.Hour, cfg.Retention())
	assert.Equal(t, "@every 1h", cfg.App.SweepSchedule)
}

func TestLoadConfigParsesCutoff(t *testing.T) {
	path := writeConfig(t, `
imap:
  host: mail.example.com
  username: user@example.com
  password: secret
  cutoff_date: "2025-10-20"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	cutoff, ok := cfg.Cutoff()
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 10, 20, 0, 0, 0, 0, time.UTC), cutoff)
}

func TestLoadConfigRejectsBadCutoff(t *testing.T) {
	path := writeConfig(t, `
imap:
  host: mail.example.com
  username: user@example.com
  password: secret
  cutoff_date: "20/10/2025"
`)

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cutoff_date")
}

func TestLoadConfigRejectsMissingUsername(t *testing.T) {
	path := writeConfig(t, `
imap:
  host: mail.example.com
`)

	_, err := LoadConfig(path)
	require.Error(t, err)
}

func TestValidateNormalizesDropLabels(t *testing.T) {
	path := writeConfig(t, `
imap:
  host: mail.example.com
  username: user@example.com
  password: secret
ai:
  drop_labels: [" Marketing", "FYI "]
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	set := cfg.DropLabelSet()
	assert.Contains(t, set, "marketing")
	assert.Contains(t, set, "fyi")
	assert.Len(t, set, 2)
}

func TestNoCutoffByDefault(t *testing.T) {
	path := writeConfig(t, `
imap:
  host: mail.example.com
  username: user@example.com
  password: secret
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	_, ok := cfg.Cutoff()
	assert.False(t, ok)
}
