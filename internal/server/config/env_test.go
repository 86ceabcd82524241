package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnv_OverridesTypedValues(t *testing.T) {
	t.Setenv("RENTDESK_DATABASE_DSN", "postgres://x")
	t.Setenv("RENTDESK_ACCESS_TOKEN_EXPIRE_MINUTES", "45")
	t.Setenv("RENTDESK_MAIL_SKIP_VERIFY", "true")
	t.Setenv("RENTDESK_NOTIFICATION_WORKERS", "8")
	t.Setenv("RENTDESK_NOTIFICATION_SEND_TIMEOUT", "3s")
	t.Setenv("RENTDESK_RESEND_WINDOW", "15m")

	c := &Config{}
	c.LoadDefaults()
	parseEnv(c)

	assert.Equal(t, "postgres://x", c.DatabaseDSN)
	assert.Equal(t, 45*time.Minute, c.AccessTokenValidityDuration)
	assert.True(t, c.MailSkipVerify)
	assert.Equal(t, 8, c.NotificationWorkers)
	assert.Equal(t, 3*time.Second, c.NotificationSendTimeout)
	assert.Equal(t, 15*time.Minute, c.ResendWindow)
}

func TestParseEnv_IgnoresMalformedValues(t *testing.T) {
	t.Setenv("RENTDESK_NOTIFICATION_WORKERS", "many")
	t.Setenv("RENTDESK_MAIL_SKIP_VERIFY", "perhaps")
	t.Setenv("RENTDESK_RESEND_WINDOW", "later")

	c := &Config{}
	c.LoadDefaults()
	parseEnv(c)

	assert.Equal(t, 2, c.NotificationWorkers)
	assert.False(t, c.MailSkipVerify)
	assert.Equal(t, time.Hour, c.ResendWindow)
}

func TestParseEnv_LoadsDotenvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("RENTDESK_BASE_URL=https://rent.example\n"), 0o600))

	orig := dotenvFiles
	dotenvFiles = []string{path}
	t.Cleanup(func() {
		dotenvFiles = orig
		_ = os.Unsetenv("RENTDESK_BASE_URL")
	})

	c := &Config{}
	c.LoadDefaults()
	parseEnv(c)

	assert.Equal(t, "https://rent.example", c.BaseURL)
}
