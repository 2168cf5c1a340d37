package main

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
	path := filepath.Join(t.TempDir(), "fluid.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfiguration_Defaults(t *testing.T) {
	cfg, err := LoadConfiguration("")
	require.NoError(t, err)

	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, "localhost:8001", cfg.Server.Listen)
	assert.True(t, cfg.Server.CSRF)
	assert.Equal(t, "sid", cfg.Server.SessionCookie)
	assert.Equal(t, 10*time.Second, cfg.Client.Timeout)
	assert.Equal(t, "csrftoken", cfg.Client.CookieName)
	assert.Equal(t, "X-CSRFToken", cfg.Client.HeaderName)
	assert.Equal(t, "normal", cfg.Logging.Level)
}

func TestLoadConfiguration_Overrides(t *testing.T) {
	path := writeConfig(t, `
server:
  listen: ":9000"
  csrf: false
client:
  timeout: 1m
  sanitize: true
`)

	cfg, err := LoadConfiguration(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Listen)
	assert.False(t, cfg.Server.CSRF)
	assert.Equal(t, "sid", cfg.Server.SessionCookie, "values missing from the file keep their defaults")
	assert.Equal(t, time.Minute, cfg.Client.Timeout)
	assert.True(t, cfg.Client.Sanitize)
}

func TestLoadConfiguration_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown field", "server:\n  port: 80\n"},
		{"bad version", "version: 2\n"},
		{"bad level", "logging:\n  level: loud\n"},
		{"empty header", "client:\n  header_name: \"\"\n"},
		{"negative timeout", "client:\n  timeout: -1s\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfiguration(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}

	_, err := LoadConfiguration(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDump(t *testing.T) {
	cfg, err := LoadConfiguration("")
	require.NoError(t, err)

	data, err := Dump(cfg)
	require.NoError(t, err)

	again, err := LoadConfiguration(writeConfig(t, string(data)))
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}
