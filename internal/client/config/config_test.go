package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, "http://127.0.0.1:8080", c.ServerURL)
	assert.Equal(t, "127.0.0.1:50051", c.HealthAddr)
	assert.Equal(t, 10*time.Second, c.RequestTimeout)
	assert.Equal(t, 3*time.Second, c.OnlineCheckInterval)
}

func TestLoadConfig_UsesDefaultsBeforeParsing(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"testbin"}

	cfg := LoadConfig()

	require.NotNil(t, cfg, "LoadConfig must not return nil")
	assert.Equal(t, "http://127.0.0.1:8080", cfg.ServerURL)
	assert.Equal(t, 3*time.Second, cfg.OnlineCheckInterval)
}

func TestLoadConfig_FlagsOverrideJSON(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	path := writeTempJSON(t, "", "", map[string]any{
		"server_url":      "http://json:8080",
		"health_addr":     "json:50051",
		"request_timeout": "4s",
	})
	os.Args = []string{"testbin", "-c", path, "-a", "http://flag:9090"}

	cfg := LoadConfig()

	assert.Equal(t, "http://flag:9090", cfg.ServerURL)
	assert.Equal(t, "json:50051", cfg.HealthAddr)
	assert.Equal(t, 4*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 3*time.Second, cfg.OnlineCheckInterval)
}
