package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	if name == "" {
		name = "cfg.json"
	}
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson_SourcesAndPrecedence(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	dir := t.TempDir()
	pathFlag := writeTempJSON(t, dir, "flag.json", map[string]any{
		"endpoint_addr_http":              "www.example:9000",
		"endpoint_addr_grpc":              "www.example:9001",
		"database_dsn":                    "postgres://db",
		"secret_key":                      "my_secret_key",
		"access_token_validity_duration":  "1m",
		"refresh_token_validity_duration": "3m",
		"store_timeout":                   "2s",
		"revocation_backend":              "redis",
		"redis_addr":                      "redis:6379",
		"redis_db":                        2,
		"s3_root_user":                    "user",
		"s3_root_password":                "password",
		"s3_bucket":                       "bucket",
		"s3_region":                       "region",
		"s3_base_endpoint":                "base_endpoint",
		"avatar_url_validity_duration":    "30m",
		"cookie_secure":                   false,
		"login_rate_limit":                1.5,
		"login_rate_burst":                3,
		"log_level":                       "debug",
		"log_format":                      "text",
	})

	t.Run("loads from json", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", pathFlag}

		cfg := &Config{}
		cfg.LoadDefaults()
		parseJson(cfg)

		assert.Equal(t, "www.example:9000", cfg.EndpointAddrHTTP)
		assert.Equal(t, "www.example:9001", cfg.EndpointAddrGRPC)
		assert.Equal(t, "postgres://db", cfg.DatabaseDSN)
		assert.Equal(t, "my_secret_key", cfg.SecretKey)
		assert.Equal(t, 1*time.Minute, cfg.AccessTokenValidityDuration)
		assert.Equal(t, 3*time.Minute, cfg.RefreshTokenValidityDuration)
		assert.Equal(t, 2*time.Second, cfg.StoreTimeout)
		assert.Equal(t, RevocationBackendRedis, cfg.RevocationBackend)
		assert.Equal(t, "redis:6379", cfg.RedisAddr)
		assert.Equal(t, 2, cfg.RedisDB)
		assert.Equal(t, "user", cfg.S3RootUser)
		assert.Equal(t, "password", cfg.S3RootPassword)
		assert.Equal(t, "bucket", cfg.S3Bucket)
		assert.Equal(t, "region", cfg.S3Region)
		assert.Equal(t, "base_endpoint", cfg.S3BaseEndpoint)
		assert.Equal(t, 30*time.Minute, cfg.AvatarURLValidityDuration)
		assert.False(t, cfg.CookieSecure)
		assert.Equal(t, 1.5, cfg.LoginRateLimit)
		assert.Equal(t, 3, cfg.LoginRateBurst)
		assert.Equal(t, "debug", cfg.LogLevel)
		assert.Equal(t, "text", cfg.LogFormat)
	})

	t.Run("partial file keeps other values", func(t *testing.T) {
		partial := writeTempJSON(t, dir, "partial.json", map[string]any{"secret_key": "only-this"})
		os.Args = []string{"testbin", "-c", partial}

		cfg := &Config{}
		cfg.LoadDefaults()
		parseJson(cfg)

		assert.Equal(t, "only-this", cfg.SecretKey)
		assert.Equal(t, ":8080", cfg.EndpointAddrHTTP)
		assert.Equal(t, 15*time.Minute, cfg.AccessTokenValidityDuration)
		assert.True(t, cfg.CookieSecure)
	})

	t.Run("no CONFIG and no flags → no changes", func(t *testing.T) {
		os.Args = []string{"testbin"}

		cfg := &Config{
			EndpointAddrHTTP:             "defaults:1234",
			DatabaseDSN:                  "vault.db",
			SecretKey:                    "key",
			AccessTokenValidityDuration:  2 * time.Minute,
			RefreshTokenValidityDuration: 3 * time.Minute,
			S3Bucket:                     "s3bucket",
		}
		parseJson(cfg)

		assert.Equal(t, "defaults:1234", cfg.EndpointAddrHTTP)
		assert.Equal(t, "vault.db", cfg.DatabaseDSN)
		assert.Equal(t, "key", cfg.SecretKey)
		assert.Equal(t, 2*time.Minute, cfg.AccessTokenValidityDuration)
		assert.Equal(t, 3*time.Minute, cfg.RefreshTokenValidityDuration)
		assert.Equal(t, "s3bucket", cfg.S3Bucket)
	})

	t.Run("invalid JSON → panics", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))

		os.Args = []string{"testbin", "-config", bad}

		cfg := &Config{}
		require.Panics(t, func() { parseJson(cfg) })
	})

	t.Run("missing file → panics", func(t *testing.T) {
		os.Args = []string{"testbin", "-c", filepath.Join(dir, "absent.json")}

		cfg := &Config{}
		require.Panics(t, func() { parseJson(cfg) })
	})
}
