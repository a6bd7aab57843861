package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/staffkeeper/internal/flagx"
	"github.com/dmitrijs2005/staffkeeper/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Durations use
// timex.Duration, so both "15m" and integer nanoseconds are accepted.
// Fields left out of the file keep the value they had before loading.
type JsonConfig struct {
	EndpointAddrHTTP             string         `json:"endpoint_addr_http"`
	EndpointAddrGRPC             string         `json:"endpoint_addr_grpc"`
	DatabaseDSN                  string         `json:"database_dsn"`
	SecretKey                    string         `json:"secret_key"`
	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration `json:"refresh_token_validity_duration"`
	StoreTimeout                 timex.Duration `json:"store_timeout"`
	RevocationBackend            string         `json:"revocation_backend"`
	RedisAddr                    string         `json:"redis_addr"`
	RedisPassword                string         `json:"redis_password"`
	RedisDB                      *int           `json:"redis_db"`
	S3RootUser                   string         `json:"s3_root_user"`
	S3RootPassword               string         `json:"s3_root_password"`
	S3Bucket                     string         `json:"s3_bucket"`
	S3Region                     string         `json:"s3_region"`
	S3BaseEndpoint               string         `json:"s3_base_endpoint"`
	AvatarURLValidityDuration    timex.Duration `json:"avatar_url_validity_duration"`
	CookieSecure                 *bool          `json:"cookie_secure"`
	CookieDomain                 string         `json:"cookie_domain"`
	LoginRateLimit               *float64       `json:"login_rate_limit"`
	LoginRateBurst               *int           `json:"login_rate_burst"`
	LogLevel                     string         `json:"log_level"`
	LogFormat                    string         `json:"log_format"`
	AdminUsername                string         `json:"admin_username"`
	AdminEmail                   string         `json:"admin_email"`
	AdminPassword                string         `json:"admin_password"`
}

// parseJson loads configuration values from the file named by -c/-config.
// Nothing happens when the flag is absent. An unreadable file or invalid JSON
// causes a panic.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	c.apply(config)
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setDuration(&config.AccessTokenValidityDuration, c.AccessTokenValidityDuration)
	setDuration(&config.RefreshTokenValidityDuration, c.RefreshTokenValidityDuration)
	setDuration(&config.StoreTimeout, c.StoreTimeout)
	setString(&config.RevocationBackend, c.RevocationBackend)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.RedisPassword, c.RedisPassword)
	if c.RedisDB != nil {
		config.RedisDB = *c.RedisDB
	}
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setDuration(&config.AvatarURLValidityDuration, c.AvatarURLValidityDuration)
	if c.CookieSecure != nil {
		config.CookieSecure = *c.CookieSecure
	}
	setString(&config.CookieDomain, c.CookieDomain)
	if c.LoginRateLimit != nil {
		config.LoginRateLimit = *c.LoginRateLimit
	}
	if c.LoginRateBurst != nil {
		config.LoginRateBurst = *c.LoginRateBurst
	}
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.LogFormat, c.LogFormat)
	setString(&config.AdminUsername, c.AdminUsername)
	setString(&config.AdminEmail, c.AdminEmail)
	setString(&config.AdminPassword, c.AdminPassword)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}
