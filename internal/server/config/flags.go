package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/staffkeeper/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags:
//
//	-a string          HTTP bind address (e.g., ":8080")
//	-grpc string       gRPC health bind address (e.g., ":50051")
//	-d string          PostgreSQL DSN
//	-s string          JWT HMAC secret key
//	-t int             access token validity, minutes
//	-r int             refresh token validity, minutes
//	-revocation string revocation backend: postgres, redis, memory
//	-redis string      Redis address
//	-u string          S3 root user
//	-p string          S3 root password
//	-b string          S3 bucket name
//	-g string          S3 region
//	-e string          S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-l string          log level
//	-cookie-secure     mark the refresh cookie Secure (bool)
//
// Durations are accepted as integers in minutes, as before.
func parseFlags(config *Config) {
	args := flagx.FilterArgsWithBools(os.Args[1:],
		[]string{"-a", "-grpc", "-d", "-s", "-t", "-r", "-revocation", "-redis", "-u", "-p", "-b", "-g", "-e", "-l"},
		[]string{"-cookie-secure"},
	)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run HTTP server")
	fs.StringVar(&config.EndpointAddrGRPC, "grpc", config.EndpointAddrGRPC, "address and port to run gRPC health server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	accessTokenValidityDuration := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access_token_validity_duration (in minutes)")
	refreshTokenValidityDuration := fs.Int("r", int(config.RefreshTokenValidityDuration.Minutes()), "refresh_token_validity_duration (in minutes)")

	fs.StringVar(&config.RevocationBackend, "revocation", config.RevocationBackend, "revocation registry backend")
	fs.StringVar(&config.RedisAddr, "redis", config.RedisAddr, "Redis address")
	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 avatar bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.BoolVar(&config.CookieSecure, "cookie-secure", config.CookieSecure, "set Secure on the refresh token cookie")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenValidityDuration = time.Duration(*accessTokenValidityDuration) * time.Minute
	config.RefreshTokenValidityDuration = time.Duration(*refreshTokenValidityDuration) * time.Minute
}
