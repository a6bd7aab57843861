package config

import "github.com/caarlos0/env/v11"

// parseEnv overlays values from environment variables named in the `env`
// struct tags. Unset variables leave the current value untouched.
// Malformed values (e.g. a non-duration ACCESS_TOKEN_TTL) cause a panic,
// matching the behaviour of the JSON and flag loaders.
func parseEnv(config *Config) {
	if err := env.Parse(config); err != nil {
		panic(err)
	}
}
