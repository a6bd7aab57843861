package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/staffkeeper/internal/flagx"
	"github.com/dmitrijs2005/staffkeeper/internal/timex"
)

// JsonConfig is the on-disk shape of the CLI config file. Durations accept
// "3s" style strings or integer nanoseconds.
type JsonConfig struct {
	ServerURL           string         `json:"server_url"`
	HealthAddr          string         `json:"health_addr"`
	RequestTimeout      timex.Duration `json:"request_timeout"`
	OnlineCheckInterval timex.Duration `json:"online_check_interval"`
}

// parseJson overlays cfg with the non-zero values of the file named by -c
// or -config. It panics when the file cannot be read or parsed.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.ServerURL != "" {
		cfg.ServerURL = jc.ServerURL
	}
	if jc.HealthAddr != "" {
		cfg.HealthAddr = jc.HealthAddr
	}
	if jc.RequestTimeout.Duration > 0 {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
	if jc.OnlineCheckInterval.Duration > 0 {
		cfg.OnlineCheckInterval = jc.OnlineCheckInterval.Duration
	}
}
