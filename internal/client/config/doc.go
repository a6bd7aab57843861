// Package config loads runtime configuration for the StaffKeeper CLI.
//
// Sources, in increasing precedence: built-in defaults, an optional JSON
// file given with -c or -config, then command-line flags.
//
//	-a string   base URL of the HTTP API
//	-g string   host:port of the gRPC health endpoint
//	-i int      online status check interval (seconds)
//	-t int      request timeout (seconds)
//
// JSON example:
//
//	{
//	  "server_url": "http://127.0.0.1:8080",
//	  "health_addr": "127.0.0.1:50051",
//	  "request_timeout": "10s",
//	  "online_check_interval": "3s"
//	}
package config
