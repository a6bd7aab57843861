// Package cli provides the interactive StaffKeeper command-line client.
//
// It wires configuration, the HTTP API client, an optional gRPC health
// watcher and a REPL. The session lives in process memory only: the refresh
// cookie is never written to disk, so quitting the CLI ends it locally.
//
// Passwords are read without echo when stdin is a terminal.
package cli
