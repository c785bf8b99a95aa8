// Package config loads runtime configuration for the authkeeper CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   base URL of the authkeeper HTTP API
//	-d string   path to the session database file
//	-t int      request timeout (seconds)
//	-i int      inactivity timeout before the idle warning (seconds)
//	-w int      idle countdown before forced logout (seconds)
//
// # JSON schema
//
// The JSON loader uses timex.Duration for intervals, so values can be either
// strings like "10s" or integer nanoseconds:
//
//	{
//	  "server_addr": "http://127.0.0.1:8080",
//	  "database_path": "session.db",
//	  "request_timeout": "10s",
//	  "inactivity_timeout": "10m",
//	  "idle_countdown": "60s"
//	}
//
// Primary API
//
//   - type Config: runtime settings for the CLI
//   - func LoadConfig() *Config: builds Config by applying defaults, JSON, then flags
//   - func (*Config) LoadDefaults(): sets sensible defaults
//
// Note: This package does not read environment variables directly; use the
// JSON file or flags to configure values.
package config
