package config

import "time"

// Config holds runtime settings for the authkeeper CLI.
//
// Fields:
//   - ServerAddr: base URL of the authkeeper HTTP API.
//   - DatabasePath: SQLite file holding the persisted session. Empty keeps
//     the session in process memory only.
//   - RequestTimeout: hard ceiling for a single HTTP request.
//   - InactivityTimeout: idle time before the logout warning appears.
//   - IdleCountdown: warning time before the forced logout.
type Config struct {
	ServerAddr        string
	DatabasePath      string
	RequestTimeout    time.Duration
	InactivityTimeout time.Duration
	IdleCountdown     time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerAddr = "http://127.0.0.1:8080"
	c.DatabasePath = "session.db"
	c.RequestTimeout = 10 * time.Second
	c.InactivityTimeout = 10 * time.Minute
	c.IdleCountdown = 60 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
