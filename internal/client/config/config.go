package config

import "time"

// Config holds runtime settings for the master console.
//
// Fields:
//   - ServerURL: WebSocket endpoint of the chinbo server.
//   - Token: master token or an empty string to prompt for one.
//   - HandshakeTimeout: limit for the dial plus the master:hello round trip.
type Config struct {
	ServerURL        string
	Token            string
	HandshakeTimeout time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "ws://127.0.0.1:3000/ws"
	c.Token = ""
	c.HandshakeTimeout = 10 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present), the environment and command-line flags. Later sources
// take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseEnv(cfg)
	parseFlags(cfg)
	return cfg
}

func parseEnv(cfg *Config) {
	if v := getenv("CHINBO_SERVER_URL"); v != "" {
		cfg.ServerURL = v
	}
	if v := getenv("CHINBO_MASTER_TOKEN"); v != "" {
		cfg.Token = v
	}
}
