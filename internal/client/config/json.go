package config

import (
	"encoding/json"
	"os"

	"github.com/chinbo/chinbo-server/internal/flagx"
	"github.com/chinbo/chinbo-server/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
type JsonConfig struct {
	ServerURL        string         `json:"server_url"`
	HandshakeTimeout timex.Duration `json:"handshake_timeout"`
}

// parseJson overlays Config with values loaded from a JSON file named by
// -c/-config or CHINBO_CONFIG. Empty fields keep their current value.
// Panics on read or unmarshal errors.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.ConfigFileFlag()
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
	if jc.HandshakeTimeout.Duration != 0 {
		cfg.HandshakeTimeout = jc.HandshakeTimeout.Duration
	}
}
