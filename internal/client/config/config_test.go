package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, "ws://127.0.0.1:3000/ws", c.ServerURL)
	assert.Empty(t, c.Token)
	assert.Equal(t, 10*time.Second, c.HandshakeTimeout)
}

func TestParseEnv(t *testing.T) {
	old := getenv
	t.Cleanup(func() { getenv = old })

	env := map[string]string{
		"CHINBO_SERVER_URL":   "wss://chinbo.example/ws",
		"CHINBO_MASTER_TOKEN": "s3cret",
	}
	getenv = func(k string) string { return env[k] }

	c := &Config{ServerURL: "ws://x", Token: ""}
	parseEnv(c)
	assert.Equal(t, "wss://chinbo.example/ws", c.ServerURL)
	assert.Equal(t, "s3cret", c.Token)
}

func TestLoadConfig_FlagsWin(t *testing.T) {
	origArgs := os.Args
	old := getenv
	t.Cleanup(func() {
		os.Args = origArgs
		getenv = old
	})

	getenv = func(k string) string {
		if k == "CHINBO_MASTER_TOKEN" {
			return "from-env"
		}
		return ""
	}
	os.Args = []string{"console", "-t", "from-flag", "-i", "3"}

	c := LoadConfig()
	assert.Equal(t, "from-flag", c.Token)
	assert.Equal(t, 3*time.Second, c.HandshakeTimeout)
	assert.Equal(t, "ws://127.0.0.1:3000/ws", c.ServerURL)
}
