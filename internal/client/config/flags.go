package config

import (
	"flag"
	"os"
	"time"

	"github.com/chinbo/chinbo-server/internal/flagx"
)

var getenv = os.Getenv

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   WebSocket URL of the server (default from Config)
//	-t string   master token
//	-i int      handshake timeout in seconds (default from Config)
//
// Note: The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	// Filter args to include only those handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-t", "-i"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerURL, "a", cfg.ServerURL, "server WebSocket URL")
	fs.StringVar(&cfg.Token, "t", cfg.Token, "master token")
	handshakeTimeout := fs.Int("i", int(cfg.HandshakeTimeout.Seconds()), "handshake timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.HandshakeTimeout = time.Duration(*handshakeTimeout) * time.Second
}
