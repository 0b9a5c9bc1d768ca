package config

import (
	"flag"
	"os"
	"time"

	"github.com/chinbo/chinbo-server/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP/WebSocket bind address (e.g., ":3000")
//	-g string   gRPC health bind address (empty disables)
//	-s string   store driver: file, postgres or s3
//	-f string   data file for the file driver
//	-d string   PostgreSQL DSN
//	-k string   session JWT secret key
//	-t int      session token validity, minutes
//	-w string   static front-end directory
//	-l string   log level
//
// Tokens are deliberately not accepted as flags so they do not show up in
// process listings.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-g", "-s", "-f", "-d", "-k", "-t", "-w", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.ListenAddr, "a", config.ListenAddr, "address and port to run server")
	fs.StringVar(&config.HealthAddrGRPC, "g", config.HealthAddrGRPC, "gRPC health address")
	fs.StringVar(&config.StoreDriver, "s", config.StoreDriver, "store driver (file, postgres, s3)")
	fs.StringVar(&config.DataFile, "f", config.DataFile, "data file")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "k", config.SecretKey, "session secret key")

	sessionValidity := fs.Int("t", int(config.SessionTokenValidityDuration.Minutes()), "session_token_validity_duration (in minutes)")

	fs.StringVar(&config.StaticDir, "w", config.StaticDir, "static files directory")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.SessionTokenValidityDuration = time.Duration(*sessionValidity) * time.Minute
}
