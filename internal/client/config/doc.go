// Package config loads runtime configuration for the chinbo master console.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via -c/-config or CHINBO_CONFIG.
//  3. Environment: CHINBO_SERVER_URL and CHINBO_MASTER_TOKEN.
//  4. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   WebSocket URL of the server
//	-t string   master token (prompted for when empty)
//	-i int      handshake timeout (seconds)
//
// # JSON schema
//
//	{
//	  "server_url": "ws://127.0.0.1:3000/ws",
//	  "handshake_timeout": "10s"
//	}
//
// The token is deliberately not read from JSON.
package config
