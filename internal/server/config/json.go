package config

import (
	"encoding/json"
	"os"

	"github.com/chinbo/chinbo-server/internal/flagx"
	"github.com/chinbo/chinbo-server/internal/timex"
)

// JsonConfig is the on-disk shape of the optional JSON config file.
// Durations accept "25s"-style strings or integer nanoseconds.
type JsonConfig struct {
	ListenAddr                   string         `json:"listen_addr"`
	HealthAddrGRPC               string         `json:"grpc_health_addr"`
	StoreDriver                  string         `json:"store_driver"`
	DataFile                     string         `json:"data_file"`
	DatabaseDSN                  string         `json:"database_dsn"`
	S3Bucket                     string         `json:"s3_bucket"`
	S3Region                     string         `json:"s3_region"`
	S3BaseEndpoint               string         `json:"s3_base_endpoint"`
	S3RootUser                   string         `json:"s3_root_user"`
	S3RootPassword               string         `json:"s3_root_password"`
	S3Key                        string         `json:"s3_key"`
	MasterToken                  string         `json:"master_token"`
	OpToken                      string         `json:"op_token"`
	SecretKey                    string         `json:"secret_key"`
	SessionTokenValidityDuration timex.Duration `json:"session_token_validity_duration"`
	PingInterval                 timex.Duration `json:"ping_interval"`
	PongWait                     timex.Duration `json:"pong_wait"`
	StaticDir                    string         `json:"static_dir"`
	LogLevel                     string         `json:"log_level"`
}

// parseJson overlays the JSON file named by -c/-config (or CHINBO_CONFIG)
// onto config. Keys missing from the file keep their current value. An
// unreadable or invalid file panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.ConfigFileFlag()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	for dst, v := range map[*string]string{
		&config.ListenAddr:     c.ListenAddr,
		&config.HealthAddrGRPC: c.HealthAddrGRPC,
		&config.StoreDriver:    c.StoreDriver,
		&config.DataFile:       c.DataFile,
		&config.DatabaseDSN:    c.DatabaseDSN,
		&config.S3Bucket:       c.S3Bucket,
		&config.S3Region:       c.S3Region,
		&config.S3BaseEndpoint: c.S3BaseEndpoint,
		&config.S3RootUser:     c.S3RootUser,
		&config.S3RootPassword: c.S3RootPassword,
		&config.S3Key:          c.S3Key,
		&config.MasterToken:    c.MasterToken,
		&config.OpToken:        c.OpToken,
		&config.SecretKey:      c.SecretKey,
		&config.StaticDir:      c.StaticDir,
		&config.LogLevel:       c.LogLevel,
	} {
		if v != "" {
			*dst = v
		}
	}

	if c.SessionTokenValidityDuration.Duration > 0 {
		config.SessionTokenValidityDuration = c.SessionTokenValidityDuration.Duration
	}
	if c.PingInterval.Duration > 0 {
		config.PingInterval = c.PingInterval.Duration
	}
	if c.PongWait.Duration > 0 {
		config.PongWait = c.PongWait.Duration
	}
}
