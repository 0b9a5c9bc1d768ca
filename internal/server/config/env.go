package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// dotEnvFile is loaded when present. Variables already set in the process
// environment are not overridden by it.
var dotEnvFile = ".env"

// parseEnv overlays environment variables onto config. PORT, MASTER_TOKEN
// and OP_TOKEN keep the names the console deployment already uses; the rest
// carry the CHINBO_ prefix. Unset or empty variables leave config alone.
// A malformed .env file or duration value panics, like a malformed JSON
// config does.
func parseEnv(config *Config) {
	if err := godotenv.Load(dotEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		panic(err)
	}

	if port := os.Getenv("PORT"); port != "" {
		config.ListenAddr = ":" + port
	}

	setString(&config.MasterToken, "MASTER_TOKEN")
	setString(&config.OpToken, "OP_TOKEN")
	setString(&config.ListenAddr, "CHINBO_LISTEN_ADDR")
	setString(&config.HealthAddrGRPC, "CHINBO_GRPC_HEALTH_ADDR")
	setString(&config.StoreDriver, "CHINBO_STORE_DRIVER")
	setString(&config.DataFile, "CHINBO_DATA_FILE")
	setString(&config.DatabaseDSN, "CHINBO_DATABASE_DSN")
	setString(&config.S3Bucket, "CHINBO_S3_BUCKET")
	setString(&config.S3Region, "CHINBO_S3_REGION")
	setString(&config.S3BaseEndpoint, "CHINBO_S3_ENDPOINT")
	setString(&config.S3RootUser, "CHINBO_S3_USER")
	setString(&config.S3RootPassword, "CHINBO_S3_PASSWORD")
	setString(&config.S3Key, "CHINBO_S3_KEY")
	setString(&config.SecretKey, "CHINBO_SECRET_KEY")
	setString(&config.StaticDir, "CHINBO_STATIC_DIR")
	setString(&config.LogLevel, "CHINBO_LOG_LEVEL")

	setDuration(&config.SessionTokenValidityDuration, "CHINBO_SESSION_TTL")
	setDuration(&config.PingInterval, "CHINBO_PING_INTERVAL")
	setDuration(&config.PongWait, "CHINBO_PONG_WAIT")
}

func setString(dst *string, name string) {
	if v := os.Getenv(name); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, name string) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		panic(err)
	}
	*dst = d
}
