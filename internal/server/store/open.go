package store

import (
	"context"
	"fmt"

	"github.com/chinbo/chinbo-server/internal/server/config"
)

// OpenDriver builds the driver selected by cfg.StoreDriver.
func OpenDriver(ctx context.Context, cfg *config.Config) (Driver, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverFile, "":
		return NewFileDriver(cfg.DataFile)
	case config.StoreDriverPostgres:
		return NewPostgresDriver(ctx, cfg.DatabaseDSN)
	case config.StoreDriverS3:
		return NewS3Driver(ctx, S3Options{
			Bucket:       cfg.S3Bucket,
			Key:          cfg.S3Key,
			Region:       cfg.S3Region,
			BaseEndpoint: cfg.S3BaseEndpoint,
			AccessKey:    cfg.S3RootUser,
			SecretKey:    cfg.S3RootPassword,
		})
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
