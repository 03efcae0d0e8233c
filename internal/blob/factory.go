package blob

import (
	"context"
	"fmt"

	"mvpplanner/internal/config"
	"mvpplanner/internal/infra/blob/fs"
	"mvpplanner/internal/infra/blob/memory"
	"mvpplanner/internal/infra/blob/s3"
)

// Open selects the artifact store named by cfg.Driver (fs when empty).
func Open(ctx context.Context, cfg config.BlobConfig) (Store, error) {
	driver := Driver(cfg.Driver)
	if driver == "" {
		driver = DriverFilesystem
	}
	switch driver {
	case DriverFilesystem:
		return fs.New(cfg.FSRoot)
	case DriverS3:
		return s3.New(ctx, s3.Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			PathStyle: cfg.S3PathStyle,
		})
	case DriverMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}
