// Package blob selects the blob store backend used for provenance exports.
package blob

import (
	"context"
	"fmt"

	"labcore/internal/blob/core"
	"labcore/internal/config"
	"labcore/internal/infra/blob/fs"
	"labcore/internal/infra/blob/memory"
	"labcore/internal/infra/blob/s3"
)

type (
	// Store is the blob storage contract.
	Store = core.Store
	// Info describes stored blob metadata.
	Info = core.Info
	// PutOptions configures a blob write.
	PutOptions = core.PutOptions
)

// Open builds the configured blob store. Unknown drivers are an error.
func Open(ctx context.Context, cfg config.Blob) (Store, error) {
	switch core.Driver(cfg.Driver) {
	case core.DriverFilesystem, "":
		return fs.New(cfg.FSRoot)
	case core.DriverMemory:
		return memory.New(), nil
	case core.DriverS3:
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("LABCORE_BLOB_S3_BUCKET required for s3 driver")
		}
		return s3.New(ctx, s3.Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			PathStyle: cfg.S3PathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown blob driver %s", cfg.Driver)
	}
}
