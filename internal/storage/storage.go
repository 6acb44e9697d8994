// Package storage provides the resource store holding style definitions
// referenced by the catalog.
package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/go-git/go-billy/v5"

	"github.com/geocatalog/pkg/config"
)

// Storage is a resource store. Keys are slash separated paths relative to
// the store root, e.g. "styles/point.sld". Failures carry the STORAGE_ERROR
// code; Download of a missing key returns a NOT_FOUND error.
type Storage interface {
	Upload(ctx context.Context, key string, reader io.Reader) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// StorageType represents the type of storage backend.
type StorageType string

const (
	// StorageTypeDataDir keeps resources inside the catalog data directory.
	StorageTypeDataDir StorageType = "datadir"
	StorageTypeLocal   StorageType = "local"
	StorageTypeCOS     StorageType = "cos"
)

// NewStorage creates a new Storage instance based on the configuration.
// dataDir backs the "datadir" type, which is also the default.
func NewStorage(cfg *config.StorageConfig, dataDir billy.Filesystem) (Storage, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	switch StorageType(cfg.Type) {
	case StorageTypeLocal:
		return NewLocalStorage(cfg.LocalPath)
	case StorageTypeCOS:
		return NewCOSStorage(&COSConfig{
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			SecretID:  cfg.SecretID,
			SecretKey: cfg.SecretKey,
			Domain:    cfg.Domain,
			Scheme:    cfg.Scheme,
			Prefix:    cfg.Prefix,
		})
	default:
		if dataDir == nil {
			return nil, fmt.Errorf("datadir storage needs a data directory")
		}
		return NewFSStorage(dataDir), nil
	}
}

// ValidateConfig validates the storage configuration.
func ValidateConfig(cfg *config.StorageConfig) error {
	if cfg == nil {
		return fmt.Errorf("storage config is nil")
	}

	storageType := StorageType(cfg.Type)

	// Empty type defaults to the data directory
	if storageType == "" {
		storageType = StorageTypeDataDir
	}

	switch storageType {
	case StorageTypeDataDir:
	case StorageTypeCOS:
		if cfg.Bucket == "" {
			return fmt.Errorf("COS bucket is required")
		}
		if cfg.Region == "" {
			return fmt.Errorf("COS region is required")
		}
		if cfg.SecretID == "" || cfg.SecretKey == "" {
			return fmt.Errorf("COS credentials are required")
		}
	case StorageTypeLocal:
		if cfg.LocalPath == "" {
			return fmt.Errorf("local storage path is required")
		}
	default:
		return fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}

	return nil
}
