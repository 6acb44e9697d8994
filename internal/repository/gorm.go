package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	apperrors "github.com/geocatalog/pkg/errors"
)

// exportBatchSize bounds the rows of one INSERT statement.
const exportBatchSize = 500

// GormCatalogRepository implements CatalogRepository using GORM.
type GormCatalogRepository struct {
	db      *gorm.DB
	version string
}

// NewGormCatalogRepository creates a new GormCatalogRepository. version is
// recorded with every export.
func NewGormCatalogRepository(db *gorm.DB, version string) *GormCatalogRepository {
	return &GormCatalogRepository{db: db, version: version}
}

// Migrate creates or updates the export tables.
func (r *GormCatalogRepository) Migrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&CatalogObject{}, &ExportRun{}); err != nil {
		return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to migrate catalog tables", err)
	}
	return nil
}

// Replace deletes every stored row and inserts objects in one transaction.
func (r *GormCatalogRepository) Replace(ctx context.Context, objects []CatalogObject) (*ExportRun, error) {
	run := &ExportRun{ExportedAt: time.Now().UTC(), Objects: len(objects), Version: r.version}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&CatalogObject{}).Error; err != nil {
			return fmt.Errorf("failed to delete previous rows: %w", err)
		}
		if len(objects) > 0 {
			if err := tx.CreateInBatches(objects, exportBatchSize).Error; err != nil {
				return fmt.Errorf("failed to insert catalog rows: %w", err)
			}
		}
		if err := tx.Create(run).Error; err != nil {
			return fmt.Errorf("failed to record export: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "catalog export failed", err)
	}
	return run, nil
}

// Objects returns the stored rows of a kind, or every row for an empty kind.
func (r *GormCatalogRepository) Objects(ctx context.Context, kind string) ([]CatalogObject, error) {
	var rows []CatalogObject

	q := r.db.WithContext(ctx).Order("kind, id")
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to query catalog rows", err)
	}
	return rows, nil
}

// LatestRun returns the most recent export.
func (r *GormCatalogRepository) LatestRun(ctx context.Context) (*ExportRun, error) {
	var run ExportRun

	err := r.db.WithContext(ctx).Order("id DESC").First(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.CodeNotFound, "no catalog export recorded")
		}
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to get latest export", err)
	}
	return &run, nil
}
