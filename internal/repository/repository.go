// Package repository exports a loaded catalog to a relational config database.
package repository

import (
	"context"
)

// CatalogRepository defines the operations on exported catalog rows.
type CatalogRepository interface {
	// Replace deletes every stored row and inserts objects, in one
	// transaction, and records the export.
	Replace(ctx context.Context, objects []CatalogObject) (*ExportRun, error)

	// Objects returns the stored rows of a kind, or every row for an empty
	// kind, ordered by kind and id.
	Objects(ctx context.Context, kind string) ([]CatalogObject, error)

	// LatestRun returns the most recent export.
	LatestRun(ctx context.Context) (*ExportRun, error)
}
