package repository

import (
	"context"
	"database/sql"
	"fmt"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS catalog_objects (
		id           VARCHAR(128) NOT NULL,
		kind         VARCHAR(32)  NOT NULL,
		name         VARCHAR(255),
		workspace_id VARCHAR(128),
		parent_id    VARCHAR(128),
		payload      JSONB,
		PRIMARY KEY (kind, id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_catalog_objects_workspace ON catalog_objects (workspace_id)`,
	`CREATE TABLE IF NOT EXISTS catalog_exports (
		id          BIGSERIAL PRIMARY KEY,
		exported_at TIMESTAMPTZ NOT NULL,
		objects     INTEGER     NOT NULL,
		version     VARCHAR(32)
	)`,
}

// PostgresCatalogRepository implements CatalogRepository for PostgreSQL.
type PostgresCatalogRepository struct {
	sqlCatalogRepository
}

// NewPostgresCatalogRepository creates a new PostgresCatalogRepository.
func NewPostgresCatalogRepository(db *sql.DB, version string) *PostgresCatalogRepository {
	return &PostgresCatalogRepository{sqlCatalogRepository{
		db:      db,
		version: version,
		dialect: dialect{
			name:        "postgres",
			placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
			schema:      postgresSchema,
			insertRun:   postgresInsertRun,
		},
	}}
}

func postgresInsertRun(ctx context.Context, tx *sql.Tx, run *ExportRun) (int64, error) {
	query := `
		INSERT INTO catalog_exports (exported_at, objects, version)
		VALUES ($1, $2, $3)
		RETURNING id
	`

	var id int64
	err := tx.QueryRowContext(ctx, query, run.ExportedAt, run.Objects, run.Version).Scan(&id)
	return id, err
}
