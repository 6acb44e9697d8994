package repository

import (
	"context"
	"database/sql"
)

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS catalog_objects (
		id           VARCHAR(128) NOT NULL,
		kind         VARCHAR(32)  NOT NULL,
		name         VARCHAR(255),
		workspace_id VARCHAR(128),
		parent_id    VARCHAR(128),
		payload      JSON,
		PRIMARY KEY (kind, id),
		INDEX idx_catalog_objects_workspace (workspace_id)
	)`,
	`CREATE TABLE IF NOT EXISTS catalog_exports (
		id          BIGINT AUTO_INCREMENT PRIMARY KEY,
		exported_at DATETIME(6) NOT NULL,
		objects     INT         NOT NULL,
		version     VARCHAR(32)
	)`,
}

// MySQLCatalogRepository implements CatalogRepository for MySQL.
type MySQLCatalogRepository struct {
	sqlCatalogRepository
}

// NewMySQLCatalogRepository creates a new MySQLCatalogRepository.
func NewMySQLCatalogRepository(db *sql.DB, version string) *MySQLCatalogRepository {
	return &MySQLCatalogRepository{sqlCatalogRepository{
		db:      db,
		version: version,
		dialect: dialect{
			name:        "mysql",
			placeholder: func(int) string { return "?" },
			schema:      mysqlSchema,
			insertRun:   mysqlInsertRun,
		},
	}}
}

func mysqlInsertRun(ctx context.Context, tx *sql.Tx, run *ExportRun) (int64, error) {
	query := `
		INSERT INTO catalog_exports (exported_at, objects, version)
		VALUES (?, ?, ?)
	`

	res, err := tx.ExecContext(ctx, query, run.ExportedAt, run.Objects, run.Version)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
