package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/geocatalog/pkg/errors"
)

// dialect holds what differs between the database/sql backends.
type dialect struct {
	name        string
	placeholder func(n int) string
	schema      []string
	// insertRun inserts the export row and returns its id.
	insertRun func(ctx context.Context, tx *sql.Tx, run *ExportRun) (int64, error)
}

// sqlCatalogRepository implements CatalogRepository on database/sql.
type sqlCatalogRepository struct {
	db      *sql.DB
	dialect dialect
	version string
}

// EnsureSchema creates the export tables when missing.
func (r *sqlCatalogRepository) EnsureSchema(ctx context.Context) error {
	for _, stmt := range r.dialect.schema {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to create catalog tables on "+r.dialect.name, err)
		}
	}
	return nil
}

// Replace deletes every stored row and inserts objects in one transaction.
func (r *sqlCatalogRepository) Replace(ctx context.Context, objects []CatalogObject) (*ExportRun, error) {
	run := &ExportRun{ExportedAt: time.Now().UTC(), Objects: len(objects), Version: r.version}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM catalog_objects"); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to delete previous rows", err)
	}

	if len(objects) > 0 {
		query := fmt.Sprintf(
			"INSERT INTO catalog_objects (id, kind, name, workspace_id, parent_id, payload) VALUES (%s)",
			r.placeholders(6),
		)
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to prepare insert", err)
		}
		defer stmt.Close()

		for _, o := range objects {
			if _, err := stmt.ExecContext(ctx, o.ID, o.Kind, o.Name, o.WorkspaceID, o.ParentID, []byte(o.Payload)); err != nil {
				return nil, apperrors.Wrap(apperrors.CodeDatabaseError,
					fmt.Sprintf("failed to insert %s %s", o.Kind, o.ID), err)
			}
		}
	}

	id, err := r.dialect.insertRun(ctx, tx, run)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to record export", err)
	}
	run.ID = id

	if err := tx.Commit(); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to commit export", err)
	}
	return run, nil
}

// Objects returns the stored rows of a kind, or every row for an empty kind.
func (r *sqlCatalogRepository) Objects(ctx context.Context, kind string) ([]CatalogObject, error) {
	query := `
		SELECT id, kind, COALESCE(name, ''), workspace_id, parent_id, payload
		FROM catalog_objects`
	var args []interface{}
	if kind != "" {
		query += " WHERE kind = " + r.dialect.placeholder(1)
		args = append(args, kind)
	}
	query += " ORDER BY kind, id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to query catalog rows", err)
	}
	defer rows.Close()

	var out []CatalogObject
	for rows.Next() {
		var o CatalogObject
		var workspaceID, parentID sql.NullString
		if err := rows.Scan(&o.ID, &o.Kind, &o.Name, &workspaceID, &parentID, &o.Payload); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to scan catalog row", err)
		}
		if workspaceID.Valid {
			o.WorkspaceID = &workspaceID.String
		}
		if parentID.Valid {
			o.ParentID = &parentID.String
		}
		out = append(out, o)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "error iterating rows", err)
	}
	return out, nil
}

// LatestRun returns the most recent export.
func (r *sqlCatalogRepository) LatestRun(ctx context.Context) (*ExportRun, error) {
	query := `
		SELECT id, exported_at, objects, COALESCE(version, '')
		FROM catalog_exports
		ORDER BY id DESC
		LIMIT 1
	`

	run := &ExportRun{}
	err := r.db.QueryRowContext(ctx, query).Scan(&run.ID, &run.ExportedAt, &run.Objects, &run.Version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.New(apperrors.CodeNotFound, "no catalog export recorded")
		}
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to get latest export", err)
	}
	return run, nil
}

func (r *sqlCatalogRepository) placeholders(n int) string {
	ph := make([]string, n)
	for i := range ph {
		ph[i] = r.dialect.placeholder(i + 1)
	}
	return strings.Join(ph, ", ")
}
