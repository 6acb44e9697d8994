package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/geocatalog/pkg/errors"
)

var exportRows = []CatalogObject{
	{ID: "ws1-id", Kind: "WorkspaceInfo", Name: "ws1", Payload: JSONField(`{"isolated":false}`)},
	{ID: "st1-id", Kind: "StoreInfo", Name: "roads", WorkspaceID: strPtr("ws1-id"), ParentID: strPtr("ws1-id"), Payload: JSONField(`{}`)},
}

func TestPostgresCatalogRepository_Replace(t *testing.T) {
	ctx := context.Background()
	insert := regexp.QuoteMeta(
		"INSERT INTO catalog_objects (id, kind, name, workspace_id, parent_id, payload) VALUES ($1, $2, $3, $4, $5, $6)")

	t.Run("Replace_Success", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		repo := NewPostgresCatalogRepository(db, "1.0.0")

		mock.ExpectBegin()
		mock.ExpectExec("DELETE FROM catalog_objects").WillReturnResult(sqlmock.NewResult(0, 5))
		prep := mock.ExpectPrepare(insert)
		prep.ExpectExec().
			WithArgs("ws1-id", "WorkspaceInfo", "ws1", nil, nil, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		prep.ExpectExec().
			WithArgs("st1-id", "StoreInfo", "roads", "ws1-id", "ws1-id", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("INSERT INTO catalog_exports").
			WithArgs(sqlmock.AnyArg(), 2, "1.0.0").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))
		mock.ExpectCommit()

		run, err := repo.Replace(ctx, exportRows)
		require.NoError(t, err)
		assert.Equal(t, int64(7), run.ID)
		assert.Equal(t, 2, run.Objects)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Replace_RollsBackOnInsertFailure", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		repo := NewPostgresCatalogRepository(db, "1.0.0")

		mock.ExpectBegin()
		mock.ExpectExec("DELETE FROM catalog_objects").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectPrepare(insert).ExpectExec().WillReturnError(assert.AnError)
		mock.ExpectRollback()

		_, err = repo.Replace(ctx, exportRows)
		require.Error(t, err)
		assert.Equal(t, apperrors.CodeDatabaseError, apperrors.GetErrorCode(err))
		assert.Contains(t, err.Error(), "WorkspaceInfo ws1-id")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Replace_Empty", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		repo := NewPostgresCatalogRepository(db, "1.0.0")

		mock.ExpectBegin()
		mock.ExpectExec("DELETE FROM catalog_objects").WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectQuery("INSERT INTO catalog_exports").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
		mock.ExpectCommit()

		run, err := repo.Replace(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, 0, run.Objects)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresCatalogRepository_Objects(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresCatalogRepository(db, "1.0.0")
	ctx := context.Background()

	t.Run("Objects_ByKind", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"id", "kind", "name", "workspace_id", "parent_id", "payload"}).
			AddRow("l1-id", "LayerInfo", "roads", "ws1-id", "ft1-id", []byte(`{"enabled":true}`))
		mock.ExpectQuery(`SELECT id, kind, .* FROM catalog_objects WHERE kind = \$1 ORDER BY kind, id`).
			WithArgs("LayerInfo").
			WillReturnRows(rows)

		objects, err := repo.Objects(ctx, "LayerInfo")
		require.NoError(t, err)
		require.Len(t, objects, 1)
		assert.Equal(t, strPtr("ws1-id"), objects[0].WorkspaceID)
		assert.Equal(t, strPtr("ft1-id"), objects[0].ParentID)
		assert.JSONEq(t, `{"enabled":true}`, string(objects[0].Payload))
	})

	t.Run("Objects_All", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"id", "kind", "name", "workspace_id", "parent_id", "payload"}).
			AddRow("ws1-id", "WorkspaceInfo", "ws1", nil, nil, nil)
		mock.ExpectQuery(`SELECT id, kind, .* FROM catalog_objects ORDER BY kind, id`).WillReturnRows(rows)

		objects, err := repo.Objects(ctx, "")
		require.NoError(t, err)
		require.Len(t, objects, 1)
		assert.Nil(t, objects[0].WorkspaceID)
		assert.Nil(t, objects[0].Payload)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCatalogRepository_LatestRun(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresCatalogRepository(db, "1.0.0")
	ctx := context.Background()

	t.Run("LatestRun_NotFound", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, exported_at").
			WillReturnRows(sqlmock.NewRows([]string{"id", "exported_at", "objects", "version"}))

		_, err := repo.LatestRun(ctx)
		require.Error(t, err)
		assert.True(t, apperrors.IsNotFound(err))
	})

	t.Run("LatestRun_Success", func(t *testing.T) {
		at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		mock.ExpectQuery("SELECT id, exported_at").
			WillReturnRows(sqlmock.NewRows([]string{"id", "exported_at", "objects", "version"}).
				AddRow(int64(3), at, 12, "1.0.0"))

		run, err := repo.LatestRun(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(3), run.ID)
		assert.Equal(t, at, run.ExportedAt)
		assert.Equal(t, 12, run.Objects)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCatalogRepository_EnsureSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresCatalogRepository(db, "1.0.0")

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS catalog_objects").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS").WillReturnError(assert.AnError)

	err = repo.EnsureSchema(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres")
	assert.NoError(t, mock.ExpectationsWereMet())
}
