package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMySQLCatalogRepository_Replace(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewMySQLCatalogRepository(db, "1.0.0")

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM catalog_objects").WillReturnResult(sqlmock.NewResult(0, 0))
	prep := mock.ExpectPrepare(`INSERT INTO catalog_objects .* VALUES \(\?, \?, \?, \?, \?, \?\)`)
	for _, o := range exportRows {
		prep.ExpectExec().
			WithArgs(o.ID, o.Kind, o.Name, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectExec(`INSERT INTO catalog_exports`).
		WithArgs(sqlmock.AnyArg(), 2, "1.0.0").
		WillReturnResult(sqlmock.NewResult(42, 1))
	mock.ExpectCommit()

	run, err := repo.Replace(context.Background(), exportRows)
	require.NoError(t, err)
	assert.Equal(t, int64(42), run.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLCatalogRepository_CommitFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewMySQLCatalogRepository(db, "1.0.0")

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM catalog_objects").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO catalog_exports`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit().WillReturnError(assert.AnError)

	_, err = repo.Replace(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to commit export")
}

func TestMySQLCatalogRepository_Objects(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewMySQLCatalogRepository(db, "1.0.0")

	rows := sqlmock.NewRows([]string{"id", "kind", "name", "workspace_id", "parent_id", "payload"}).
		AddRow("ns1-id", "NamespaceInfo", "ws1", "ws1-id", nil, `{"uri":"http://ws1"}`)
	mock.ExpectQuery(`FROM catalog_objects WHERE kind = \? ORDER BY kind, id`).
		WithArgs("NamespaceInfo").
		WillReturnRows(rows)

	objects, err := repo.Objects(context.Background(), "NamespaceInfo")
	require.NoError(t, err)
	require.Len(t, objects, 1)
	assert.Equal(t, strPtr("ws1-id"), objects[0].WorkspaceID)
	assert.Nil(t, objects[0].ParentID)
	assert.JSONEq(t, `{"uri":"http://ws1"}`, string(objects[0].Payload))
	assert.NoError(t, mock.ExpectationsWereMet())
}
