package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestGroupRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewGroupRepository(db)

	rows := sqlmock.NewRows([]string{"id", "name", "capacity", "created_at"}).
		AddRow("grp-1", "Algebra II", 25, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, capacity, created_at FROM groups WHERE id = $1")).
		WithArgs("grp-1").
		WillReturnRows(rows)

	group, err := repo.FindByID(context.Background(), "grp-1")
	require.NoError(t, err)
	require.Equal(t, "grp-1", group.ID)
	require.Equal(t, 25, group.Capacity)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGroupRepositoryFindByIDNoRows(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewGroupRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, capacity, created_at FROM groups WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGroupRepositoryList(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewGroupRepository(db)

	rows := sqlmock.NewRows([]string{"id", "name", "capacity", "created_at"}).
		AddRow("grp-1", "Algebra II", 25, time.Now()).
		AddRow("grp-2", "Biology", 30, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, capacity, created_at FROM groups ORDER BY name ASC")).
		WillReturnRows(rows)

	groups, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, groups, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}
