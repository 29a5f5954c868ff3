package permissions

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock, *sql.DB) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return NewPostgresStore(db), mock, db
}

func TestAddAssignments(t *testing.T) {
	t.Run("inserts split group and signature", func(t *testing.T) {
		store, mock, db := newMockStore(t)
		defer db.Close()

		mock.ExpectExec(`INSERT INTO member_permissions`).
			WithArgs(int64(42), "Member", "access").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(`INSERT INTO member_permissions`).
			WithArgs(int64(42), "Member", "reset.password").
			WillReturnResult(sqlmock.NewResult(2, 1))

		err := store.AddAssignments(context.Background(), 42, []string{"Member.access", "Member.reset.password"})
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate assignment is a no-op", func(t *testing.T) {
		store, mock, db := newMockStore(t)
		defer db.Close()

		// ON CONFLICT DO NOTHING: zero rows affected, no error
		mock.ExpectExec(`ON CONFLICT \(member_id, group_name, signature\) DO NOTHING`).
			WithArgs(int64(42), "Member", "access").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := store.AddAssignments(context.Background(), 42, []string{"Member.access"})
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty path list is a no-op", func(t *testing.T) {
		store, mock, db := newMockStore(t)
		defer db.Close()

		err := store.AddAssignments(context.Background(), 42, nil)
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("malformed path fails before touching the database", func(t *testing.T) {
		store, mock, db := newMockStore(t)
		defer db.Close()

		err := store.AddAssignments(context.Background(), 42, []string{"noseparator"})
		assert.ErrorIs(t, err, ErrMalformedPath)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("database error propagates", func(t *testing.T) {
		store, mock, db := newMockStore(t)
		defer db.Close()

		mock.ExpectExec(`INSERT INTO member_permissions`).
			WithArgs(int64(42), "Member", "access").
			WillReturnError(fmt.Errorf("connection refused"))

		err := store.AddAssignments(context.Background(), 42, []string{"Member.access"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to add assignment")
	})
}

func TestListAssignments(t *testing.T) {
	t.Run("returns joined paths in insertion order", func(t *testing.T) {
		store, mock, db := newMockStore(t)
		defer db.Close()

		rows := sqlmock.NewRows([]string{"perm_path"}).
			AddRow("Member.access").
			AddRow("Member.reset.password").
			AddRow("Admin.access")

		mock.ExpectQuery(`SELECT group_name \|\| '\.' \|\| signature AS perm_path`).
			WithArgs(int64(42)).
			WillReturnRows(rows)

		paths, err := store.ListAssignments(context.Background(), 42)
		require.NoError(t, err)
		assert.Equal(t, []string{"Member.access", "Member.reset.password", "Admin.access"}, paths)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("member with no assignments", func(t *testing.T) {
		store, mock, db := newMockStore(t)
		defer db.Close()

		mock.ExpectQuery(`SELECT group_name`).
			WithArgs(int64(99)).
			WillReturnRows(sqlmock.NewRows([]string{"perm_path"}))

		paths, err := store.ListAssignments(context.Background(), 99)
		require.NoError(t, err)
		assert.Empty(t, paths)
	})

	t.Run("query error", func(t *testing.T) {
		store, mock, db := newMockStore(t)
		defer db.Close()

		mock.ExpectQuery(`SELECT group_name`).
			WithArgs(int64(42)).
			WillReturnError(fmt.Errorf("timeout"))

		_, err := store.ListAssignments(context.Background(), 42)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to list assignments")
	})
}

func TestIsDisabled(t *testing.T) {
	t.Run("enabled member", func(t *testing.T) {
		store, mock, db := newMockStore(t)
		defer db.Close()

		mock.ExpectQuery(`SELECT disabled FROM members`).
			WithArgs(int64(42)).
			WillReturnRows(sqlmock.NewRows([]string{"disabled"}).AddRow(false))

		disabled, err := store.IsDisabled(context.Background(), 42)
		require.NoError(t, err)
		assert.False(t, disabled)
	})

	t.Run("disabled member", func(t *testing.T) {
		store, mock, db := newMockStore(t)
		defer db.Close()

		mock.ExpectQuery(`SELECT disabled FROM members`).
			WithArgs(int64(42)).
			WillReturnRows(sqlmock.NewRows([]string{"disabled"}).AddRow(true))

		disabled, err := store.IsDisabled(context.Background(), 42)
		require.NoError(t, err)
		assert.True(t, disabled)
	})

	t.Run("missing member", func(t *testing.T) {
		store, mock, db := newMockStore(t)
		defer db.Close()

		mock.ExpectQuery(`SELECT disabled FROM members`).
			WithArgs(int64(77)).
			WillReturnRows(sqlmock.NewRows([]string{"disabled"}))

		_, err := store.IsDisabled(context.Background(), 77)
		assert.ErrorIs(t, err, ErrMemberNotFound)
	})
}
