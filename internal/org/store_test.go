package org

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock, *sql.DB) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return NewStore(db), mock, db
}

func TestActiveOrgID(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	t.Run("pointer set", func(t *testing.T) {
		mock.ExpectQuery(`SELECT active_org_id FROM users WHERE id = \$1`).
			WithArgs(7).
			WillReturnRows(sqlmock.NewRows([]string{"active_org_id"}).AddRow(42))

		orgID, ok, err := store.ActiveOrgID(context.Background(), 7)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 42, orgID)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("pointer null", func(t *testing.T) {
		mock.ExpectQuery(`SELECT active_org_id FROM users WHERE id = \$1`).
			WithArgs(7).
			WillReturnRows(sqlmock.NewRows([]string{"active_org_id"}).AddRow(nil))

		_, ok, err := store.ActiveOrgID(context.Background(), 7)
		require.NoError(t, err)
		assert.False(t, ok)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("user missing", func(t *testing.T) {
		mock.ExpectQuery(`SELECT active_org_id FROM users WHERE id = \$1`).
			WithArgs(8).
			WillReturnError(sql.ErrNoRows)

		_, _, err := store.ActiveOrgID(context.Background(), 8)
		assert.Error(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSetActiveOrgID(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE users SET active_org_id = \$1 WHERE id = \$2`).
		WithArgs(42, 7).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.SetActiveOrgID(context.Background(), 7, 42)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMembershipsByUser(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "organization_id", "user_id", "role", "created_at"}).
		AddRow(1, 10, 7, "owner", now.Add(-48*time.Hour)).
		AddRow(2, 11, 7, "member", now)

	mock.ExpectQuery(`ORDER BY created_at ASC, id ASC`).
		WithArgs(7).
		WillReturnRows(rows)

	memberships, err := store.MembershipsByUser(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, memberships, 2)
	assert.Equal(t, 10, memberships[0].OrganizationID)
	assert.Equal(t, "owner", memberships[0].Role)
	assert.Equal(t, 11, memberships[1].OrganizationID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMembershipByUserOrg(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	t.Run("found", func(t *testing.T) {
		mock.ExpectQuery(`WHERE user_id = \$1 AND organization_id = \$2`).
			WithArgs(7, 42).
			WillReturnRows(sqlmock.NewRows([]string{"id", "organization_id", "user_id", "role", "created_at"}).
				AddRow(3, 42, 7, "admin", time.Now()))

		m, err := store.MembershipByUserOrg(context.Background(), 7, 42)
		require.NoError(t, err)
		require.NotNil(t, m)
		assert.Equal(t, "admin", m.Role)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("absent returns nil without error", func(t *testing.T) {
		mock.ExpectQuery(`WHERE user_id = \$1 AND organization_id = \$2`).
			WithArgs(7, 43).
			WillReturnError(sql.ErrNoRows)

		m, err := store.MembershipByUserOrg(context.Background(), 7, 43)
		require.NoError(t, err)
		assert.Nil(t, m)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}
