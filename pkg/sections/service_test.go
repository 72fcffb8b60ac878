package sections

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vKaizen/graduation-backend/pkg/perm"
	"github.com/vKaizen/graduation-backend/pkg/workspaces"
)

func serializationFailure() error {
	return &pq.Error{Code: "40001"}
}

func newTestService(t *testing.T) (*PostgresService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresService(db), mock
}

func TestReorder(t *testing.T) {
	tests := []struct {
		name        string
		ids         []int64
		moved       int64
		newPosition int
		want        []int64
	}{
		{
			name:        "move tail to head",
			ids:         []int64{5, 6, 7},
			moved:       7,
			newPosition: 0,
			want:        []int64{7, 5, 6},
		},
		{
			name:        "move head to tail",
			ids:         []int64{5, 6, 7},
			moved:       5,
			newPosition: 2,
			want:        []int64{6, 7, 5},
		},
		{
			name:        "move to middle",
			ids:         []int64{5, 6, 7, 8},
			moved:       8,
			newPosition: 1,
			want:        []int64{5, 8, 6, 7},
		},
		{
			name:        "position past the end clamps to tail",
			ids:         []int64{5, 6, 7},
			moved:       5,
			newPosition: 99,
			want:        []int64{6, 7, 5},
		},
		{
			name:        "no-op move keeps order",
			ids:         []int64{5, 6, 7},
			moved:       6,
			newPosition: 1,
			want:        []int64{5, 6, 7},
		},
		{
			name:        "single element",
			ids:         []int64{5},
			moved:       5,
			newPosition: 0,
			want:        []int64{5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, reorder(tt.ids, tt.moved, tt.newPosition))
		})
	}
}

func expectSectionLock(mock sqlmock.Sqlmock, sectionID, projectID, workspaceID int64, position int) {
	now := time.Now()
	mock.ExpectQuery(`SELECT s\.id, s\.project_id`).
		WithArgs(sectionID).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "project_id", "title", "description", "position",
			"created_at", "updated_at", "workspace_id",
		}).AddRow(sectionID, projectID, "Backlog", "notes", position, now, now, workspaceID))
}

func expectCallerRole(mock sqlmock.Sqlmock, workspaceID, userID int64, role string) {
	mock.ExpectQuery(`SELECT role FROM workspace_members`).
		WithArgs(workspaceID, userID).
		WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow(role))
}

func TestUpdate(t *testing.T) {
	t.Run("persists the locked position, not a caller-supplied one", func(t *testing.T) {
		service, mock := newTestService(t)

		mock.ExpectBegin()
		expectSectionLock(mock, 7, 3, 10, 4)
		expectCallerRole(mock, 10, 2, "member")
		mock.ExpectQuery(`UPDATE sections`).
			WithArgs("Renamed", "notes", 4, int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(time.Now()))
		mock.ExpectCommit()

		title := "Renamed"
		section, err := service.Update(context.Background(), 7, 2, Patch{Title: &title})
		require.NoError(t, err)
		assert.Equal(t, 4, section.Position)
		assert.Equal(t, "Renamed", section.Title)
		assert.Equal(t, "notes", section.Description)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("nil patch fields leave values untouched", func(t *testing.T) {
		service, mock := newTestService(t)

		mock.ExpectBegin()
		expectSectionLock(mock, 7, 3, 10, 1)
		expectCallerRole(mock, 10, 2, "admin")
		mock.ExpectQuery(`UPDATE sections`).
			WithArgs("Backlog", "notes", 1, int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(time.Now()))
		mock.ExpectCommit()

		section, err := service.Update(context.Background(), 7, 2, Patch{})
		require.NoError(t, err)
		assert.Equal(t, "Backlog", section.Title)
	})

	t.Run("missing section", func(t *testing.T) {
		service, mock := newTestService(t)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT s\.id, s\.project_id`).
			WithArgs(int64(404)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectRollback()

		_, err := service.Update(context.Background(), 404, 2, Patch{})
		assert.ErrorIs(t, err, ErrSectionNotFound)
	})

	t.Run("non-member of an existing workspace", func(t *testing.T) {
		service, mock := newTestService(t)

		mock.ExpectBegin()
		expectSectionLock(mock, 7, 3, 10, 0)
		mock.ExpectQuery(`SELECT role FROM workspace_members`).
			WithArgs(int64(10), int64(9)).
			WillReturnRows(sqlmock.NewRows([]string{"role"}))
		mock.ExpectQuery(`SELECT 1 FROM workspaces`).
			WithArgs(int64(10)).
			WillReturnRows(sqlmock.NewRows([]string{"one"}).AddRow(1))
		mock.ExpectRollback()

		_, err := service.Update(context.Background(), 7, 9, Patch{})
		assert.ErrorIs(t, err, workspaces.ErrNotAMember)
	})
}

func TestMove(t *testing.T) {
	t.Run("rewrites every sibling position", func(t *testing.T) {
		service, mock := newTestService(t)

		mock.ExpectBegin()
		expectSectionLock(mock, 6, 3, 10, 1)
		expectCallerRole(mock, 10, 2, "member")
		mock.ExpectQuery(`SELECT id FROM sections`).
			WithArgs(int64(3)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5).AddRow(6).AddRow(7))
		mock.ExpectExec(`UPDATE sections SET position`).
			WithArgs(0, int64(5)).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE sections SET position`).
			WithArgs(1, int64(7)).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE sections SET position`).
			WithArgs(2, int64(6)).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		section, err := service.Move(context.Background(), 6, 2, 2)
		require.NoError(t, err)
		assert.Equal(t, 2, section.Position)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("serialization failure surfaces as a retryable conflict", func(t *testing.T) {
		service, mock := newTestService(t)

		mock.ExpectBegin()
		expectSectionLock(mock, 6, 3, 10, 1)
		expectCallerRole(mock, 10, 2, "member")
		mock.ExpectQuery(`SELECT id FROM sections`).
			WithArgs(int64(3)).
			WillReturnError(serializationFailure())
		mock.ExpectRollback()

		_, err := service.Move(context.Background(), 6, 2, 0)
		assert.ErrorIs(t, err, workspaces.ErrTxConflict)
	})
}

func TestCreate(t *testing.T) {
	t.Run("appends at the tail under the project lock", func(t *testing.T) {
		service, mock := newTestService(t)
		now := time.Now()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT workspace_id FROM projects`).
			WithArgs(int64(3)).
			WillReturnRows(sqlmock.NewRows([]string{"workspace_id"}).AddRow(10))
		expectCallerRole(mock, 10, 2, "member")
		mock.ExpectQuery(`SELECT COALESCE\(MAX\(position\) \+ 1, 0\)`).
			WithArgs(int64(3)).
			WillReturnRows(sqlmock.NewRows([]string{"position"}).AddRow(0))
		mock.ExpectQuery(`INSERT INTO sections`).
			WithArgs(int64(3), "Todo", "", 0).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(5, now, now))
		mock.ExpectCommit()

		section, err := service.Create(context.Background(), 3, 2, "Todo", "")
		require.NoError(t, err)
		assert.Equal(t, 0, section.Position)
	})

	t.Run("missing project", func(t *testing.T) {
		service, mock := newTestService(t)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT workspace_id FROM projects`).
			WithArgs(int64(99)).
			WillReturnRows(sqlmock.NewRows([]string{"workspace_id"}))
		mock.ExpectRollback()

		_, err := service.Create(context.Background(), 99, 2, "Todo", "")
		assert.ErrorIs(t, err, ErrProjectNotFound)
	})
}

func TestDelete(t *testing.T) {
	t.Run("compacts the positions above the removed section", func(t *testing.T) {
		service, mock := newTestService(t)

		mock.ExpectBegin()
		expectSectionLock(mock, 6, 3, 10, 1)
		expectCallerRole(mock, 10, 2, "admin")
		mock.ExpectExec(`DELETE FROM sections`).
			WithArgs(int64(6)).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE sections SET position = position - 1`).
			WithArgs(int64(3), 1).WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectCommit()

		err := service.Delete(context.Background(), 6, 2)
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCreateProject(t *testing.T) {
	t.Run("member may create a project", func(t *testing.T) {
		service, mock := newTestService(t)
		now := time.Now()

		mock.ExpectBegin()
		expectCallerRole(mock, 10, 2, "member")
		mock.ExpectQuery(`INSERT INTO projects`).
			WithArgs(int64(10), "Website", int64(2)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(3, now, now))
		mock.ExpectCommit()

		project, err := service.CreateProject(context.Background(), 10, 2, "Website")
		require.NoError(t, err)
		assert.Equal(t, int64(3), project.ID)
	})
}

func TestPermDenied(t *testing.T) {
	var permErr error

	service, mock := newTestService(t)
	mock.ExpectBegin()
	expectSectionLock(mock, 6, 3, 10, 1)
	mock.ExpectQuery(`SELECT role FROM workspace_members`).
		WithArgs(int64(10), int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow("member"))
	mock.ExpectRollback()

	permErr = service.Delete(context.Background(), 6, 2)
	assert.True(t, errors.Is(permErr, perm.ErrDenied), "member delete should be denied, got %v", permErr)
}
