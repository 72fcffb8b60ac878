package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vKaizen/graduation-backend/pkg/sections"
)

func newSectionTestRouter(t *testing.T) (*mux.Router, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	service := sections.NewPostgresService(db)
	handlers := NewSectionHandlers(service, nil)
	router := mux.NewRouter()
	handlers.RegisterRoutes(router)
	return router, mock
}

func lockSectionRow(mock sqlmock.Sqlmock, sectionID, projectID, workspaceID int64, position int) {
	now := time.Now()
	mock.ExpectQuery(`SELECT s\.id, s\.project_id`).
		WithArgs(sectionID).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "project_id", "title", "description", "position",
			"created_at", "updated_at", "workspace_id",
		}).AddRow(sectionID, projectID, "Backlog", "", position, now, now, workspaceID))
}

func memberRole(mock sqlmock.Sqlmock, workspaceID, userID int64, role string) {
	mock.ExpectQuery(`SELECT role FROM workspace_members`).
		WithArgs(workspaceID, userID).
		WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow(role))
}

func TestUpdateSection(t *testing.T) {
	t.Run("stale client payload cannot change position", func(t *testing.T) {
		router, mock := newSectionTestRouter(t)

		mock.ExpectBegin()
		// Position 4 is the current server-side order, not what any stale
		// client believes.
		lockSectionRow(mock, 7, 3, 10, 4)
		memberRole(mock, 10, 2, "member")
		mock.ExpectQuery(`UPDATE sections`).
			WithArgs("Renamed", "", 4, int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(time.Now()))
		mock.ExpectCommit()

		// The payload smuggles a position; the Patch type has no field for
		// it, so it decodes into nothing.
		req := authedRequest("PATCH", "/sections/7",
			map[string]interface{}{"title": "Renamed", "position": 0}, 2)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Contains(t, w.Body.String(), `"position":4`)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("non-member is rejected", func(t *testing.T) {
		router, mock := newSectionTestRouter(t)

		mock.ExpectBegin()
		lockSectionRow(mock, 7, 3, 10, 0)
		mock.ExpectQuery(`SELECT role FROM workspace_members`).
			WithArgs(int64(10), int64(9)).
			WillReturnRows(sqlmock.NewRows([]string{"role"}))
		mock.ExpectQuery(`SELECT 1 FROM workspaces`).
			WithArgs(int64(10)).
			WillReturnRows(sqlmock.NewRows([]string{"one"}).AddRow(1))
		mock.ExpectRollback()

		req := authedRequest("PATCH", "/sections/7", map[string]string{"title": "X"}, 9)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code, w.Body.String())
	})

	t.Run("missing section is not found", func(t *testing.T) {
		router, mock := newSectionTestRouter(t)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT s\.id, s\.project_id`).
			WithArgs(int64(404)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectRollback()

		req := authedRequest("PATCH", "/sections/404", map[string]string{"title": "X"}, 2)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestMoveSection(t *testing.T) {
	t.Run("rewrites the sibling order", func(t *testing.T) {
		router, mock := newSectionTestRouter(t)

		mock.ExpectBegin()
		lockSectionRow(mock, 7, 3, 10, 2)
		memberRole(mock, 10, 2, "member")
		mock.ExpectQuery(`SELECT id FROM sections`).
			WithArgs(int64(3)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5).AddRow(6).AddRow(7))
		// Moving id 7 from the tail to the head shifts every sibling.
		mock.ExpectExec(`UPDATE sections SET position`).
			WithArgs(0, int64(7)).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE sections SET position`).
			WithArgs(1, int64(5)).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE sections SET position`).
			WithArgs(2, int64(6)).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		req := authedRequest("POST", "/sections/7/move", map[string]int{"position": 0}, 2)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Contains(t, w.Body.String(), `"position":0`)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects negative position", func(t *testing.T) {
		router, _ := newSectionTestRouter(t)

		req := authedRequest("POST", "/sections/7/move", map[string]int{"position": -1}, 2)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("rejects missing position", func(t *testing.T) {
		router, _ := newSectionTestRouter(t)

		req := authedRequest("POST", "/sections/7/move", map[string]string{}, 2)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestCreateSection(t *testing.T) {
	t.Run("appends at the tail", func(t *testing.T) {
		router, mock := newSectionTestRouter(t)
		now := time.Now()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT workspace_id FROM projects`).
			WithArgs(int64(3)).
			WillReturnRows(sqlmock.NewRows([]string{"workspace_id"}).AddRow(10))
		memberRole(mock, 10, 2, "member")
		mock.ExpectQuery(`SELECT COALESCE\(MAX\(position\) \+ 1, 0\)`).
			WithArgs(int64(3)).
			WillReturnRows(sqlmock.NewRows([]string{"position"}).AddRow(3))
		mock.ExpectQuery(`INSERT INTO sections`).
			WithArgs(int64(3), "Done", "", 3).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(8, now, now))
		mock.ExpectCommit()

		req := authedRequest("POST", "/projects/3/sections", map[string]string{"title": "Done"}, 2)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		assert.Contains(t, w.Body.String(), `"position":3`)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing project is not found", func(t *testing.T) {
		router, mock := newSectionTestRouter(t)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT workspace_id FROM projects`).
			WithArgs(int64(99)).
			WillReturnRows(sqlmock.NewRows([]string{"workspace_id"}))
		mock.ExpectRollback()

		req := authedRequest("POST", "/projects/99/sections", map[string]string{"title": "X"}, 2)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
