package api

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vKaizen/graduation-backend/pkg/goals"
	"github.com/vKaizen/graduation-backend/pkg/observability"
	"github.com/vKaizen/graduation-backend/pkg/sections"
	"github.com/vKaizen/graduation-backend/pkg/workspaces"
)

func newInstrumentedServer(t *testing.T) (*Server, *observability.Metrics, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	server := NewServer(
		workspaces.NewPostgresService(db),
		sections.NewPostgresService(db),
		goals.NewPostgresService(db),
		logger, metrics,
	)
	return server, metrics, mock
}

func TestServerRequestMetrics(t *testing.T) {
	t.Run("counts requests under the route template", func(t *testing.T) {
		server, metrics, mock := newInstrumentedServer(t)
		now := time.Now()

		mock.ExpectQuery(`SELECT w\.id, w\.name, w\.created_by`).
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "created_by", "created_at", "updated_at"}).
				AddRow(10, "acme", 1, now, now))

		req := authedRequest("GET", "/workspaces", nil, 1)
		w := httptest.NewRecorder()

		server.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, float64(1),
			testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("GET", "/workspaces", "200")))
		assert.Equal(t, 1, testutil.CollectAndCount(metrics.HTTPRequestDuration))
	})

	t.Run("path parameters do not appear in the label", func(t *testing.T) {
		server, metrics, mock := newInstrumentedServer(t)
		now := time.Now()

		mock.ExpectQuery(`SELECT role FROM workspace_members`).
			WithArgs(int64(10), int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow("owner"))
		mock.ExpectQuery(`SELECT id, name, created_by`).
			WithArgs(int64(10)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "created_by", "created_at", "updated_at"}).
				AddRow(10, "acme", 1, now, now))
		mock.ExpectQuery(`SELECT id, workspace_id, user_id, role, invited_by`).
			WithArgs(int64(10)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "workspace_id", "user_id", "role", "invited_by", "joined_at", "created_at"}).
				AddRow(100, 10, 1, "owner", nil, now, now))

		req := authedRequest("GET", "/workspaces/10", nil, 1)
		w := httptest.NewRecorder()

		server.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, float64(1),
			testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("GET", "/workspaces/{id}", "200")))
	})
}
