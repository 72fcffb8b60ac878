package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics(t *testing.T) {
	t.Run("creates and registers all metrics", func(t *testing.T) {
		registry := prometheus.NewRegistry()
		metrics := NewMetrics(registry)

		if metrics == nil {
			t.Fatal("NewMetrics returned nil")
		}
		if metrics.HTTPRequestsTotal == nil {
			t.Error("HTTPRequestsTotal is nil")
		}
		if metrics.PermissionDenialsTotal == nil {
			t.Error("PermissionDenialsTotal is nil")
		}
		if metrics.MembershipMutationsTotal == nil {
			t.Error("MembershipMutationsTotal is nil")
		}
		if metrics.SectionReordersTotal == nil {
			t.Error("SectionReordersTotal is nil")
		}
		if metrics.RoleCacheHitsTotal == nil {
			t.Error("RoleCacheHitsTotal is nil")
		}
		if metrics.DBConnectionsActive == nil {
			t.Error("DBConnectionsActive is nil")
		}
	})

	t.Run("duplicate registration panics", func(t *testing.T) {
		registry := prometheus.NewRegistry()
		NewMetrics(registry)

		defer func() {
			if r := recover(); r == nil {
				t.Error("Expected panic on duplicate registration")
			}
		}()
		NewMetrics(registry)
	})
}

func TestMetrics_Counters(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	metrics.PermissionDenialsTotal.WithLabelValues("add_member").Inc()
	metrics.PermissionDenialsTotal.WithLabelValues("add_member").Inc()
	metrics.MembershipMutationsTotal.WithLabelValues("remove_member").Inc()
	metrics.InvariantRejectionsTotal.Inc()
	metrics.SectionReordersTotal.Inc()
	metrics.RoleCacheHitsTotal.Inc()
	metrics.RoleCacheMissesTotal.Inc()

	if got := testutil.ToFloat64(metrics.PermissionDenialsTotal.WithLabelValues("add_member")); got != 2 {
		t.Errorf("Expected 2 denials, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.MembershipMutationsTotal.WithLabelValues("remove_member")); got != 1 {
		t.Errorf("Expected 1 mutation, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.InvariantRejectionsTotal); got != 1 {
		t.Errorf("Expected 1 invariant rejection, got %v", got)
	}
}

func TestMetrics_InstrumentHandler(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	handler := metrics.InstrumentHandler("/workspaces", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	req := httptest.NewRequest(http.MethodPost, "/workspaces", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Errorf("Expected status 201, got %d", rec.Code)
	}
	if got := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("POST", "/workspaces", "201")); got != 1 {
		t.Errorf("Expected 1 request counted, got %v", got)
	}
}

func TestMetrics_ScrapeEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	metrics.SectionReordersTotal.Inc()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	Handler(registry).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "workspaced_section_reorders_total 1") {
		t.Error("Expected scrape output to include reorder counter")
	}
}
