package api

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/vKaizen/graduation-backend/pkg/httputil"
	"github.com/vKaizen/graduation-backend/pkg/observability"
	"github.com/vKaizen/graduation-backend/pkg/sections"
)

// SectionHandlers handles project and section requests
type SectionHandlers struct {
	service *sections.PostgresService
	metrics *observability.Metrics
}

// NewSectionHandlers creates a new SectionHandlers
func NewSectionHandlers(service *sections.PostgresService, metrics *observability.Metrics) *SectionHandlers {
	return &SectionHandlers{
		service: service,
		metrics: metrics,
	}
}

// RegisterRoutes registers project and section routes
func (h *SectionHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/workspaces/{id}/projects", h.CreateProject).Methods("POST")
	router.HandleFunc("/projects/{id}/sections", h.CreateSection).Methods("POST")
	router.HandleFunc("/projects/{id}/sections", h.ListSections).Methods("GET")
	router.HandleFunc("/sections/{id}", h.UpdateSection).Methods("PATCH")
	router.HandleFunc("/sections/{id}", h.DeleteSection).Methods("DELETE")
	router.HandleFunc("/sections/{id}/move", h.MoveSection).Methods("POST")
}

// CreateProject handles POST /workspaces/{id}/projects
func (h *SectionHandlers) CreateProject(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	workspaceID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		httputil.WriteBadRequest(w, "project name is required")
		return
	}

	project, err := h.service.CreateProject(r.Context(), workspaceID, caller.ID, req.Name)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	httputil.WriteCreated(w, project)
}

// CreateSection handles POST /projects/{id}/sections
func (h *SectionHandlers) CreateSection(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	projectID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		httputil.WriteBadRequest(w, "section title is required")
		return
	}

	section, err := h.service.Create(r.Context(), projectID, caller.ID, req.Title, req.Description)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	h.countUpdate("create")
	httputil.WriteCreated(w, section)
}

// ListSections handles GET /projects/{id}/sections
func (h *SectionHandlers) ListSections(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireCaller(w, r); !ok {
		return
	}
	projectID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	list, err := h.service.ListByProject(r.Context(), projectID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	httputil.WriteSuccess(w, list)
}

// UpdateSection handles PATCH /sections/{id}.
// The payload carries only title and description; ordering is not
// addressable here and survives any update untouched.
func (h *SectionHandlers) UpdateSection(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	sectionID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var patch sections.Patch
	if !httputil.ParseJSONOrError(w, r, &patch) {
		return
	}

	section, err := h.service.Update(r.Context(), sectionID, caller.ID, patch)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	h.countUpdate("update")
	httputil.WriteSuccess(w, section)
}

// MoveSection handles POST /sections/{id}/move
func (h *SectionHandlers) MoveSection(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	sectionID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		Position *int `json:"position"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Position == nil || *req.Position < 0 {
		httputil.WriteBadRequest(w, "a non-negative position is required")
		return
	}

	section, err := h.service.Move(r.Context(), sectionID, caller.ID, *req.Position)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.SectionReordersTotal.Inc()
	}
	httputil.WriteSuccess(w, section)
}

// DeleteSection handles DELETE /sections/{id}
func (h *SectionHandlers) DeleteSection(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	sectionID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), sectionID, caller.ID); err != nil {
		writeServiceError(w, err)
		return
	}

	h.countUpdate("delete")
	httputil.WriteNoContent(w)
}

func (h *SectionHandlers) countUpdate(operation string) {
	if h.metrics != nil {
		h.metrics.SectionUpdatesTotal.WithLabelValues(operation).Inc()
	}
}
