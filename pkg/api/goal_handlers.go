package api

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/vKaizen/graduation-backend/pkg/goals"
	"github.com/vKaizen/graduation-backend/pkg/httputil"
)

// GoalHandlers handles goal requests
type GoalHandlers struct {
	service *goals.PostgresService
}

// NewGoalHandlers creates a new GoalHandlers
func NewGoalHandlers(service *goals.PostgresService) *GoalHandlers {
	return &GoalHandlers{service: service}
}

// RegisterRoutes registers goal routes
func (h *GoalHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/workspaces/{id}/goals", h.CreateGoal).Methods("POST")
	router.HandleFunc("/workspaces/{id}/goals", h.ListGoals).Methods("GET")
	router.HandleFunc("/goals/{id}", h.UpdateGoal).Methods("PATCH")
	router.HandleFunc("/goals/{id}", h.DeleteGoal).Methods("DELETE")
}

// CreateGoal handles POST /workspaces/{id}/goals
func (h *GoalHandlers) CreateGoal(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	workspaceID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Visibility  string `json:"visibility"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		httputil.WriteBadRequest(w, "goal title is required")
		return
	}
	if req.Visibility == "" {
		req.Visibility = "workspace"
	}
	if req.Visibility != "workspace" && req.Visibility != "private" {
		httputil.WriteBadRequest(w, "visibility must be workspace or private")
		return
	}

	goal, err := h.service.Create(r.Context(), workspaceID, caller.ID, req.Title, req.Description, req.Visibility)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	httputil.WriteCreated(w, goal)
}

// ListGoals handles GET /workspaces/{id}/goals
func (h *GoalHandlers) ListGoals(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	workspaceID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	list, err := h.service.ListByWorkspace(r.Context(), workspaceID, caller.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	httputil.WriteSuccess(w, list)
}

// UpdateGoal handles PATCH /goals/{id}
func (h *GoalHandlers) UpdateGoal(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	goalID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var patch goals.Patch
	if !httputil.ParseJSONOrError(w, r, &patch) {
		return
	}
	if patch.Progress != nil && (*patch.Progress < 0 || *patch.Progress > 100) {
		httputil.WriteBadRequest(w, "progress must be between 0 and 100")
		return
	}

	goal, err := h.service.Update(r.Context(), goalID, caller.ID, patch)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	httputil.WriteSuccess(w, goal)
}

// DeleteGoal handles DELETE /goals/{id}
func (h *GoalHandlers) DeleteGoal(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	goalID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), goalID, caller.ID); err != nil {
		writeServiceError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}
