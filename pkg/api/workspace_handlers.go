package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/vKaizen/graduation-backend/pkg/auth"
	"github.com/vKaizen/graduation-backend/pkg/httputil"
	"github.com/vKaizen/graduation-backend/pkg/observability"
	"github.com/vKaizen/graduation-backend/pkg/perm"
	"github.com/vKaizen/graduation-backend/pkg/workspaces"
)

// WorkspaceHandlers handles workspace, membership, and invitation requests
type WorkspaceHandlers struct {
	service *workspaces.PostgresService
	metrics *observability.Metrics
}

// NewWorkspaceHandlers creates a new WorkspaceHandlers
func NewWorkspaceHandlers(service *workspaces.PostgresService, metrics *observability.Metrics) *WorkspaceHandlers {
	return &WorkspaceHandlers{
		service: service,
		metrics: metrics,
	}
}

// RegisterRoutes registers workspace routes
func (h *WorkspaceHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/workspaces", h.CreateWorkspace).Methods("POST")
	router.HandleFunc("/workspaces", h.ListWorkspaces).Methods("GET")
	router.HandleFunc("/workspaces/{id}", h.GetWorkspace).Methods("GET")
	router.HandleFunc("/workspaces/{id}", h.DeleteWorkspace).Methods("DELETE")

	// Members
	router.HandleFunc("/workspaces/{id}/members", h.ListMembers).Methods("GET")
	router.HandleFunc("/workspaces/{id}/members", h.AddMember).Methods("POST")
	router.HandleFunc("/workspaces/{id}/members/{user_id}", h.UpdateMemberRole).Methods("PATCH")
	router.HandleFunc("/workspaces/{id}/members/{user_id}", h.RemoveMember).Methods("DELETE")
	router.HandleFunc("/workspaces/{id}/transfer", h.TransferOwnership).Methods("POST")

	// Invitations
	router.HandleFunc("/workspaces/{id}/invitations", h.CreateInvitation).Methods("POST")
	router.HandleFunc("/workspaces/{id}/invitations", h.ListInvitations).Methods("GET")
	router.HandleFunc("/workspaces/{id}/invitations/{invitation_id}", h.RevokeInvitation).Methods("DELETE")
	router.HandleFunc("/invitations/{token}/accept", h.AcceptInvitation).Methods("POST")
}

// CreateWorkspace handles POST /workspaces
func (h *WorkspaceHandlers) CreateWorkspace(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
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
		httputil.WriteBadRequest(w, "workspace name is required")
		return
	}

	workspace, err := h.service.CreateWorkspace(r.Context(), req.Name, caller.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	httputil.WriteCreated(w, workspace)
}

// ListWorkspaces handles GET /workspaces
func (h *WorkspaceHandlers) ListWorkspaces(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	list, err := h.service.ListWorkspacesForUser(r.Context(), caller.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	httputil.WriteSuccess(w, list)
}

// GetWorkspace handles GET /workspaces/{id}
func (h *WorkspaceHandlers) GetWorkspace(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	workspaceID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	// Visibility requires membership.
	if _, err := h.service.ResolveRole(r.Context(), workspaceID, caller.ID); err != nil {
		writeServiceError(w, err)
		return
	}

	workspace, err := h.service.GetWorkspace(r.Context(), workspaceID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	httputil.WriteSuccess(w, workspace)
}

// DeleteWorkspace handles DELETE /workspaces/{id}
func (h *WorkspaceHandlers) DeleteWorkspace(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	workspaceID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteWorkspace(r.Context(), workspaceID, caller.ID); err != nil {
		writeServiceError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}

// ListMembers handles GET /workspaces/{id}/members
func (h *WorkspaceHandlers) ListMembers(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	workspaceID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if _, err := h.service.ResolveRole(r.Context(), workspaceID, caller.ID); err != nil {
		writeServiceError(w, err)
		return
	}

	members, err := h.service.ListMembers(r.Context(), workspaceID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	httputil.WriteSuccess(w, members)
}

// AddMember handles POST /workspaces/{id}/members
func (h *WorkspaceHandlers) AddMember(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	workspaceID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		UserID int64     `json:"user_id"`
		Role   auth.Role `json:"role"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.UserID == 0 {
		httputil.WriteBadRequest(w, "user_id is required")
		return
	}
	if req.Role == "" {
		req.Role = auth.RoleMember
	}

	if _, err := h.service.AddMember(r.Context(), workspaceID, caller.ID, req.UserID, req.Role); err != nil {
		h.countDenial("add_member", err)
		writeServiceError(w, err)
		return
	}

	h.countMutation("add_member")
	h.writeWorkspace(w, r, workspaceID)
}

// UpdateMemberRole handles PATCH /workspaces/{id}/members/{user_id}
func (h *WorkspaceHandlers) UpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	workspaceID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	targetUserID, ok := httputil.ParsePathInt64OrError(w, r, "user_id")
	if !ok {
		return
	}

	var req struct {
		Role auth.Role `json:"role"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if _, err := h.service.UpdateMemberRole(r.Context(), workspaceID, caller.ID, targetUserID, req.Role); err != nil {
		h.countDenial("change_role", err)
		writeServiceError(w, err)
		return
	}

	h.countMutation("change_role")
	h.writeWorkspace(w, r, workspaceID)
}

// RemoveMember handles DELETE /workspaces/{id}/members/{user_id}
func (h *WorkspaceHandlers) RemoveMember(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	workspaceID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	targetUserID, ok := httputil.ParsePathInt64OrError(w, r, "user_id")
	if !ok {
		return
	}

	if err := h.service.RemoveMember(r.Context(), workspaceID, caller.ID, targetUserID); err != nil {
		h.countDenial("remove_member", err)
		writeServiceError(w, err)
		return
	}

	h.countMutation("remove_member")
	h.writeWorkspace(w, r, workspaceID)
}

// TransferOwnership handles POST /workspaces/{id}/transfer
func (h *WorkspaceHandlers) TransferOwnership(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	workspaceID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		UserID int64 `json:"user_id"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.UserID == 0 {
		httputil.WriteBadRequest(w, "user_id is required")
		return
	}

	if err := h.service.TransferOwnership(r.Context(), workspaceID, caller.ID, req.UserID); err != nil {
		h.countDenial("transfer_ownership", err)
		writeServiceError(w, err)
		return
	}

	h.countMutation("transfer_ownership")
	httputil.WriteNoContent(w)
}

// CreateInvitation handles POST /workspaces/{id}/invitations
func (h *WorkspaceHandlers) CreateInvitation(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	workspaceID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		Email string    `json:"email"`
		Role  auth.Role `json:"role"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		httputil.WriteBadRequest(w, "a valid email is required")
		return
	}
	if req.Role == "" {
		req.Role = auth.RoleMember
	}

	invitation, err := h.service.CreateInvitation(r.Context(), workspaceID, caller.ID, req.Email, req.Role)
	if err != nil {
		h.countDenial("add_member", err)
		writeServiceError(w, err)
		return
	}

	httputil.WriteCreated(w, invitation)
}

// ListInvitations handles GET /workspaces/{id}/invitations
func (h *WorkspaceHandlers) ListInvitations(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	workspaceID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if _, err := h.service.ResolveRole(r.Context(), workspaceID, caller.ID); err != nil {
		writeServiceError(w, err)
		return
	}

	invitations, err := h.service.ListInvitations(r.Context(), workspaceID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	httputil.WriteSuccess(w, invitations)
}

// RevokeInvitation handles DELETE /workspaces/{id}/invitations/{invitation_id}
func (h *WorkspaceHandlers) RevokeInvitation(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	workspaceID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	invitationID, ok := httputil.ParsePathInt64OrError(w, r, "invitation_id")
	if !ok {
		return
	}

	if err := h.service.RevokeInvitation(r.Context(), workspaceID, caller.ID, invitationID); err != nil {
		writeServiceError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}

// AcceptInvitation handles POST /invitations/{token}/accept
func (h *WorkspaceHandlers) AcceptInvitation(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	token, ok := httputil.ParsePathStringOrError(w, r, "token")
	if !ok {
		return
	}

	member, err := h.service.AcceptInvitation(r.Context(), token, caller.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	h.countMutation("add_member")
	httputil.WriteCreated(w, member)
}

// writeWorkspace responds with the full workspace after a membership change,
// so clients always see the member set the mutation produced.
func (h *WorkspaceHandlers) writeWorkspace(w http.ResponseWriter, r *http.Request, workspaceID int64) {
	workspace, err := h.service.GetWorkspace(r.Context(), workspaceID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, workspace)
}

func (h *WorkspaceHandlers) countMutation(operation string) {
	if h.metrics != nil {
		h.metrics.MembershipMutationsTotal.WithLabelValues(operation).Inc()
	}
}

func (h *WorkspaceHandlers) countDenial(operation string, err error) {
	if h.metrics == nil {
		return
	}
	switch {
	case errors.Is(err, perm.ErrDenied):
		h.metrics.PermissionDenialsTotal.WithLabelValues(operation).Inc()
	case errors.Is(err, workspaces.ErrLastOwner):
		h.metrics.InvariantRejectionsTotal.Inc()
	case errors.Is(err, workspaces.ErrTxConflict):
		h.metrics.TxConflictsTotal.WithLabelValues(operation).Inc()
	}
}
