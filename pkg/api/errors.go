package api

import (
	"errors"
	"net/http"

	"github.com/vKaizen/graduation-backend/pkg/goals"
	"github.com/vKaizen/graduation-backend/pkg/httputil"
	"github.com/vKaizen/graduation-backend/pkg/perm"
	"github.com/vKaizen/graduation-backend/pkg/sections"
	"github.com/vKaizen/graduation-backend/pkg/workspaces"
)

// writeServiceError translates service-layer sentinels to HTTP status codes.
// Anything unrecognized is a 500 with the error hidden from the client.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, perm.ErrDenied):
		httputil.WriteForbidden(w, "permission denied")

	case errors.Is(err, workspaces.ErrWorkspaceNotFound),
		errors.Is(err, workspaces.ErrNotAMember),
		errors.Is(err, workspaces.ErrMemberNotFound),
		errors.Is(err, workspaces.ErrInvitationNotFound),
		errors.Is(err, sections.ErrSectionNotFound),
		errors.Is(err, sections.ErrProjectNotFound),
		errors.Is(err, goals.ErrGoalNotFound):
		httputil.WriteError(w, http.StatusNotFound, err)

	case errors.Is(err, workspaces.ErrMemberExists),
		errors.Is(err, workspaces.ErrLastOwner),
		errors.Is(err, workspaces.ErrOwnerRole),
		errors.Is(err, workspaces.ErrInvitationExpired),
		errors.Is(err, workspaces.ErrInvitationAccepted),
		errors.Is(err, workspaces.ErrTxConflict):
		httputil.WriteError(w, http.StatusConflict, err)

	default:
		httputil.WriteInternalError(w, err)
	}
}
