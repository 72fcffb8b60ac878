package workspaces

import (
	"errors"
	"time"

	"github.com/vKaizen/graduation-backend/pkg/auth"
)

// Error kinds surfaced by the workspace core. The API boundary maps these to
// HTTP statuses; internals never leak past them.
var (
	// ErrWorkspaceNotFound fires only when the workspace itself does not exist
	ErrWorkspaceNotFound = errors.New("workspace not found")
	// ErrNotAMember fires when the workspace exists but the caller holds no membership
	ErrNotAMember = errors.New("not a member of this workspace")
	// ErrMemberNotFound fires when the target of a member mutation is not a member
	ErrMemberNotFound = errors.New("member not found")
	// ErrMemberExists fires on duplicate membership
	ErrMemberExists = errors.New("member already exists")
	// ErrLastOwner guards the exactly-one-owner invariant
	ErrLastOwner = errors.New("workspace must retain an owner")
	// ErrOwnerRole rejects granting or assigning the owner role outside an explicit transfer
	ErrOwnerRole = errors.New("ownership changes require an explicit transfer")
	// ErrTxConflict surfaces store serialization failures for the caller to retry
	ErrTxConflict = errors.New("transaction conflict")

	ErrInvitationNotFound = errors.New("invitation not found")
	ErrInvitationExpired  = errors.New("invitation expired")
	ErrInvitationAccepted = errors.New("invitation already accepted")
)

// Workspace is the top-level container owning members and resources
type Workspace struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedBy *int64    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Members   []*Member `json:"members,omitempty"`
}

// Member is a user's membership in a workspace, unique per (workspace, user)
type Member struct {
	ID          int64     `json:"id"`
	WorkspaceID int64     `json:"workspace_id"`
	UserID      int64     `json:"user_id"`
	Role        auth.Role `json:"role"`
	InvitedBy   *int64    `json:"invited_by,omitempty"`
	JoinedAt    time.Time `json:"joined_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// Invitation is a pending offer to join a workspace
type Invitation struct {
	ID          int64      `json:"id"`
	WorkspaceID int64      `json:"workspace_id"`
	Email       string     `json:"email"`
	Role        auth.Role  `json:"role"`
	Token       string     `json:"token,omitempty"`
	InvitedBy   *int64     `json:"invited_by,omitempty"`
	InvitedAt   time.Time  `json:"invited_at"`
	ExpiresAt   time.Time  `json:"expires_at"`
	AcceptedAt  *time.Time `json:"accepted_at,omitempty"`
	AcceptedBy  *int64     `json:"accepted_by,omitempty"`
}
