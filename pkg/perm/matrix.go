package perm

import (
	"errors"

	"github.com/vKaizen/graduation-backend/pkg/auth"
)

// ErrDenied is returned by callers when the policy denies a request. The
// matrix itself only answers allow/deny; services wrap this sentinel so the
// API boundary can map denials to 403 uniformly.
var ErrDenied = errors.New("permission denied")

// Action represents an action that can be performed on a resource
type Action string

const (
	ActionCreate       Action = "create"
	ActionUpdate       Action = "update"
	ActionDelete       Action = "delete"
	ActionAddMember    Action = "add_member"
	ActionRemoveMember Action = "remove_member"
	ActionChangeRole   Action = "change_role"
)

// ResourceKind classifies the resource a request targets. Callers classify
// the resource before consulting the matrix; the matrix never inspects the
// resource itself.
type ResourceKind string

const (
	KindSection       ResourceKind = "section"
	KindProject       ResourceKind = "project"
	KindWorkspaceGoal ResourceKind = "goal:workspace"
	KindPrivateGoal   ResourceKind = "goal:private"
	KindMember        ResourceKind = "member"
)

// Request is an ephemeral permission check. RequestedRole is set only for
// add_member, where the decision depends on the role being granted.
type Request struct {
	Role          auth.Role
	Action        Action
	Kind          ResourceKind
	RequestedRole auth.Role
}

// rule is one row of the policy table. Empty Kind or RequestedRole matches
// any value; rules that pin more fields are more specific and win over
// broader rules. Among equally specific matches, deny wins.
type rule struct {
	role          auth.Role
	action        Action
	kind          ResourceKind
	requestedRole auth.Role
	allow         bool
}

func (r rule) matches(req Request) bool {
	if r.role != req.Role || r.action != req.Action {
		return false
	}
	if r.kind != "" && r.kind != req.Kind {
		return false
	}
	if r.requestedRole != "" && r.requestedRole != req.RequestedRole {
		return false
	}
	return true
}

func (r rule) specificity() int {
	n := 0
	if r.kind != "" {
		n++
	}
	if r.requestedRole != "" {
		n++
	}
	return n
}

// policy is the single source of truth for role gating. Unlisted
// combinations are denied.
var policy = []rule{
	// Resource creation and update: owners and admins may touch everything;
	// plain members only non-privileged kinds.
	{role: auth.RoleOwner, action: ActionCreate, allow: true},
	{role: auth.RoleOwner, action: ActionUpdate, allow: true},
	{role: auth.RoleOwner, action: ActionDelete, allow: true},
	{role: auth.RoleAdmin, action: ActionCreate, allow: true},
	{role: auth.RoleAdmin, action: ActionUpdate, allow: true},
	{role: auth.RoleAdmin, action: ActionDelete, allow: true},
	{role: auth.RoleMember, action: ActionCreate, kind: KindSection, allow: true},
	{role: auth.RoleMember, action: ActionUpdate, kind: KindSection, allow: true},
	{role: auth.RoleMember, action: ActionCreate, kind: KindProject, allow: true},
	{role: auth.RoleMember, action: ActionUpdate, kind: KindProject, allow: true},
	{role: auth.RoleMember, action: ActionCreate, kind: KindPrivateGoal, allow: true},
	{role: auth.RoleMember, action: ActionUpdate, kind: KindPrivateGoal, allow: true},

	// Membership management. Granting admin is reserved to the owner: the
	// specific admin-adds-admin row overrides the broader admin-adds rule.
	{role: auth.RoleOwner, action: ActionAddMember, allow: true},
	{role: auth.RoleAdmin, action: ActionAddMember, allow: true},
	{role: auth.RoleAdmin, action: ActionAddMember, requestedRole: auth.RoleAdmin, allow: false},
	{role: auth.RoleOwner, action: ActionAddMember, requestedRole: auth.RoleOwner, allow: false},
	{role: auth.RoleAdmin, action: ActionAddMember, requestedRole: auth.RoleOwner, allow: false},
	{role: auth.RoleOwner, action: ActionRemoveMember, allow: true},
	{role: auth.RoleAdmin, action: ActionRemoveMember, allow: true},
	{role: auth.RoleOwner, action: ActionChangeRole, allow: true},
}

// Allowed decides a permission request against the policy table. It is a
// pure, total function: every request resolves to allow or deny.
func Allowed(req Request) bool {
	best := -1
	allow := false
	for _, r := range policy {
		if !r.matches(req) {
			continue
		}
		s := r.specificity()
		switch {
		case s > best:
			best = s
			allow = r.allow
		case s == best && !r.allow:
			// Equal specificity: restrictive wins
			allow = false
		}
	}
	return allow
}

// ClassifyGoal maps a goal's visibility to the resource kind the matrix
// expects. Unknown visibilities fall back to the workspace-scoped kind so
// they get the stricter gate.
func ClassifyGoal(visibility string) ResourceKind {
	if visibility == "private" {
		return KindPrivateGoal
	}
	return KindWorkspaceGoal
}
