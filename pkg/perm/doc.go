// Package perm decides whether a workspace role may perform an action on a
// kind of resource.
//
// Every endpoint that mutates workspace state consults the same declarative
// policy table through Allowed instead of carrying its own inline role
// comparisons, so the policy cannot drift between endpoints. The table is
// pure data: no I/O, no caching, no state.
//
// Resource classification (is this goal workspace-scoped or private?) is the
// caller's job; see ClassifyGoal.
package perm
