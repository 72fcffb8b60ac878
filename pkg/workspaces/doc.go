// Package workspaces implements the workspace membership core: role
// resolution, member addition/removal/role changes, invitations, and
// workspace lifecycle.
//
// # Concurrency model
//
// All durable state lives in PostgreSQL. Every mutating operation opens one
// transaction, re-resolves the caller's role inside it with FOR UPDATE row
// locks, checks the pkg/perm policy, performs its writes, and commits or
// rolls back on every exit path. The workspace row lock serializes
// membership mutations per workspace, which is what makes the
// exactly-one-owner invariant checkable with a plain count.
//
// Read-only lookups (ResolveRole, ListMembers, GetWorkspace) run outside
// transactions and may be served from the Redis role cache; they are for
// display, never for gating a mutation.
//
// Serialization failures from the store surface as ErrTxConflict. The core
// never retries; callers decide.
package workspaces
