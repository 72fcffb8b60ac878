package workspaces

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vKaizen/graduation-backend/pkg/auth"
)

// ResolveRole looks up the caller's effective role in a workspace for
// read-only display purposes. It consults the role cache when one is
// attached. Mutations must not use this: they re-resolve inside their own
// transaction via resolveRoleTx.
func (s *PostgresService) ResolveRole(ctx context.Context, workspaceID, userID int64) (auth.Role, error) {
	if s.cache != nil {
		if role, hit, err := s.cache.GetRole(ctx, workspaceID, userID); err == nil && hit {
			return role, nil
		}
	}

	var role auth.Role
	err := s.db.QueryRowContext(ctx, `
		SELECT role FROM workspace_members
		WHERE workspace_id = $1 AND user_id = $2
	`, workspaceID, userID).Scan(&role)
	if err == sql.ErrNoRows {
		return "", s.classifyMissingMembership(ctx, workspaceID)
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve role: %w", err)
	}

	if s.cache != nil {
		// Best effort; a failed cache write only costs a future lookup
		_ = s.cache.SetRole(ctx, workspaceID, userID, role)
	}
	return role, nil
}

// classifyMissingMembership distinguishes a missing workspace from a
// missing membership.
func (s *PostgresService) classifyMissingMembership(ctx context.Context, workspaceID int64) error {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM workspaces WHERE id = $1`, workspaceID).Scan(&one)
	if err == sql.ErrNoRows {
		return ErrWorkspaceNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to check workspace: %w", err)
	}
	return ErrNotAMember
}

// resolveRoleTx resolves the caller's role inside the mutation's own
// transaction. The workspace row is locked FOR UPDATE, which serializes all
// membership mutations on a workspace: no concurrent role change can slip in
// between this check and the write that follows it. The membership row is
// locked too so a concurrent demotion blocks rather than races.
func (s *PostgresService) resolveRoleTx(ctx context.Context, tx *sql.Tx, workspaceID, userID int64) (auth.Role, error) {
	var id int64
	err := tx.QueryRowContext(ctx, `
		SELECT id FROM workspaces WHERE id = $1 FOR UPDATE
	`, workspaceID).Scan(&id)
	if err == sql.ErrNoRows {
		return "", ErrWorkspaceNotFound
	}
	if err != nil {
		return "", wrapTxErr("failed to lock workspace", err)
	}

	var role auth.Role
	err = tx.QueryRowContext(ctx, `
		SELECT role FROM workspace_members
		WHERE workspace_id = $1 AND user_id = $2
		FOR UPDATE
	`, workspaceID, userID).Scan(&role)
	if err == sql.ErrNoRows {
		return "", ErrNotAMember
	}
	if err != nil {
		return "", wrapTxErr("failed to resolve caller role", err)
	}
	return role, nil
}

// invalidateRole drops a member's cached role after a committed mutation
func (s *PostgresService) invalidateRole(ctx context.Context, workspaceID, userID int64) {
	if s.cache != nil {
		_ = s.cache.Invalidate(ctx, workspaceID, userID)
	}
}
