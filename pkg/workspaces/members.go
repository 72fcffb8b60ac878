package workspaces

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vKaizen/graduation-backend/pkg/auth"
	"github.com/vKaizen/graduation-backend/pkg/perm"
)

// AddMember adds a user to a workspace. The caller's role is resolved inside
// the same transaction that performs the insert, so a concurrent demotion of
// the caller cannot produce a stale allow.
func (s *PostgresService) AddMember(ctx context.Context, workspaceID, callerID, targetUserID int64, role auth.Role) (*Member, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("invalid role %q", role)
	}
	if role == auth.RoleOwner {
		return nil, fmt.Errorf("add member: %w", ErrOwnerRole)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	callerRole, err := s.resolveRoleTx(ctx, tx, workspaceID, callerID)
	if err != nil {
		return nil, err
	}

	allowed := perm.Allowed(perm.Request{
		Role:          callerRole,
		Action:        perm.ActionAddMember,
		Kind:          perm.KindMember,
		RequestedRole: role,
	})
	if !allowed {
		return nil, fmt.Errorf("add member with role %s: %w", role, perm.ErrDenied)
	}

	member := &Member{WorkspaceID: workspaceID, UserID: targetUserID, Role: role, InvitedBy: &callerID}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO workspace_members (workspace_id, user_id, role, invited_by)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (workspace_id, user_id) DO NOTHING
		RETURNING id, joined_at, created_at
	`, workspaceID, targetUserID, role, callerID).Scan(&member.ID, &member.JoinedAt, &member.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrMemberExists
	}
	if err != nil {
		return nil, wrapTxErr("failed to add member", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, wrapTxErr("failed to commit member addition", err)
	}

	s.invalidateRole(ctx, workspaceID, targetUserID)
	return member, nil
}

// UpdateMemberRole changes a member's role. Only the owner may invoke it,
// and it can never leave the workspace without an owner. Promotion to owner
// goes through TransferOwnership instead.
func (s *PostgresService) UpdateMemberRole(ctx context.Context, workspaceID, callerID, targetUserID int64, newRole auth.Role) (*Member, error) {
	if !newRole.Valid() {
		return nil, fmt.Errorf("invalid role %q", newRole)
	}
	if newRole == auth.RoleOwner {
		return nil, fmt.Errorf("update member role: %w", ErrOwnerRole)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	callerRole, err := s.resolveRoleTx(ctx, tx, workspaceID, callerID)
	if err != nil {
		return nil, err
	}

	allowed := perm.Allowed(perm.Request{
		Role:   callerRole,
		Action: perm.ActionChangeRole,
		Kind:   perm.KindMember,
	})
	if !allowed {
		return nil, fmt.Errorf("change member role: %w", perm.ErrDenied)
	}

	targetRole, err := s.lockTargetMember(ctx, tx, workspaceID, targetUserID)
	if err != nil {
		return nil, err
	}

	if targetRole == auth.RoleOwner && newRole != auth.RoleOwner {
		if err := s.checkNotSoleOwner(ctx, tx, workspaceID); err != nil {
			return nil, err
		}
	}

	member := &Member{WorkspaceID: workspaceID, UserID: targetUserID, Role: newRole}
	err = tx.QueryRowContext(ctx, `
		UPDATE workspace_members SET role = $1
		WHERE workspace_id = $2 AND user_id = $3
		RETURNING id, invited_by, joined_at, created_at
	`, newRole, workspaceID, targetUserID).Scan(&member.ID, &member.InvitedBy, &member.JoinedAt, &member.CreatedAt)
	if err != nil {
		return nil, wrapTxErr("failed to update member role", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, wrapTxErr("failed to commit role update", err)
	}

	s.invalidateRole(ctx, workspaceID, targetUserID)
	return member, nil
}

// RemoveMember removes a member from a workspace. Owners and admins may
// invoke it; removing the sole owner is rejected.
func (s *PostgresService) RemoveMember(ctx context.Context, workspaceID, callerID, targetUserID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	callerRole, err := s.resolveRoleTx(ctx, tx, workspaceID, callerID)
	if err != nil {
		return err
	}

	allowed := perm.Allowed(perm.Request{
		Role:   callerRole,
		Action: perm.ActionRemoveMember,
		Kind:   perm.KindMember,
	})
	if !allowed {
		return fmt.Errorf("remove member: %w", perm.ErrDenied)
	}

	targetRole, err := s.lockTargetMember(ctx, tx, workspaceID, targetUserID)
	if err != nil {
		return err
	}

	if targetRole == auth.RoleOwner {
		if err := s.checkNotSoleOwner(ctx, tx, workspaceID); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM workspace_members
		WHERE workspace_id = $1 AND user_id = $2
	`, workspaceID, targetUserID); err != nil {
		return wrapTxErr("failed to remove member", err)
	}

	if err := tx.Commit(); err != nil {
		return wrapTxErr("failed to commit member removal", err)
	}

	s.invalidateRole(ctx, workspaceID, targetUserID)
	return nil
}

// TransferOwnership atomically promotes the target to owner and demotes the
// caller to admin, preserving the exactly-one-owner invariant. Only the
// current owner may invoke it.
func (s *PostgresService) TransferOwnership(ctx context.Context, workspaceID, callerID, targetUserID int64) error {
	if callerID == targetUserID {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	callerRole, err := s.resolveRoleTx(ctx, tx, workspaceID, callerID)
	if err != nil {
		return err
	}
	if callerRole != auth.RoleOwner {
		return fmt.Errorf("transfer ownership: %w", perm.ErrDenied)
	}

	if _, err := s.lockTargetMember(ctx, tx, workspaceID, targetUserID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE workspace_members SET role = $1
		WHERE workspace_id = $2 AND user_id = $3
	`, auth.RoleAdmin, workspaceID, callerID); err != nil {
		return wrapTxErr("failed to demote previous owner", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE workspace_members SET role = $1
		WHERE workspace_id = $2 AND user_id = $3
	`, auth.RoleOwner, workspaceID, targetUserID); err != nil {
		return wrapTxErr("failed to promote new owner", err)
	}

	if err := tx.Commit(); err != nil {
		return wrapTxErr("failed to commit ownership transfer", err)
	}

	s.invalidateRole(ctx, workspaceID, callerID)
	s.invalidateRole(ctx, workspaceID, targetUserID)
	return nil
}

// lockTargetMember locks the target's membership row and returns its role
func (s *PostgresService) lockTargetMember(ctx context.Context, tx *sql.Tx, workspaceID, targetUserID int64) (auth.Role, error) {
	var role auth.Role
	err := tx.QueryRowContext(ctx, `
		SELECT role FROM workspace_members
		WHERE workspace_id = $1 AND user_id = $2
		FOR UPDATE
	`, workspaceID, targetUserID).Scan(&role)
	if err == sql.ErrNoRows {
		return "", ErrMemberNotFound
	}
	if err != nil {
		return "", wrapTxErr("failed to lock target member", err)
	}
	return role, nil
}

// checkNotSoleOwner rejects a mutation that would leave the workspace with
// zero owners. The caller already holds the workspace lock, so the count
// cannot change before commit.
func (s *PostgresService) checkNotSoleOwner(ctx context.Context, tx *sql.Tx, workspaceID int64) error {
	var owners int
	err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM workspace_members
		WHERE workspace_id = $1 AND role = $2
	`, workspaceID, auth.RoleOwner).Scan(&owners)
	if err != nil {
		return wrapTxErr("failed to count owners", err)
	}
	if owners <= 1 {
		return ErrLastOwner
	}
	return nil
}
