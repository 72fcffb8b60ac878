package workspaces

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/vKaizen/graduation-backend/pkg/auth"
	"github.com/vKaizen/graduation-backend/pkg/perm"
)

// invitationTTL is how long an invitation stays acceptable
const invitationTTL = 7 * 24 * time.Hour

func generateInvitationToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// CreateInvitation invites an email address to join a workspace with a role.
// The caller needs the same permission as adding a member with that role
// directly; accepting later re-checks nothing, the gate is at issue time.
func (s *PostgresService) CreateInvitation(ctx context.Context, workspaceID, callerID int64, email string, role auth.Role) (*Invitation, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("invalid role %q", role)
	}
	if role == auth.RoleOwner {
		return nil, fmt.Errorf("create invitation: %w", ErrOwnerRole)
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
		return nil, fmt.Errorf("invite with role %s: %w", role, perm.ErrDenied)
	}

	token, err := generateInvitationToken()
	if err != nil {
		return nil, err
	}

	invitation := &Invitation{
		WorkspaceID: workspaceID,
		Email:       email,
		Role:        role,
		Token:       token,
		InvitedBy:   &callerID,
		ExpiresAt:   time.Now().Add(invitationTTL),
	}

	// Re-inviting the same email refreshes the token and expiry
	err = tx.QueryRowContext(ctx, `
		INSERT INTO workspace_invitations (workspace_id, email, role, token, invited_by, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (workspace_id, email) DO UPDATE
		SET role = EXCLUDED.role, token = EXCLUDED.token,
		    invited_at = NOW(), expires_at = EXCLUDED.expires_at
		RETURNING id, invited_at
	`, invitation.WorkspaceID, invitation.Email, invitation.Role, invitation.Token,
		invitation.InvitedBy, invitation.ExpiresAt).
		Scan(&invitation.ID, &invitation.InvitedAt)
	if err != nil {
		return nil, wrapTxErr("failed to create invitation", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, wrapTxErr("failed to commit invitation", err)
	}
	return invitation, nil
}

// ListInvitations lists pending invitations for a workspace
func (s *PostgresService) ListInvitations(ctx context.Context, workspaceID int64) ([]*Invitation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, workspace_id, email, role, token, invited_by, invited_at, expires_at, accepted_at, accepted_by
		FROM workspace_invitations
		WHERE workspace_id = $1 AND accepted_at IS NULL
		ORDER BY invited_at DESC
	`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	defer rows.Close()

	var invitations []*Invitation
	for rows.Next() {
		invitation := &Invitation{}
		if err := rows.Scan(
			&invitation.ID, &invitation.WorkspaceID, &invitation.Email, &invitation.Role,
			&invitation.Token, &invitation.InvitedBy, &invitation.InvitedAt, &invitation.ExpiresAt,
			&invitation.AcceptedAt, &invitation.AcceptedBy,
		); err != nil {
			return nil, fmt.Errorf("failed to scan invitation: %w", err)
		}
		invitations = append(invitations, invitation)
	}
	return invitations, rows.Err()
}

// AcceptInvitation redeems an invitation token and adds the user as a
// member. Lookup, membership insert, and acceptance marker commit together;
// the row lock prevents double acceptance.
func (s *PostgresService) AcceptInvitation(ctx context.Context, token string, userID int64) (*Member, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var id, workspaceID int64
	var invitedBy sql.NullInt64
	var role auth.Role
	var expiresAt time.Time
	var acceptedAt sql.NullTime

	err = tx.QueryRowContext(ctx, `
		SELECT id, workspace_id, role, invited_by, expires_at, accepted_at
		FROM workspace_invitations
		WHERE token = $1
		FOR UPDATE
	`, token).Scan(&id, &workspaceID, &role, &invitedBy, &expiresAt, &acceptedAt)
	if err == sql.ErrNoRows {
		return nil, ErrInvitationNotFound
	}
	if err != nil {
		return nil, wrapTxErr("failed to get invitation", err)
	}

	if acceptedAt.Valid {
		return nil, ErrInvitationAccepted
	}
	if time.Now().After(expiresAt) {
		return nil, ErrInvitationExpired
	}

	member := &Member{WorkspaceID: workspaceID, UserID: userID, Role: role}
	if invitedBy.Valid {
		member.InvitedBy = &invitedBy.Int64
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO workspace_members (workspace_id, user_id, role, invited_by)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (workspace_id, user_id) DO NOTHING
		RETURNING id, joined_at, created_at
	`, workspaceID, userID, role, member.InvitedBy).Scan(&member.ID, &member.JoinedAt, &member.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrMemberExists
	}
	if err != nil {
		return nil, wrapTxErr("failed to add member", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE workspace_invitations SET accepted_at = NOW(), accepted_by = $1 WHERE id = $2
	`, userID, id); err != nil {
		return nil, wrapTxErr("failed to mark invitation accepted", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, wrapTxErr("failed to commit invitation acceptance", err)
	}
	return member, nil
}

// RevokeInvitation deletes a pending invitation
func (s *PostgresService) RevokeInvitation(ctx context.Context, workspaceID, callerID, invitationID int64) error {
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
		return fmt.Errorf("revoke invitation: %w", perm.ErrDenied)
	}

	result, err := tx.ExecContext(ctx, `
		DELETE FROM workspace_invitations
		WHERE id = $1 AND workspace_id = $2 AND accepted_at IS NULL
	`, invitationID, workspaceID)
	if err != nil {
		return wrapTxErr("failed to revoke invitation", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrInvitationNotFound
	}

	if err := tx.Commit(); err != nil {
		return wrapTxErr("failed to commit invitation revocation", err)
	}
	return nil
}

// CleanupExpiredInvitations removes expired, unaccepted invitations. Run
// periodically from the scheduler in cmd/workspaced.
func (s *PostgresService) CleanupExpiredInvitations(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM workspace_invitations
		WHERE expires_at < NOW() AND accepted_at IS NULL
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup expired invitations: %w", err)
	}
	return result.RowsAffected()
}
