package workspaces

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vKaizen/graduation-backend/pkg/auth"
	"github.com/vKaizen/graduation-backend/pkg/perm"
	"github.com/vKaizen/graduation-backend/pkg/storage/postgres"
)

// RoleCacher caches role lookups for read-only display paths. Mutations
// bypass it entirely and invalidate after commit.
type RoleCacher interface {
	GetRole(ctx context.Context, workspaceID, userID int64) (auth.Role, bool, error)
	SetRole(ctx context.Context, workspaceID, userID int64, role auth.Role) error
	Invalidate(ctx context.Context, workspaceID, userID int64) error
}

// PostgresService implements the workspace core over PostgreSQL
type PostgresService struct {
	db    *sql.DB
	cache RoleCacher // optional
}

// NewPostgresService creates a new PostgresService
func NewPostgresService(db *sql.DB) *PostgresService {
	return &PostgresService{db: db}
}

// WithRoleCache attaches a role cache for display lookups
func (s *PostgresService) WithRoleCache(cache RoleCacher) *PostgresService {
	s.cache = cache
	return s
}

// wrapTxErr tags serialization failures as ErrTxConflict so callers can
// distinguish retryable conflicts from hard failures.
func wrapTxErr(op string, err error) error {
	if postgres.IsSerializationFailure(err) {
		return fmt.Errorf("%s: %w", op, ErrTxConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// CreateWorkspace creates a workspace with the creator as its sole owner.
// Both rows commit in one transaction so a workspace can never be observed
// without an owner.
func (s *PostgresService) CreateWorkspace(ctx context.Context, name string, creatorID int64) (*Workspace, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	ws := &Workspace{Name: name, CreatedBy: &creatorID}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO workspaces (name, created_by)
		VALUES ($1, $2)
		RETURNING id, created_at, updated_at
	`, name, creatorID).Scan(&ws.ID, &ws.CreatedAt, &ws.UpdatedAt)
	if err != nil {
		return nil, wrapTxErr("failed to create workspace", err)
	}

	owner := &Member{WorkspaceID: ws.ID, UserID: creatorID, Role: auth.RoleOwner}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO workspace_members (workspace_id, user_id, role)
		VALUES ($1, $2, $3)
		RETURNING id, joined_at, created_at
	`, ws.ID, creatorID, auth.RoleOwner).Scan(&owner.ID, &owner.JoinedAt, &owner.CreatedAt)
	if err != nil {
		return nil, wrapTxErr("failed to create owner membership", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, wrapTxErr("failed to commit workspace", err)
	}

	ws.Members = []*Member{owner}
	return ws, nil
}

// GetWorkspace retrieves a workspace with its members
func (s *PostgresService) GetWorkspace(ctx context.Context, id int64) (*Workspace, error) {
	ws := &Workspace{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, created_by, created_at, updated_at
		FROM workspaces
		WHERE id = $1
	`, id).Scan(&ws.ID, &ws.Name, &ws.CreatedBy, &ws.CreatedAt, &ws.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrWorkspaceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get workspace: %w", err)
	}

	members, err := s.ListMembers(ctx, id)
	if err != nil {
		return nil, err
	}
	ws.Members = members
	return ws, nil
}

// ListWorkspacesForUser lists workspaces the user is a member of
func (s *PostgresService) ListWorkspacesForUser(ctx context.Context, userID int64) ([]*Workspace, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT w.id, w.name, w.created_by, w.created_at, w.updated_at
		FROM workspaces w
		JOIN workspace_members m ON m.workspace_id = w.id
		WHERE m.user_id = $1
		ORDER BY w.created_at ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list workspaces: %w", err)
	}
	defer rows.Close()

	var result []*Workspace
	for rows.Next() {
		ws := &Workspace{}
		if err := rows.Scan(&ws.ID, &ws.Name, &ws.CreatedBy, &ws.CreatedAt, &ws.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan workspace: %w", err)
		}
		result = append(result, ws)
	}
	return result, rows.Err()
}

// ListMembers retrieves all members of a workspace
func (s *PostgresService) ListMembers(ctx context.Context, workspaceID int64) ([]*Member, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, workspace_id, user_id, role, invited_by, joined_at, created_at
		FROM workspace_members
		WHERE workspace_id = $1
		ORDER BY created_at ASC
	`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []*Member
	for rows.Next() {
		member := &Member{}
		if err := rows.Scan(
			&member.ID, &member.WorkspaceID, &member.UserID, &member.Role,
			&member.InvitedBy, &member.JoinedAt, &member.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, member)
	}
	return members, rows.Err()
}

// DeleteWorkspace removes a workspace and, by cascade, its members,
// invitations, projects, sections, and goals. Only the owner may delete.
func (s *PostgresService) DeleteWorkspace(ctx context.Context, workspaceID, callerID int64) error {
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
		return fmt.Errorf("delete workspace: %w", perm.ErrDenied)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM workspaces WHERE id = $1`, workspaceID); err != nil {
		return wrapTxErr("failed to delete workspace", err)
	}

	if err := tx.Commit(); err != nil {
		return wrapTxErr("failed to commit workspace deletion", err)
	}
	return nil
}
