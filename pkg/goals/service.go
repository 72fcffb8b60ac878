// Package goals implements workspace and private goals. Visibility decides
// the permission gate: workspace-scoped goals need admin or owner, private
// goals belong to their creator and are hidden from everyone else.
package goals

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vKaizen/graduation-backend/pkg/auth"
	"github.com/vKaizen/graduation-backend/pkg/perm"
	"github.com/vKaizen/graduation-backend/pkg/storage/postgres"
	"github.com/vKaizen/graduation-backend/pkg/workspaces"
)

// ErrGoalNotFound covers both a missing row and a private goal the caller
// may not see; the two are indistinguishable on purpose.
var ErrGoalNotFound = errors.New("goal not found")

// Goal is a workspace- or privately-scoped objective
type Goal struct {
	ID          int64     `json:"id"`
	WorkspaceID int64     `json:"workspace_id"`
	OwnerID     int64     `json:"owner_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Visibility  string    `json:"visibility"`
	Progress    int       `json:"progress"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Patch is a partial update to a goal
type Patch struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Progress    *int    `json:"progress,omitempty"`
}

// PostgresService implements goal storage over PostgreSQL
type PostgresService struct {
	db *sql.DB
}

// NewPostgresService creates a new PostgresService
func NewPostgresService(db *sql.DB) *PostgresService {
	return &PostgresService{db: db}
}

func wrapTxErr(op string, err error) error {
	if postgres.IsSerializationFailure(err) {
		return fmt.Errorf("%s: %w", op, workspaces.ErrTxConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Create creates a goal after classifying its visibility and consulting the
// policy with the resulting kind.
func (s *PostgresService) Create(ctx context.Context, workspaceID, callerID int64, title, description, visibility string) (*Goal, error) {
	kind := perm.ClassifyGoal(visibility)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	role, err := s.resolveWorkspaceRoleTx(ctx, tx, workspaceID, callerID)
	if err != nil {
		return nil, err
	}
	if !perm.Allowed(perm.Request{Role: role, Action: perm.ActionCreate, Kind: kind}) {
		return nil, fmt.Errorf("create %s goal: %w", visibility, perm.ErrDenied)
	}

	goal := &Goal{
		WorkspaceID: workspaceID,
		OwnerID:     callerID,
		Title:       title,
		Description: description,
		Visibility:  string(kindVisibility(kind)),
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO goals (workspace_id, owner_id, title, description, visibility)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, progress, created_at, updated_at
	`, goal.WorkspaceID, goal.OwnerID, goal.Title, goal.Description, goal.Visibility).
		Scan(&goal.ID, &goal.Progress, &goal.CreatedAt, &goal.UpdatedAt)
	if err != nil {
		return nil, wrapTxErr("failed to create goal", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, wrapTxErr("failed to commit goal", err)
	}
	return goal, nil
}

// Update applies a partial update. The goal's stored visibility, not
// anything in the request, decides the kind the policy is consulted with.
func (s *PostgresService) Update(ctx context.Context, goalID, callerID int64, patch Patch) (*Goal, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	goal, err := s.lockGoalTx(ctx, tx, goalID, callerID)
	if err != nil {
		return nil, err
	}

	kind := perm.ClassifyGoal(goal.Visibility)
	role, err := s.resolveWorkspaceRoleTx(ctx, tx, goal.WorkspaceID, callerID)
	if err != nil {
		return nil, err
	}
	if !perm.Allowed(perm.Request{Role: role, Action: perm.ActionUpdate, Kind: kind}) {
		return nil, fmt.Errorf("update %s goal: %w", goal.Visibility, perm.ErrDenied)
	}

	if patch.Title != nil {
		goal.Title = *patch.Title
	}
	if patch.Description != nil {
		goal.Description = *patch.Description
	}
	if patch.Progress != nil {
		goal.Progress = *patch.Progress
	}

	err = tx.QueryRowContext(ctx, `
		UPDATE goals SET title = $1, description = $2, progress = $3, updated_at = NOW()
		WHERE id = $4
		RETURNING updated_at
	`, goal.Title, goal.Description, goal.Progress, goal.ID).Scan(&goal.UpdatedAt)
	if err != nil {
		return nil, wrapTxErr("failed to update goal", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, wrapTxErr("failed to commit goal update", err)
	}
	return goal, nil
}

// Delete removes a goal. The policy reserves deletion to admins and owners
// regardless of visibility.
func (s *PostgresService) Delete(ctx context.Context, goalID, callerID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	goal, err := s.lockGoalTx(ctx, tx, goalID, callerID)
	if err != nil {
		return err
	}

	kind := perm.ClassifyGoal(goal.Visibility)
	role, err := s.resolveWorkspaceRoleTx(ctx, tx, goal.WorkspaceID, callerID)
	if err != nil {
		return err
	}
	if !perm.Allowed(perm.Request{Role: role, Action: perm.ActionDelete, Kind: kind}) {
		return fmt.Errorf("delete %s goal: %w", goal.Visibility, perm.ErrDenied)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM goals WHERE id = $1`, goal.ID); err != nil {
		return wrapTxErr("failed to delete goal", err)
	}

	if err := tx.Commit(); err != nil {
		return wrapTxErr("failed to commit goal deletion", err)
	}
	return nil
}

// ListByWorkspace lists the goals visible to the caller: all workspace
// goals plus the caller's own private ones.
func (s *PostgresService) ListByWorkspace(ctx context.Context, workspaceID, callerID int64) ([]*Goal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, workspace_id, owner_id, title, COALESCE(description, ''), visibility, progress, created_at, updated_at
		FROM goals
		WHERE workspace_id = $1 AND (visibility != 'private' OR owner_id = $2)
		ORDER BY created_at ASC
	`, workspaceID, callerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list goals: %w", err)
	}
	defer rows.Close()

	var result []*Goal
	for rows.Next() {
		goal := &Goal{}
		if err := rows.Scan(
			&goal.ID, &goal.WorkspaceID, &goal.OwnerID, &goal.Title, &goal.Description,
			&goal.Visibility, &goal.Progress, &goal.CreatedAt, &goal.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan goal: %w", err)
		}
		result = append(result, goal)
	}
	return result, rows.Err()
}

// lockGoalTx reads and locks a goal. A private goal owned by someone else
// reads as not found.
func (s *PostgresService) lockGoalTx(ctx context.Context, tx *sql.Tx, goalID, callerID int64) (*Goal, error) {
	goal := &Goal{}
	err := tx.QueryRowContext(ctx, `
		SELECT id, workspace_id, owner_id, title, COALESCE(description, ''), visibility, progress, created_at, updated_at
		FROM goals
		WHERE id = $1
		FOR UPDATE
	`, goalID).Scan(
		&goal.ID, &goal.WorkspaceID, &goal.OwnerID, &goal.Title, &goal.Description,
		&goal.Visibility, &goal.Progress, &goal.CreatedAt, &goal.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrGoalNotFound
	}
	if err != nil {
		return nil, wrapTxErr("failed to lock goal", err)
	}
	if goal.Visibility == "private" && goal.OwnerID != callerID {
		return nil, ErrGoalNotFound
	}
	return goal, nil
}

// resolveWorkspaceRoleTx locks the caller's membership row inside the
// mutation's transaction.
func (s *PostgresService) resolveWorkspaceRoleTx(ctx context.Context, tx *sql.Tx, workspaceID, callerID int64) (auth.Role, error) {
	var role auth.Role
	err := tx.QueryRowContext(ctx, `
		SELECT role FROM workspace_members
		WHERE workspace_id = $1 AND user_id = $2
		FOR UPDATE
	`, workspaceID, callerID).Scan(&role)
	if err == sql.ErrNoRows {
		var one int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM workspaces WHERE id = $1`, workspaceID).Scan(&one)
		if err == sql.ErrNoRows {
			return "", workspaces.ErrWorkspaceNotFound
		}
		if err != nil {
			return "", wrapTxErr("failed to check workspace", err)
		}
		return "", workspaces.ErrNotAMember
	}
	if err != nil {
		return "", wrapTxErr("failed to resolve caller role", err)
	}
	return role, nil
}

func kindVisibility(kind perm.ResourceKind) string {
	if kind == perm.KindPrivateGoal {
		return "private"
	}
	return "workspace"
}
