package sections

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vKaizen/graduation-backend/pkg/auth"
	"github.com/vKaizen/graduation-backend/pkg/perm"
	"github.com/vKaizen/graduation-backend/pkg/storage/postgres"
	"github.com/vKaizen/graduation-backend/pkg/workspaces"
)

// PostgresService implements the ordered section store over PostgreSQL
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

// CreateProject creates a section container inside a workspace
func (s *PostgresService) CreateProject(ctx context.Context, workspaceID, callerID int64, name string) (*Project, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	role, err := s.resolveWorkspaceRoleTx(ctx, tx, workspaceID, callerID)
	if err != nil {
		return nil, err
	}
	if !perm.Allowed(perm.Request{Role: role, Action: perm.ActionCreate, Kind: perm.KindProject}) {
		return nil, fmt.Errorf("create project: %w", perm.ErrDenied)
	}

	project := &Project{WorkspaceID: workspaceID, Name: name, CreatedBy: &callerID}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO projects (workspace_id, name, created_by)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`, workspaceID, name, callerID).Scan(&project.ID, &project.CreatedAt, &project.UpdatedAt)
	if err != nil {
		return nil, wrapTxErr("failed to create project", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, wrapTxErr("failed to commit project", err)
	}
	return project, nil
}

// Create appends a section at the tail of a project's order. The project
// row is locked so two concurrent creates cannot claim the same tail
// position.
func (s *PostgresService) Create(ctx context.Context, projectID, callerID int64, title, description string) (*Section, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	workspaceID, err := s.lockProjectTx(ctx, tx, projectID)
	if err != nil {
		return nil, err
	}

	role, err := s.resolveWorkspaceRoleTx(ctx, tx, workspaceID, callerID)
	if err != nil {
		return nil, err
	}
	if !perm.Allowed(perm.Request{Role: role, Action: perm.ActionCreate, Kind: perm.KindSection}) {
		return nil, fmt.Errorf("create section: %w", perm.ErrDenied)
	}

	var position int
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(position) + 1, 0) FROM sections WHERE project_id = $1
	`, projectID).Scan(&position)
	if err != nil {
		return nil, wrapTxErr("failed to compute tail position", err)
	}

	section := &Section{ProjectID: projectID, Title: title, Description: description, Position: position}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO sections (project_id, title, description, position)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`, projectID, title, description, position).Scan(&section.ID, &section.CreatedAt, &section.UpdatedAt)
	if err != nil {
		return nil, wrapTxErr("failed to create section", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, wrapTxErr("failed to commit section", err)
	}
	return section, nil
}

// Update applies a partial update to a section. The whole read-merge-write
// runs in one transaction against a FOR UPDATE read, and the persisted
// position is always the one from that fresh read - a client that fetched
// the section before a concurrent reorder cannot revert the reorder by
// writing its whole object back.
func (s *PostgresService) Update(ctx context.Context, sectionID, callerID int64, patch Patch) (*Section, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	section, workspaceID, err := s.lockSectionTx(ctx, tx, sectionID)
	if err != nil {
		return nil, err
	}

	role, err := s.resolveWorkspaceRoleTx(ctx, tx, workspaceID, callerID)
	if err != nil {
		return nil, err
	}
	if !perm.Allowed(perm.Request{Role: role, Action: perm.ActionUpdate, Kind: perm.KindSection}) {
		return nil, fmt.Errorf("update section: %w", perm.ErrDenied)
	}

	if patch.Title != nil {
		section.Title = *patch.Title
	}
	if patch.Description != nil {
		section.Description = *patch.Description
	}

	// Position comes from the locked read above, never from the patch
	err = tx.QueryRowContext(ctx, `
		UPDATE sections
		SET title = $1, description = $2, position = $3, updated_at = NOW()
		WHERE id = $4
		RETURNING updated_at
	`, section.Title, section.Description, section.Position, section.ID).Scan(&section.UpdatedAt)
	if err != nil {
		return nil, wrapTxErr("failed to update section", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, wrapTxErr("failed to commit section update", err)
	}
	return section, nil
}

// Move places a section at a new position among its siblings, recomputing
// every affected sibling's position in the same transaction. This is the
// only operation that changes order.
func (s *PostgresService) Move(ctx context.Context, sectionID, callerID int64, newPosition int) (*Section, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	section, workspaceID, err := s.lockSectionTx(ctx, tx, sectionID)
	if err != nil {
		return nil, err
	}

	role, err := s.resolveWorkspaceRoleTx(ctx, tx, workspaceID, callerID)
	if err != nil {
		return nil, err
	}
	if !perm.Allowed(perm.Request{Role: role, Action: perm.ActionUpdate, Kind: perm.KindSection}) {
		return nil, fmt.Errorf("move section: %w", perm.ErrDenied)
	}

	// Lock the whole sibling set for the duration of the reorder
	rows, err := tx.QueryContext(ctx, `
		SELECT id FROM sections
		WHERE project_id = $1
		ORDER BY position ASC
		FOR UPDATE
	`, section.ProjectID)
	if err != nil {
		return nil, wrapTxErr("failed to lock siblings", err)
	}

	var siblings []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan sibling: %w", err)
		}
		siblings = append(siblings, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, wrapTxErr("failed to read siblings", err)
	}

	// Rewrite the full sibling set; the deferred unique constraint tolerates
	// transient collisions until commit
	reordered := reorder(siblings, section.ID, newPosition)
	for idx, id := range reordered {
		if _, err := tx.ExecContext(ctx, `
			UPDATE sections SET position = $1, updated_at = NOW() WHERE id = $2
		`, idx, id); err != nil {
			return nil, wrapTxErr("failed to write sibling position", err)
		}
		if id == section.ID {
			section.Position = idx
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, wrapTxErr("failed to commit section move", err)
	}
	return section, nil
}

// Delete removes a section and compacts its siblings' positions
func (s *PostgresService) Delete(ctx context.Context, sectionID, callerID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	section, workspaceID, err := s.lockSectionTx(ctx, tx, sectionID)
	if err != nil {
		return err
	}

	role, err := s.resolveWorkspaceRoleTx(ctx, tx, workspaceID, callerID)
	if err != nil {
		return err
	}
	if !perm.Allowed(perm.Request{Role: role, Action: perm.ActionDelete, Kind: perm.KindSection}) {
		return fmt.Errorf("delete section: %w", perm.ErrDenied)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM sections WHERE id = $1`, section.ID); err != nil {
		return wrapTxErr("failed to delete section", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE sections SET position = position - 1
		WHERE project_id = $1 AND position > $2
	`, section.ProjectID, section.Position); err != nil {
		return wrapTxErr("failed to compact sibling positions", err)
	}

	if err := tx.Commit(); err != nil {
		return wrapTxErr("failed to commit section deletion", err)
	}
	return nil
}

// ListByProject lists a project's sections in order
func (s *PostgresService) ListByProject(ctx context.Context, projectID int64) ([]*Section, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, title, COALESCE(description, ''), position, created_at, updated_at
		FROM sections
		WHERE project_id = $1
		ORDER BY position ASC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sections: %w", err)
	}
	defer rows.Close()

	var result []*Section
	for rows.Next() {
		section := &Section{}
		if err := rows.Scan(
			&section.ID, &section.ProjectID, &section.Title, &section.Description,
			&section.Position, &section.CreatedAt, &section.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan section: %w", err)
		}
		result = append(result, section)
	}
	return result, rows.Err()
}

// lockSectionTx reads and locks a section row and resolves its workspace
func (s *PostgresService) lockSectionTx(ctx context.Context, tx *sql.Tx, sectionID int64) (*Section, int64, error) {
	section := &Section{}
	var workspaceID int64
	err := tx.QueryRowContext(ctx, `
		SELECT s.id, s.project_id, s.title, COALESCE(s.description, ''), s.position,
		       s.created_at, s.updated_at, p.workspace_id
		FROM sections s
		JOIN projects p ON p.id = s.project_id
		WHERE s.id = $1
		FOR UPDATE OF s
	`, sectionID).Scan(
		&section.ID, &section.ProjectID, &section.Title, &section.Description,
		&section.Position, &section.CreatedAt, &section.UpdatedAt, &workspaceID,
	)
	if err == sql.ErrNoRows {
		return nil, 0, ErrSectionNotFound
	}
	if err != nil {
		return nil, 0, wrapTxErr("failed to lock section", err)
	}
	return section, workspaceID, nil
}

// lockProjectTx locks a project row and returns its workspace
func (s *PostgresService) lockProjectTx(ctx context.Context, tx *sql.Tx, projectID int64) (int64, error) {
	var workspaceID int64
	err := tx.QueryRowContext(ctx, `
		SELECT workspace_id FROM projects WHERE id = $1 FOR UPDATE
	`, projectID).Scan(&workspaceID)
	if err == sql.ErrNoRows {
		return 0, ErrProjectNotFound
	}
	if err != nil {
		return 0, wrapTxErr("failed to lock project", err)
	}
	return workspaceID, nil
}

// resolveWorkspaceRoleTx locks the caller's membership row and returns the
// role, distinguishing a missing workspace from a missing membership.
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

// reorder returns ids with moved placed at newPosition, clamped to the
// slice bounds. Order of the remaining ids is preserved.
func reorder(ids []int64, moved int64, newPosition int) []int64 {
	without := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id != moved {
			without = append(without, id)
		}
	}
	if newPosition < 0 {
		newPosition = 0
	}
	if newPosition > len(without) {
		newPosition = len(without)
	}
	result := make([]int64, 0, len(ids))
	result = append(result, without[:newPosition]...)
	result = append(result, moved)
	result = append(result, without[newPosition:]...)
	return result
}
