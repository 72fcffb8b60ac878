package sections

import (
	"errors"
	"time"
)

var (
	// ErrSectionNotFound fires when the section row does not exist
	ErrSectionNotFound = errors.New("section not found")
	// ErrProjectNotFound fires when the parent project does not exist
	ErrProjectNotFound = errors.New("project not found")
)

// Project is the list container sections hang off. It also carries the
// workspace a section belongs to, which is what permission checks join
// through.
type Project struct {
	ID          int64     `json:"id"`
	WorkspaceID int64     `json:"workspace_id"`
	Name        string    `json:"name"`
	CreatedBy   *int64    `json:"created_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Section is an orderable resource within a project. Position is a total
// order over siblings of one project: contiguous, starting at zero.
type Section struct {
	ID          int64     `json:"id"`
	ProjectID   int64     `json:"project_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Position    int       `json:"position"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Patch is a partial update to a section. It has no position field on
// purpose: a stray "position" in a client payload decodes into nothing, so
// an update can never perturb sibling order. Reordering is Move.
type Patch struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
}
