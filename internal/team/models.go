package team

import "time"

// Team is a node in the organization tree. ParentID is nil only for the
// root team.
type Team struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	ParentID    *string   `json:"parent_id,omitempty"`
	IsRoot      bool      `json:"is_root"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// WithDepth is a team annotated with its distance in hops from the team a
// traversal started at — not from the global root.
type WithDepth struct {
	Team
	Depth int `json:"depth"`
}

// TreeNode is a team with its subtree attached. Depth is relative to the
// tree's root. Computed per call, never persisted.
type TreeNode struct {
	Team
	Depth    int         `json:"depth"`
	Children []*TreeNode `json:"children"`
}

// CreateParams holds the fields for inserting a new team.
type CreateParams struct {
	Name        string
	Description *string
	ParentID    *string
	IsRoot      bool
}
