package team

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alecgard/cohort/internal/id"
)

// Store errors.
var (
	ErrNotFound = errors.New("team not found")
	ErrNoRoot   = errors.New("no root team configured")
)

const teamColumns = `id, name, description, parent_id, is_root, created_at, updated_at`

// Store provides database operations for teams, including the recursive
// traversal queries the hierarchy resolver is built on.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new team store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func scanTeam(scan func(dest ...any) error) (*Team, error) {
	t := &Team{}
	err := scan(&t.ID, &t.Name, &t.Description, &t.ParentID, &t.IsRoot, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Create inserts a new team.
func (s *Store) Create(ctx context.Context, in CreateParams) (*Team, error) {
	teamID, err := id.New("team")
	if err != nil {
		return nil, fmt.Errorf("creating team: %w", err)
	}

	t, err := scanTeam(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`INSERT INTO teams (id, name, description, parent_id, is_root)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING `+teamColumns,
			teamID, in.Name, in.Description, in.ParentID, in.IsRoot,
		).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("creating team: %w", err)
	}
	return t, nil
}

// GetByID retrieves a team by primary key.
func (s *Store) GetByID(ctx context.Context, teamID string) (*Team, error) {
	t, err := scanTeam(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`SELECT `+teamColumns+` FROM teams WHERE id = $1`, teamID,
		).Scan(dest...)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting team by id: %w", err)
	}
	return t, nil
}

// List returns all teams ordered by name.
func (s *Store) List(ctx context.Context) ([]*Team, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+teamColumns+` FROM teams ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing teams: %w", err)
	}
	defer rows.Close()

	var teams []*Team
	for rows.Next() {
		t, err := scanTeam(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning team row: %w", err)
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

// Root returns the team flagged is_root, or nil if none is configured.
func (s *Store) Root(ctx context.Context) (*Team, error) {
	t, err := scanTeam(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`SELECT `+teamColumns+` FROM teams WHERE is_root = true LIMIT 1`,
		).Scan(dest...)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting root team: %w", err)
	}
	return t, nil
}

// DirectChildren returns all teams whose parent is teamID, each at depth 1
// relative to it.
func (s *Store) DirectChildren(ctx context.Context, teamID string) ([]WithDepth, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+teamColumns+` FROM teams WHERE parent_id = $1 ORDER BY name`, teamID)
	if err != nil {
		return nil, fmt.Errorf("getting child teams: %w", err)
	}
	defer rows.Close()

	children := []WithDepth{}
	for rows.Next() {
		t, err := scanTeam(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning team row: %w", err)
		}
		children = append(children, WithDepth{Team: *t, Depth: 1})
	}
	return children, rows.Err()
}

// Ancestors walks the parent chain of teamID upward with a recursive CTE.
// The team itself is excluded; depth 1 is the immediate parent and the
// result is ordered depth ascending, so the root comes last.
func (s *Store) Ancestors(ctx context.Context, teamID string) ([]WithDepth, error) {
	rows, err := s.pool.Query(ctx,
		`WITH RECURSIVE team_ancestors AS (
			SELECT `+teamColumns+`, 0 AS depth FROM teams WHERE id = $1
			UNION ALL
			SELECT t.id, t.name, t.description, t.parent_id, t.is_root, t.created_at, t.updated_at, ta.depth + 1
			FROM teams t
			JOIN team_ancestors ta ON t.id = ta.parent_id
		)
		SELECT `+teamColumns+`, depth FROM team_ancestors
		WHERE id != $1
		ORDER BY depth ASC`, teamID)
	if err != nil {
		return nil, fmt.Errorf("getting team ancestors: %w", err)
	}
	defer rows.Close()

	return scanWithDepth(rows)
}

// Descendants walks the child relation of teamID downward with a recursive
// CTE. The team itself is excluded; depth 1 is the direct children and the
// result is ordered depth ascending.
func (s *Store) Descendants(ctx context.Context, teamID string) ([]WithDepth, error) {
	rows, err := s.pool.Query(ctx,
		`WITH RECURSIVE team_descendants AS (
			SELECT `+teamColumns+`, 0 AS depth FROM teams WHERE id = $1
			UNION ALL
			SELECT t.id, t.name, t.description, t.parent_id, t.is_root, t.created_at, t.updated_at, td.depth + 1
			FROM teams t
			JOIN team_descendants td ON t.parent_id = td.id
		)
		SELECT `+teamColumns+`, depth FROM team_descendants
		WHERE id != $1
		ORDER BY depth ASC, name`, teamID)
	if err != nil {
		return nil, fmt.Errorf("getting team descendants: %w", err)
	}
	defer rows.Close()

	return scanWithDepth(rows)
}

func scanWithDepth(rows pgx.Rows) ([]WithDepth, error) {
	result := []WithDepth{}
	for rows.Next() {
		var wd WithDepth
		err := rows.Scan(&wd.ID, &wd.Name, &wd.Description, &wd.ParentID,
			&wd.IsRoot, &wd.CreatedAt, &wd.UpdatedAt, &wd.Depth)
		if err != nil {
			return nil, fmt.Errorf("scanning team row: %w", err)
		}
		result = append(result, wd)
	}
	return result, rows.Err()
}
