package team

import (
	"context"
	"fmt"
	"time"

	"github.com/alecgard/cohort/internal/cache"
)

// Source is the set of traversal primitives the resolver is built on. The
// pgx-backed Store implements it with recursive CTEs; tests use an
// in-memory tree.
type Source interface {
	GetByID(ctx context.Context, teamID string) (*Team, error)
	Root(ctx context.Context) (*Team, error)
	DirectChildren(ctx context.Context, teamID string) ([]WithDepth, error)
	Ancestors(ctx context.Context, teamID string) ([]WithDepth, error)
	Descendants(ctx context.Context, teamID string) ([]WithDepth, error)
}

// CacheStats counts tree cache lookups. The metrics package satisfies it.
type CacheStats interface {
	IncTreeCacheHit()
	IncTreeCacheMiss()
}

// Resolver answers hierarchy questions over the team tree: ancestry,
// reachability, access decisions, paths and full subtrees.
type Resolver struct {
	src     Source
	trees   *cache.Cache
	treeTTL time.Duration
	stats   CacheStats
}

// NewResolver creates a resolver over the given source.
func NewResolver(src Source) *Resolver {
	return &Resolver{src: src}
}

// EnableTreeCache makes BuildTree serve results from c for ttl. Teams change
// rarely enough that a short TTL removes most of the recursive query load.
func (r *Resolver) EnableTreeCache(c *cache.Cache, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	r.trees = c
	r.treeTTL = ttl
}

// ObserveCache reports tree cache hits and misses to stats.
func (r *Resolver) ObserveCache(stats CacheStats) {
	r.stats = stats
}

// GetByID returns the team with the given id, or ErrNotFound.
func (r *Resolver) GetByID(ctx context.Context, teamID string) (*Team, error) {
	return r.src.GetByID(ctx, teamID)
}

// Root returns the root team, or nil if none is configured.
func (r *Resolver) Root(ctx context.Context) (*Team, error) {
	return r.src.Root(ctx)
}

// Ancestors returns the parent chain of teamID, immediate parent first and
// root last, excluding the team itself.
func (r *Resolver) Ancestors(ctx context.Context, teamID string) ([]WithDepth, error) {
	return r.src.Ancestors(ctx, teamID)
}

// Descendants returns every team below teamID, nearest first, excluding the
// team itself.
func (r *Resolver) Descendants(ctx context.Context, teamID string) ([]WithDepth, error) {
	return r.src.Descendants(ctx, teamID)
}

// DirectChildren returns the teams whose parent is teamID, each at relative
// depth 1.
func (r *Resolver) DirectChildren(ctx context.Context, teamID string) ([]WithDepth, error) {
	return r.src.DirectChildren(ctx, teamID)
}

// IsAncestor reports whether ancestorID appears in the ancestor chain of
// teamID. A team is not its own ancestor.
func (r *Resolver) IsAncestor(ctx context.Context, ancestorID, teamID string) (bool, error) {
	ancestors, err := r.src.Ancestors(ctx, teamID)
	if err != nil {
		return false, err
	}
	for _, a := range ancestors {
		if a.ID == ancestorID {
			return true, nil
		}
	}
	return false, nil
}

// IsDescendant reports whether teamID appears below ancestorID. It is the
// inverse relation of IsAncestor, not an independent traversal.
func (r *Resolver) IsDescendant(ctx context.Context, teamID, ancestorID string) (bool, error) {
	return r.IsAncestor(ctx, ancestorID, teamID)
}

// CanAccess decides whether a user whose team is userTeamID may act on
// targetTeamID: their own team and any ancestor of it, never siblings or
// descendants. Strictly upward-only.
func (r *Resolver) CanAccess(ctx context.Context, userTeamID, targetTeamID string) (bool, error) {
	if userTeamID == targetTeamID {
		return true, nil
	}
	return r.IsAncestor(ctx, targetTeamID, userTeamID)
}

// HierarchyPath returns the chain from the root down to teamID inclusive,
// with depths renumbered so the root is 0 and teamID is len(path)-1.
// Returns ErrNotFound if the team does not exist.
func (r *Resolver) HierarchyPath(ctx context.Context, teamID string) ([]WithDepth, error) {
	t, err := r.src.GetByID(ctx, teamID)
	if err != nil {
		return nil, err
	}

	ancestors, err := r.src.Ancestors(ctx, teamID)
	if err != nil {
		return nil, err
	}

	path := make([]WithDepth, 0, len(ancestors)+1)
	for i := len(ancestors) - 1; i >= 0; i-- {
		path = append(path, ancestors[i])
	}
	path = append(path, WithDepth{Team: *t})

	// Ancestor depths count hops from the queried team; a root→team path
	// counts hops from the root.
	for i := range path {
		path[i].Depth = i
	}
	return path, nil
}

// CommonAncestor returns the lowest team present in both teams' ancestor
// chains, or nil when the chains share nothing. Each team counts as the
// depth-0 member of its own chain, so the common ancestor of a team and one
// of its ancestors is that ancestor itself.
func (r *Resolver) CommonAncestor(ctx context.Context, teamA, teamB string) (*WithDepth, error) {
	chainA, err := r.selfAndAncestors(ctx, teamA)
	if err != nil {
		return nil, err
	}
	chainB, err := r.selfAndAncestors(ctx, teamB)
	if err != nil {
		return nil, err
	}

	inA := make(map[string]WithDepth, len(chainA))
	for _, t := range chainA {
		inA[t.ID] = t
	}

	// chainB is ordered nearest-to-farthest, so the first hit is the lowest
	// common ancestor.
	for _, t := range chainB {
		if found, ok := inA[t.ID]; ok {
			return &found, nil
		}
	}
	return nil, nil
}

func (r *Resolver) selfAndAncestors(ctx context.Context, teamID string) ([]WithDepth, error) {
	t, err := r.src.GetByID(ctx, teamID)
	if err != nil {
		return nil, err
	}
	ancestors, err := r.src.Ancestors(ctx, teamID)
	if err != nil {
		return nil, err
	}

	chain := make([]WithDepth, 0, len(ancestors)+1)
	chain = append(chain, WithDepth{Team: *t, Depth: 0})
	chain = append(chain, ancestors...)
	return chain, nil
}

// BuildTree assembles the subtree rooted at rootTeamID, or at the global
// root when rootTeamID is empty. Returns ErrNoRoot when no root team is
// configured, ErrNotFound when rootTeamID does not exist. Depth counts hops
// from the tree's root.
func (r *Resolver) BuildTree(ctx context.Context, rootTeamID string) (*TreeNode, error) {
	key := "tree:" + rootTeamID
	if r.trees != nil {
		if v, ok := r.trees.Get(key); ok {
			if r.stats != nil {
				r.stats.IncTreeCacheHit()
			}
			return v.(*TreeNode), nil
		}
		if r.stats != nil {
			r.stats.IncTreeCacheMiss()
		}
	}

	start, err := r.treeRoot(ctx, rootTeamID)
	if err != nil {
		return nil, err
	}

	node, err := r.buildSubtree(ctx, start, 0)
	if err != nil {
		return nil, err
	}

	if r.trees != nil {
		r.trees.Set(key, node, r.treeTTL)
	}
	return node, nil
}

func (r *Resolver) treeRoot(ctx context.Context, rootTeamID string) (*Team, error) {
	if rootTeamID == "" {
		root, err := r.src.Root(ctx)
		if err != nil {
			return nil, err
		}
		if root == nil {
			return nil, ErrNoRoot
		}
		return root, nil
	}
	return r.src.GetByID(ctx, rootTeamID)
}

func (r *Resolver) buildSubtree(ctx context.Context, t *Team, depth int) (*TreeNode, error) {
	node := &TreeNode{
		Team:     *t,
		Depth:    depth,
		Children: []*TreeNode{},
	}

	children, err := r.src.DirectChildren(ctx, t.ID)
	if err != nil {
		return nil, fmt.Errorf("building subtree of %s: %w", t.ID, err)
	}

	for i := range children {
		child := children[i].Team
		sub, err := r.buildSubtree(ctx, &child, depth+1)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, sub)
	}
	return node, nil
}
