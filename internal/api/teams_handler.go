package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/alecgard/cohort/internal/auth"
	"github.com/alecgard/cohort/internal/team"
	"github.com/go-chi/chi/v5"
)

// teamsHandler groups team hierarchy HTTP handlers.
type teamsHandler struct {
	resolver *team.Resolver
}

func newTeamsHandler(resolver *team.Resolver) *teamsHandler {
	return &teamsHandler{resolver: resolver}
}

// Get handles GET /api/v1/teams/{id}.
func (h *teamsHandler) Get(w http.ResponseWriter, r *http.Request) {
	t, err := h.resolver.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeTeamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// Root handles GET /api/v1/teams/root.
func (h *teamsHandler) Root(w http.ResponseWriter, r *http.Request) {
	root, err := h.resolver.Root(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to resolve root team")
		return
	}
	if root == nil {
		writeError(w, http.StatusNotFound, "no_root", "no root team is configured")
		return
	}
	writeJSON(w, http.StatusOK, root)
}

// Ancestors handles GET /api/v1/teams/{id}/ancestors: the parent chain,
// immediate parent first, root last.
func (h *teamsHandler) Ancestors(w http.ResponseWriter, r *http.Request) {
	h.listOp(w, r, h.resolver.Ancestors)
}

// Descendants handles GET /api/v1/teams/{id}/descendants.
func (h *teamsHandler) Descendants(w http.ResponseWriter, r *http.Request) {
	h.listOp(w, r, h.resolver.Descendants)
}

// Children handles GET /api/v1/teams/{id}/children.
func (h *teamsHandler) Children(w http.ResponseWriter, r *http.Request) {
	h.listOp(w, r, h.resolver.DirectChildren)
}

// Path handles GET /api/v1/teams/{id}/path: root-to-team with depths
// counted from the root.
func (h *teamsHandler) Path(w http.ResponseWriter, r *http.Request) {
	path, err := h.resolver.HierarchyPath(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeTeamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"path": path})
}

// Tree handles GET /api/v1/teams/tree and /teams/tree?root={id}.
func (h *teamsHandler) Tree(w http.ResponseWriter, r *http.Request) {
	node, err := h.resolver.BuildTree(r.Context(), r.URL.Query().Get("root"))
	if err != nil {
		if errors.Is(err, team.ErrNoRoot) {
			writeError(w, http.StatusNotFound, "no_root", "no root team is configured")
			return
		}
		writeTeamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, node)
}

// Access handles GET /api/v1/teams/{id}/access?target={teamID}: may a user
// in team {id} access the target team.
func (h *teamsHandler) Access(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("target")
	if target == "" {
		writeError(w, http.StatusBadRequest, "missing_target", "target query parameter is required")
		return
	}

	allowed, err := h.resolver.CanAccess(r.Context(), chi.URLParam(r, "id"), target)
	if err != nil {
		writeTeamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"allowed": allowed})
}

// CanAccess handles GET /api/v1/teams/{id}/can-access: may the calling
// user's team access team {id}.
func (h *teamsHandler) CanAccess(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())
	if u == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "not authenticated")
		return
	}

	allowed, err := h.resolver.CanAccess(r.Context(), u.TeamID, chi.URLParam(r, "id"))
	if err != nil {
		writeTeamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"allowed": allowed})
}

// listOp serves the traversal endpoints sharing the teams-of-a-team shape.
// The team's existence is checked first so unknown ids are a 404, not an
// empty list.
func (h *teamsHandler) listOp(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, teamID string) ([]team.WithDepth, error)) {
	teamID := chi.URLParam(r, "id")

	if _, err := h.resolver.GetByID(r.Context(), teamID); err != nil {
		writeTeamError(w, err)
		return
	}

	teams, err := op(r.Context(), teamID)
	if err != nil {
		writeTeamError(w, err)
		return
	}
	if teams == nil {
		teams = []team.WithDepth{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"teams": teams})
}

func writeTeamError(w http.ResponseWriter, err error) {
	if errors.Is(err, team.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "team not found")
		return
	}
	writeError(w, http.StatusInternalServerError, "internal_error", "team lookup failed")
}
