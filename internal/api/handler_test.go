package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/alecgard/cohort/internal/auth"
	"github.com/alecgard/cohort/internal/metrics"
	"github.com/alecgard/cohort/internal/session"
	"github.com/alecgard/cohort/internal/team"
	"github.com/alecgard/cohort/internal/user"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

// fakeAuthService returns canned results for login and registration.
type fakeAuthService struct {
	login     *auth.Login
	createErr error
}

func (f *fakeAuthService) LogIn(_ context.Context, email, password string, _ auth.LoginMeta) (*auth.Login, error) {
	if f.login != nil && email == f.login.User.Email && password == "correct horse" {
		return f.login, nil
	}
	return nil, nil
}

func (f *fakeAuthService) CreateUser(_ context.Context, in user.RegistrationInput) (*user.User, error) {
	if err := user.ValidateRegistration(in); err != nil {
		return nil, err
	}
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &user.User{
		ID:        "user_new",
		Email:     in.Email,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Role:      in.Role,
		TeamID:    in.TeamID,
		Active:    true,
	}, nil
}

// fakeSessionStore backs a real session.Manager in tests.
type fakeSessionStore struct {
	sessions map[string]*session.WithUser
}

func (f *fakeSessionStore) GetWithUser(_ context.Context, id string) (*session.WithUser, error) {
	sw, ok := f.sessions[id]
	if !ok {
		return nil, session.ErrNotFound
	}
	return sw, nil
}

func (f *fakeSessionStore) Delete(_ context.Context, id string) error {
	delete(f.sessions, id)
	return nil
}

func (f *fakeSessionStore) DeleteAllForUser(_ context.Context, userID string) error {
	for id, sw := range f.sessions {
		if sw.Session.UserID == userID {
			delete(f.sessions, id)
		}
	}
	return nil
}

func (f *fakeSessionStore) Extend(_ context.Context, id string, d time.Duration) (*session.Session, error) {
	sw, ok := f.sessions[id]
	if !ok {
		return nil, session.ErrNotFound
	}
	sw.Session.ExpiresAt = time.Now().Add(d)
	return &sw.Session, nil
}

// treeSource is an in-memory team.Source over parent pointers.
type treeSource struct {
	teams map[string]*team.Team
}

func (s *treeSource) GetByID(_ context.Context, id string) (*team.Team, error) {
	t, ok := s.teams[id]
	if !ok {
		return nil, team.ErrNotFound
	}
	return t, nil
}

func (s *treeSource) Root(context.Context) (*team.Team, error) {
	for _, t := range s.teams {
		if t.IsRoot {
			return t, nil
		}
	}
	return nil, nil
}

func (s *treeSource) DirectChildren(_ context.Context, id string) ([]team.WithDepth, error) {
	var out []team.WithDepth
	for _, t := range s.teams {
		if t.ParentID != nil && *t.ParentID == id {
			out = append(out, team.WithDepth{Team: *t, Depth: 1})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *treeSource) Ancestors(_ context.Context, id string) ([]team.WithDepth, error) {
	t, ok := s.teams[id]
	if !ok {
		return nil, nil
	}
	var out []team.WithDepth
	depth := 1
	for t.ParentID != nil {
		t = s.teams[*t.ParentID]
		out = append(out, team.WithDepth{Team: *t, Depth: depth})
		depth++
	}
	return out, nil
}

func (s *treeSource) Descendants(ctx context.Context, id string) ([]team.WithDepth, error) {
	var out []team.WithDepth
	frontier := []string{id}
	depth := 1
	for len(frontier) > 0 {
		var next []string
		for _, fid := range frontier {
			children, _ := s.DirectChildren(ctx, fid)
			for _, c := range children {
				out = append(out, team.WithDepth{Team: c.Team, Depth: depth})
				next = append(next, c.ID)
			}
		}
		frontier = next
		depth++
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Harness
// ---------------------------------------------------------------------------

type harness struct {
	router  http.Handler
	store   *fakeSessionStore
	authSvc *fakeAuthService
}

func strptr(s string) *string { return &s }

func newHarness(t *testing.T) *harness {
	t.Helper()

	src := &treeSource{teams: map[string]*team.Team{
		"team_root": {ID: "team_root", Name: "Company", IsRoot: true},
		"team_ops":  {ID: "team_ops", Name: "Operations", ParentID: strptr("team_root")},
		"team_fin":  {ID: "team_fin", Name: "Finance", ParentID: strptr("team_ops")},
		"team_mkt":  {ID: "team_mkt", Name: "Marketing", ParentID: strptr("team_ops")},
	}}
	resolver := team.NewResolver(src)

	store := &fakeSessionStore{sessions: map[string]*session.WithUser{}}
	manager := session.NewManager(store, session.NewCookieTransport("cohort_session", false, time.Hour), time.Hour)

	authSvc := &fakeAuthService{
		login: &auth.Login{
			Session: &session.Session{ID: "sess_login", UserID: "user_alice", ExpiresAt: time.Now().Add(time.Hour)},
			User: &user.User{
				ID: "user_alice", Email: "alice@example.com",
				FirstName: "Alice", LastName: "Ng",
				Role: user.RoleMember, TeamID: "team_fin", Active: true,
			},
		},
	}

	router := NewRouter(RouterDeps{
		Auth:           authSvc,
		Sessions:       manager,
		Teams:          resolver,
		Metrics:        metrics.New(),
		AllowedOrigins: []string{"*"},
		LoginPath:      "/login",
	})

	return &harness{router: router, store: store, authSvc: authSvc}
}

// seedSession inserts a live session and returns a request decorator that
// attaches the session and CSRF cookies plus the CSRF header.
func (h *harness) seedSession(id, userID, role, teamID string) func(*http.Request) {
	h.store.sessions[id] = &session.WithUser{
		Session: session.Session{ID: id, UserID: userID, ExpiresAt: time.Now().Add(time.Hour)},
		User:    session.User{ID: userID, Email: userID + "@example.com", Role: role, TeamID: teamID},
	}
	return func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: "cohort_session", Value: id})
		r.AddCookie(&http.Cookie{Name: "cohort_csrf", Value: "csrf-test-token"})
		r.Header.Set("X-CSRF-Token", "csrf-test-token")
	}
}

func (h *harness) do(t *testing.T, method, path, body string, decorate ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for _, d := range decorate {
		d(req)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return body
}

// ---------------------------------------------------------------------------
// Health
// ---------------------------------------------------------------------------

func TestHealthCheck(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != "ok" {
		t.Errorf("status = %v", body["status"])
	}
	if body["database"] != "connected" {
		t.Errorf("database = %v", body["database"])
	}
}

// ---------------------------------------------------------------------------
// Auth endpoints
// ---------------------------------------------------------------------------

func TestLogin_Success(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/v1/auth/login",
		`{"email":"alice@example.com","password":"correct horse"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "cohort_session" {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatal("expected session cookie on successful login")
	}
	if cookie.Value != "sess_login" {
		t.Errorf("cookie value = %q", cookie.Value)
	}
	if !cookie.HttpOnly {
		t.Error("session cookie must be HttpOnly")
	}

	body := decodeBody(t, rec)
	u, _ := body["user"].(map[string]interface{})
	if u["email"] != "alice@example.com" {
		t.Errorf("user email = %v", u["email"])
	}
	if _, ok := u["password_hash"]; ok {
		t.Error("password hash must never be serialized")
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/v1/auth/login",
		`{"email":"alice@example.com","password":"wrong"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Error("no cookie should be set on failed login")
	}
}

func TestLogin_MissingFields(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/v1/auth/login", `{"email":"alice@example.com"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", rec.Code)
	}
}

func TestMe(t *testing.T) {
	h := newHarness(t)
	asAlice := h.seedSession("sess_a", "user_alice", user.RoleMember, "team_fin")

	rec := h.do(t, http.MethodGet, "/api/v1/auth/me", "", asAlice)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	u, _ := body["user"].(map[string]interface{})
	if u["id"] != "user_alice" {
		t.Errorf("user id = %v", u["id"])
	}
}

func TestMe_Unauthenticated(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/api/v1/auth/me", "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestLogout(t *testing.T) {
	h := newHarness(t)
	asAlice := h.seedSession("sess_a", "user_alice", user.RoleMember, "team_fin")

	rec := h.do(t, http.MethodPost, "/api/v1/auth/logout", "", asAlice)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}
	if _, ok := h.store.sessions["sess_a"]; ok {
		t.Error("session row should be deleted")
	}
}

func TestLogout_MissingCSRF(t *testing.T) {
	h := newHarness(t)
	asAlice := h.seedSession("sess_a", "user_alice", user.RoleMember, "team_fin")

	rec := h.do(t, http.MethodPost, "/api/v1/auth/logout", "", func(r *http.Request) {
		asAlice(r)
		r.Header.Del("X-CSRF-Token")
	})
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 without csrf token, got %d", rec.Code)
	}
	if _, ok := h.store.sessions["sess_a"]; !ok {
		t.Error("session must survive a rejected request")
	}
}

func TestExtend(t *testing.T) {
	h := newHarness(t)
	asAlice := h.seedSession("sess_a", "user_alice", user.RoleMember, "team_fin")
	before := h.store.sessions["sess_a"].Session.ExpiresAt

	rec := h.do(t, http.MethodPost, "/api/v1/auth/extend", "", asAlice)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	after := h.store.sessions["sess_a"].Session.ExpiresAt
	if !after.After(before) {
		t.Errorf("expiry should move forward: before=%v after=%v", before, after)
	}
}

func TestCSRFEndpoint(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/api/v1/auth/csrf", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	token, _ := body["csrf_token"].(string)
	if len(token) != 64 {
		t.Errorf("token length = %d, want 64", len(token))
	}
}

// ---------------------------------------------------------------------------
// User endpoints
// ---------------------------------------------------------------------------

func TestCreateUser_AdminOnly(t *testing.T) {
	h := newHarness(t)
	payload := `{"email":"bob@example.com","password":"long enough","first_name":"Bob","last_name":"Builder"}`

	asMember := h.seedSession("sess_m", "user_member", user.RoleMember, "team_fin")
	rec := h.do(t, http.MethodPost, "/api/v1/users", payload, asMember)
	if rec.Code != http.StatusForbidden {
		t.Errorf("member create: expected 403, got %d", rec.Code)
	}

	asAdmin := h.seedSession("sess_adm", "user_admin", user.RoleAdmin, "team_root")
	rec = h.do(t, http.MethodPost, "/api/v1/users", payload, asAdmin)
	if rec.Code != http.StatusCreated {
		t.Fatalf("admin create: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCreateUser_Conflicts(t *testing.T) {
	h := newHarness(t)
	asAdmin := h.seedSession("sess_adm", "user_admin", user.RoleAdmin, "team_root")

	h.authSvc.createErr = user.ErrDuplicateEmail
	rec := h.do(t, http.MethodPost, "/api/v1/users",
		`{"email":"dup@example.com","password":"long enough","first_name":"D","last_name":"U"}`, asAdmin)
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", rec.Code)
	}

	rec = h.do(t, http.MethodPost, "/api/v1/users",
		`{"email":"bad","password":"long enough","first_name":"B","last_name":"U"}`, asAdmin)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", rec.Code)
	}
}

func TestLogoutAll(t *testing.T) {
	h := newHarness(t)
	asAlice := h.seedSession("sess_a", "user_alice", user.RoleMember, "team_fin")
	h.seedSession("sess_b", "user_alice", user.RoleMember, "team_fin")
	h.seedSession("sess_other", "user_other", user.RoleMember, "team_fin")

	rec := h.do(t, http.MethodPost, "/api/v1/users/user_alice/logout-all", "", asAlice)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(h.store.sessions) != 1 {
		t.Errorf("expected only the other user's session to survive, have %d", len(h.store.sessions))
	}
}

func TestLogoutAll_ForbiddenForOtherUsers(t *testing.T) {
	h := newHarness(t)
	asAlice := h.seedSession("sess_a", "user_alice", user.RoleMember, "team_fin")
	h.seedSession("sess_other", "user_other", user.RoleMember, "team_fin")

	rec := h.do(t, http.MethodPost, "/api/v1/users/user_other/logout-all", "", asAlice)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
}

// ---------------------------------------------------------------------------
// Team endpoints
// ---------------------------------------------------------------------------

func TestTeamAncestors(t *testing.T) {
	h := newHarness(t)
	asAlice := h.seedSession("sess_a", "user_alice", user.RoleMember, "team_fin")

	rec := h.do(t, http.MethodGet, "/api/v1/teams/team_fin/ancestors", "", asAlice)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	teams, _ := body["teams"].([]interface{})
	if len(teams) != 2 {
		t.Fatalf("expected 2 ancestors, got %d", len(teams))
	}
	first, _ := teams[0].(map[string]interface{})
	if first["id"] != "team_ops" {
		t.Errorf("immediate parent should come first, got %v", first["id"])
	}
}

func TestTeamAncestors_UnknownTeam(t *testing.T) {
	h := newHarness(t)
	asAlice := h.seedSession("sess_a", "user_alice", user.RoleMember, "team_fin")

	rec := h.do(t, http.MethodGet, "/api/v1/teams/team_missing/ancestors", "", asAlice)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestTeamTree(t *testing.T) {
	h := newHarness(t)
	asAlice := h.seedSession("sess_a", "user_alice", user.RoleMember, "team_fin")

	rec := h.do(t, http.MethodGet, "/api/v1/teams/tree", "", asAlice)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["id"] != "team_root" {
		t.Errorf("tree root = %v", body["id"])
	}

	rec = h.do(t, http.MethodGet, "/api/v1/teams/tree?root=team_ops", "", asAlice)
	if rec.Code != http.StatusOK {
		t.Fatalf("subtree: expected 200, got %d", rec.Code)
	}
	body = decodeBody(t, rec)
	if body["id"] != "team_ops" {
		t.Errorf("subtree root = %v", body["id"])
	}
}

func TestTeamAccess(t *testing.T) {
	h := newHarness(t)
	asAlice := h.seedSession("sess_a", "user_alice", user.RoleMember, "team_fin")

	tests := []struct {
		path string
		want bool
	}{
		{"/api/v1/teams/team_fin/access?target=team_root", true}, // ancestor
		{"/api/v1/teams/team_fin/access?target=team_fin", true},  // self
		{"/api/v1/teams/team_fin/access?target=team_mkt", false}, // sibling-ish
		{"/api/v1/teams/team_ops/access?target=team_fin", false}, // descendant
	}
	for _, tt := range tests {
		rec := h.do(t, http.MethodGet, tt.path, "", asAlice)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", tt.path, rec.Code)
		}
		body := decodeBody(t, rec)
		if body["allowed"] != tt.want {
			t.Errorf("%s: allowed = %v, want %v", tt.path, body["allowed"], tt.want)
		}
	}
}

func TestTeamCanAccess_CallerScoped(t *testing.T) {
	h := newHarness(t)
	// Alice sits in team_fin; she can see upward, not sideways.
	asAlice := h.seedSession("sess_a", "user_alice", user.RoleMember, "team_fin")

	rec := h.do(t, http.MethodGet, "/api/v1/teams/team_root/can-access", "", asAlice)
	body := decodeBody(t, rec)
	if body["allowed"] != true {
		t.Errorf("ancestor access should be allowed, got %v", body["allowed"])
	}

	rec = h.do(t, http.MethodGet, "/api/v1/teams/team_mkt/can-access", "", asAlice)
	body = decodeBody(t, rec)
	if body["allowed"] != false {
		t.Errorf("sibling access should be denied, got %v", body["allowed"])
	}
}

func TestTeamPath(t *testing.T) {
	h := newHarness(t)
	asAlice := h.seedSession("sess_a", "user_alice", user.RoleMember, "team_fin")

	rec := h.do(t, http.MethodGet, "/api/v1/teams/team_fin/path", "", asAlice)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	path, _ := body["path"].([]interface{})
	if len(path) != 3 {
		t.Fatalf("expected path of 3, got %d", len(path))
	}
	first, _ := path[0].(map[string]interface{})
	last, _ := path[2].(map[string]interface{})
	if first["id"] != "team_root" || last["id"] != "team_fin" {
		t.Errorf("path order wrong: first=%v last=%v", first["id"], last["id"])
	}
}

// ---------------------------------------------------------------------------
// Ambient middleware
// ---------------------------------------------------------------------------

func TestRequestIDHeader(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/health", "")
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected a generated X-Request-ID")
	}

	rec = h.do(t, http.MethodGet, "/health", "", func(r *http.Request) {
		r.Header.Set("X-Request-ID", "fixed-id")
	})
	if got := rec.Header().Get("X-Request-ID"); got != "fixed-id" {
		t.Errorf("expected X-Request-ID passthrough, got %q", got)
	}
}

func TestSecureHeaders(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/health", "")
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected nosniff header")
	}
	if rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("expected frame deny header")
	}
}

func TestCORSHeaders(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/health", "", func(r *http.Request) {
		r.Header.Set("Origin", "https://app.example.com")
	})

	if got := rec.Header().Get("Access-Control-Expose-Headers"); got != "X-Request-ID" {
		t.Errorf("Expose-Headers = %q, want only X-Request-ID", got)
	}
	allow := rec.Header().Get("Access-Control-Allow-Headers")
	if !strings.Contains(allow, "X-CSRF-Token") {
		t.Errorf("Allow-Headers = %q, want X-CSRF-Token listed", allow)
	}
}

func TestMetricsSummary(t *testing.T) {
	h := newHarness(t)

	t.Run("unauthenticated redirects to login", func(t *testing.T) {
		rec := h.do(t, http.MethodGet, "/metrics/summary", "")
		if rec.Code != http.StatusSeeOther {
			t.Fatalf("expected 303, got %d", rec.Code)
		}
		want := "/login?return_to=%2Fmetrics%2Fsummary"
		if got := rec.Header().Get("Location"); got != want {
			t.Errorf("Location = %q, want %q", got, want)
		}
	})

	t.Run("authenticated gets the summary", func(t *testing.T) {
		asUser := h.seedSession("sess_m", "user_alice", user.RoleMember, "team_fin")

		rec := h.do(t, http.MethodGet, "/metrics/summary", "", asUser)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		body := decodeBody(t, rec)
		if _, ok := body["sessions"]; !ok {
			t.Error("expected a sessions section in the summary")
		}
	})
}
