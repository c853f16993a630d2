package session

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"
)

// csrfCookieName holds the CSRF token; readable by page scripts on purpose.
const csrfCookieName = "cohort_csrf"

// CookieTransport binds session identifiers to clients via a named,
// HTTP-only, SameSite=Lax cookie scoped to /. The cookie carries only the
// opaque session id, never user data.
type CookieTransport struct {
	// Name of the session cookie.
	Name string
	// Secure marks cookies Secure; on in production behind TLS.
	Secure bool
	// CSRFLifetime bounds issued CSRF tokens.
	CSRFLifetime time.Duration
}

// NewCookieTransport creates a transport for the named cookie.
func NewCookieTransport(name string, secure bool, csrfLifetime time.Duration) *CookieTransport {
	if csrfLifetime <= 0 {
		csrfLifetime = time.Hour
	}
	return &CookieTransport{Name: name, Secure: secure, CSRFLifetime: csrfLifetime}
}

// Bind sets the session cookie with an expiry matching the session's.
func (t *CookieTransport) Bind(w http.ResponseWriter, sessionID string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     t.Name,
		Value:    sessionID,
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   t.Secure,
		SameSite: http.SameSiteLaxMode,
		Path:     "/",
	})
}

// Read returns the bound session id, or "" when no cookie is present. A
// missing or unreadable cookie is simply "no session".
func (t *CookieTransport) Read(r *http.Request) string {
	c, err := r.Cookie(t.Name)
	if err != nil {
		return ""
	}
	return c.Value
}

// Clear overwrites the session cookie with an already-expired empty value.
func (t *CookieTransport) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     t.Name,
		Value:    "",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   t.Secure,
		SameSite: http.SameSiteLaxMode,
		Path:     "/",
	})
}

// CSRFToken returns the request's CSRF token, generating and setting a new
// one when absent. The cookie is intentionally not HTTP-only so the frontend
// can echo the token in a header or form field.
func (t *CookieTransport) CSRFToken(w http.ResponseWriter, r *http.Request) (string, error) {
	if c, err := r.Cookie(csrfCookieName); err == nil && c.Value != "" {
		return c.Value, nil
	}

	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating csrf token: %w", err)
	}
	token := hex.EncodeToString(b)

	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		MaxAge:   int(t.CSRFLifetime.Seconds()),
		HttpOnly: false,
		Secure:   t.Secure,
		SameSite: http.SameSiteLaxMode,
		Path:     "/",
	})
	return token, nil
}

// ValidateCSRF compares token against the stored cookie value in constant
// time. Absent cookie or empty token fails.
func (t *CookieTransport) ValidateCSRF(r *http.Request, token string) bool {
	c, err := r.Cookie(csrfCookieName)
	if err != nil || c.Value == "" || token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(c.Value), []byte(token)) == 1
}
