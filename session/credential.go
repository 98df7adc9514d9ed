// Package session owns the viewer's credential: how it is decoded from a
// login payload or the persisted blob, how it is stored across runs, and
// how other processes observing the same store are kept in sync.
package session

import "net/http"

// Credential is the opaque authentication capability: a bearer token and
// the username it was issued to. The token never leaves this type; holders
// can only attach it to an outgoing request. Credentials are obtained by
// decoding a persisted blob or a login response, nowhere else.
type Credential struct {
	token    string
	username string
}

// Username returns the identity the credential was issued to.
func (c Credential) Username() string { return c.username }

// Attach sets the Authorization header on h. A zero Credential attaches
// nothing rather than sending an empty bearer value.
func (c Credential) Attach(h http.Header) {
	if c.token == "" {
		return
	}
	h.Set("Authorization", "Bearer "+c.token)
}

// Viewer is the authenticated user as this client knows them. A Viewer
// always carries a usable Credential; "not logged in" is the absence of a
// Viewer, never a Viewer without one.
type Viewer struct {
	Cred          Credential
	Avatar        string
	CalorieTarget int
}

// Session is what a running command sees: possibly a Viewer. Logged-in
// sessions can only be produced by this package.
type Session struct {
	viewer *Viewer
}

// LoggedIn reports whether the session carries a Viewer.
func (s Session) LoggedIn() bool { return s.viewer != nil }

// Viewer returns the current viewer, if any.
func (s Session) Viewer() (Viewer, bool) {
	if s.viewer == nil {
		return Viewer{}, false
	}
	return *s.viewer, true
}

func sessionsEqual(a, b Session) bool {
	if (a.viewer == nil) != (b.viewer == nil) {
		return false
	}
	if a.viewer == nil {
		return true
	}
	return *a.viewer == *b.viewer
}
