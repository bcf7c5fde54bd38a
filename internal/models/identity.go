// Package models contains the client-side domain model: the session and
// identity owned by the session manager, the tunnel record cached by the
// connection coordinator, and the two-factor enrollment artifacts.
package models

// Identity is the authenticated user as reported by the remote authority.
// It is always rebuilt from a login or profile response, never authored
// locally.
type Identity struct {
	UserID       int64
	Username     string
	Role         string
	TwoFAEnabled bool
}

// Session groups the bearer token with the identity derived from it.
// A token may be present without an identity while bootstrap is still
// hydrating; an identity must never outlive its token.
type Session struct {
	Token         string
	Identity      *Identity
	Bootstrapping bool
}

// Authenticated reports whether both the token and the hydrated identity
// are present.
func (s Session) Authenticated() bool {
	return s.Token != "" && s.Identity != nil
}
