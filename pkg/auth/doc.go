// Package auth provides bearer-token authentication for the campus API.
//
// Tokens are opaque strings of the form campus_<base64url(32 bytes)>.
// Only a SHA-256 hash is stored; the raw token is returned to the caller
// exactly once at creation. TokenManager validates incoming tokens and
// loads the owning user, rejecting revoked or expired tokens and
// deactivated accounts.
//
// Authorization is not decided here; that is the rbac package's job.
// This package only establishes WHO is calling.
package auth
