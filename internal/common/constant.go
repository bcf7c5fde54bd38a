// Package common contains shared constants and sentinel errors used across
// vpnctl components. Callers should use errors.Is to match the error values.
package common

const (
	// AuthHeaderName is the HTTP header carrying the bearer credential on
	// outbound requests.
	AuthHeaderName = "Authorization"

	// BearerPrefix prefixes the token inside the authorization header.
	BearerPrefix = "Bearer "

	// RequestIDHeaderName carries a per-request correlation id.
	RequestIDHeaderName = "X-Request-ID"
)
