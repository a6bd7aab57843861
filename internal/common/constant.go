// Package common contains shared constants and sentinel errors used across
// StaffKeeper components.
package common

const (
	// RefreshTokenCookieName is the HttpOnly cookie carrying the refresh token.
	RefreshTokenCookieName = "refresh_token"

	// AuthorizationHeaderName carries "Bearer <access token>" on requests.
	AuthorizationHeaderName = "Authorization"

	// BearerPrefix prefixes the access token in the Authorization header.
	BearerPrefix = "Bearer "
)
