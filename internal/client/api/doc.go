// Package api is the client side of the StaffKeeper account service: an
// HTTP client for the session and profile endpoints, and a gRPC health
// probe.
//
// Authenticated calls that come back 401 trigger one refresh of the session
// followed by a retry, so an expired access token is replaced transparently
// as long as the refresh cookie is still valid.
package api
