// Package auth provides HTTP middleware for tracklane-server.
//
// APIKey(mode, header, key) validates the API key from the named request
// header on every call. When mode != "apikey" or key == "", all requests pass
// through (useful for local development with auth disabled); otherwise a
// missing or incorrect key gets 401 before the handler runs.
//
// Tenant(store) resolves the calling organization from the
// X-Organization-Slug header or the ?org= query parameter and stores it in
// the request context; Organization(r) reads it back. An unknown or absent
// slug resolves to nil — handlers that need an organization decide what that
// means for them.
//
// WebSocket connections are deliberately not authenticated here; that is left
// to the connection layer in front of the server.
package auth
