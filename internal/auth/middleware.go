package auth

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/tracklane/tracklane/internal/store"
)

// OrgHeader is the request header carrying the tenant slug.
const OrgHeader = "X-Organization-Slug"

type ctxKey int

const orgContextKey ctxKey = iota

// APIKey returns middleware that enforces API key authentication on every
// request.
//
// Behaviour:
//   - If mode != "apikey" or key == "", all requests are allowed (pass-through).
//   - Otherwise the middleware reads the value of header from the request and
//     compares it to key in constant time.
//   - A missing, empty, or incorrect key gets a 401 JSON response.
func APIKey(mode, header, key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Non-apikey modes or unconfigured key → allow everything.
			if mode != "apikey" || key == "" {
				next.ServeHTTP(w, r)
				return
			}

			got := r.Header.Get(header)
			if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"invalid api key"}`)) //nolint:errcheck
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Tenant returns middleware that resolves the calling organization from the
// X-Organization-Slug header (or ?org= query parameter) into the request
// context. Absent or unknown slugs resolve to no organization rather than an
// error.
func Tenant(st *store.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			slug := r.Header.Get(OrgHeader)
			if slug == "" {
				slug = r.URL.Query().Get("org")
			}
			if slug != "" {
				if org, err := st.OrgBySlug(r.Context(), slug); err == nil {
					r = r.WithContext(context.WithValue(r.Context(), orgContextKey, org))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Organization returns the organization resolved by Tenant, or nil.
func Organization(r *http.Request) *store.Organization {
	org, _ := r.Context().Value(orgContextKey).(*store.Organization)
	return org
}
