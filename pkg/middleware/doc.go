// Package middleware provides HTTP middleware for token authentication.
//
// AuthMiddleware extracts a Bearer token, validates it through
// auth.TokenManager, and attaches the resulting AuthContext to the
// request context under contextkeys.AuthKey. With optional set,
// unauthenticated requests pass through without an AuthContext, which
// handlers treat as anonymous.
package middleware
