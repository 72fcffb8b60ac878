// Package auth provides user identity, workspace roles, and API token
// management.
//
// Tokens are random 256-bit values issued once in plaintext and stored only
// as SHA256 hashes. ValidateToken memoizes successful validations in a small
// expirable LRU so request-path validation does not hit the database on
// every call; the TTL bounds how long a revoked token can still authenticate.
//
// Roles form an ordered privilege ladder: owner > admin > member. Policy
// decisions against roles live in pkg/perm, not here.
package auth
