package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	// TokenPrefix identifies API tokens issued by this service
	TokenPrefix = "grad_"
	// TokenLength is the total length of random bytes (32 bytes = 256 bits)
	TokenLength = 32

	// validatedTokenCacheSize bounds the number of memoized token validations
	validatedTokenCacheSize = 1024
	// validatedTokenCacheTTL bounds how long a validation is reused before
	// the database is consulted again (revocation latency ceiling)
	validatedTokenCacheTTL = 30 * time.Second
)

// ErrInvalidToken is returned when a token is unknown, expired, or revoked.
var ErrInvalidToken = errors.New("invalid or expired token")

// TokenGenerator generates and validates API tokens
type TokenGenerator struct{}

// NewTokenGenerator creates a new token generator
func NewTokenGenerator() *TokenGenerator {
	return &TokenGenerator{}
}

// GenerateToken creates a new API token.
// Format: grad_<base64url(32 random bytes)>
func (tg *TokenGenerator) GenerateToken() (token string, tokenHash string, tokenPrefix string, err error) {
	randomBytes := make([]byte, TokenLength)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	encodedToken := base64.RawURLEncoding.EncodeToString(randomBytes)
	fullToken := TokenPrefix + encodedToken

	hash := sha256.Sum256([]byte(fullToken))
	hashStr := hex.EncodeToString(hash[:])

	// First 8 chars after the prefix identify the token in listings
	prefix := TokenPrefix
	if len(encodedToken) >= 8 {
		prefix = TokenPrefix + encodedToken[:8]
	}

	return fullToken, hashStr, prefix, nil
}

// HashToken computes the SHA256 hash of a token for lookup
func (tg *TokenGenerator) HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// ValidateTokenFormat checks if a token has the correct format
func (tg *TokenGenerator) ValidateTokenFormat(token string) error {
	if !strings.HasPrefix(token, TokenPrefix) {
		return fmt.Errorf("token must start with %q", TokenPrefix)
	}

	encodedPart := strings.TrimPrefix(token, TokenPrefix)
	if len(encodedPart) == 0 {
		return fmt.Errorf("token is too short")
	}

	if _, err := base64.RawURLEncoding.DecodeString(encodedPart); err != nil {
		return fmt.Errorf("invalid token encoding: %w", err)
	}

	return nil
}

// TokenManager manages API token lifecycle against the backing store
type TokenManager struct {
	db        *sql.DB
	generator *TokenGenerator
	validated *lru.LRU[string, *AuthContext]
}

// NewTokenManager creates a new token manager
func NewTokenManager(db *sql.DB) *TokenManager {
	return &TokenManager{
		db:        db,
		generator: NewTokenGenerator(),
		validated: lru.NewLRU[string, *AuthContext](validatedTokenCacheSize, nil, validatedTokenCacheTTL),
	}
}

// CreateToken issues a new token for a user and returns the one-time plaintext
func (tm *TokenManager) CreateToken(ctx context.Context, userID int64, name string, expiresAt *time.Time) (string, *APIToken, error) {
	plaintext, hash, prefix, err := tm.generator.GenerateToken()
	if err != nil {
		return "", nil, err
	}

	token := &APIToken{
		UserID:      userID,
		TokenHash:   hash,
		TokenPrefix: prefix,
		Name:        name,
		ExpiresAt:   expiresAt,
	}

	query := `
		INSERT INTO api_tokens (user_id, token_hash, token_prefix, name, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	err = tm.db.QueryRowContext(ctx, query, token.UserID, token.TokenHash,
		token.TokenPrefix, token.Name, token.ExpiresAt).
		Scan(&token.ID, &token.CreatedAt)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create token: %w", err)
	}

	return plaintext, token, nil
}

// ValidateToken resolves a bearer token to the authenticated caller.
// Validations are memoized briefly so hot callers do not hit the database
// on every request.
func (tm *TokenManager) ValidateToken(ctx context.Context, plaintext string) (*AuthContext, error) {
	if err := tm.generator.ValidateTokenFormat(plaintext); err != nil {
		return nil, ErrInvalidToken
	}

	hash := tm.generator.HashToken(plaintext)
	if authCtx, ok := tm.validated.Get(hash); ok {
		return authCtx, nil
	}

	query := `
		SELECT t.id, t.user_id, t.token_prefix, t.name, t.expires_at, t.last_used_at, t.created_at, t.revoked_at,
		       u.id, u.username, u.email, u.is_active, u.created_at, u.updated_at
		FROM api_tokens t
		JOIN users u ON u.id = t.user_id
		WHERE t.token_hash = $1
	`
	token := &APIToken{TokenHash: hash}
	user := &User{}
	var email sql.NullString
	err := tm.db.QueryRowContext(ctx, query, hash).Scan(
		&token.ID, &token.UserID, &token.TokenPrefix, &token.Name,
		&token.ExpiresAt, &token.LastUsedAt, &token.CreatedAt, &token.RevokedAt,
		&user.ID, &user.Username, &email, &user.IsActive, &user.CreatedAt, &user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up token: %w", err)
	}
	if email.Valid {
		user.Email = email.String
	}

	if token.Expired(time.Now()) || !user.IsActive {
		return nil, ErrInvalidToken
	}

	// Best effort; validation does not depend on it
	_, _ = tm.db.ExecContext(ctx, `UPDATE api_tokens SET last_used_at = NOW() WHERE id = $1`, token.ID)

	authCtx := &AuthContext{User: user, Token: token}
	tm.validated.Add(hash, authCtx)
	return authCtx, nil
}

// RevokeToken marks a token revoked and drops it from the validation cache
func (tm *TokenManager) RevokeToken(ctx context.Context, tokenID, userID int64) error {
	query := `
		UPDATE api_tokens SET revoked_at = NOW()
		WHERE id = $1 AND user_id = $2 AND revoked_at IS NULL
	`
	result, err := tm.db.ExecContext(ctx, query, tokenID, userID)
	if err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("token not found or already revoked")
	}

	// The cache keys by hash, which we no longer have; entries age out
	// within validatedTokenCacheTTL.
	return nil
}
