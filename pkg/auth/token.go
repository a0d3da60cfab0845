package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/campushq/campus/pkg/apperr"
)

const (
	// TokenPrefix identifies campus API tokens
	TokenPrefix = "campus_"
	// TokenLength is the total length of random bytes (32 bytes = 256 bits)
	TokenLength = 32
)

// TokenGenerator generates and validates API tokens
type TokenGenerator struct{}

// NewTokenGenerator creates a new token generator
func NewTokenGenerator() *TokenGenerator {
	return &TokenGenerator{}
}

// GenerateToken creates a new API token
// Format: campus_<base64url(32 random bytes)>
func (tg *TokenGenerator) GenerateToken() (token string, tokenHash string, tokenPrefix string, err error) {
	randomBytes := make([]byte, TokenLength)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	encodedToken := base64.RawURLEncoding.EncodeToString(randomBytes)
	fullToken := TokenPrefix + encodedToken

	// SHA256 hash is what gets stored; the raw token is shown once.
	hash := sha256.Sum256([]byte(fullToken))
	hashStr := hex.EncodeToString(hash[:])

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

	_, err := base64.RawURLEncoding.DecodeString(encodedPart)
	if err != nil {
		return fmt.Errorf("invalid token encoding: %w", err)
	}

	return nil
}

// TokenStore resolves a token hash to the identity it was issued for.
// Implementations must only return identities whose token is unrevoked and
// unexpired and whose user is active.
type TokenStore interface {
	IdentityByTokenHash(ctx context.Context, tokenHash string) (*Identity, error)
}

// TokenManager validates presented tokens against a TokenStore.
type TokenManager struct {
	generator *TokenGenerator
	store     TokenStore
}

// NewTokenManager creates a TokenManager backed by the given store.
func NewTokenManager(store TokenStore) *TokenManager {
	return &TokenManager{
		generator: NewTokenGenerator(),
		store:     store,
	}
}

// Verify implements VerifyFunc for opaque campus tokens.
func (tm *TokenManager) Verify(ctx context.Context, token string) (*Identity, error) {
	if err := tm.generator.ValidateTokenFormat(token); err != nil {
		return nil, apperr.Authentication("invalid or expired token")
	}

	identity, err := tm.store.IdentityByTokenHash(ctx, tm.generator.HashToken(token))
	if err != nil {
		return nil, fmt.Errorf("token lookup failed: %w", err)
	}

	return identity, nil
}
