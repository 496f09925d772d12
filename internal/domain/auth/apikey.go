// Package auth validates the API keys back-office clients present when
// mutating promotions. Keys are stored as SHA-256 hashes; the raw key
// never touches the database.
package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"github.com/go-faster/errors"
)

// ScopePromotionsWrite is required for creating, updating and deleting
// promotions. Read and checkout endpoints are open.
const ScopePromotionsWrite = "promotions:write"

var (
	// ErrUnauthorized is returned for missing or unknown keys.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden is returned for valid keys lacking the required scope.
	ErrForbidden = errors.New("insufficient scope")
)

// APIKeyInfo is a validated key record.
type APIKeyInfo struct {
	ID      string
	KeyHash string
	Name    string
	Scopes  []string
}

// Repository looks up API keys by their SHA-256 hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKeyInfo, error)
}

// HashKey returns the hex-encoded SHA-256 hash of a raw key.
func HashKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Validator authenticates raw keys against the repository.
type Validator struct {
	repo Repository
}

// NewValidator creates a Validator backed by the given repository.
func NewValidator(repo Repository) *Validator {
	return &Validator{repo: repo}
}

// Validate authenticates the raw key and checks it carries the scope.
// The hash comparison is constant-time even after a successful lookup.
func (v *Validator) Validate(ctx context.Context, rawKey, scope string) (*APIKeyInfo, error) {
	if rawKey == "" {
		return nil, ErrUnauthorized
	}

	sum := sha256.Sum256([]byte(rawKey))
	info, err := v.repo.FindByHash(ctx, hex.EncodeToString(sum[:]))
	if err != nil {
		return nil, ErrUnauthorized
	}

	stored, err := hex.DecodeString(info.KeyHash)
	if err != nil {
		return nil, ErrUnauthorized
	}
	if subtle.ConstantTimeCompare(sum[:], stored) != 1 {
		return nil, ErrUnauthorized
	}

	if !hasScope(info.Scopes, scope) {
		return nil, ErrForbidden
	}
	return info, nil
}

func hasScope(scopes []string, want string) bool {
	for _, s := range scopes {
		if s == want || s == "*" {
			return true
		}
	}
	return false
}
