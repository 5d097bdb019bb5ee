package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt work factor used for stored digests.
const DefaultCost = bcrypt.DefaultCost

// Hasher produces and checks salted bcrypt digests for passwords and
// refresh tokens.
type Hasher struct {
	cost int
}

// NewHasher creates a hasher with the given bcrypt cost. Costs outside the
// range bcrypt accepts fall back to DefaultCost.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &Hasher{cost: cost}
}

// Hash returns a bcrypt digest of plaintext with a fresh random salt.
func (h *Hasher) Hash(plaintext string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash secret: %w", err)
	}
	return string(digest), nil
}

// Verify reports whether plaintext matches digest. A malformed digest
// never matches.
func (h *Hasher) Verify(plaintext, digest string) bool {
	if digest == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
}

// HashToken returns a bcrypt digest of a refresh token. Signed tokens exceed
// bcrypt's 72-byte input limit, so the token is reduced to its SHA-256 hex
// form first.
func (h *Hasher) HashToken(token string) (string, error) {
	return h.Hash(prehash(token))
}

// VerifyToken reports whether token matches a digest produced by HashToken.
func (h *Hasher) VerifyToken(token, digest string) bool {
	return h.Verify(prehash(token), digest)
}

func prehash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
