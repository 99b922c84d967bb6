package credentials

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrEmptySecret is returned when hashing an empty secret
var ErrEmptySecret = errors.New("secret cannot be empty")

// Hasher hashes and verifies session passwords with bcrypt
// TECHNICAL DISCOVERY: bcrypt reads at most 72 bytes, so longer secrets are
// reduced to a base64 SHA-256 digest first; a 128-character password is
// therefore never silently truncated
type Hasher struct {
	cost int
}

// NewHasher returns a bcrypt hasher, falling back to bcrypt.DefaultCost for
// an out-of-range cost
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{cost: cost}
}

// Hash returns the bcrypt digest of the secret
func (h *Hasher) Hash(secret string) (string, error) {
	if secret == "" {
		return "", ErrEmptySecret
	}

	digest, err := bcrypt.GenerateFromPassword(prepare(secret), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash secret: %w", err)
	}
	return string(digest), nil
}

// Verify reports whether the secret matches the stored digest
func (h *Hasher) Verify(hash, secret string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), prepare(secret)) == nil
}

// Cost returns the configured work factor
func (h *Hasher) Cost() int {
	return h.cost
}

const bcryptMaxInput = 72

func prepare(secret string) []byte {
	if len(secret) <= bcryptMaxInput {
		return []byte(secret)
	}
	sum := sha256.Sum256([]byte(secret))
	return []byte(base64.StdEncoding.EncodeToString(sum[:]))
}
