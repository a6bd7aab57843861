// Package password hashes account passwords and enforces the registration
// password policy.
package password

import (
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// MaxBytes is the longest password bcrypt accepts.
const MaxBytes = 72

// Hasher produces and checks salted one-way password hashes.
type Hasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) bool
	// CompareDummy burns the same time as Compare for unknown users.
	CompareDummy(password string)
}

// BcryptHasher is a Hasher backed by bcrypt.
type BcryptHasher struct {
	cost int

	dummyOnce sync.Once
	dummy     []byte
}

// NewBcryptHasher returns a hasher using cost, or bcrypt.DefaultCost when
// cost is out of range.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

func (h *BcryptHasher) Hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

// Compare reports whether password matches hash. The comparison inside
// bcrypt is constant-time.
func (h *BcryptHasher) Compare(hash, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

func (h *BcryptHasher) CompareDummy(password string) {
	h.dummyOnce.Do(func() {
		h.dummy, _ = bcrypt.GenerateFromPassword([]byte("dummy-password-for-timing"), h.cost)
	})
	_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(password))
}
