// Package auth resolves the authenticated customer identity consumed by the
// cart and checkout operations. Key issuance lives outside this service; it
// only verifies keys it is handed.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"github.com/go-faster/errors"
)

// ErrUnauthorized is returned for unknown or malformed API keys.
var ErrUnauthorized = errors.New("unauthorized")

// Customer is the identity an API key resolves to.
type Customer struct {
	ID    string
	Name  string
	Email string
	Phone string
}

// KeyInfo is a stored API key: the HMAC-SHA256 hash of the key material and
// the customer it belongs to.
type KeyInfo struct {
	ID         string
	KeyHash    string
	CustomerID string
	Name       string
}

// Repository provides lookup of API keys by hash and of their customers.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*KeyInfo, error)
	GetCustomer(ctx context.Context, id string) (*Customer, error)
}

// Verifier authenticates raw API keys against the repository.
type Verifier struct {
	repo   Repository
	pepper []byte
}

// NewVerifier creates a Verifier. The pepper is the server-side HMAC secret
// mixed into every key hash.
func NewVerifier(repo Repository, pepper []byte) *Verifier {
	return &Verifier{repo: repo, pepper: pepper}
}

// HashKey computes the stored form of an API key: hex-encoded HMAC-SHA256
// of the key material under the pepper. Key issuers must use the same form.
func HashKey(pepper []byte, key string) string {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(key))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify resolves an API key to its customer. The stored hash is re-compared
// in constant time even though the lookup already matched, guarding against
// a repository returning a stale or wrong row.
func (v *Verifier) Verify(ctx context.Context, key string) (*Customer, error) {
	mac := hmac.New(sha256.New, v.pepper)
	mac.Write([]byte(key))
	hash := mac.Sum(nil)

	info, err := v.repo.FindByHash(ctx, hex.EncodeToString(hash))
	if err != nil {
		return nil, ErrUnauthorized
	}

	stored, err := hex.DecodeString(info.KeyHash)
	if err != nil {
		return nil, ErrUnauthorized
	}
	if subtle.ConstantTimeCompare(hash, stored) != 1 {
		return nil, ErrUnauthorized
	}

	customer, err := v.repo.GetCustomer(ctx, info.CustomerID)
	if err != nil {
		return nil, ErrUnauthorized
	}
	return customer, nil
}
