package crypto

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	SaltSize          = 32     // Salt size in bytes
	MinSaltSize       = 16     // Shortest salt DeriveKey accepts
	KeySize           = 32     // AES-256 key size
	DefaultIterations = 100000 // PBKDF2 iterations, also the floor
)

// ErrDerivation is returned when a key cannot be derived.
var ErrDerivation = errors.New("key derivation failed")

// KDF holds the parameters for deriving a key from a passphrase
type KDF struct {
	Salt       []byte
	Iterations int
}

// NewKDF creates a new KDF with a random salt
func NewKDF() (*KDF, error) {
	salt, err := GenerateRandom(SaltSize)
	if err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	return &KDF{
		Salt:       salt,
		Iterations: DefaultIterations,
	}, nil
}

// DeriveKey derives an encryption key from a passphrase
func (k *KDF) DeriveKey(passphrase []byte) (*Key, error) {
	return DeriveKey(passphrase, k.Salt, k.Iterations)
}

// DeriveKey runs PBKDF2-HMAC-SHA256 over passphrase and salt and returns the
// result as a protected Key. The same inputs always produce the same key.
func DeriveKey(passphrase, salt []byte, iterations int) (*Key, error) {
	if len(passphrase) == 0 {
		return nil, fmt.Errorf("%w: empty passphrase", ErrDerivation)
	}
	if len(salt) < MinSaltSize {
		return nil, fmt.Errorf("%w: salt must be at least %d bytes, got %d", ErrDerivation, MinSaltSize, len(salt))
	}
	if iterations < DefaultIterations {
		return nil, fmt.Errorf("%w: %d iterations is below the minimum of %d", ErrDerivation, iterations, DefaultIterations)
	}

	raw := pbkdf2.Key(passphrase, salt, iterations, KeySize, sha256.New)
	key, err := newKey(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDerivation, err)
	}
	return key, nil
}
