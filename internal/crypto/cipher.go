package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
)

const (
	NonceSize = 12 // GCM nonce size
	TagSize   = 16 // GCM authentication tag size
)

// ErrDecryption is returned for every decryption failure: wrong key,
// tampered or truncated ciphertext, bad nonce.
var ErrDecryption = errors.New("Decryption failed. Invalid key or corrupted data.")

// Encrypt seals plaintext with AES-256-GCM under key. A fresh random nonce is
// generated for every call and returned next to the ciphertext.
func Encrypt(plaintext []byte, key *Key) (ciphertext, nonce []byte, err error) {
	nonce, err = GenerateRandom(NonceSize)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	err = key.withBytes(func(k []byte) error {
		gcm, err := newGCM(k)
		if err != nil {
			return err
		}
		ciphertext = gcm.Seal(nil, nonce, plaintext, nil)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	return ciphertext, nonce, nil
}

// Decrypt opens ciphertext sealed by Encrypt. It never returns partial output.
func Decrypt(ciphertext, nonce []byte, key *Key) ([]byte, error) {
	if len(nonce) != NonceSize || len(ciphertext) < TagSize {
		return nil, ErrDecryption
	}

	var plaintext []byte
	err := key.withBytes(func(k []byte) error {
		gcm, err := newGCM(k)
		if err != nil {
			return err
		}
		plaintext, err = gcm.Open(nil, nonce, ciphertext, nil)
		return err
	})
	if err != nil {
		return nil, ErrDecryption
	}

	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// ClearBytes securely clears a byte slice
func ClearBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// ConstantTimeCompare performs a constant-time comparison of two byte slices
func ConstantTimeCompare(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

// GenerateRandom generates n random bytes
func GenerateRandom(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return b, nil
}
