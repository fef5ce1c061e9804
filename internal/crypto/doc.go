// Package crypto provides the key derivation and cipher primitives for coachvault.
//
// Encryption uses AES-256-GCM with:
//   - 32-byte key derived from the passphrase via PBKDF2
//   - 12-byte random nonce per encryption operation, returned separately
//   - Authenticated encryption; any mismatch fails with ErrDecryption
//
// Key derivation uses PBKDF2-HMAC-SHA256 with:
//   - 32-byte random salt (stored by the keystore, never derived)
//   - 100,000 iterations minimum
//
// Memory safety:
//   - Derived keys live in a memguard LockedBuffer and never leave this package
//   - Call Key.Destroy() to wipe a key; ClearBytes() zeroes other sensitive data
package crypto
