package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/illarion/coachvault/internal/crypto"
	"github.com/illarion/coachvault/internal/keystore"
	"github.com/illarion/coachvault/internal/security"
	"github.com/illarion/coachvault/internal/storage"
)

// ErrStorageLocked is returned by every record operation while the session
// holds no key.
var ErrStorageLocked = errors.New("storage is locked")

// Session owns the derived key for one vault. It starts locked.
type Session struct {
	keys       keystore.KeyStore
	records    storage.RecordStore
	log        *logrus.Logger
	iterations int

	mu  sync.RWMutex
	key *crypto.Key
	// bumped by Lock so in-flight derivations know they lost
	epoch uint64

	unlocks singleflight.Group
}

// Option configures a Session
type Option func(*Session)

// WithLogger sets the logger. Passphrases, keys and record contents are never
// logged.
func WithLogger(log *logrus.Logger) Option {
	return func(s *Session) {
		if log != nil {
			s.log = log
		}
	}
}

// WithIterations sets the PBKDF2 iteration count. Counts below
// crypto.DefaultIterations make every Unlock fail.
func WithIterations(n int) Option {
	return func(s *Session) {
		s.iterations = n
	}
}

// New creates a locked session over the given stores
func New(keys keystore.KeyStore, records storage.RecordStore, opts ...Option) *Session {
	s := &Session{
		keys:       keys,
		records:    records,
		log:        logrus.StandardLogger(),
		iterations: crypto.DefaultIterations,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Unlock derives the key for passphrase and installs it. Calling it while
// unlocked replaces the held key. Any failure leaves the session locked and
// returns false; the cause is only logged.
func (s *Session) Unlock(ctx context.Context, passphrase []byte) bool {
	digest := sha256.Sum256(passphrase)
	flight := hex.EncodeToString(digest[:])
	crypto.ClearBytes(digest[:])

	v, _, _ := s.unlocks.Do(flight, func() (any, error) {
		return s.unlock(ctx, passphrase), nil
	})
	return v.(bool)
}

func (s *Session) unlock(ctx context.Context, passphrase []byte) bool {
	s.mu.RLock()
	epoch := s.epoch
	s.mu.RUnlock()

	key, err := s.derive(ctx, passphrase)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"event": "vault_unlock_failed",
			"error": err.Error(),
		}).Warn("Vault unlock failed")
		s.install(nil)
		return false
	}

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		key.Destroy()
		s.log.WithField("event", "vault_unlock_superseded").Debug("Vault locked during key derivation")
		return false
	}
	old := s.key
	s.key = key
	s.mu.Unlock()

	if old != nil && old != key {
		old.Destroy()
	}
	s.log.WithField("event", "vault_unlocked").Info("Vault unlocked")
	return true
}

func (s *Session) derive(ctx context.Context, passphrase []byte) (*crypto.Key, error) {
	salt, err := s.keys.GetOrGenerateSalt(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get salt: %w", err)
	}
	defer crypto.ClearBytes(salt)

	return crypto.DeriveKey(passphrase, salt, s.iterations)
}

// install swaps in key and destroys the one it replaces
func (s *Session) install(key *crypto.Key) {
	s.mu.Lock()
	old := s.key
	s.key = key
	s.mu.Unlock()
	if old != nil && old != key {
		old.Destroy()
	}
}

// Lock discards and wipes the key. It waits for running record operations
// and cancels any derivation still in flight. Locking twice is a no-op.
func (s *Session) Lock() {
	s.mu.Lock()
	s.epoch++
	old := s.key
	s.key = nil
	s.mu.Unlock()

	if old != nil {
		old.Destroy()
		s.log.WithField("event", "vault_locked").Info("Vault locked")
	}
}

// IsReady reports whether the session holds a key
func (s *Session) IsReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.key != nil
}

// IsLocked is the negation of IsReady
func (s *Session) IsLocked() bool {
	return !s.IsReady()
}

// withKey runs fn with the current key under the read lock
func (s *Session) withKey(fn func(key *crypto.Key) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.key == nil {
		return ErrStorageLocked
	}
	return fn(s.key)
}

// Save serializes value as JSON, encrypts it and stores it under
// (collection, id), replacing any previous record.
func (s *Session) Save(ctx context.Context, collection, id string, value any) error {
	return s.withKey(func(key *crypto.Key) error {
		if err := security.ValidateRecordName(collection, id); err != nil {
			return err
		}

		plaintext, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("failed to serialize %s: %w", storage.RecordKey(collection, id), err)
		}
		defer crypto.ClearBytes(plaintext)

		ciphertext, nonce, err := crypto.Encrypt(plaintext, key)
		if err != nil {
			return fmt.Errorf("failed to encrypt %s: %w", storage.RecordKey(collection, id), err)
		}

		return s.records.Put(ctx, collection, id, storage.EncryptedRecord{
			Ciphertext: ciphertext,
			Nonce:      nonce,
		})
	})
}

// LoadInto decrypts the record at (collection, id) into out. It returns false
// with a nil error when the record is absent or cannot be decrypted.
func (s *Session) LoadInto(ctx context.Context, collection, id string, out any) (bool, error) {
	found := false
	err := s.withKey(func(key *crypto.Key) error {
		if err := security.ValidateRecordName(collection, id); err != nil {
			return err
		}

		rec, err := s.records.Get(ctx, collection, id)
		if err != nil {
			return err
		}
		if rec == nil {
			return nil
		}

		plaintext, err := crypto.Decrypt(rec.Ciphertext, rec.Nonce, key)
		if err != nil {
			s.log.WithFields(logrus.Fields{
				"event":      "record_unreadable",
				"collection": collection,
				"id":         id,
			}).Warn("Skipping record that failed to decrypt")
			return nil
		}
		defer crypto.ClearBytes(plaintext)

		if err := json.Unmarshal(plaintext, out); err != nil {
			return fmt.Errorf("failed to decode %s: %w", storage.RecordKey(collection, id), err)
		}
		found = true
		return nil
	})
	return found, err
}

// Load decrypts the record at (collection, id) as a T. A nil result with a
// nil error means the record is absent or unreadable.
func Load[T any](ctx context.Context, s *Session, collection, id string) (*T, error) {
	var out T
	found, err := s.LoadInto(ctx, collection, id, &out)
	if err != nil || !found {
		return nil, err
	}
	return &out, nil
}

// Remove deletes the record at (collection, id)
func (s *Session) Remove(ctx context.Context, collection, id string) error {
	return s.withKey(func(*crypto.Key) error {
		if err := security.ValidateRecordName(collection, id); err != nil {
			return err
		}
		return s.records.Delete(ctx, collection, id)
	})
}

// Close locks the session and closes both stores
func (s *Session) Close() error {
	s.Lock()
	return errors.Join(s.records.Close(), s.keys.Close())
}
