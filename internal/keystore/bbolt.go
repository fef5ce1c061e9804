package keystore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

// KeysBucket holds the salt, the installation id and device keys
var KeysBucket = []byte("keys")

// BoltStore is a KeyStore backed by its own BBolt file
type BoltStore struct {
	path    string
	devices DeviceKeyring

	mu sync.Mutex
	db *bolt.DB

	// serializes first-time creation of salt and installation id
	createMu sync.Mutex
}

// Option configures a BoltStore
type Option func(*BoltStore)

// WithDeviceKeyring sends StoreKey/RetrieveKey to an external keyring instead
// of the keys bucket.
func WithDeviceKeyring(k DeviceKeyring) Option {
	return func(s *BoltStore) {
		s.devices = k
	}
}

// NewBoltStore returns a key store for the database at path. The file is
// opened on first use.
func NewBoltStore(path string, opts ...Option) *BoltStore {
	s := &BoltStore{path: path}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the database file path
func (s *BoltStore) Path() string {
	return s.path
}

func (s *BoltStore) open() (*bolt.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return s.db, nil
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return nil, persistenceErr("create data directory", err)
	}

	db, err := bolt.Open(s.path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, persistenceErr("open key database", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(KeysBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, persistenceErr("initialize key database", err)
	}

	s.db = db
	return db, nil
}

// get copies the value for name out of the keys bucket, nil if absent
func (s *BoltStore) get(db *bolt.DB, name string) ([]byte, error) {
	var value []byte
	err := db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(KeysBucket).Get([]byte(name)); v != nil {
			// Make a copy since the slice is only valid during the transaction
			value = append([]byte(nil), v...)
		}
		return nil
	})
	return value, err
}

// getOrCreate returns the value for name, storing generate() if absent.
// The check and the write happen in one write transaction.
func (s *BoltStore) getOrCreate(ctx context.Context, name string, generate func() ([]byte, error)) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	db, err := s.open()
	if err != nil {
		return nil, err
	}

	value, err := s.get(db, name)
	if err != nil {
		return nil, persistenceErr("read "+name, err)
	}
	if value != nil {
		return value, nil
	}

	s.createMu.Lock()
	defer s.createMu.Unlock()

	err = db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(KeysBucket)
		if v := bucket.Get([]byte(name)); v != nil {
			value = append([]byte(nil), v...)
			return nil
		}
		generated, err := generate()
		if err != nil {
			return err
		}
		value = generated
		return bucket.Put([]byte(name), generated)
	})
	if err != nil {
		return nil, persistenceErr("create "+name, err)
	}
	return value, nil
}

// GetOrGenerateSalt returns the stored salt or creates a new random one
func (s *BoltStore) GetOrGenerateSalt(ctx context.Context) ([]byte, error) {
	data, err := s.getOrCreate(ctx, SaltEntry, func() ([]byte, error) {
		salt, err := newSalt()
		if err != nil {
			return nil, err
		}
		return encodeSalt(salt), nil
	})
	if err != nil {
		return nil, err
	}
	return decodeSalt(data)
}

// HasSalt reports whether a salt has been generated, without creating one
func (s *BoltStore) HasSalt(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	db, err := s.open()
	if err != nil {
		return false, err
	}
	value, err := s.get(db, SaltEntry)
	if err != nil {
		return false, persistenceErr("read "+SaltEntry, err)
	}
	return value != nil, nil
}

// InstallationID returns a stable random id for this data directory
func (s *BoltStore) InstallationID(ctx context.Context) (string, error) {
	data, err := s.getOrCreate(ctx, InstallationIDEntry, func() ([]byte, error) {
		return []byte(uuid.NewString()), nil
	})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// StoreKey stores an opaque device key
func (s *BoltStore) StoreKey(ctx context.Context, id string, key []byte) error {
	if err := checkKeyID(id); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.devices != nil {
		return s.devices.StoreDeviceKey(id, key)
	}

	db, err := s.open()
	if err != nil {
		return err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(KeysBucket).Put([]byte(id), key)
	})
	if err != nil {
		return persistenceErr("store key "+id, err)
	}
	return nil
}

// RetrieveKey returns the device key stored under id, or nil
func (s *BoltStore) RetrieveKey(ctx context.Context, id string) ([]byte, error) {
	if err := checkKeyID(id); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.devices != nil {
		return s.devices.RetrieveDeviceKey(id)
	}

	db, err := s.open()
	if err != nil {
		return nil, err
	}
	key, err := s.get(db, id)
	if err != nil {
		return nil, persistenceErr(fmt.Sprintf("retrieve key %s", id), err)
	}
	return key, nil
}

// Close closes the database if it was opened
func (s *BoltStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
