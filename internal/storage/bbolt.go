package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Bucket names
var (
	MetaBucket    = []byte("meta")    // Format version and timestamps - unencrypted
	RecordsBucket = []byte("records") // Encrypted records keyed by "<collection>:<id>"
)

// Meta keys
var (
	MetaVersion  = []byte("version")
	MetaCreated  = []byte("created")
	MetaModified = []byte("modified")
)

const (
	FormatVersion = "1"
	filePerm      = 0600
	dirPerm       = 0700
	openTimeout   = time.Second
)

// BoltStore is a RecordStore backed by a BBolt file. The file is opened and
// initialized on first use, not in the constructor.
type BoltStore struct {
	path string

	mu sync.Mutex
	db *bolt.DB
}

// NewBoltStore returns a store for the database at path. Nothing is touched on
// disk until the first operation.
func NewBoltStore(path string) *BoltStore {
	return &BoltStore{path: path}
}

// Path returns the database file path
func (s *BoltStore) Path() string {
	return s.path
}

// open returns the database, opening and initializing it if needed
func (s *BoltStore) open() (*bolt.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return s.db, nil
	}

	if err := os.MkdirAll(filepath.Dir(s.path), dirPerm); err != nil {
		return nil, persistenceErr("create data directory", err)
	}

	db, err := bolt.Open(s.path, filePerm, &bolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, persistenceErr("open database", err)
	}

	if err := initialize(db); err != nil {
		db.Close()
		return nil, persistenceErr("initialize database", err)
	}

	s.db = db
	return db, nil
}

// initialize creates the bucket structure for a new database
func initialize(db *bolt.DB) error {
	return db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{MetaBucket, RecordsBucket} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}

		meta := tx.Bucket(MetaBucket)
		if meta.Get(MetaVersion) != nil {
			return nil
		}
		if err := meta.Put(MetaVersion, []byte(FormatVersion)); err != nil {
			return err
		}

		created, _ := time.Now().MarshalBinary()
		if err := meta.Put(MetaCreated, created); err != nil {
			return err
		}
		return meta.Put(MetaModified, created)
	})
}

func touch(tx *bolt.Tx) error {
	modified, _ := time.Now().MarshalBinary()
	return tx.Bucket(MetaBucket).Put(MetaModified, modified)
}

// Put stores an encrypted record, overwriting any previous value
func (s *BoltStore) Put(ctx context.Context, collection, id string, rec EncryptedRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	db, err := s.open()
	if err != nil {
		return err
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(RecordsBucket).Put([]byte(RecordKey(collection, id)), data); err != nil {
			return err
		}
		return touch(tx)
	})
	if err != nil {
		return persistenceErr("put "+RecordKey(collection, id), err)
	}
	return nil
}

// Get retrieves an encrypted record, or nil if it does not exist
func (s *BoltStore) Get(ctx context.Context, collection, id string) (*EncryptedRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	db, err := s.open()
	if err != nil {
		return nil, err
	}

	var rec *EncryptedRecord
	err = db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(RecordsBucket).Get([]byte(RecordKey(collection, id)))
		if data == nil {
			return nil
		}
		r := decodeRecord(data)
		rec = &r
		return nil
	})
	if err != nil {
		return nil, persistenceErr("get "+RecordKey(collection, id), err)
	}
	return rec, nil
}

// Delete removes a record
func (s *BoltStore) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	db, err := s.open()
	if err != nil {
		return err
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(RecordsBucket).Delete([]byte(RecordKey(collection, id))); err != nil {
			return err
		}
		return touch(tx)
	})
	if err != nil {
		return persistenceErr("delete "+RecordKey(collection, id), err)
	}
	return nil
}

// All returns every stored record keyed by "<collection>:<id>"
func (s *BoltStore) All(ctx context.Context) (map[string]EncryptedRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	db, err := s.open()
	if err != nil {
		return nil, err
	}

	records := make(map[string]EncryptedRecord)
	err = db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(RecordsBucket).ForEach(func(k, v []byte) error {
			records[string(k)] = decodeRecord(v)
			return nil
		})
	})
	if err != nil {
		return nil, persistenceErr("enumerate records", err)
	}
	return records, nil
}

// decodeRecord parses a stored value. A value that does not decode comes back
// as an empty record, which fails decryption like any other damaged record
// instead of hiding the rest of the store. json.Unmarshal copies, so nothing
// returned outlives the transaction.
func decodeRecord(data []byte) EncryptedRecord {
	var rec EncryptedRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return EncryptedRecord{}
	}
	return rec
}

// Count returns the number of stored records
func (s *BoltStore) Count() (int, error) {
	db, err := s.open()
	if err != nil {
		return 0, err
	}

	var n int
	err = db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(RecordsBucket).Stats().KeyN
		return nil
	})
	return n, err
}

// Created retrieves the creation timestamp
func (s *BoltStore) Created() (time.Time, error) {
	return s.timestamp(MetaCreated)
}

// Modified retrieves the last modified timestamp
func (s *BoltStore) Modified() (time.Time, error) {
	return s.timestamp(MetaModified)
}

func (s *BoltStore) timestamp(key []byte) (time.Time, error) {
	db, err := s.open()
	if err != nil {
		return time.Time{}, err
	}

	var ts time.Time
	err = db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(MetaBucket).Get(key)
		if data == nil {
			return fmt.Errorf("%s not found", key)
		}
		return ts.UnmarshalBinary(data)
	})
	return ts, err
}

// Compact creates a compacted copy of the database, removing unused space.
// This is useful after deleting records to reclaim disk space.
//
// The store must not be in use by other goroutines while Compact runs: the
// old handle is closed and replaced, so their transactions would fail.
func (s *BoltStore) Compact() error {
	if _, err := s.open(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	db := s.db
	if db == nil {
		return persistenceErr("compact", errors.New("store closed"))
	}
	srcPath := db.Path()
	tmpPath := srcPath + ".compact"

	dst, err := bolt.Open(tmpPath, filePerm, &bolt.Options{Timeout: openTimeout})
	if err != nil {
		return persistenceErr("create compact database", err)
	}

	// Copy all buckets
	err = db.View(func(srcTx *bolt.Tx) error {
		return dst.Update(func(dstTx *bolt.Tx) error {
			return srcTx.ForEach(func(name []byte, srcBucket *bolt.Bucket) error {
				dstBucket, err := dstTx.CreateBucketIfNotExists(name)
				if err != nil {
					return err
				}
				return srcBucket.ForEach(func(k, v []byte) error {
					return dstBucket.Put(k, v)
				})
			})
		})
	})
	if err != nil {
		dst.Close()
		os.Remove(tmpPath)
		return persistenceErr("copy data", err)
	}

	if err := dst.Close(); err != nil {
		os.Remove(tmpPath)
		return persistenceErr("close compact database", err)
	}

	if err := db.Close(); err != nil {
		os.Remove(tmpPath)
		return persistenceErr("close source database", err)
	}
	s.db = nil

	// Atomic replace
	backupPath := srcPath + ".backup"
	if err := os.Rename(srcPath, backupPath); err != nil {
		return persistenceErr("backup original", err)
	}
	if err := os.Rename(tmpPath, srcPath); err != nil {
		os.Rename(backupPath, srcPath) // rollback
		return persistenceErr("replace database", err)
	}
	os.Remove(backupPath)

	s.db, err = bolt.Open(srcPath, filePerm, &bolt.Options{Timeout: openTimeout})
	if err != nil {
		return persistenceErr("reopen database", err)
	}
	return nil
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
