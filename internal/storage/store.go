package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrPersistence wraps every failure of the underlying durable store.
var ErrPersistence = errors.New("persistence error")

// EncryptedRecord is what a RecordStore holds for one (collection, id).
type EncryptedRecord struct {
	Ciphertext []byte `json:"ciphertext"`
	Nonce      []byte `json:"iv"`
}

// Clone returns a deep copy of the record.
func (r EncryptedRecord) Clone() EncryptedRecord {
	return EncryptedRecord{
		Ciphertext: append([]byte(nil), r.Ciphertext...),
		Nonce:      append([]byte(nil), r.Nonce...),
	}
}

// RecordStore is a durable collection of encrypted records.
type RecordStore interface {
	// Put stores rec under (collection, id), replacing any previous value.
	Put(ctx context.Context, collection, id string, rec EncryptedRecord) error
	// Get returns nil, nil when no record exists.
	Get(ctx context.Context, collection, id string) (*EncryptedRecord, error)
	// Delete removes a record. Deleting a missing record is not an error.
	Delete(ctx context.Context, collection, id string) error
	// All returns every record keyed by RecordKey(collection, id).
	All(ctx context.Context) (map[string]EncryptedRecord, error)
	Close() error
}

// RecordKey builds the composite key "<collection>:<id>".
func RecordKey(collection, id string) string {
	return collection + ":" + id
}

// SplitRecordKey splits a composite key at the first colon. Collections never
// contain a colon, ids may.
func SplitRecordKey(key string) (collection, id string, err error) {
	collection, id, ok := strings.Cut(key, ":")
	if !ok || collection == "" || id == "" {
		return "", "", fmt.Errorf("malformed record key %q", key)
	}
	return collection, id, nil
}

func persistenceErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}
